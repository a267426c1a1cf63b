// Package localfs keeps the on-disk materialization of remote files.
package localfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ebogdum/hdfscache/internal/pathutil"
)

// DefaultRoot is the cache root used when none is configured.
const DefaultRoot = "files"

const tempPattern = ".tmp-*"

var (
	// ErrPermission is returned when the cache directory cannot be created
	// because the host filesystem denies write access.
	ErrPermission = errors.New("permission error: write access to the server's file system is required")
	// ErrLocalIO wraps any other disk failure.
	ErrLocalIO = errors.New("local cache I/O failed")
)

// LocalFSAdapter maps logical filenames to files below root[/subDir].
type LocalFSAdapter struct {
	root   string
	subDir string

	mkdirAll func(path string, perm os.FileMode) error
}

// Option configures a LocalFSAdapter.
type Option func(*LocalFSAdapter)

// WithMkdirAll replaces the function used to create the directory chain.
func WithMkdirAll(fn func(path string, perm os.FileMode) error) Option {
	return func(a *LocalFSAdapter) {
		a.mkdirAll = fn
	}
}

// NewLocalFSAdapter creates a cache store. Directories are created lazily
// by ResolvePath, not here.
func NewLocalFSAdapter(root, subDir string, opts ...Option) *LocalFSAdapter {
	if root == "" {
		root = DefaultRoot
	}
	a := &LocalFSAdapter{
		root:     root,
		subDir:   subDir,
		mkdirAll: os.MkdirAll,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplicationDir returns the directory holding cache entries.
func (a *LocalFSAdapter) ApplicationDir() string {
	if a.subDir != "" {
		return filepath.Join(a.root, a.subDir)
	}
	return a.root
}

// path maps name to its cache file without touching the disk.
func (a *LocalFSAdapter) path(name string) (string, error) {
	if err := pathutil.ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return pathutil.SafeJoin(a.ApplicationDir(), pathutil.EscapeName(name))
}

// ensureDir creates the application directory chain.
func (a *LocalFSAdapter) ensureDir() error {
	dir := a.ApplicationDir()
	if err := a.mkdirAll(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s: %w", ErrPermission, dir, err)
		}
		return fmt.Errorf("%w: create directory %s: %w", ErrLocalIO, dir, err)
	}
	return nil
}

// ResolvePath returns the cache file path for name, creating the
// directory chain first.
func (a *LocalFSAdapter) ResolvePath(name string) (string, error) {
	p, err := a.path(name)
	if err != nil {
		return "", err
	}
	if err := a.ensureDir(); err != nil {
		return "", err
	}
	return p, nil
}

// Exists reports whether name is materialized locally.
func (a *LocalFSAdapter) Exists(name string) bool {
	p, err := a.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Open opens the cache entry for name.
func (a *LocalFSAdapter) Open(name string) (io.ReadCloser, error) {
	p, err := a.ResolvePath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrLocalIO, p, err)
	}
	return file, nil
}

// ReadFile returns the full cache entry for name.
func (a *LocalFSAdapter) ReadFile(name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", ErrLocalIO, name, err)
	}
	return data, nil
}

// Write stores the content of reader as the cache entry for name. Content
// goes to a temp file first and is renamed into place, so a concurrent
// reader sees either the old entry or the complete new one.
func (a *LocalFSAdapter) Write(name string, reader io.Reader) (int64, error) {
	p, err := a.ResolvePath(name)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(a.ApplicationDir(), tempPattern)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return 0, fmt.Errorf("%w: %s: %w", ErrPermission, a.ApplicationDir(), err)
		}
		return 0, fmt.Errorf("%w: create temp file: %w", ErrLocalIO, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("%w: write %q: %w", ErrLocalIO, name, err)
	}

	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("%w: rename into %s: %w", ErrLocalIO, p, err)
	}

	return n, nil
}

// Remove deletes the cache entry for name. A missing entry is not an error.
func (a *LocalFSAdapter) Remove(name string) error {
	p, err := a.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrLocalIO, p, err)
	}
	return nil
}

// List returns the logical filenames materialized in the application
// directory, sorted. Hidden entries, directories and in-flight temp files
// are skipped. A missing directory yields an empty list.
func (a *LocalFSAdapter) List() ([]string, error) {
	entries, err := os.ReadDir(a.ApplicationDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: read directory %s: %w", ErrLocalIO, a.ApplicationDir(), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name, err := pathutil.UnescapeName(entry.Name())
		if err != nil {
			// Not written by this adapter.
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// RemoveStaleTemp deletes temp files left behind by interrupted writes that
// were last modified before cutoff. It returns the number removed.
func (a *LocalFSAdapter) RemoveStaleTemp(cutoff time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(a.ApplicationDir(), tempPattern))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLocalIO, err)
	}

	removed := 0
	var errs []error
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: remove temp files: %w", ErrLocalIO, errors.Join(errs...))
	}
	return removed, nil
}
