// Package pathutil provides filename validation and safe path handling for hdfscache.
package pathutil

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidName is returned for logical filenames that cannot be stored.
	ErrInvalidName = errors.New("invalid filename")
	// ErrForbidden is returned when a path would escape its root.
	ErrForbidden = errors.New("path escapes root")
)

// Clean sanitizes a relative path to prevent directory traversal.
// It rejects absolute paths and any path that climbs above its root,
// and returns the cleaned path with a leading slash.
func Clean(path string) (string, error) {
	if path == "" {
		return "/", nil
	}

	if filepath.IsAbs(path) && path != "/" {
		return "", ErrForbidden
	}

	cleaned := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	if cleaned == "/" {
		return cleaned, nil
	}

	depth := 0
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			depth--
			if depth < 0 {
				return "", ErrForbidden
			}
		} else {
			depth++
		}
	}

	return cleaned, nil
}

// SafeJoin joins root and rel, ensuring the result stays inside root.
func SafeJoin(root, rel string) (string, error) {
	cleanRoot := filepath.Clean(root)

	cleanRel, err := Clean(rel)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(cleanRoot, strings.TrimPrefix(cleanRel, "/"))

	relPath, err := filepath.Rel(cleanRoot, joined)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrForbidden
	}

	return joined, nil
}

// ValidateName checks a logical filename before it is used as a URL
// segment or a cache file name.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}

	// "." and ".." survive percent-encoding unchanged and would resolve to
	// the cache directory or its parent.
	if name == "." || name == ".." {
		return ErrInvalidName
	}

	for _, char := range name {
		if char < 32 || char == 0x7f {
			return ErrInvalidName
		}
	}

	return nil
}

// EscapeName percent-encodes a logical filename into a single path segment.
// Every byte outside A-Z a-z 0-9 and - _ . ! ~ * ' ( ) is encoded, the same
// set a browser's encodeURIComponent keeps, so cache file names and WebHDFS
// URLs match those written by other clients of the same store.
func EscapeName(name string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if keepUnescaped(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func keepUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// UnescapeName reverses EscapeName.
func UnescapeName(escaped string) (string, error) {
	return url.PathUnescape(escaped)
}
