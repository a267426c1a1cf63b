package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/core/log"
	"github.com/ebogdum/hdfscache/crypt"
	"github.com/ebogdum/hdfscache/internal/pathutil"
	"github.com/ebogdum/hdfscache/metrics"
)

// Create stores data under name on the remote store, refusing to overwrite
// an existing file. It returns data unchanged on success. The local cache
// is not touched; the next Read populates it.
func (s *FileService) Create(ctx context.Context, name string, data []byte) ([]byte, error) {
	if err := pathutil.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	stored, err := s.cipher.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", log.SanitizeName(name), err)
	}

	if err := s.remote.Create(ctx, name, bytes.NewReader(stored), int64(len(stored)), false); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("create", "failure").Inc()
		s.logger.Warn("Remote create failed",
			zap.String("name", log.SanitizeName(name)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRemoteWrite, err)
	}

	metrics.FileOperationsTotal.WithLabelValues("create", "success").Inc()
	s.logger.Info("File created",
		zap.String("name", log.SanitizeName(name)),
		zap.Int("size", len(data)))

	return data, nil
}

// Read returns the content of name, decrypted with the service's own key.
func (s *FileService) Read(ctx context.Context, name string) ([]byte, error) {
	return s.ReadWith(ctx, name, s.cipher)
}

// ReadWith returns the content of name decrypted with c. The cache holds
// the stored form, so services with different keys can share one cache root.
func (s *FileService) ReadWith(ctx context.Context, name string, c crypt.Cipher) ([]byte, error) {
	if err := pathutil.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	stored, err := s.readThrough(ctx, name)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("read", "failure").Inc()
		return nil, err
	}

	plaintext, err := c.Decrypt(stored)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("read", "failure").Inc()
		return nil, fmt.Errorf("read %s: %w", log.SanitizeName(name), err)
	}

	metrics.FileOperationsTotal.WithLabelValues("read", "success").Inc()
	return plaintext, nil
}

// Replace stores data under name, overwriting any existing remote file,
// and rewrites the local cache entry with the new stored form.
func (s *FileService) Replace(ctx context.Context, name string, data []byte) error {
	if err := pathutil.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}

	stored, err := s.cipher.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", log.SanitizeName(name), err)
	}

	release, err := s.lock(ctx, name)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("replace", "failure").Inc()
		return err
	}
	defer release()

	if err := s.remote.Create(ctx, name, bytes.NewReader(stored), int64(len(stored)), true); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("replace", "failure").Inc()
		return fmt.Errorf("%w: %w", ErrRemoteWrite, err)
	}

	if _, err := s.cache.Write(name, bytes.NewReader(stored)); err != nil {
		// A stale entry would still hold the previous stored form.
		rmErr := s.cache.Remove(name)
		if rmErr != nil || IsFatal(err) {
			metrics.FileOperationsTotal.WithLabelValues("replace", "failure").Inc()
			return fmt.Errorf("refresh cache for %s: %w", log.SanitizeName(name), errors.Join(err, rmErr))
		}
		s.logger.Warn("Cache refresh failed, entry evicted",
			zap.String("name", log.SanitizeName(name)),
			zap.Error(err))
	}

	metrics.FileOperationsTotal.WithLabelValues("replace", "success").Inc()
	return nil
}

// Delete removes name from the remote store. The local cache entry is kept,
// so a later Read can still serve the old content.
func (s *FileService) Delete(ctx context.Context, name string) error {
	if err := pathutil.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}

	if err := s.remote.Delete(ctx, name); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return fmt.Errorf("%w: %w", ErrRemoteDelete, err)
	}

	metrics.FileOperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("File deleted", zap.String("name", log.SanitizeName(name)))

	return nil
}
