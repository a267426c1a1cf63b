package core

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/core/log"
	"github.com/ebogdum/hdfscache/locks"
	"github.com/ebogdum/hdfscache/metrics"
)

// readThrough returns the stored form of name, fetching it from the remote
// store into the local cache on a miss. Concurrent misses for one name are
// serialized by the lock manager, so only the first one fetches.
func (s *FileService) readThrough(ctx context.Context, name string) ([]byte, error) {
	if s.cache.Exists(name) {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return s.cache.ReadFile(name)
	}

	// Fails with ErrPermission before any remote traffic.
	if _, err := s.cache.ResolvePath(name); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.cache.Exists(name) {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return s.cache.ReadFile(name)
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	body, err := s.remote.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteRead, err)
	}
	defer body.Close()

	src := &trackingReader{r: body}
	n, err := s.cache.Write(name, src)
	if err != nil {
		if src.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRemoteRead, src.err)
		}
		return nil, err
	}

	s.logger.Debug("Cache entry populated",
		zap.String("name", log.SanitizeName(name)),
		zap.Int64("size", n))

	return s.cache.ReadFile(name)
}

// lock takes the per-filename lock and returns its release function.
func (s *FileService) lock(ctx context.Context, name string) (func(), error) {
	key := "file:" + name
	if err := locks.Wait(ctx, s.lockManager, key, s.lockPollInterval); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLockUnavailable, log.SanitizeName(name), err)
	}
	return func() {
		if err := s.lockManager.Release(context.Background(), key); err != nil {
			s.logger.Error("Failed to release lock",
				zap.String("name", log.SanitizeName(name)),
				zap.Error(err))
		}
	}, nil
}

// trackingReader remembers the error of the underlying reader, so a
// broken download can be told apart from a failing disk write.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
