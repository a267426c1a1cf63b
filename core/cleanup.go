package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/metrics"
)

// DefaultTempMaxAge is how old an abandoned cache temp file must be before
// the cleanup worker removes it.
const DefaultTempMaxAge = time.Hour

// StartCleanupWorker starts a background goroutine that periodically removes
// temp files left in the cache directory by interrupted writes. It stops
// when ctx is canceled.
func (s *FileService) StartCleanupWorker(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		s.logger.Info("Cache cleanup worker disabled")
		return
	}
	if maxAge <= 0 {
		maxAge = DefaultTempMaxAge
	}

	go func() {
		s.logger.Info("Starting cache cleanup worker",
			zap.Duration("interval", interval),
			zap.Duration("max_age", maxAge))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.cleanupTemp(maxAge)
			case <-ctx.Done():
				s.logger.Info("Cache cleanup worker shutting down")
				return
			}
		}
	}()
}

// cleanupTemp removes temp files older than maxAge.
func (s *FileService) cleanupTemp(maxAge time.Duration) int {
	removed, err := s.cache.RemoveStaleTemp(time.Now().Add(-maxAge))
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("cache", "cleanup_failed").Inc()
		s.logger.Error("Failed to clean up cache temp files", zap.Error(err))
	}
	if removed > 0 {
		s.logger.Info("Cleaned up abandoned cache temp files", zap.Int("count", removed))
	}
	return removed
}
