// Package locks serializes work on a single logical filename, in process
// or across processes sharing one cache root.
package locks

import (
	"context"
	"fmt"
	"time"
)

// Manager defines the interface for per-key locking operations
type Manager interface {
	// Acquire attempts to acquire the lock for the given key
	// Returns true if the lock was acquired, false if it was already held
	Acquire(ctx context.Context, key string) (bool, error)

	// Release releases a previously acquired lock for the given key
	Release(ctx context.Context, key string) error

	// Close closes the lock manager and releases any resources
	Close() error
}

// DefaultPollInterval is how often Wait retries a held lock.
const DefaultPollInterval = 10 * time.Millisecond

// Wait blocks until the lock for key is acquired or ctx ends.
func Wait(ctx context.Context, m Manager, key string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		acquired, err := m.Acquire(ctx, key)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
