package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupWorkerRemovesAbandonedTempFiles(t *testing.T) {
	svc := newTestService(t, newFakeRemote(), "")
	dir := svc.cache.ApplicationDir()
	require.NoError(t, os.MkdirAll(dir, 0755))

	stale := filepath.Join(dir, ".tmp-123")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(stale, past, past))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartCleanupWorker(ctx, 5*time.Millisecond, time.Second)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCleanupTempKeepsEntries(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	svc := newTestService(t, remote, "")
	remote.put("f", []byte("data"))
	_, err := svc.Read(ctx, "f")
	require.NoError(t, err)

	assert.Zero(t, svc.cleanupTemp(time.Nanosecond))
	assert.True(t, svc.Exists("f"))
}
