package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/backends/localfs"
	"github.com/ebogdum/hdfscache/backends/webhdfs"
	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/core"
	"github.com/ebogdum/hdfscache/core/log"
	"github.com/ebogdum/hdfscache/crypt"
	"github.com/ebogdum/hdfscache/locks"
)

// buildService wires the remote store, cache, cipher and lock manager
// described by cfg. The returned function releases them.
func buildService(cfg config.AppConfig, logger *zap.Logger) (*core.FileService, func(), error) {
	log.SetMode(log.ParseMode(cfg.Log.Mode))

	remote, err := webhdfs.NewWebHDFSAdapter(webhdfs.Config{
		DataNode:           cfg.Remote.DataNode,
		NameNode:           cfg.Remote.NameNode,
		Path:               cfg.Remote.Path,
		NameNodeRPCAddress: cfg.Remote.NameNodeRPCAddress,
		Timeout:            cfg.Remote.Timeout,
		RateLimit:          cfg.Remote.RateLimit,
		RateBurst:          cfg.Remote.RateBurst,
		SkipTLSVerify:      cfg.Remote.SkipTLSVerify,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize WebHDFS client: %w", err)
	}

	cipher, err := crypt.New([]byte(cfg.Encryption.Key), []byte(cfg.Encryption.Salt))
	if err != nil {
		remote.Close()
		return nil, nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	lockManager, err := newLockManager(cfg.Locks, logger)
	if err != nil {
		remote.Close()
		return nil, nil, err
	}

	svc := core.NewFileService(core.Options{
		Remote:              remote,
		Cache:               localfs.NewLocalFSAdapter(cfg.Cache.Root, cfg.Cache.SubDirectory),
		Cipher:              cipher,
		Locks:               lockManager,
		LockPollInterval:    cfg.Locks.PollInterval,
		RotationConcurrency: cfg.Rotation.Concurrency,
		KeySalt:             []byte(cfg.Encryption.Salt),
		Logger:              logger,
	})

	closeAll := func() {
		if err := lockManager.Close(); err != nil {
			logger.Warn("Failed to close lock manager", zap.Error(err))
		}
		if err := remote.Close(); err != nil {
			logger.Warn("Failed to close WebHDFS client", zap.Error(err))
		}
	}

	return svc, closeAll, nil
}

func newLockManager(cfg config.LocksConfig, logger *zap.Logger) (locks.Manager, error) {
	switch cfg.Type {
	case "redis":
		logger.Info("Initializing Redis lock manager", zap.String("addr", cfg.RedisAddr))
		m, err := locks.NewRedisManager(cfg.RedisAddr, cfg.RedisPassword, cfg.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
		}
		return m, nil
	default:
		return locks.NewLocalManager(), nil
	}
}
