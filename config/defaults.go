package config

import "time"

// DefaultAppConfig returns an AppConfig struct with sensible default values
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			FileOpTimeout:     30 * time.Second,
			RotationRateLimit: 1,
		},
		Auth: AuthConfig{
			APIKeys: []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Mode:   "production",
		},
		Remote: RemoteConfig{
			DataNode:           "http://datanode:9864/webhdfs/v1",
			NameNode:           "http://namenode:9870/webhdfs/v1",
			Path:               "/",
			NameNodeRPCAddress: "namenode:8020",
			Timeout:            30 * time.Second,
			RateLimit:          0,
			RateBurst:          10,
			SkipTLSVerify:      false,
		},
		Cache: CacheConfig{
			Root:                "files",
			SubDirectory:        "",
			TempCleanupInterval: 10 * time.Minute,
			TempMaxAge:          time.Hour,
		},
		Encryption: EncryptionConfig{
			Key:  "",
			Salt: "hdfscache",
		},
		Rotation: RotationConfig{
			Concurrency: 8,
		},
		Locks: LocksConfig{
			Type:         "local",
			RedisAddr:    "localhost:6379",
			TTL:          30 * time.Second,
			PollInterval: 10 * time.Millisecond,
		},
	}
}
