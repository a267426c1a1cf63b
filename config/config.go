// Package config provides configuration management for hdfscache.
// It handles loading and validating configuration from YAML or JSON files
// and environment variables.
package config

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Server     ServerConfig     `koanf:"server"`
	Auth       AuthConfig       `koanf:"auth"`
	Log        LogConfig        `koanf:"log"`
	Remote     RemoteConfig     `koanf:"remote"`
	Cache      CacheConfig      `koanf:"cache"`
	Encryption EncryptionConfig `koanf:"encryption"`
	Rotation   RotationConfig   `koanf:"rotation"`
	Locks      LocksConfig      `koanf:"locks"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr    string        `koanf:"listen_addr"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	FileOpTimeout time.Duration `koanf:"file_op_timeout"`
	// RotationRateLimit caps rotation requests per second across all clients.
	RotationRateLimit float64 `koanf:"rotation_rate_limit"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	APIKeys []string `koanf:"api_keys"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Mode controls how filenames appear in logs: production, development or debug.
	Mode string `koanf:"mode"`
}

// RemoteConfig holds the WebHDFS endpoints
type RemoteConfig struct {
	DataNode           string        `koanf:"data_node"`
	NameNode           string        `koanf:"name_node"`
	Path               string        `koanf:"path"`
	NameNodeRPCAddress string        `koanf:"namenode_rpc_address"`
	Timeout            time.Duration `koanf:"timeout"`
	RateLimit          float64       `koanf:"rate_limit"`
	RateBurst          int           `koanf:"rate_burst"`
	SkipTLSVerify      bool          `koanf:"skip_tls_verify"`
}

// CacheConfig holds the local cache location
type CacheConfig struct {
	Root                string        `koanf:"root"`
	SubDirectory        string        `koanf:"sub_directory"`
	TempCleanupInterval time.Duration `koanf:"temp_cleanup_interval"` // 0 disables the cleanup worker
	TempMaxAge          time.Duration `koanf:"temp_max_age"`
}

// EncryptionConfig holds the at-rest encryption key. An empty key stores
// files unencrypted.
type EncryptionConfig struct {
	Key  string `koanf:"key"`
	Salt string `koanf:"salt"`
}

// RotationConfig holds key rotation settings
type RotationConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// LocksConfig selects the lock manager guarding cache population
type LocksConfig struct {
	Type          string        `koanf:"type"` // "local" or "redis"
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	TTL           time.Duration `koanf:"ttl"`
	PollInterval  time.Duration `koanf:"poll_interval"`
}
