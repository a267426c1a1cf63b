package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by the loader.
const EnvPrefix = "HDFSCACHE_"

// LoadConfig loads configuration from multiple sources with strict priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml, config.yml or config.json)
// 3. Defaults (lowest priority)
func LoadConfig() (AppConfig, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration the same way as LoadConfig, reading
// configFilePath instead of the default file names when it is set.
func LoadConfigFromFile(configFilePath string) (AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultAppConfig(), "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load default config: %w", err)
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return AppConfig{}, fmt.Errorf("specified config file %s not found: %w", configFilePath, err)
		}
		if err := k.Load(file.Provider(configFilePath), parserFor(configFilePath)); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	} else {
		for _, configFile := range []string{"config.yaml", "config.yml", "config.json"} {
			if _, err := os.Stat(configFile); err == nil {
				if err := k.Load(file.Provider(configFile), parserFor(configFile)); err != nil {
					return AppConfig{}, fmt.Errorf("failed to load config file %s: %w", configFile, err)
				}
				break
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// HDFSCACHE_AUTH_API_KEYS holds a comma separated list.
	cfg.Auth.APIKeys = splitList(cfg.Auth.APIKeys)

	if err := Validate(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps HDFSCACHE_REMOTE_DATA_NODE to remote.data_node: only the
// first underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func parserFor(path string) koanf.Parser {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return yaml.Parser()
	case strings.HasSuffix(path, ".json"):
		return json.Parser()
	default:
		return yaml.Parser()
	}
}

func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, p := range strings.Split(item, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks that required configuration fields are set and sane.
// It is run by the loader.
func Validate(cfg *AppConfig) error {
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if err := validateURL("remote.data_node", cfg.Remote.DataNode); err != nil {
		return err
	}
	if err := validateURL("remote.name_node", cfg.Remote.NameNode); err != nil {
		return err
	}

	if cfg.Remote.RateLimit < 0 {
		return fmt.Errorf("remote.rate_limit must not be negative")
	}

	if cfg.Rotation.Concurrency < 1 {
		return fmt.Errorf("rotation.concurrency must be at least 1")
	}

	switch cfg.Locks.Type {
	case "local":
	case "redis":
		if cfg.Locks.RedisAddr == "" {
			return fmt.Errorf("locks.redis_addr is required for redis locks")
		}
	default:
		return fmt.Errorf("locks.type must be \"local\" or \"redis\", got %q", cfg.Locks.Type)
	}

	return nil
}

// ValidateServer runs Validate plus the checks only the HTTP server needs.
func ValidateServer(cfg *AppConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if len(cfg.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys must contain at least one key")
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}
