package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"github.com/ziadkadry99/catalogd/internal/reconciler"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nesting levels: CATALOGD_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "CATALOGD_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CATALOGD_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Mode != ModeServer && c.Mode != ModeLocal {
		return fmt.Errorf("invalid mode %q: must be server or local", c.Mode)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Mode == ModeServer {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in server mode")
		}
		if c.Auth.JWTSecret == DevSecret && c.Log.Mode != "development" {
			return fmt.Errorf("auth.jwt_secret must be changed outside development")
		}
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	for _, p := range c.Uploads.Allowed {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("uploads.allowed: invalid pattern %q", p)
		}
	}

	if c.Catalog.SeedFloor < 0 {
		return fmt.Errorf("catalog.seed_floor must be non-negative")
	}

	switch c.Sync.Backend {
	case SyncMemory:
	case SyncRedis:
		if c.Sync.RedisAddr == "" {
			return fmt.Errorf("sync.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid sync.backend %q: must be memory or redis", c.Sync.Backend)
	}
	if c.Sync.PollInterval < reconciler.MinInterval {
		return fmt.Errorf("sync.poll_interval must be at least %s", reconciler.MinInterval)
	}

	if c.Maintenance.Schedule != "" {
		if _, err := cron.ParseStandard(c.Maintenance.Schedule); err != nil {
			return fmt.Errorf("invalid maintenance.schedule: %w", err)
		}
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// DatabasePath is the SQLite file used in server mode.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "catalogd.db")
}

// LocalCatalogPath is the key-value file used in local mode.
func (c *Config) LocalCatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.json")
}
