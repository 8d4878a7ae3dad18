package config

import "time"

// DevSecret is the placeholder JWT secret. It is only accepted while logging
// in development mode.
const DevSecret = "change-me"

// DefaultFile is the configuration file looked up when no path is given.
const DefaultFile = "catalogd.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeServer,
		DataDir: "data",
		Server: ServerConfig{
			Port:           3000,
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Auth: AuthConfig{
			JWTSecret:     DevSecret,
			TokenTTL:      7 * 24 * time.Hour,
			AdminEmail:    "admin@ranaelectrical.com",
			AdminPassword: "admin123",
			AdminName:     "Admin",
			BcryptCost:    10,
		},
		Uploads: UploadsConfig{
			Dir:      "uploads",
			MaxBytes: 5 << 20,
			Allowed:  []string{"*.{jpg,jpeg,png,gif,webp}"},
		},
		Catalog: CatalogConfig{
			SeedFloor:   0,
			SeedOnEmpty: true,
		},
		Sync: SyncConfig{
			Backend:      SyncMemory,
			Channel:      "catalog:changes",
			PollInterval: 5 * time.Second,
		},
		Fetcher: FetcherConfig{
			Timeout: 5 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			Schedule:       "@daily",
			AuditRetention: 365 * 24 * time.Hour,
			OrphanMinAge:   time.Hour,
		},
		Log: LogConfig{
			Mode:       "development",
			Level:      "info",
			Filename:   "logs/catalogd.log",
			MaxSizeMB:  64,
			MaxBackups: 7,
			MaxAgeDays: 7,
		},
	}
}
