package config

import "time"

// Mode selects where the catalog lives.
type Mode string

const (
	// ModeServer keeps the catalog in SQLite behind the admin API.
	ModeServer Mode = "server"
	// ModeLocal keeps the catalog as a single JSON blob in a key-value file.
	ModeLocal Mode = "local"
)

// SyncBackend selects the change broker.
type SyncBackend string

const (
	SyncMemory SyncBackend = "memory"
	SyncRedis  SyncBackend = "redis"
)

// Config is the top-level catalogd configuration, corresponding to catalogd.yml.
type Config struct {
	Mode        Mode              `yaml:"mode" koanf:"mode"`
	DataDir     string            `yaml:"data_dir" koanf:"data_dir"`
	Server      ServerConfig      `yaml:"server" koanf:"server"`
	Auth        AuthConfig        `yaml:"auth" koanf:"auth"`
	Uploads     UploadsConfig     `yaml:"uploads" koanf:"uploads"`
	Catalog     CatalogConfig     `yaml:"catalog" koanf:"catalog"`
	Sync        SyncConfig        `yaml:"sync" koanf:"sync"`
	Fetcher     FetcherConfig     `yaml:"fetcher" koanf:"fetcher"`
	Maintenance MaintenanceConfig `yaml:"maintenance" koanf:"maintenance"`
	Log         LogConfig         `yaml:"log" koanf:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int      `yaml:"port" koanf:"port"`
	AllowAllOrigins bool     `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// AuthConfig holds admin credential settings.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret" koanf:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl" koanf:"token_ttl"`
	AdminEmail    string        `yaml:"admin_email" koanf:"admin_email"`
	AdminPassword string        `yaml:"admin_password" koanf:"admin_password"`
	AdminName     string        `yaml:"admin_name" koanf:"admin_name"`
	BcryptCost    int           `yaml:"bcrypt_cost" koanf:"bcrypt_cost"`
}

// UploadsConfig controls where images are stored and what is accepted.
type UploadsConfig struct {
	Dir      string   `yaml:"dir" koanf:"dir"`
	MaxBytes int64    `yaml:"max_bytes" koanf:"max_bytes"`
	Allowed  []string `yaml:"allowed" koanf:"allowed"`
}

// CatalogConfig controls default seeding.
type CatalogConfig struct {
	SeedFloor   int  `yaml:"seed_floor" koanf:"seed_floor"`
	SeedOnEmpty bool `yaml:"seed_on_empty" koanf:"seed_on_empty"`
}

// SyncConfig controls change propagation.
type SyncConfig struct {
	Backend       SyncBackend   `yaml:"backend" koanf:"backend"`
	RedisAddr     string        `yaml:"redis_addr" koanf:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" koanf:"redis_password"`
	RedisDB       int           `yaml:"redis_db" koanf:"redis_db"`
	Channel       string        `yaml:"channel" koanf:"channel"`
	PollInterval  time.Duration `yaml:"poll_interval" koanf:"poll_interval"`
}

// FetcherConfig points a local or watching process at a remote catalogd.
type FetcherConfig struct {
	RemoteURL string        `yaml:"remote_url" koanf:"remote_url"`
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout"`
}

// MaintenanceConfig controls the scheduled housekeeping jobs.
type MaintenanceConfig struct {
	Schedule       string        `yaml:"schedule" koanf:"schedule"`
	AuditRetention time.Duration `yaml:"audit_retention" koanf:"audit_retention"`
	OrphanMinAge   time.Duration `yaml:"orphan_min_age" koanf:"orphan_min_age"`
}

// LogConfig controls the zap logger and optional file rotation.
type LogConfig struct {
	Mode       string `yaml:"mode" koanf:"mode"`
	Level      string `yaml:"level" koanf:"level"`
	FileEnable bool   `yaml:"file_enable" koanf:"file_enable"`
	Filename   string `yaml:"filename" koanf:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" koanf:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" koanf:"max_age_days"`
	Compress   bool   `yaml:"compress" koanf:"compress"`
}
