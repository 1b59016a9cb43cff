package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Device   DeviceConfig   `yaml:"device"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Backup   BackupConfig   `yaml:"backup"`
}

// DatabaseConfig contains local store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig points a device at the shared remote store. An empty URL
// keeps the device offline.
type RemoteConfig struct {
	URL     string   `yaml:"url"`
	APIKey  string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// SyncConfig shapes automatic synchronization.
type SyncConfig struct {
	Interval      Duration `yaml:"interval"`
	CheckInterval Duration `yaml:"check_interval"`
	MinGap        Duration `yaml:"min_gap"`
	Burst         int      `yaml:"burst"`
}

// DeviceConfig identifies the install and its local calendar.
type DeviceConfig struct {
	// ID seeds keys minted for legacy rows. Empty means the id stored in
	// the local database.
	ID       string `yaml:"id"`
	TimeZone string `yaml:"time_zone"`
}

// Location loads the configured time zone. Empty means the host zone.
func (d DeviceConfig) Location() (*time.Location, error) {
	if d.TimeZone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(d.TimeZone)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ServerConfig contains hub HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	Backend         string   `yaml:"backend"`
	PostgresDSN     string   `yaml:"-"` // env-only
	APIKey          string   `yaml:"-"` // env-only
	WriteRate       float64  `yaml:"write_rate"`
	WriteBurst      int      `yaml:"write_burst"`
}

// BackupConfig contains export settings. An empty bucket keeps backups
// local.
type BackupConfig struct {
	Dir       string   `yaml:"dir"`
	Endpoint  string   `yaml:"s3_endpoint"`
	Region    string   `yaml:"s3_region"`
	Bucket    string   `yaml:"s3_bucket"`
	AccessKey string   `yaml:"-"` // env-only
	SecretKey string   `yaml:"-"` // env-only
	UseSSL    *bool    `yaml:"s3_use_ssl"`
	URLExpiry Duration `yaml:"s3_url_expiry"`
	// Interval between automatic backups taken by the daemon. Zero disables them.
	Interval Duration `yaml:"interval"`
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("FRONTDESK_CONFIG_PATH", "config/frontdesk.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/frontdesk.db",
		},
		Remote: RemoteConfig{
			Timeout: Duration(30 * time.Second),
		},
		Sync: SyncConfig{
			Interval:      Duration(5 * time.Minute),
			CheckInterval: Duration(30 * time.Second),
			MinGap:        Duration(5 * time.Second),
			Burst:         1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			Backend:         BackendMemory,
			WriteRate:       50,
			WriteBurst:      100,
		},
		Backup: BackupConfig{
			Dir:       "backups",
			Region:    "us-east-1",
			URLExpiry: Duration(15 * time.Minute),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("FRONTDESK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Remote
	if v := os.Getenv("FRONTDESK_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("FRONTDESK_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	envDuration("FRONTDESK_REMOTE_TIMEOUT", &cfg.Remote.Timeout)

	// Sync
	envDuration("FRONTDESK_SYNC_INTERVAL", &cfg.Sync.Interval)
	envDuration("FRONTDESK_SYNC_CHECK_INTERVAL", &cfg.Sync.CheckInterval)
	envDuration("FRONTDESK_SYNC_MIN_GAP", &cfg.Sync.MinGap)
	envInt("FRONTDESK_SYNC_BURST", &cfg.Sync.Burst)

	// Device
	if v := os.Getenv("FRONTDESK_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("FRONTDESK_TIME_ZONE"); v != "" {
		cfg.Device.TimeZone = v
	}

	// Log
	if v := os.Getenv("FRONTDESK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FRONTDESK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FRONTDESK_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	// Server
	envInt("FRONTDESK_PORT", &cfg.Server.Port)
	envDuration("FRONTDESK_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("FRONTDESK_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("FRONTDESK_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("FRONTDESK_BACKEND"); v != "" {
		cfg.Server.Backend = v
	}
	if v := os.Getenv("FRONTDESK_POSTGRES_DSN"); v != "" {
		cfg.Server.PostgresDSN = v
	}
	if v := os.Getenv("FRONTDESK_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FRONTDESK_WRITE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.WriteRate = f
		}
	}

	// Backup
	if v := os.Getenv("FRONTDESK_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("FRONTDESK_S3_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("FRONTDESK_S3_REGION"); v != "" {
		cfg.Backup.Region = v
	}
	if v := os.Getenv("FRONTDESK_S3_BUCKET"); v != "" {
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("FRONTDESK_S3_ACCESS_KEY"); v != "" {
		cfg.Backup.AccessKey = v
	}
	if v := os.Getenv("FRONTDESK_S3_SECRET_KEY"); v != "" {
		cfg.Backup.SecretKey = v
	}
	if v := os.Getenv("FRONTDESK_S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Backup.UseSSL = &b
		}
	}
	envDuration("FRONTDESK_S3_URL_EXPIRY", &cfg.Backup.URLExpiry)
	envDuration("FRONTDESK_BACKUP_INTERVAL", &cfg.Backup.Interval)
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// validate checks settings that would otherwise fail late. In dev mode
// (FRONTDESK_DEV_MODE=true), credential checks are skipped.
func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}
	if _, err := c.Device.Location(); err != nil {
		return fmt.Errorf("device.time_zone: %w", err)
	}
	if c.Server.Backend != BackendMemory && c.Server.Backend != BackendPostgres {
		return fmt.Errorf("server.backend %q must be memory or postgres", c.Server.Backend)
	}
	if c.Sync.CheckInterval <= 0 || c.Sync.MinGap <= 0 {
		return errors.New("sync.check_interval and sync.min_gap must be positive")
	}
	if c.Backup.Interval < 0 {
		return errors.New("backup.interval must not be negative")
	}

	// Dev mode bypasses credential validation
	if os.Getenv("FRONTDESK_DEV_MODE") == "true" {
		return nil
	}

	if c.Remote.URL != "" && c.Remote.APIKey == "" {
		return errors.New("FRONTDESK_REMOTE_API_KEY is required when remote.url is set")
	}
	if c.Server.Backend == BackendPostgres && c.Server.PostgresDSN == "" {
		return errors.New("FRONTDESK_POSTGRES_DSN is required for the postgres backend")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
