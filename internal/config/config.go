// Package config provides configuration management for the AIPM identity service.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Lock    LockConfig    `mapstructure:"lock"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	// Driver is one of "file", "sqlite", "postgres" or "s3".
	Driver string `mapstructure:"driver"`

	// Dir holds users.json and sessions.json for the file driver,
	// and the stored auth config record for every driver.
	Dir string `mapstructure:"dir"`

	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	S3       S3Config       `mapstructure:"s3"`
}

// SQLiteConfig holds SQLite settings (used when Driver is "sqlite").
type SQLiteConfig struct {
	Path            string `mapstructure:"path"`             // Path to SQLite database file
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF
}

// PostgresConfig holds PostgreSQL settings (used when Driver is "postgres").
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// S3Config holds settings for the S3-compatible backend.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// AuthConfig holds authentication settings.
// Most fields can be overridden by the stored config record, see LoadAuthRecord.
type AuthConfig struct {
	// SessionTimeoutHours is the lifetime of authenticated sessions.
	// Guest sessions live a quarter of it.
	SessionTimeoutHours int `mapstructure:"session_timeout_hours" json:"session_timeout_hours"`

	// MaxSessionsPerUser is only enforced when EnforceMaxSessions is set.
	MaxSessionsPerUser int `mapstructure:"max_sessions_per_user" json:"max_sessions_per_user"`

	// EnforceMaxSessions evicts the least recently active sessions of a user
	// beyond MaxSessionsPerUser when a new one is opened.
	EnforceMaxSessions bool `mapstructure:"enforce_max_sessions" json:"enforce_max_sessions"`

	RequireStrongPasswords bool   `mapstructure:"require_strong_passwords" json:"require_strong_passwords"`
	AllowRegistration      bool   `mapstructure:"allow_registration" json:"allow_registration"`
	DefaultRole            string `mapstructure:"default_role" json:"default_role"`
	EnableGuestMode        bool   `mapstructure:"enable_guest_mode" json:"enable_guest_mode"`

	// SecretKey is the process-wide secret of the password hasher.
	// Changing it invalidates every stored password digest.
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`

	// CookieName is the session cookie accepted next to the Bearer header.
	CookieName string `mapstructure:"cookie_name" json:"-"`

	// ConfigRecord is the path of the stored auth config record.
	// Empty means <storage.dir>/auth_config.json.
	ConfigRecord string `mapstructure:"config_record" json:"-"`

	// ProvisionDefaultUser creates the documented default account on first run.
	ProvisionDefaultUser bool `mapstructure:"provision_default_user" json:"-"`

	// SweepInterval is how often the server purges stale sessions. Zero disables it.
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"-"`
}

// SessionTimeout returns the authenticated session lifetime.
func (c AuthConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutHours) * time.Hour
}

// GuestSessionTimeout returns one quarter of the standard session timeout.
func (c AuthConfig) GuestSessionTimeout() time.Duration {
	return c.SessionTimeout() / 4
}

// LockConfig configures serialization of load-mutate-save cycles.
type LockConfig struct {
	// Backend is one of "memory", "redis" or "none".
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with AIPM_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("AIPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/aipm")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Auth.ConfigRecord == "" {
		cfg.Auth.ConfigRecord = filepath.Join(cfg.Storage.Dir, "auth_config.json")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	// Storage defaults
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.dir", "./auth")
	v.SetDefault("storage.sqlite.path", "./auth/aipm.db")
	v.SetDefault("storage.sqlite.journal_mode", "WAL")
	v.SetDefault("storage.sqlite.busy_timeout", 5000)
	v.SetDefault("storage.sqlite.synchronous_mode", "NORMAL")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_open_conns", 5)
	v.SetDefault("storage.postgres.max_idle_conns", 2)
	v.SetDefault("storage.postgres.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "aipm/auth/")
	v.SetDefault("storage.s3.use_path_style", true)

	// Auth defaults
	v.SetDefault("auth.session_timeout_hours", 24)
	v.SetDefault("auth.max_sessions_per_user", 5)
	v.SetDefault("auth.enforce_max_sessions", false)
	v.SetDefault("auth.require_strong_passwords", false)
	v.SetDefault("auth.allow_registration", true)
	v.SetDefault("auth.default_role", "pm")
	v.SetDefault("auth.enable_guest_mode", true)
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.cookie_name", "aipm_session")
	v.SetDefault("auth.config_record", "")
	v.SetDefault("auth.provision_default_user", true)
	v.SetDefault("auth.sweep_interval", 15*time.Minute)

	// Lock defaults
	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.max_retries", 50)
	v.SetDefault("lock.retry_delay", 20*time.Millisecond)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate storage configuration
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for file driver")
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver must be one of: file, sqlite, postgres, s3")
	}

	if err := c.Auth.Validate(); err != nil {
		return err
	}

	// Validate lock configuration
	validLocks := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validLocks[c.Lock.Backend] {
		return fmt.Errorf("lock.backend must be one of: memory, redis, none")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// Validate checks the auth settings.
func (c AuthConfig) Validate() error {
	if c.SessionTimeoutHours < 1 {
		return fmt.Errorf("auth.session_timeout_hours must be at least 1")
	}
	if c.MaxSessionsPerUser < 1 {
		return fmt.Errorf("auth.max_sessions_per_user must be at least 1")
	}
	switch c.DefaultRole {
	case "viewer", "pm", "admin":
	default:
		return fmt.Errorf("auth.default_role must be one of: viewer, pm, admin")
	}
	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
