// Package config loads taskora-engine configuration from YAML and environment.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for taskora-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath is the directory containing golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Auth holds session and cookie settings.
	Auth AuthConfig `yaml:"auth"`

	// Invite holds invitation token settings.
	Invite InviteConfig `yaml:"invite"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"taskora"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"taskora_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// Pool connection recycling. Zero disables the override and keeps the
	// pool's own default.
	MaxConnLifetimeMinutes int `yaml:"max_conn_lifetime_minutes" env:"PGMAX_CONN_LIFETIME_MINUTES" env-default:"60"`
	MaxConnIdleMinutes     int `yaml:"max_conn_idle_minutes" env:"PGMAX_CONN_IDLE_MINUTES" env-default:"30"`
}

// AuthConfig holds session-related configuration.
type AuthConfig struct {
	// SessionTTLHours is the lifetime of issued session tokens.
	SessionTTLHours int `yaml:"session_ttl_hours" env:"SESSION_TTL_HOURS" env-default:"168"`

	// CookieSecret signs the invite-replay cookie session. Any passphrase;
	// it is SHA-256 hashed to derive the signing key. Must be consistent
	// across restarts and replicas.
	CookieSecret string `yaml:"-" env:"COOKIE_SECRET"` // Secret - not in YAML

	// SecureCookies controls the Secure flag on cookies. Disable only for
	// plain-HTTP local development.
	SecureCookies bool `yaml:"secure_cookies" env:"SECURE_COOKIES" env-default:"true"`
}

// InviteConfig holds invitation token configuration.
type InviteConfig struct {
	// DefaultTTLDays is used when an invite request does not specify a TTL.
	DefaultTTLDays int `yaml:"default_ttl_days" env:"INVITE_DEFAULT_TTL_DAYS" env-default:"7"`

	// MaxTTLDays caps the TTL a grantor may request.
	MaxTTLDays int `yaml:"max_ttl_days" env:"INVITE_MAX_TTL_DAYS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.SessionTTLHours <= 0 {
		return fmt.Errorf("session_ttl_hours must be positive, got %d", c.Auth.SessionTTLHours)
	}
	if c.Invite.DefaultTTLDays <= 0 || c.Invite.MaxTTLDays < c.Invite.DefaultTTLDays {
		return fmt.Errorf("invalid invite TTL configuration: default %d, max %d",
			c.Invite.DefaultTTLDays, c.Invite.MaxTTLDays)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns a PostgreSQL connection URL for pool and migration setup.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
