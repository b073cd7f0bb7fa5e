// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the remote Postgres DSN. Empty means no remote endpoint
	// is configured: the app runs local-only and sync calls short-circuit
	// with a not-connected result.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the path of the local replica database file.
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	// MaxConcurrentSessions caps live sessions per user across devices (default 1).
	MaxConcurrentSessions int `mapstructure:"MAX_CONCURRENT_SESSIONS"`
	// SessionTTL is the session lifetime used when the auth layer supplies no expiry (e.g. "720h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SyncInterval is the period of the timer-driven full sync (e.g. "5m").
	SyncInterval string `mapstructure:"SYNC_INTERVAL"`
	// ProbeTimeout bounds a single connectivity probe (e.g. "5s").
	ProbeTimeout string `mapstructure:"CONNECTIVITY_PROBE_TIMEOUT"`
	// ProbeInterval is the period between connectivity probes (e.g. "30s").
	ProbeInterval string `mapstructure:"CONNECTIVITY_PROBE_INTERVAL"`
	// OTLPEndpoint enables telemetry export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "taskdesk.db")
	v.SetDefault("MAX_CONCURRENT_SESSIONS", 1)
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("SYNC_INTERVAL", "5m")
	v.SetDefault("CONNECTIVITY_PROBE_TIMEOUT", "5s")
	v.SetDefault("CONNECTIVITY_PROBE_INTERVAL", "30s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SQLitePath == "" {
		return nil, errors.New("config: SQLITE_PATH must be set")
	}
	if cfg.MaxConcurrentSessions < 1 {
		return nil, errors.New("config: MAX_CONCURRENT_SESSIONS must be at least 1")
	}

	return &cfg, nil
}

// RemoteConfigured reports whether a remote endpoint is configured at all.
func (c *Config) RemoteConfigured() bool {
	return c != nil && c.DatabaseURL != ""
}

// SessionTTLDuration parses SessionTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	return durationOr(c.SessionTTL, 720*time.Hour)
}

// SyncIntervalDuration parses SyncInterval as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) SyncIntervalDuration() time.Duration {
	return durationOr(c.SyncInterval, 5*time.Minute)
}

// ProbeTimeoutDuration parses ProbeTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) ProbeTimeoutDuration() time.Duration {
	return durationOr(c.ProbeTimeout, 5*time.Second)
}

// ProbeIntervalDuration parses ProbeInterval as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) ProbeIntervalDuration() time.Duration {
	return durationOr(c.ProbeInterval, 30*time.Second)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
