// Package config loads service configuration from the environment and an
// optional config.env file. Environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docseq/internal/core/numerator"
)

// Config groups the application configuration.
type Config struct {
	App        AppConfig
	Log        LogConfig
	HTTP       HTTPConfig
	DB         DBConfig
	Numbering  NumberingConfig
	Audit      AuditConfig
	Migrations MigrationsConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env     string // development, staging, production
	Name    string
	Version string
}

// IsDevelopment reports whether the service runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level string
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig configures PostgreSQL. DatabaseURL wins over the discrete fields.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
}

// ConnectionString returns DatabaseURL when set, otherwise the DSN built
// from the discrete fields.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// NumberingConfig configures the number allocator.
type NumberingConfig struct {
	Strategy    numerator.Strategy
	MaxAttempts int
	Backoff     time.Duration
}

// Options converts the configuration to allocator options.
func (c NumberingConfig) Options() numerator.Options {
	return numerator.Options{
		Strategy:    c.Strategy,
		MaxAttempts: c.MaxAttempts,
		Backoff:     c.Backoff,
	}
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// CompressThreshold is the payload size in bytes above which changes
	// are stored zstd-compressed.
	CompressThreshold int
}

// MigrationsConfig controls schema migration on startup.
type MigrationsConfig struct {
	Enabled bool
}

// Load reads configuration from the environment and ./config.env or
// ./config/config.env when present.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	return build(v)
}

func setDefaults(v *viper.Viper) {
	defaults := numerator.DefaultOptions()

	v.SetDefault("app_env", "development")
	v.SetDefault("app_name", "docseq")
	v.SetDefault("app_version", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", 8080)
	v.SetDefault("http_shutdown_timeout", "30s")
	v.SetDefault("database_url", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "docseq")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_max_conns", 25)
	v.SetDefault("db_min_conns", 2)
	v.SetDefault("numbering_strategy", defaults.Strategy.String())
	v.SetDefault("numbering_max_attempts", defaults.MaxAttempts)
	v.SetDefault("numbering_backoff", defaults.Backoff.String())
	v.SetDefault("audit_compress_threshold", 10*1024)
	v.SetDefault("migrations_enabled", true)
}

func build(v *viper.Viper) (*Config, error) {
	strategy, err := numerator.ParseStrategy(strings.ToLower(strings.TrimSpace(v.GetString("numbering_strategy"))))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:     v.GetString("app_env"),
			Name:    v.GetString("app_name"),
			Version: v.GetString("app_version"),
		},
		Log: LogConfig{
			Level: v.GetString("log_level"),
		},
		HTTP: HTTPConfig{
			Host:            v.GetString("http_host"),
			Port:            v.GetInt("http_port"),
			ShutdownTimeout: v.GetDuration("http_shutdown_timeout"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("database_url"),
			Host:        v.GetString("db_host"),
			Port:        v.GetInt("db_port"),
			User:        v.GetString("db_user"),
			Password:    v.GetString("db_password"),
			Name:        v.GetString("db_name"),
			SSLMode:     v.GetString("db_sslmode"),
			MaxConns:    v.GetInt32("db_max_conns"),
			MinConns:    v.GetInt32("db_min_conns"),
		},
		Numbering: NumberingConfig{
			Strategy:    strategy,
			MaxAttempts: v.GetInt("numbering_max_attempts"),
			Backoff:     v.GetDuration("numbering_backoff"),
		},
		Audit: AuditConfig{
			CompressThreshold: v.GetInt("audit_compress_threshold"),
		},
		Migrations: MigrationsConfig{
			Enabled: v.GetBool("migrations_enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Numbering.MaxAttempts < 1 {
		return fmt.Errorf("NUMBERING_MAX_ATTEMPTS must be at least 1, got %d", c.Numbering.MaxAttempts)
	}
	if c.Numbering.Backoff < 0 {
		return fmt.Errorf("NUMBERING_BACKOFF must not be negative")
	}
	if c.DB.MaxConns < 1 || c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("invalid pool size: min %d, max %d", c.DB.MinConns, c.DB.MaxConns)
	}
	return nil
}
