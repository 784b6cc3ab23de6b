// Package config provides configuration management for the lending service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Circulation CirculationConfig `mapstructure:"circulation"`
	Mail        MailConfig        `mapstructure:"mail"`
	Reminder    ReminderConfig    `mapstructure:"reminder"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BaseURL         string        `mapstructure:"base_url"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig holds Redis configuration for sessions, sign-in codes and
// idempotency keys.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	CodeTTL          time.Duration `mapstructure:"code_ttl"`
	CodeMaxAttempts  int           `mapstructure:"code_max_attempts"`
	CodeResendWindow time.Duration `mapstructure:"code_resend_window"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	SessionRenewal   time.Duration `mapstructure:"session_renewal"`
	InviteSecret     string        `mapstructure:"invite_secret"`
	InviteTTL        time.Duration `mapstructure:"invite_ttl"`
}

// CirculationConfig holds lending rules.
type CirculationConfig struct {
	LoanPeriod     time.Duration `mapstructure:"loan_period"`
	MaxActiveLoans int           `mapstructure:"max_active_loans"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// MailConfig holds outbound email configuration.
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// ReminderConfig holds due-date reminder worker configuration.
type ReminderConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	DueSoonWindow time.Duration `mapstructure:"due_soon_window"`
	Concurrency   int           `mapstructure:"concurrency"`
}

// CacheConfig holds in-memory cache configuration.
type CacheConfig struct {
	LibraryTTL time.Duration `mapstructure:"library_ttl"`
	MaxSize    int           `mapstructure:"max_size"`
}

// RateLimiterConfig holds HTTP rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/openbookcorner/")
	}

	v.SetEnvPrefix("OBC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; defaults and env carry a dev setup.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.base_url", "http://localhost:8080")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "openbookcorner")
	v.SetDefault("database.user", "openbookcorner")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.code_ttl", "10m")
	v.SetDefault("auth.code_max_attempts", 5)
	v.SetDefault("auth.code_resend_window", "30s")
	v.SetDefault("auth.session_ttl", "720h")
	v.SetDefault("auth.session_renewal", "360h")
	v.SetDefault("auth.invite_secret", "")
	v.SetDefault("auth.invite_ttl", "168h")

	// Circulation defaults
	v.SetDefault("circulation.loan_period", "504h") // 21 days
	v.SetDefault("circulation.max_active_loans", 5)
	v.SetDefault("circulation.idempotency_ttl", "24h")

	// Mail defaults
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "library@openbookcorner.local")

	// Reminder worker defaults
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.check_interval", "1h")
	v.SetDefault("reminder.due_soon_window", "24h")
	v.SetDefault("reminder.concurrency", 8)

	// Cache defaults
	v.SetDefault("cache.library_ttl", "5m")
	v.SetDefault("cache.max_size", 10000)

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}

	if c.Auth.CodeTTL <= 0 {
		return fmt.Errorf("auth.code_ttl must be positive")
	}
	if c.Auth.CodeMaxAttempts <= 0 {
		return fmt.Errorf("auth.code_max_attempts must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.InviteSecret == "" {
		return fmt.Errorf("auth.invite_secret is required")
	}

	if c.Circulation.LoanPeriod <= 0 {
		return fmt.Errorf("circulation.loan_period must be positive")
	}
	if c.Circulation.MaxActiveLoans <= 0 {
		return fmt.Errorf("circulation.max_active_loans must be positive")
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return fmt.Errorf("mail.host is required when mail is enabled")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("mail.from is required when mail is enabled")
		}
	}

	if c.Reminder.Enabled {
		if c.Reminder.CheckInterval <= 0 {
			return fmt.Errorf("reminder.check_interval must be positive")
		}
		if c.Reminder.Concurrency <= 0 {
			return fmt.Errorf("reminder.concurrency must be positive")
		}
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}
