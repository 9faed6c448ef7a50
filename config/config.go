// Package config loads the worker's configuration from environment
// variables. Every value has a sensible default; only production-critical
// settings are validated hard.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Redis         RedisConfig
	Postgres      PostgresConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// RedisConfig holds the hot-store connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Disabled swaps in the in-memory store. Development only: a
	// multi-instance deployment without Redis has no shared state and no
	// working job locks.
	Disabled bool
}

// PostgresConfig holds the durable transaction-archive settings. The archive
// is optional; without it awards still work, only long-term audit history is
// lost.
type PostgresConfig struct {
	Enabled bool

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// SchedulerConfig holds the autonomous-job settings.
type SchedulerConfig struct {
	Enabled bool

	// InactivityThreshold before a user gets a reminder.
	InactivityThreshold time.Duration

	// ArchiveRetention before the cleanup job prunes archived transactions.
	ArchiveRetention time.Duration

	// LockTTL for the per-window distributed job locks.
	LockTTL time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		Redis:         loadRedisConfig(),
		Postgres:      loadPostgresConfig(),
		Scheduler:     loadSchedulerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))

	return AppConfig{
		Name:            getEnv("APP_NAME", "engagement-core"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		Disabled:     getEnvBool("REDIS_DISABLED", false),
	}
}

func loadPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Enabled:         getEnvBool("POSTGRES_ENABLED", false),
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            getEnvInt("POSTGRES_PORT", 5432),
		Database:        getEnv("POSTGRES_DB", "engagement"),
		User:            getEnv("POSTGRES_USER", "engagement"),
		Password:        getEnv("POSTGRES_PASSWORD", ""),
		SSLMode:         getEnv("POSTGRES_SSLMODE", "prefer"),
		MaxConns:        getEnvInt("POSTGRES_MAX_CONNS", 10),
		MinConns:        getEnvInt("POSTGRES_MIN_CONNS", 2),
		MaxConnLifetime: getEnvDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour),
		MaxConnIdleTime: getEnvDuration("POSTGRES_CONN_MAX_IDLE_TIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("POSTGRES_CONNECT_TIMEOUT", 10*time.Second),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:             getEnvBool("SCHEDULER_ENABLED", true),
		InactivityThreshold: getEnvDuration("SCHEDULER_INACTIVITY_THRESHOLD", 72*time.Hour),
		ArchiveRetention:    getEnvDuration("SCHEDULER_ARCHIVE_RETENTION", 90*24*time.Hour),
		LockTTL:             getEnvDuration("SCHEDULER_LOCK_TTL", 10*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Environment == EnvProduction && c.Redis.Disabled {
		errs = append(errs, "REDIS_DISABLED cannot be set in production: job locks need a shared store")
	}

	if c.Postgres.Enabled && c.Postgres.Password == "" && c.App.Environment == EnvProduction {
		errs = append(errs, "POSTGRES_PASSWORD is required in production when the archive is enabled")
	}

	if c.Scheduler.InactivityThreshold <= 0 {
		errs = append(errs, "SCHEDULER_INACTIVITY_THRESHOLD must be positive")
	}

	if c.Scheduler.LockTTL <= 0 {
		errs = append(errs, "SCHEDULER_LOCK_TTL must be positive")
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "LOG_LEVEL must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
