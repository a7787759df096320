package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	API       APIConfig       `mapstructure:"api" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains settings for operator authentication.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// SchedulerConfig controls the recurring assignment and reconciliation jobs.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Timezone is the IANA zone used for trigger times and every calendar-day comparison.
	Timezone                 string `mapstructure:"timezone" validate:"required,timezone"`
	DailyHour                int    `mapstructure:"daily_hour" validate:"gte=0,lte=23"`
	DailyMinute              int    `mapstructure:"daily_minute" validate:"gte=0,lte=59"`
	ReconcileIntervalMinutes int    `mapstructure:"reconcile_interval_minutes" validate:"required,gt=0,lte=1440"`
	ManualRunTimeoutSeconds  int    `mapstructure:"manual_run_timeout_seconds" validate:"required,gt=0"`
	AssignmentWorkers        int    `mapstructure:"assignment_workers" validate:"required,gt=0,lte=64"`
}

// ReconcileInterval returns the reconciliation interval as a duration.
func (c SchedulerConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMinutes) * time.Minute
}

// ManualRunTimeout returns the bound on operator-triggered runs.
func (c SchedulerConfig) ManualRunTimeout() time.Duration {
	return time.Duration(c.ManualRunTimeoutSeconds) * time.Second
}

// RedisConfig configures the distributed per-subscriber assignment lock.
// An empty Addr disables Redis and falls back to an in-process lock.
type RedisConfig struct {
	Addr           string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db" validate:"gte=0"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds" validate:"gt=0"`
}

// LockTTL returns the lock expiry as a duration.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RabbitMQConfig configures assignment notifications.
// An empty URL disables publishing.
type RabbitMQConfig struct {
	URL               string `mapstructure:"url" validate:"omitempty,url"`
	Exchange          string `mapstructure:"exchange" validate:"required_with=URL"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// APIConfig contains settings for the operator HTTP surface.
type APIConfig struct {
	AdminRatePerSecond float64 `mapstructure:"admin_rate_per_second" validate:"gt=0"`
	AdminBurst         int     `mapstructure:"admin_burst" validate:"gt=0"`
}
