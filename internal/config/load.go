package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every configuration environment variable,
// e.g. TASKBOARD_DATABASE_URL or TASKBOARD_SCHEDULER_TIMEZONE.
const EnvPrefix = "TASKBOARD"

// configFileEnv names a config file to read instead of ./config.yaml.
const configFileEnv = EnvPrefix + "_CONFIG_FILE"

// keys without defaults that still have to be readable from the environment
var envOnlyKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"redis.addr",
	"redis.password",
	"rabbitmq.url",
}

// Load configuration from defaults, an optional config file and environment
// variables. Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || os.Getenv(configFileEnv) != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "Europe/Moscow")
	v.SetDefault("scheduler.daily_hour", 9)
	v.SetDefault("scheduler.daily_minute", 0)
	v.SetDefault("scheduler.reconcile_interval_minutes", 60)
	v.SetDefault("scheduler.manual_run_timeout_seconds", 300)
	v.SetDefault("scheduler.assignment_workers", 4)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl_seconds", 120)

	v.SetDefault("rabbitmq.exchange", "notifications")
	v.SetDefault("rabbitmq.max_retries", 5)
	v.SetDefault("rabbitmq.retry_delay_seconds", 2)

	v.SetDefault("api.admin_rate_per_second", 2.0)
	v.SetDefault("api.admin_burst", 5)
}
