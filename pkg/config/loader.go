// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultWebsiteURL = "https://savos-club-two.vercel.app"
	defaultDataDir    = "data"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
// A missing bot token is reported as a validation error.
func Load() (*Config, *viper.Viper, error) {
	return load(validateAll)
}

// LoadTool loads configuration for offline tools that never talk to Telegram, so bot settings are not validated.
func LoadTool() (*Config, *viper.Viper, error) {
	return load(func(v *validator.Validate, cfg *Config) error {
		return v.StructExcept(cfg, "Bot")
	})
}

func validateAll(v *validator.Validate, cfg *Config) error {
	return v.Struct(cfg)
}

func load(validate func(*validator.Validate, *Config) error) (*Config, *viper.Viper, error) {
	// .env files are optional
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = fmt.Sprintf("./configs/%s.yaml", env)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	if err := validate(validator.New(validator.WithRequiredStructEnabled()), &cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// bindLegacyEnv keeps the short variable names used by existing deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"bot.token":        {"BOT_TOKEN"},
		"website.base_url": {"WEBSITE_BASE_URL", "WEBSITE_URL"},
		"website.api_key":  {"WEBSITE_API_KEY", "API_KEY"},
		"sentry.dsn":       {"SENTRY_DSN"},
	}

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("bot.webhook_listen", ":8443")
	v.SetDefault("bot.webhook_url", "")
	v.SetDefault("bot.admin_ids", []int64{})

	v.SetDefault("website.base_url", defaultWebsiteURL)
	v.SetDefault("website.api_key", "")
	v.SetDefault("website.timeout", 10*time.Second)
	v.SetDefault("website.source", "telegram_bot")
	v.SetDefault("website.rate_limit", 10.0)
	v.SetDefault("website.burst", 5)

	v.SetDefault("storage.data_dir", defaultDataDir)

	v.SetDefault("sync.backend", "memory")
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.queue_size", 256)
	v.SetDefault("sync.max_attempts", 1)
	v.SetDefault("sync.stats_interval", 0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.idle_timeout", 5*time.Minute)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", 8*time.Millisecond)
	v.SetDefault("redis.max_retry_backoff", 512*time.Millisecond)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_user.limit", 30)
	v.SetDefault("rate_limit.per_user.window", "1m")
	v.SetDefault("rate_limit.commands.start.limit", 5)
	v.SetDefault("rate_limit.commands.start.window", "1m")
	v.SetDefault("rate_limit.commands.stats.limit", 10)
	v.SetDefault("rate_limit.commands.stats.window", "1m")
	v.SetDefault("rate_limit.commands.sync.limit", 2)
	v.SetDefault("rate_limit.commands.sync.window", "5m")
	v.SetDefault("rate_limit.whitelist", []int64{})

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("photo_cache.size_mb", 8)
	v.SetDefault("photo_cache.ttl", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 28)
	v.SetDefault("logger.compress", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("i18n.default_language", "ru")
}

// Watch re-reads the config file on change and hands the logger level to onLevel.
// It is a no-op when no config file was loaded.
func Watch(v *viper.Viper, log *slog.Logger, onLevel func(level string)) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		level := v.GetString("logger.level")
		log.Info("config file changed", slog.String("file", e.Name), slog.String("logger_level", level))
		if onLevel != nil {
			onLevel(level)
		}
	})
	v.WatchConfig()
}
