package config

import "time"

// Config holds runtime configuration for SavosBot.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Bot         BotConfig         `mapstructure:"bot"`
	Website     WebsiteConfig     `mapstructure:"website"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	PhotoCache  PhotoCacheConfig  `mapstructure:"photo_cache"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Server      ServerConfig      `mapstructure:"server"`
	I18n        I18nConfig        `mapstructure:"i18n"`
}

// BotConfig configures the Telegram side of the bot.
type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout       time.Duration `mapstructure:"timeout"`
	WebhookListen string        `mapstructure:"webhook_listen"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	AdminIDs      []int64       `mapstructure:"admin_ids"`
}

// IsAdmin reports whether userID is listed in bot.admin_ids.
func (c BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// WebsiteConfig configures the remote website API.
type WebsiteConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Source    string        `mapstructure:"source" validate:"required"`
	RateLimit float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int           `mapstructure:"burst" validate:"gte=0"`
}

// StorageConfig points at the directory holding the JSON data files.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

// SyncConfig configures delivery of local changes to the website.
type SyncConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=memory asynq"`
	Workers       int           `mapstructure:"workers" validate:"gte=1"`
	QueueSize     int           `mapstructure:"queue_size" validate:"gte=1"`
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gte=1"`
	StatsInterval time.Duration `mapstructure:"stats_interval" validate:"gte=0"`
}

// RedisConfig configures the optional Redis connection.
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// RateLimitRule is a "limit per window" pair, window in time.ParseDuration form.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// CommandRateLimits holds rules for commands that touch the file store or the website.
type CommandRateLimits struct {
	Start RateLimitRule `mapstructure:"start"`
	Stats RateLimitRule `mapstructure:"stats"`
	Sync  RateLimitRule `mapstructure:"sync"`
}

// RateLimitConfig configures per-user throttling of incoming updates.
type RateLimitConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	PerUser   RateLimitRule     `mapstructure:"per_user"`
	Commands  CommandRateLimits `mapstructure:"commands"`
	Whitelist []int64           `mapstructure:"whitelist"`
}

// IdempotencyConfig configures de-duplication of redelivered updates.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// PhotoCacheConfig configures caching of profile photo lookups.
type PhotoCacheConfig struct {
	SizeMB int           `mapstructure:"size_mb" validate:"gte=0"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// LoggerConfig configures log/slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// ServerConfig configures the operations HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// I18nConfig configures localisation.
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language" validate:"required"`
}
