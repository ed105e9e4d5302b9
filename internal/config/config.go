package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Discord struct {
		Token   string `env:"DISCORD_TOKEN,required,notEmpty"`
		GuildID string `env:"DISCORD_GUILD_ID"` // register commands to one guild instead of globally
	}

	HTTP struct {
		Addr               string `env:"HTTP_ADDR" envDefault:":8080"`
		CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	}

	Giveaway struct {
		ExpireIntervalSec  int    `env:"GIVEAWAY_EXPIRE_INTERVAL_SEC" envDefault:"30"`
		JoinCooldownSec    int    `env:"JOIN_COOLDOWN_SEC" envDefault:"10"`
		RetentionDays      int    `env:"RETENTION_DAYS" envDefault:"90"`
		CleanupSchedule    string `env:"CLEANUP_SCHEDULE" envDefault:"@hourly"`
		AnnounceMaxRetries int    `env:"ANNOUNCE_MAX_RETRIES" envDefault:"3"`
	}

	Storage struct {
		Backend          string `env:"STORAGE_BACKEND" envDefault:"file"`
		File             string `env:"STORAGE_FILE" envDefault:"giveaways.json"`
		SQLitePath       string `env:"STORAGE_SQLITE_PATH" envDefault:"giveaway.db"`
		FlushIntervalSec int    `env:"SNAPSHOT_FLUSH_SEC" envDefault:"5"`
		ChunkBytes       int    `env:"SNAPSHOT_CHUNK_BYTES" envDefault:"1900"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Subscriptions struct {
		Enabled bool `env:"SUBSCRIPTIONS_ENABLED" envDefault:"false"`
	}

	PayPal struct {
		ClientID     string `env:"PAYPAL_CLIENT_ID"`
		ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
		BaseURL      string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com"`
		PlanID       string `env:"PAYPAL_PLAN_ID"`
		WebhookID    string `env:"PAYPAL_WEBHOOK_ID"`
		ReturnURL    string `env:"PAYPAL_RETURN_URL" envDefault:"https://example.com/return"`
		CancelURL    string `env:"PAYPAL_CANCEL_URL" envDefault:"https://example.com/cancel"`
	}
}

// Load reads .env (if present) and the environment into Config.
func Load() (*Config, error) {
	// A missing .env is normal in production; variables come from the host.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.Giveaway.ExpireIntervalSec <= 0 {
		return fmt.Errorf("invalid GIVEAWAY_EXPIRE_INTERVAL_SEC: %d", c.Giveaway.ExpireIntervalSec)
	}
	if c.Giveaway.JoinCooldownSec < 0 {
		return fmt.Errorf("invalid JOIN_COOLDOWN_SEC: %d", c.Giveaway.JoinCooldownSec)
	}
	if c.Giveaway.RetentionDays <= 0 {
		return fmt.Errorf("invalid RETENTION_DAYS: %d", c.Giveaway.RetentionDays)
	}
	if c.Giveaway.AnnounceMaxRetries < 0 {
		return fmt.Errorf("invalid ANNOUNCE_MAX_RETRIES: %d", c.Giveaway.AnnounceMaxRetries)
	}
	switch c.Storage.Backend {
	case StorageMemory, StorageFile, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.Storage.Backend)
	}
	if c.Storage.FlushIntervalSec <= 0 {
		return fmt.Errorf("invalid SNAPSHOT_FLUSH_SEC: %d", c.Storage.FlushIntervalSec)
	}
	if c.Storage.ChunkBytes <= 0 {
		return fmt.Errorf("invalid SNAPSHOT_CHUNK_BYTES: %d", c.Storage.ChunkBytes)
	}
	if (c.PayPal.ClientID == "") != (c.PayPal.ClientSecret == "") {
		return fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET must be set together")
	}
	return nil
}

// PayPalConfigured reports whether payment credentials are present.
func (c *Config) PayPalConfigured() bool {
	return c.PayPal.ClientID != "" && c.PayPal.ClientSecret != ""
}

func (c *Config) ExpireInterval() time.Duration {
	return time.Duration(c.Giveaway.ExpireIntervalSec) * time.Second
}

func (c *Config) JoinCooldown() time.Duration {
	return time.Duration(c.Giveaway.JoinCooldownSec) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Giveaway.RetentionDays) * 24 * time.Hour
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Storage.FlushIntervalSec) * time.Second
}
