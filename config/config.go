// Package config loads application settings from .env, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Mongo     MongoConfig
	JWT       JWTConfig
	Log       LogConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Otp       OtpConfig
	Admin     AdminConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env         string
	Port        string
	Timezone    string
	StoreDriver string // mongo or memory
}

// MongoConfig holds database connection settings
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// JWTConfig holds token settings
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// StorageConfig selects and configures blob storage
type StorageConfig struct {
	Driver        string // local or s3
	LocalDir      string
	PublicBaseURL string
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3PathStyle   bool
}

// RedisConfig holds Redis connection settings; an empty Addr disables Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WebhookConfig holds courier callback settings
type WebhookConfig struct {
	DedupeTTL time.Duration
}

// RateLimitConfig throttles the /auth endpoints per client IP
type RateLimitConfig struct {
	AuthRPS   float64
	AuthBurst int
	// TrustedProxies are CIDRs or IPs whose X-Forwarded-For header identifies the client.
	TrustedProxies []string
}

// OtpConfig holds phone verification settings
type OtpConfig struct {
	TTL time.Duration
}

// AdminConfig names the registered account promoted to admin at startup
type AdminConfig struct {
	BootstrapEmail string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("port", "8000")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "ecommerce")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.dir", "uploads")
	v.SetDefault("storage.public.base.url", "/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.path.style", true)
	v.SetDefault("redis.db", 0)
	v.SetDefault("webhook.dedupe.ttl", 10*time.Minute)
	v.SetDefault("auth.rate.limit.rps", 1.0)
	v.SetDefault("auth.rate.limit.burst", 5)
	v.SetDefault("otp.ttl", 5*time.Minute)
}

// Load reads .env (if present) and the environment. Keys map to upper-case env names with
// dots replaced by underscores, e.g. mongo.uri -> MONGO_URI.
func Load() (*Config, error) {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:         v.GetString("app.env"),
			Port:        v.GetString("port"),
			Timezone:    v.GetString("app.timezone"),
			StoreDriver: strings.ToLower(v.GetString("store.driver")),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
			Timeout:  v.GetDuration("mongo.timeout"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(v.GetString("storage.driver")),
			LocalDir:      v.GetString("storage.local.dir"),
			PublicBaseURL: v.GetString("storage.public.base.url"),
			S3Endpoint:    v.GetString("storage.s3.endpoint"),
			S3Region:      v.GetString("storage.s3.region"),
			S3Bucket:      v.GetString("storage.s3.bucket"),
			S3AccessKey:   v.GetString("storage.s3.access.key"),
			S3SecretKey:   v.GetString("storage.s3.secret.key"),
			S3PathStyle:   v.GetBool("storage.s3.path.style"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Webhook: WebhookConfig{
			DedupeTTL: v.GetDuration("webhook.dedupe.ttl"),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:        v.GetFloat64("auth.rate.limit.rps"),
			AuthBurst:      v.GetInt("auth.rate.limit.burst"),
			TrustedProxies: splitList(v.GetString("auth.trusted.proxies")),
		},
		Otp: OtpConfig{
			TTL: v.GetDuration("otp.ttl"),
		},
		Admin: AdminConfig{
			BootstrapEmail: strings.TrimSpace(v.GetString("admin.bootstrap.email")),
		},
	}

	if cfg.JWT.Secret == "" && !cfg.IsProduction() {
		cfg.JWT.Secret = "dev-secret-change-me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Location resolves the reporting timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || c.App.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	switch c.App.StoreDriver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.App.StoreDriver)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("STORAGE_S3_BUCKET is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	return nil
}

// splitList splits a comma-separated setting, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
