package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend kinds accepted by TRANSLATION_BACKEND
const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

// Config holds all configuration for the translation service
type Config struct {
	// Server
	Port        string   `env:"PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	AdminKey    string   `env:"ADMIN_KEY"`

	// Storage
	DatabaseURL string `env:"DATABASE_URL" envDefault:"./data/translations.db"`
	RedisURL    string `env:"REDIS_URL"`

	// Translation backend
	Backend          string        `env:"TRANSLATION_BACKEND" envDefault:"http"`
	BackendURL       string        `env:"TRANSLATION_API_URL"`
	BackendAPIKey    string        `env:"TRANSLATION_API_KEY"`
	BackendKeyHeader string        `env:"TRANSLATION_API_KEY_HEADER" envDefault:"X-API-Key"`
	BackendTimeout   time.Duration `env:"TRANSLATION_TIMEOUT" envDefault:"30s"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`

	// Throughput towards the backend
	TextInterval   time.Duration `env:"TRANSLATION_TEXT_INTERVAL" envDefault:"5100ms"`
	BatchSize      int           `env:"TRANSLATION_BATCH_SIZE" envDefault:"20"`
	BatchPause     time.Duration `env:"TRANSLATION_BATCH_PAUSE" envDefault:"5s"`
	BatchRetries   int           `env:"TRANSLATION_BATCH_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"TRANSLATION_RETRY_BASE" envDefault:"1s"`

	// Retention sweep
	RetentionDays     int           `env:"RETENTION_DAYS" envDefault:"90"`
	RetentionMinUsage int           `env:"RETENTION_MIN_USAGE" envDefault:"5"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL" envDefault:"24h"`

	// Hot cache tiers
	MemoryCacheSize int           `env:"MEMORY_CACHE_SIZE" envDefault:"10000"`
	MemoryCacheTTL  time.Duration `env:"MEMORY_CACHE_TTL" envDefault:"6h"`
	RedisCacheTTL   time.Duration `env:"REDIS_CACHE_TTL" envDefault:"24h"`

	// Inbound throttling per client IP
	ClientRateLimit float64 `env:"CLIENT_RATE_LIMIT" envDefault:"20"`
	ClientRateBurst int     `env:"CLIENT_RATE_BURST" envDefault:"40"`

	Debug bool `env:"TRANSLATION_DEBUG" envDefault:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that env parsing alone cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP:
	case BackendOpenAI:
		if c.BackendAPIKey == "" {
			return fmt.Errorf("TRANSLATION_API_KEY is required for the openai backend")
		}
	default:
		return fmt.Errorf("unknown TRANSLATION_BACKEND %q (want %q or %q)", c.Backend, BackendHTTP, BackendOpenAI)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("TRANSLATION_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.BatchRetries < 0 {
		return fmt.Errorf("TRANSLATION_BATCH_RETRIES must not be negative, got %d", c.BatchRetries)
	}
	if c.TextInterval < 0 || c.BatchPause < 0 || c.RetryBaseDelay < 0 {
		return fmt.Errorf("translation intervals must not be negative")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.RetentionDays)
	}
	if c.MemoryCacheSize < 1 {
		return fmt.Errorf("MEMORY_CACHE_SIZE must be at least 1, got %d", c.MemoryCacheSize)
	}
	return nil
}

// IsPostgres reports whether DatabaseURL points at a Postgres server
// rather than a SQLite file.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// BackendEnabled reports whether enough is configured to call a backend at all.
func (c *Config) BackendEnabled() bool {
	if c.Backend == BackendOpenAI {
		return c.BackendAPIKey != ""
	}
	return c.BackendURL != ""
}
