package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/cache"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/config"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/database"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/ratelimit"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/services"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/stats"
)

const (
	breakerFailures    = 5
	breakerOpenTimeout = 60 * time.Second
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	redis  *cache.Redis
	memory *cache.Memory
	engine *services.TranslationEngine
	live   *services.LiveTranslator
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	services.SetDebug(cfg.Debug)

	db, err := database.Open(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		// The engine keeps working without persistence, falling back to the backend
		log.Printf("Warning: database unavailable, translations will not be persisted: %v", err)
		db = nil
	} else if cfg.IsPostgres() {
		log.Println("✓ Connected to PostgreSQL")
	} else {
		log.Printf("✓ Opened SQLite database at %s", cfg.DatabaseURL)
	}

	a := &app{cfg: cfg, db: db}

	a.memory = cache.NewMemory(cfg.MemoryCacheSize, cfg.MemoryCacheTTL)
	hot := cache.NewTiered(a.memory)
	if cfg.RedisURL != "" {
		a.redis, err = cache.NewRedis(ctx, cfg.RedisURL, cfg.RedisCacheTTL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, using memory cache only: %v", err)
			a.redis = nil
		} else {
			log.Println("✓ Connected to Redis")
			hot = cache.NewTiered(a.memory, a.redis)
		}
	}

	var backend services.TranslationBackend
	if cfg.BackendEnabled() {
		var inner services.TranslationBackend
		switch cfg.Backend {
		case config.BackendOpenAI:
			inner = services.NewOpenAIBackend(cfg.BackendAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.BackendTimeout)
		default:
			inner = services.NewHTTPBackend(cfg.BackendURL, cfg.BackendAPIKey, cfg.BackendKeyHeader, cfg.BackendTimeout)
		}
		backend = services.NewBreakerBackend(inner, breakerFailures, breakerOpenTimeout)
	} else {
		log.Println("Warning: no translation backend configured, cache misses return the original text")
	}

	a.engine = services.NewTranslationEngine(
		services.NewTranslationStore(db),
		backend,
		ratelimit.New(services.IsRateLimited),
		stats.New(),
		hot,
		services.EngineConfig{
			TextInterval: cfg.TextInterval,
			BatchSize:    cfg.BatchSize,
			BatchPause:   cfg.BatchPause,
			MaxRetries:   cfg.BatchRetries,
			RetryBase:    cfg.RetryBaseDelay,
			CallTimeout:  cfg.BackendTimeout,
		},
	)
	a.live = services.NewLiveTranslator(a.engine, a.memory, 0)
	return a, nil
}

// Close waits for background writes and releases connections.
func (a *app) Close() {
	a.live.Wait()
	a.engine.Wait()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("Error closing Redis: %v", err)
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}
