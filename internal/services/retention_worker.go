package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
)

// RetentionWorker periodically removes stale, rarely used translations and
// refreshes the store gauges.
type RetentionWorker struct {
	engine   *TranslationEngine
	db       *gorm.DB
	interval time.Duration
	days     int
	minUsage int
	mu       sync.RWMutex

	// Stats
	lastRunTime  time.Time
	lastDeleted  int64
	totalDeleted int64
}

// RetentionStatus is reported by the admin API.
type RetentionStatus struct {
	LastRunTime  time.Time `json:"last_run_time"`
	NextRunTime  time.Time `json:"next_run_time"`
	LastDeleted  int64     `json:"last_deleted"`
	TotalDeleted int64     `json:"total_deleted"`
	Days         int       `json:"days"`
	MinUsage     int       `json:"min_usage"`
}

func NewRetentionWorker(engine *TranslationEngine, db *gorm.DB, interval time.Duration, days, minUsage int) *RetentionWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionWorker{
		engine:   engine,
		db:       db,
		interval: interval,
		days:     days,
		minUsage: minUsage,
	}
}

// Start runs a sweep immediately and then every interval until ctx is cancelled.
func (w *RetentionWorker) Start(ctx context.Context) {
	log.Printf("Retention worker started: every %v, removing translations unused for %d days with usage < %d",
		w.interval, w.days, w.minUsage)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention worker stopping...")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	if _, err := w.RunSweep(ctx); err != nil {
		log.Printf("Retention worker: sweep failed: %v", err)
	}
}

// RunSweep purges stale translations once and records the outcome.
func (w *RetentionWorker) RunSweep(ctx context.Context) (int64, error) {
	deleted, err := w.engine.CleanupOldTranslations(ctx, w.days, w.minUsage)
	metrics.UpdateTranslationMetrics(w.db)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	w.lastRunTime = time.Now()
	w.lastDeleted = deleted
	w.totalDeleted += deleted
	w.mu.Unlock()
	return deleted, nil
}

// GetStatus returns the current worker status
func (w *RetentionWorker) GetStatus() RetentionStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	next := time.Time{}
	if !w.lastRunTime.IsZero() {
		next = w.lastRunTime.Add(w.interval)
	}
	return RetentionStatus{
		LastRunTime:  w.lastRunTime,
		NextRunTime:  next,
		LastDeleted:  w.lastDeleted,
		TotalDeleted: w.totalDeleted,
		Days:         w.days,
		MinUsage:     w.minUsage,
	}
}
