// Package stats keeps process-wide translation counters with per-day rollups.
//
// Counters are observability only: they live in memory, reset on restart and
// are mirrored to Prometheus for anything that needs to outlive the process.
package stats

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
)

const (
	// RetentionDays is how many daily rollups are kept.
	RetentionDays = 30
	// ReportDays is how many daily rollups a Snapshot reports.
	ReportDays = 7

	dayLayout = "2006-01-02"
)

// Stats collects translation counters. The zero value is not usable; call New.
type Stats struct {
	totalCalls atomic.Int64
	cacheHits  atomic.Int64
	apiCalls   atomic.Int64
	errors     atomic.Int64

	mu             sync.Mutex
	dailyAPICalls  map[string]int64
	dailyCacheHits map[string]int64

	now func() time.Time
}

// DailyStat is one day of rollups.
type DailyStat struct {
	Date      string `json:"date"`
	APICalls  int64  `json:"api_calls"`
	CacheHits int64  `json:"cache_hits"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalCalls   int64       `json:"total_calls"`
	CacheHits    int64       `json:"cache_hits"`
	APICalls     int64       `json:"api_calls"`
	Errors       int64       `json:"errors"`
	CacheHitRate float64     `json:"cache_hit_rate"` // percent of calls served from cache
	DailyStats   []DailyStat `json:"daily_stats"`   // oldest first, ReportDays entries
}

// New creates an empty Stats using the wall clock.
func New() *Stats {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty Stats with an injectable clock.
func NewWithClock(now func() time.Time) *Stats {
	return &Stats{
		dailyAPICalls:  make(map[string]int64),
		dailyCacheHits: make(map[string]int64),
		now:            now,
	}
}

// RecordCall counts one text submitted for translation.
func (s *Stats) RecordCall() {
	s.totalCalls.Inc()
}

// RecordCacheHit counts one text served from cache.
func (s *Stats) RecordCacheHit() {
	s.cacheHits.Inc()
	s.bumpDaily(func(s *Stats) map[string]int64 { return s.dailyCacheHits })
	metrics.TranslationCacheHits.Inc()
	metrics.TranslationRequestsTotal.WithLabelValues("cache").Inc()
}

// RecordCacheMiss only feeds Prometheus; misses are derivable from the other counters.
func (s *Stats) RecordCacheMiss() {
	metrics.TranslationCacheMisses.Inc()
}

// RecordAPICall counts one call to the external backend.
func (s *Stats) RecordAPICall() {
	s.apiCalls.Inc()
	s.bumpDaily(func(s *Stats) map[string]int64 { return s.dailyAPICalls })
	metrics.TranslationAPICalls.Inc()
}

// RecordError counts one failed translation attempt.
func (s *Stats) RecordError(kind string) {
	s.errors.Inc()
	metrics.TranslationErrorsTotal.WithLabelValues(kind).Inc()
}

// Reset zeroes every counter and rollup.
func (s *Stats) Reset() {
	s.totalCalls.Store(0)
	s.cacheHits.Store(0)
	s.apiCalls.Store(0)
	s.errors.Store(0)

	s.mu.Lock()
	s.dailyAPICalls = make(map[string]int64)
	s.dailyCacheHits = make(map[string]int64)
	s.mu.Unlock()
}

// Snapshot returns the current counters and the last ReportDays of rollups.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		TotalCalls: s.totalCalls.Load(),
		CacheHits:  s.cacheHits.Load(),
		APICalls:   s.apiCalls.Load(),
		Errors:     s.errors.Load(),
	}
	if snap.TotalCalls > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(snap.TotalCalls) * 100
	}

	today := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := ReportDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dayLayout)
		snap.DailyStats = append(snap.DailyStats, DailyStat{
			Date:      day,
			APICalls:  s.dailyAPICalls[day],
			CacheHits: s.dailyCacheHits[day],
		})
	}
	return snap
}

// Days returns the dates that currently hold rollups, oldest first.
func (s *Stats) Days() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for d := range s.dailyAPICalls {
		seen[d] = true
	}
	for d := range s.dailyCacheHits {
		seen[d] = true
	}
	days := make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// bumpDaily resolves the rollup under the lock, since Reset swaps the maps.
func (s *Stats) bumpDaily(rollup func(*Stats) map[string]int64) {
	now := s.now()
	day := now.Format(dayLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	rollup(s)[day]++
	s.pruneLocked(now)
}

// pruneLocked drops rollups older than RetentionDays. Dates are ISO formatted,
// so string comparison orders them.
func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -RetentionDays).Format(dayLayout)
	for d := range s.dailyAPICalls {
		if d < cutoff {
			delete(s.dailyAPICalls, d)
		}
	}
	for d := range s.dailyCacheHits {
		if d < cutoff {
			delete(s.dailyCacheHits, d)
		}
	}
}
