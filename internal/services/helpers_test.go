package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/cache"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/database"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/ratelimit"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/stats"
)

var errBackendDown = errors.New("connection refused")

// fakeBackend records requests and answers through respond.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []BackendRequest
	respond func(req BackendRequest) (string, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Translate(_ context.Context, req BackendRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return "", errBackendDown
	}
	return respond(req)
}

func (f *fakeBackend) Calls() []BackendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BackendRequest{}, f.calls...)
}

// fixed returns the same translation for every single-text request.
func fixed(translation string) func(BackendRequest) (string, error) {
	return func(BackendRequest) (string, error) { return translation, nil }
}

// prefixEach translates every delimiter-separated segment as prefix+segment.
func prefixEach(prefix string) func(BackendRequest) (string, error) {
	return func(req BackendRequest) (string, error) {
		if !req.Batch {
			return prefix + req.Text, nil
		}
		parts := strings.Split(req.Text, req.Delimiter)
		for i := range parts {
			parts[i] = prefix + parts[i]
		}
		return strings.Join(parts, req.Delimiter), nil
	}
}

func failing(err error) func(BackendRequest) (string, error) {
	return func(BackendRequest) (string, error) { return "", err }
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "translations.db"), false)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		TextInterval: 0,
		BatchSize:    20,
		BatchPause:   0,
		MaxRetries:   3,
		RetryBase:    time.Millisecond,
		CallTimeout:  5 * time.Second,
		Delimiter:    DefaultDelimiter,
	}
}

type testEngine struct {
	*TranslationEngine
	db      *gorm.DB
	store   *TranslationStore
	backend *fakeBackend
	sleeps  *[]time.Duration
}

// newTestEngine builds an engine over a fresh SQLite store. Sleeps are
// recorded instead of waited. Background writes are drained before the
// database closes.
func newTestEngine(t *testing.T, backend *fakeBackend, hot cache.Cache, cfg EngineConfig) *testEngine {
	t.Helper()
	db := newTestDB(t)
	store := NewTranslationStore(db)
	e := NewTranslationEngine(store, backend, ratelimit.New(IsRateLimited), stats.New(), hot, cfg)

	var mu sync.Mutex
	sleeps := []time.Duration{}
	e.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return ctx.Err() == nil
	}
	t.Cleanup(e.Wait)

	return &testEngine{TranslationEngine: e, db: db, store: store, backend: backend, sleeps: &sleeps}
}

func seedTranslation(t *testing.T, store *TranslationStore, source, translated, src, tgt string) *models.TranslationRecord {
	t.Helper()
	res, err := store.Upsert(context.Background(), UpsertParams{
		SourceText:     source,
		TranslatedText: translated,
		SourceLanguage: src,
		TargetLanguage: tgt,
	})
	if err != nil {
		t.Fatalf("seed Upsert(%q) error = %v", source, err)
	}
	if res.Record == nil {
		t.Fatalf("seed Upsert(%q) outcome = %s", source, res.Outcome)
	}
	return res.Record
}

// seedRaw inserts a record as-is, bypassing Upsert validation.
func seedRaw(t *testing.T, db *gorm.DB, r models.TranslationRecord) *models.TranslationRecord {
	t.Helper()
	if r.ContentHash == "" {
		r.ContentHash = models.ContentHash(r.SourceText)
	}
	if r.LookupKey == "" {
		r.LookupKey = models.LookupKey(r.ContentHash, r.SourceLanguage, r.TargetLanguage)
	}
	if r.LastUsed.IsZero() {
		r.LastUsed = time.Now()
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seedRaw(%q) error = %v", r.SourceText, err)
	}
	return &r
}

func countRecords(t *testing.T, db *gorm.DB, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.TranslationRecord{}).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}
