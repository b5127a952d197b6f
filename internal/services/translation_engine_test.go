package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/cache"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

func TestTranslateOneCacheHit(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	seedTranslation(t, e.store, "Play Game", "Jugar", "en", "es")

	got, err := e.TranslateOne(context.Background(), "Play Game", "en", "es", Location{})
	if err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}
	if got != "Jugar" {
		t.Errorf("TranslateOne() = %q, want %q", got, "Jugar")
	}

	snap := e.Stats().Snapshot()
	if snap.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", snap.CacheHits)
	}
	if snap.APICalls != 0 {
		t.Errorf("APICalls = %d, want 0", snap.APICalls)
	}
	if len(backend.Calls()) != 0 {
		t.Errorf("backend called %d times, want 0", len(backend.Calls()))
	}
}

func TestTranslateOneCacheMiss(t *testing.T) {
	backend := &fakeBackend{respond: fixed("Jouer")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	got, err := e.TranslateOne(ctx, "Play Game", "en", "fr", Location{})
	if err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}
	if got != "Jouer" {
		t.Errorf("TranslateOne() = %q, want %q", got, "Jouer")
	}
	if snap := e.Stats().Snapshot(); snap.APICalls != 1 {
		t.Errorf("APICalls = %d, want 1", snap.APICalls)
	}

	record := e.store.FindExact(ctx, "Play Game", "en", "fr")
	if record == nil {
		t.Fatal("expected a stored record")
	}
	if record.TranslatedText != "Jouer" || record.UsageCount != 1 {
		t.Errorf("stored record = (%q, usage %d), want (Jouer, usage 1)", record.TranslatedText, record.UsageCount)
	}

	calls := backend.Calls()
	if len(calls) != 1 || calls[0].Batch || calls[0].SourceLanguage != "en" || calls[0].TargetLanguage != "fr" {
		t.Errorf("unexpected backend calls: %+v", calls)
	}
}

func TestTranslateOneIsIdempotent(t *testing.T) {
	tests := []struct {
		name string
		hot  cache.Cache
	}{
		{name: "store only", hot: nil},
		{name: "with memory cache", hot: cache.NewMemory(100, time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{respond: fixed("Bonjour")}
			e := newTestEngine(t, backend, tt.hot, testEngineConfig())
			ctx := context.Background()

			first, _ := e.TranslateOne(ctx, "Hello", "en", "fr", Location{})
			second, _ := e.TranslateOne(ctx, "Hello", "en", "fr", Location{})

			if first != "Bonjour" || second != "Bonjour" {
				t.Errorf("results = (%q, %q), want both Bonjour", first, second)
			}
			if len(backend.Calls()) != 1 {
				t.Errorf("backend called %d times, want 1", len(backend.Calls()))
			}
			if snap := e.Stats().Snapshot(); snap.CacheHits != 1 || snap.TotalCalls != 2 {
				t.Errorf("stats = %+v, want 1 hit out of 2 calls", snap)
			}
		})
	}
}

func TestTranslateOneFallbackNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		seed    bool
		want    string
	}{
		{name: "backend down, nothing cached", backend: &fakeBackend{respond: failing(errBackendDown)}, want: "Hello"},
		{name: "backend rate limited", backend: &fakeBackend{respond: failing(ErrRateLimited)}, want: "Hello"},
		{name: "backend echoes source", backend: &fakeBackend{respond: fixed("Hello")}, want: "Hello"},
		{name: "backend returns empty", backend: &fakeBackend{respond: fixed("   ")}, want: "Hello"},
		{name: "backend down, similar cached", backend: &fakeBackend{respond: failing(errBackendDown)}, seed: true, want: "Bonjour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.backend, nil, testEngineConfig())
			if tt.seed {
				seedTranslation(t, e.store, "hello", "Bonjour", "en", "fr")
			}

			got, err := e.TranslateOne(context.Background(), "Hello", "en", "fr", Location{})
			if err != nil {
				t.Fatalf("TranslateOne() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("TranslateOne() = %q, want %q", got, tt.want)
			}
			if snap := e.Stats().Snapshot(); snap.Errors != 1 {
				t.Errorf("Errors = %d, want 1", snap.Errors)
			}
		})
	}
}

func TestTranslateOneWithoutBackendOrStore(t *testing.T) {
	e := NewTranslationEngine(nil, nil, nil, nil, nil, testEngineConfig())
	got, err := e.TranslateOne(context.Background(), "Hello", "en", "fr", Location{})
	if err != nil || got != "Hello" {
		t.Errorf("TranslateOne() = (%q, %v), want (Hello, nil)", got, err)
	}
}

func TestTranslateOneHealsInvalidRecord(t *testing.T) {
	backend := &fakeBackend{respond: fixed("Kaydet")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	invalid := seedRaw(t, e.db, models.TranslationRecord{
		SourceText:     "Save",
		TranslatedText: "",
		SourceLanguage: "en",
		TargetLanguage: "tr",
	})

	got, err := e.TranslateOne(ctx, "Save", "en", "tr", Location{})
	if err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}
	if got != "Kaydet" {
		t.Errorf("TranslateOne() = %q, want %q", got, "Kaydet")
	}
	if len(backend.Calls()) != 1 {
		t.Errorf("backend called %d times, want 1", len(backend.Calls()))
	}

	if n := countRecords(t, e.db, "source_text = ? AND target_language = ?", "Save", "tr"); n != 1 {
		t.Fatalf("record count = %d, want 1", n)
	}
	var healed models.TranslationRecord
	if err := e.db.First(&healed, invalid.ID).Error; err != nil {
		t.Fatalf("load healed record: %v", err)
	}
	if healed.TranslatedText != "Kaydet" {
		t.Errorf("healed translation = %q, want %q", healed.TranslatedText, "Kaydet")
	}
}

func TestTranslateOneIdentityIsShortCircuited(t *testing.T) {
	backend := &fakeBackend{respond: fixed("nope")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	tests := []struct {
		name, text, src, tgt string
	}{
		{name: "same language", text: "Hello", src: "en", tgt: "en"},
		{name: "same language different case", text: "Hello", src: "EN", tgt: "en"},
		{name: "empty text", text: "", src: "en", tgt: "fr"},
		{name: "whitespace only", text: "   ", src: "en", tgt: "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.TranslateOne(ctx, tt.text, tt.src, tt.tgt, Location{})
			if err != nil || got != tt.text {
				t.Errorf("TranslateOne() = (%q, %v), want (%q, nil)", got, err, tt.text)
			}
		})
	}
	if len(backend.Calls()) != 0 {
		t.Errorf("backend called %d times, want 0", len(backend.Calls()))
	}
	if snap := e.Stats().Snapshot(); snap.TotalCalls != 0 {
		t.Errorf("TotalCalls = %d, want 0", snap.TotalCalls)
	}
}

func TestTranslateOneMissingLanguage(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, nil, testEngineConfig())

	got, err := e.TranslateOne(context.Background(), "Hello", "", "fr", Location{})
	if !errors.Is(err, ErrMissingLanguage) {
		t.Errorf("error = %v, want ErrMissingLanguage", err)
	}
	if got != "Hello" {
		t.Errorf("TranslateOne() = %q, want original text", got)
	}
}

func TestTranslateOnePreservesSurroundingWhitespace(t *testing.T) {
	backend := &fakeBackend{respond: fixed("Jouer")}
	e := newTestEngine(t, backend, nil, testEngineConfig())

	got, _ := e.TranslateOne(context.Background(), "  Play\n", "en", "fr", Location{})
	if got != "  Jouer\n" {
		t.Errorf("TranslateOne() = %q, want %q", got, "  Jouer\n")
	}
	if calls := backend.Calls(); len(calls) != 1 || calls[0].Text != "Play" {
		t.Errorf("backend should receive trimmed text, got %+v", calls)
	}
}

func TestTranslateOneUsesLocation(t *testing.T) {
	backend := &fakeBackend{respond: fixed("should not be used")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	seedRaw(t, e.db, models.TranslationRecord{
		SourceText:     "Start the game",
		TranslatedText: "Commencer le jeu",
		SourceLanguage: "en",
		TargetLanguage: "fr",
		PageKey:        models.StringPtr("home"),
		ElementKey:     models.StringPtr("hero.cta"),
	})

	got, _ := e.TranslateOne(ctx, "Start game", "en", "fr", Location{PageKey: "home", ElementKey: "hero.cta"})
	if got != "Commencer le jeu" {
		t.Errorf("TranslateOne() = %q, want location match", got)
	}
	if len(backend.Calls()) != 0 {
		t.Errorf("backend called %d times, want 0", len(backend.Calls()))
	}
}

func TestTranslateOneStoresLocation(t *testing.T) {
	backend := &fakeBackend{respond: fixed("Options")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	if _, err := e.TranslateOne(ctx, "Settings", "en", "fr", Location{PageKey: "menu", ElementKey: "items[3]"}); err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}
	record := e.store.FindByLocation(ctx, "menu", "items[3]", "fr")
	if record == nil || record.TranslatedText != "Options" {
		t.Errorf("FindByLocation() = %+v, want stored translation", record)
	}
}

func TestTranslateBatchMixedCacheState(t *testing.T) {
	backend := &fakeBackend{respond: func(req BackendRequest) (string, error) {
		if req.Batch && req.Text == "B§§§C" {
			return "Y§§§Z", nil
		}
		return "", fmt.Errorf("unexpected request %q", req.Text)
	}}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()
	seedTranslation(t, e.store, "A", "X", "en", "de")

	got, err := e.TranslateBatch(ctx, []string{"A", "B", "C"}, "en", "de", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if want := []string{"X", "Y", "Z"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want %v", got, want)
	}
	if len(backend.Calls()) != 1 {
		t.Errorf("backend called %d times, want 1", len(backend.Calls()))
	}

	e.Wait()
	for source, want := range map[string]string{"B": "Y", "C": "Z"} {
		record := e.store.FindExact(ctx, source, "en", "de")
		if record == nil || record.TranslatedText != want {
			t.Errorf("stored %q = %+v, want %q", source, record, want)
		}
	}
}

func TestTranslateBatchPreservesOrder(t *testing.T) {
	cfg := testEngineConfig()
	cfg.BatchSize = 2
	cfg.BatchPause = 5 * time.Second
	backend := &fakeBackend{respond: prefixEach("fr:")}
	e := newTestEngine(t, backend, nil, cfg)
	ctx := context.Background()
	seedTranslation(t, e.store, "cached-1", "C1", "en", "fr")
	seedTranslation(t, e.store, "cached-2", "C2", "en", "fr")

	texts := []string{"a", "cached-1", "b", "", "a", "c", "cached-2", " d ", "e"}
	got, err := e.TranslateBatch(ctx, texts, "en", "fr", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}

	want := []string{"fr:a", "C1", "fr:b", "", "fr:a", "fr:c", "C2", " fr:d ", "fr:e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %q, want %q", got, want)
	}

	// unique missing texts a, b, c, d, e in chunks of 2
	if n := len(backend.Calls()); n != 3 {
		t.Errorf("backend called %d times, want 3", n)
	}
	if !reflect.DeepEqual(*e.sleeps, []time.Duration{5 * time.Second, 5 * time.Second}) {
		t.Errorf("pauses = %v, want two batch pauses", *e.sleeps)
	}
}

func TestTranslateBatchSegmentCountMismatch(t *testing.T) {
	backend := &fakeBackend{respond: fixed("Eins")}
	e := newTestEngine(t, backend, nil, testEngineConfig())

	got, err := e.TranslateBatch(context.Background(), []string{"one", "two", "three"}, "en", "de", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if want := []string{"Eins", "two", "three"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want %v", got, want)
	}
	if snap := e.Stats().Snapshot(); snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
}

func TestTranslateBatchSendsDelimiterTextsAlone(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("T:")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	got, err := e.TranslateBatch(ctx, []string{"Save§§§Load", "Quit", "Help"}, "en", "de", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if want := []string{"T:Save§§§Load", "T:Quit", "T:Help"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %q, want %q", got, want)
	}

	calls := backend.Calls()
	if len(calls) != 2 {
		t.Fatalf("backend called %d times, want 2", len(calls))
	}
	for _, c := range calls {
		if c.Text == "Save§§§Load" && c.Batch {
			t.Errorf("text containing the delimiter was sent as a batch: %+v", c)
		}
		if c.Batch && c.Text != "Quit§§§Help" {
			t.Errorf("batch request = %q, want Quit§§§Help", c.Text)
		}
	}

	e.Wait()
	if record := e.store.FindExact(ctx, "Quit", "en", "de"); record == nil || record.TranslatedText != "T:Quit" {
		t.Errorf("stored Quit = %+v, want T:Quit", record)
	}
}

func TestTranslateBatchTooManySegments(t *testing.T) {
	backend := &fakeBackend{respond: fixed("Eins§§§Zwei§§§Drei")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	got, err := e.TranslateBatch(ctx, []string{"one", "two"}, "en", "de", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if want := []string{"one", "two"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want originals %v", got, want)
	}
	if snap := e.Stats().Snapshot(); snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}

	e.Wait()
	if n := countRecords(t, e.db, "1 = 1"); n != 0 {
		t.Errorf("stored %d records, want none from a misaligned response", n)
	}
}

func TestHotCacheHitUpdatesUsage(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("fr:")}
	e := newTestEngine(t, backend, cache.NewMemory(100, time.Hour), testEngineConfig())
	ctx := context.Background()

	if _, err := e.TranslateOne(ctx, "Hello", "en", "fr", Location{}); err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}
	if _, err := e.TranslateOne(ctx, "Hello", "en", "fr", Location{}); err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}
	if _, err := e.TranslateBatch(ctx, []string{"Hello"}, "en", "fr", ""); err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	e.Wait()

	if n := len(backend.Calls()); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
	record := e.store.FindExact(ctx, "Hello", "en", "fr")
	if record == nil || record.UsageCount != 3 {
		t.Errorf("stored record = %+v, want usage 3 after two hot cache hits", record)
	}
}

func TestTranslateBatchRetriesRateLimited(t *testing.T) {
	attempts := 0
	backend := &fakeBackend{respond: func(req BackendRequest) (string, error) {
		attempts++
		if attempts <= 2 {
			return "", fmt.Errorf("%w: status 429", ErrRateLimited)
		}
		return prefixEach("de:")(req)
	}}
	cfg := testEngineConfig()
	cfg.RetryBase = 10 * time.Millisecond
	e := newTestEngine(t, backend, nil, cfg)

	got, _ := e.TranslateBatch(context.Background(), []string{"x", "y"}, "en", "de", "")
	if want := []string{"de:x", "de:y"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want %v", got, want)
	}
	if len(backend.Calls()) != 3 {
		t.Errorf("backend called %d times, want 3", len(backend.Calls()))
	}
	if want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}; !reflect.DeepEqual(*e.sleeps, want) {
		t.Errorf("backoff = %v, want %v", *e.sleeps, want)
	}
}

func TestTranslateBatchRetriesExhausted(t *testing.T) {
	backend := &fakeBackend{respond: failing(ErrRateLimited)}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()
	seedTranslation(t, e.store, "quit", "Beenden", "en", "de")

	got, err := e.TranslateBatch(ctx, []string{"Play", "QUIT"}, "en", "de", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if want := []string{"Play", "Beenden"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want %v", got, want)
	}
	if n := len(backend.Calls()); n != 4 {
		t.Errorf("backend called %d times, want 1 attempt + 3 retries", n)
	}
}

func TestTranslateBatchDoesNotRetryOtherErrors(t *testing.T) {
	backend := &fakeBackend{respond: failing(errBackendDown)}
	e := newTestEngine(t, backend, nil, testEngineConfig())

	got, _ := e.TranslateBatch(context.Background(), []string{"a", "b"}, "en", "de", "")
	if want := []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want %v", got, want)
	}
	if n := len(backend.Calls()); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
}

func TestTranslateBatchWithoutStore(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("es:")}
	e := NewTranslationEngine(NewTranslationStore(nil), backend, nil, nil, nil, testEngineConfig())

	got, err := e.TranslateBatch(context.Background(), []string{"a", "b"}, "en", "es", "")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if want := []string{"es:a", "es:b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateBatch() = %v, want %v", got, want)
	}
}

func TestTranslateBatchMissingLanguage(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, nil, testEngineConfig())

	got, err := e.TranslateBatch(context.Background(), []string{"a"}, "en", "", "")
	if !errors.Is(err, ErrMissingLanguage) {
		t.Errorf("error = %v, want ErrMissingLanguage", err)
	}
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("TranslateBatch() = %v, want input unchanged", got)
	}
}

func TestTranslateBatchStoresPageKey(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("it:")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	if _, err := e.TranslateBatch(ctx, []string{"one"}, "en", "it", "catalog"); err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	e.Wait()

	if n := countRecords(t, e.db, "page_key = ?", "catalog"); n != 1 {
		t.Errorf("records for page = %d, want 1", n)
	}
}

func TestGetStatsAndCleanup(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{respond: fixed("Hallo")}, nil, testEngineConfig())
	ctx := context.Background()

	seedTranslation(t, e.store, "Hello", "Hola", "en", "es")
	old := seedTranslation(t, e.store, "Old", "Viejo", "en", "es")
	seedTranslation(t, e.store, "Popular", "Beliebt", "en", "de")
	if err := e.db.Model(&models.TranslationRecord{}).Where("id = ?", old.ID).
		UpdateColumn("last_used", time.Now().AddDate(0, 0, -120)).Error; err != nil {
		t.Fatalf("age record: %v", err)
	}

	if _, err := e.TranslateOne(ctx, "Hello", "en", "es", Location{}); err != nil {
		t.Fatalf("TranslateOne() error = %v", err)
	}

	st, err := e.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if st.TotalTranslations != 3 || st.LanguageCount != 2 {
		t.Errorf("store totals = (%d, %d), want (3, 2)", st.TotalTranslations, st.LanguageCount)
	}
	if st.CacheHits != 1 || st.CacheHitRate != 100 {
		t.Errorf("hit stats = (%d, %.1f), want (1, 100)", st.CacheHits, st.CacheHitRate)
	}
	if len(st.DailyStats) != 7 {
		t.Errorf("DailyStats has %d entries, want 7", len(st.DailyStats))
	}

	e.Wait()
	deleted, err := e.CleanupOldTranslations(ctx, 0, 0)
	if err != nil {
		t.Fatalf("CleanupOldTranslations() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	e.ResetStats()
	if snap := e.Stats().Snapshot(); snap.TotalCalls != 0 {
		t.Errorf("TotalCalls after reset = %d, want 0", snap.TotalCalls)
	}
}

func TestSplitSpace(t *testing.T) {
	tests := []struct {
		in                string
		lead, core, trail string
	}{
		{in: "abc", core: "abc"},
		{in: "  abc ", lead: "  ", core: "abc", trail: " "},
		{in: "\tçé ü\n", lead: "\t", core: "çé ü", trail: "\n"},
		{in: "   ", lead: "   "},
		{in: ""},
	}
	for _, tt := range tests {
		lead, core, trail := splitSpace(tt.in)
		if lead != tt.lead || core != tt.core || trail != tt.trail {
			t.Errorf("splitSpace(%q) = (%q, %q, %q), want (%q, %q, %q)", tt.in, lead, core, trail, tt.lead, tt.core, tt.trail)
		}
	}
}
