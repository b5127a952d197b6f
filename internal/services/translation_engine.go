package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/cache"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/ratelimit"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/stats"
)

const (
	// persistTimeout bounds background store writes after a batch returned
	persistTimeout = 10 * time.Second
	// defaultRetentionDays and defaultRetentionMinUsage drive cleanup when callers pass zero
	defaultRetentionDays     = 90
	defaultRetentionMinUsage = 5
)

// EngineConfig controls how hard the engine pushes the backend.
type EngineConfig struct {
	TextInterval time.Duration // minimum spacing between backend calls
	BatchSize    int           // texts per backend call in batch mode
	BatchPause   time.Duration // pause between sub-batches
	MaxRetries   int           // retries of a rate-limited sub-batch
	RetryBase    time.Duration // first retry delay, doubled per retry
	CallTimeout  time.Duration // per backend call
	Delimiter    string
}

// DefaultEngineConfig keeps just under a "1 request per 5 seconds" backend limit.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TextInterval: 5100 * time.Millisecond,
		BatchSize:    20,
		BatchPause:   5 * time.Second,
		MaxRetries:   3,
		RetryBase:    time.Second,
		CallTimeout:  30 * time.Second,
		Delimiter:    DefaultDelimiter,
	}
}

// Location is the optional UI slot a text is rendered into.
type Location struct {
	PageKey    string
	ElementKey string
}

func (l Location) valid() bool {
	return l.PageKey != "" && l.ElementKey != ""
}

// EngineStats combines the process counters with store aggregates.
type EngineStats struct {
	stats.Snapshot
	TotalTranslations int64       `json:"total_translations"`
	LanguageCount     int         `json:"language_count"`
	Store             *StoreStats `json:"store,omitempty"`
}

// TranslationEngine decides per text whether to serve from cache, call the
// backend or fall back, and keeps the caches populated.
type TranslationEngine struct {
	store   *TranslationStore
	backend TranslationBackend
	limiter *ratelimit.Limiter
	stats   *stats.Stats
	hot     cache.Cache
	cfg     EngineConfig

	// sleep waits d or until ctx ends, reporting whether the full wait elapsed
	sleep func(ctx context.Context, d time.Duration) bool
	wg    sync.WaitGroup
}

// NewTranslationEngine wires the engine. backend and hot may be nil: without a
// backend every miss falls back, without a hot cache only the store is used.
func NewTranslationEngine(store *TranslationStore, backend TranslationBackend, limiter *ratelimit.Limiter, st *stats.Stats, hot cache.Cache, cfg EngineConfig) *TranslationEngine {
	defaults := DefaultEngineConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = defaults.Delimiter
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if store == nil {
		store = NewTranslationStore(nil)
	}
	if limiter == nil {
		limiter = ratelimit.New(IsRateLimited)
	}
	if st == nil {
		st = stats.New()
	}

	backendName := "none"
	if backend != nil {
		backendName = backend.Name()
	}
	infoLog("Translation engine initialized: backend=%s, store=%v, batch_size=%d, interval=%v",
		backendName, store.Available(), cfg.BatchSize, cfg.TextInterval)

	return &TranslationEngine{
		store:   store,
		backend: backend,
		limiter: limiter,
		stats:   st,
		hot:     hot,
		cfg:     cfg,
		sleep:   sleepContext,
	}
}

// Store returns the engine's translation store.
func (e *TranslationEngine) Store() *TranslationStore { return e.store }

// Stats returns the engine's counters.
func (e *TranslationEngine) Stats() *stats.Stats { return e.stats }

// BackendName reports which backend is configured.
func (e *TranslationEngine) BackendName() string {
	if e.backend == nil {
		return "none"
	}
	return e.backend.Name()
}

// TranslateOne translates a single text. It only fails for a missing language;
// every other problem degrades to a similar cached match or the original text.
func (e *TranslationEngine) TranslateOne(ctx context.Context, text, sourceLang, targetLang string, loc Location) (string, error) {
	if sourceLang == "" || targetLang == "" {
		return text, ErrMissingLanguage
	}
	sourceLang = NormalizeLanguageCode(sourceLang)
	targetLang = NormalizeLanguageCode(targetLang)

	lead, core, trail := splitSpace(text)
	if core == "" || sourceLang == targetLang {
		return text, nil
	}

	e.stats.RecordCall()

	var existingID uint
	if loc.valid() {
		if record := e.store.FindByLocation(ctx, loc.PageKey, loc.ElementKey, targetLang); record != nil {
			if record.IsValid() {
				return lead + e.serveRecord(ctx, record) + trail, nil
			}
			if record.SourceText == core {
				existingID = record.ID
			}
		}
	}

	key := cache.Key(core, sourceLang, targetLang)
	if e.hot != nil {
		if v, ok := e.hot.Get(ctx, key); ok && models.IsUsableTranslation(core, v) {
			e.serveHot(core, sourceLang, targetLang)
			debugLog("Hot cache hit for %q", truncateText(core, 30))
			return lead + v + trail, nil
		}
	}

	if record := e.store.FindExact(ctx, core, sourceLang, targetLang); record != nil {
		if record.IsValid() {
			return lead + e.serveRecord(ctx, record) + trail, nil
		}
		// Leftover of a failed translation: retranslate and heal this record.
		debugLog("Invalid cached translation for %q (record %d), retranslating", truncateText(core, 30), record.ID)
		existingID = record.ID
	}

	e.stats.RecordCacheMiss()
	translated, err := e.callBackend(ctx, BackendRequest{
		Text:           core,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	})
	if err == nil {
		translated = strings.TrimSpace(translated)
		if !models.IsUsableTranslation(core, translated) {
			err = ErrDegenerateTranslation
		}
	}
	if err != nil {
		return lead + e.fallback(ctx, core, sourceLang, targetLang, err) + trail, nil
	}

	metrics.TranslationRequestsTotal.WithLabelValues("api").Inc()
	e.remember(ctx, key, translated)
	e.persist(ctx, UpsertParams{
		SourceText:     core,
		TranslatedText: translated,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		PageKey:        loc.PageKey,
		ElementKey:     loc.ElementKey,
		ExistingID:     existingID,
	})
	return lead + translated + trail, nil
}

// TranslateBatch translates texts preserving order and length. Cache hits are
// served directly, the rest goes to the backend in delimiter-joined sub-batches.
func (e *TranslationEngine) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang, pageKey string) ([]string, error) {
	items := make([]batchItem, len(texts))
	for i, t := range texts {
		items[i] = batchItem{text: t}
	}
	return e.translateItems(ctx, items, sourceLang, targetLang, pageKey)
}

// batchItem is one text of a batch with its optional UI slot.
type batchItem struct {
	text       string
	elementKey string
}

// pendingText is a unique missing text and every input index it feeds.
type pendingText struct {
	core       string
	indices    []int
	elementKey string
	existingID uint
}

func (e *TranslationEngine) translateItems(ctx context.Context, items []batchItem, sourceLang, targetLang, pageKey string) ([]string, error) {
	results := make([]string, len(items))
	for i, it := range items {
		results[i] = it.text
	}
	if sourceLang == "" || targetLang == "" {
		return results, ErrMissingLanguage
	}
	sourceLang = NormalizeLanguageCode(sourceLang)
	targetLang = NormalizeLanguageCode(targetLang)
	if sourceLang == targetLang {
		return results, nil
	}

	// Partition into cache hits and unique missing texts.
	var pending []*pendingText
	byCore := make(map[string]*pendingText)
	resolved := make(map[string]string)
	for i, it := range items {
		_, core, _ := splitSpace(it.text)
		if core == "" {
			continue
		}
		e.stats.RecordCall()

		if v, ok := resolved[core]; ok {
			e.stats.RecordCacheHit()
			results[i] = rewrap(it.text, v)
			continue
		}
		if p, ok := byCore[core]; ok {
			p.indices = append(p.indices, i)
			continue
		}

		v, existingID, ok := e.lookupCached(ctx, core, sourceLang, targetLang)
		if ok {
			resolved[core] = v
			results[i] = rewrap(it.text, v)
			continue
		}
		p := &pendingText{core: core, indices: []int{i}, elementKey: it.elementKey, existingID: existingID}
		byCore[core] = p
		pending = append(pending, p)
	}

	if len(pending) == 0 {
		return results, nil
	}
	debugLog("Batch %s->%s: %d texts, %d unique missing", sourceLang, targetLang, len(items), len(pending))

	left := len(pending)
	for n, chunk := range e.chunkPending(pending) {
		if n > 0 && e.cfg.BatchPause > 0 {
			if !e.sleep(ctx, e.cfg.BatchPause) {
				e.stats.RecordError(errorKind(ctx.Err()))
				infoLog("Batch interrupted: %d texts left untranslated: %v", left, ctx.Err())
				break
			}
		}

		translations := e.translateChunk(ctx, chunk, sourceLang, targetLang, pageKey)
		for j, p := range chunk {
			v := translations[j]
			for _, idx := range p.indices {
				results[idx] = rewrap(items[idx].text, v)
			}
		}
		left -= len(chunk)
	}

	return results, nil
}

// chunkPending groups missing texts into sub-batches of at most BatchSize. A
// text that contains the delimiter is sent on its own so splitting the joined
// response cannot shift later segments.
func (e *TranslationEngine) chunkPending(pending []*pendingText) [][]*pendingText {
	var (
		chunks  [][]*pendingText
		current []*pendingText
	)
	for _, p := range pending {
		if strings.Contains(p.core, e.cfg.Delimiter) {
			chunks = append(chunks, []*pendingText{p})
			continue
		}
		current = append(current, p)
		if len(current) == e.cfg.BatchSize {
			chunks = append(chunks, current)
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// lookupCached checks the hot cache and the store. On a miss it returns the ID
// of an invalid record that should be healed, if any.
func (e *TranslationEngine) lookupCached(ctx context.Context, core, sourceLang, targetLang string) (string, uint, bool) {
	key := cache.Key(core, sourceLang, targetLang)
	if e.hot != nil {
		if v, ok := e.hot.Get(ctx, key); ok && models.IsUsableTranslation(core, v) {
			e.serveHot(core, sourceLang, targetLang)
			return v, 0, true
		}
	}

	record := e.store.FindExact(ctx, core, sourceLang, targetLang)
	if record == nil {
		e.stats.RecordCacheMiss()
		return "", 0, false
	}
	if !record.IsValid() {
		e.stats.RecordCacheMiss()
		return "", record.ID, false
	}
	return e.serveRecord(ctx, record), 0, true
}

// translateChunk sends one sub-batch, retrying rate-limited attempts with
// exponential backoff. The returned slice always matches chunk in length.
func (e *TranslationEngine) translateChunk(ctx context.Context, chunk []*pendingText, sourceLang, targetLang, pageKey string) []string {
	out := make([]string, len(chunk))
	texts := make([]string, len(chunk))
	for i, p := range chunk {
		texts[i] = p.core
		out[i] = p.core
	}
	metrics.TranslationBatchSize.Observe(float64(len(chunk)))

	req := BackendRequest{
		Text:           strings.Join(texts, e.cfg.Delimiter),
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		Batch:          len(chunk) > 1,
		Delimiter:      e.cfg.Delimiter,
	}

	var (
		response string
		err      error
	)
	delay := e.cfg.RetryBase
	for attempt := 0; ; attempt++ {
		response, err = e.callBackend(ctx, req)
		if err == nil || !IsRateLimited(err) || attempt >= e.cfg.MaxRetries {
			break
		}
		infoLog("Sub-batch of %d rate limited, retry %d/%d in %v", len(chunk), attempt+1, e.cfg.MaxRetries, delay)
		if !e.sleep(ctx, delay) {
			err = fmt.Errorf("%w: %v", err, ctx.Err())
			break
		}
		delay *= 2
	}

	if err != nil {
		errorLog("Sub-batch of %d failed, falling back per text: %v", len(chunk), err)
		for i, p := range chunk {
			out[i] = e.fallback(ctx, p.core, sourceLang, targetLang, err)
			if models.IsUsableTranslation(p.core, out[i]) {
				e.persistAsync(UpsertParams{
					SourceText:     p.core,
					TranslatedText: out[i],
					SourceLanguage: sourceLang,
					TargetLanguage: targetLang,
					PageKey:        pageKey,
					ElementKey:     p.elementKey,
					ExistingID:     p.existingID,
				})
			}
		}
		return out
	}

	segments := []string{strings.TrimSpace(response)}
	if req.Batch {
		segments = splitSegments(response, e.cfg.Delimiter)
	}
	switch {
	case len(segments) > len(chunk):
		// No way to tell which segment belongs to which text.
		e.stats.RecordError("segment_mismatch")
		infoLog("Sub-batch returned %d segments for %d texts, all texts keep their original", len(segments), len(chunk))
		segments = nil
	case len(segments) < len(chunk):
		e.stats.RecordError("segment_mismatch")
		infoLog("Sub-batch returned %d segments for %d texts, unmatched texts keep their original", len(segments), len(chunk))
	}

	for i, p := range chunk {
		if i >= len(segments) {
			break
		}
		translated := segments[i]
		if !models.IsUsableTranslation(p.core, translated) {
			debugLog("Degenerate batch segment for %q", truncateText(p.core, 30))
			continue
		}
		out[i] = translated
		metrics.TranslationRequestsTotal.WithLabelValues("api").Inc()
		e.remember(ctx, cache.Key(p.core, sourceLang, targetLang), translated)
		e.persistAsync(UpsertParams{
			SourceText:     p.core,
			TranslatedText: translated,
			SourceLanguage: sourceLang,
			TargetLanguage: targetLang,
			PageKey:        pageKey,
			ElementKey:     p.elementKey,
			ExistingID:     p.existingID,
		})
	}
	return out
}

// callBackend runs one backend call through the text rate limiter.
func (e *TranslationEngine) callBackend(ctx context.Context, req BackendRequest) (string, error) {
	if e.backend == nil {
		return "", fmt.Errorf("%w: no backend configured", ErrBackendUnavailable)
	}
	return ratelimit.Do(ctx, e.limiter, ratelimit.EndpointText, e.cfg.TextInterval, func(ctx context.Context) (string, error) {
		e.stats.RecordAPICall()
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
		return e.backend.Translate(callCtx, req)
	})
}

// fallback resolves a failed translation to a case-insensitive cached match
// or the original text.
func (e *TranslationEngine) fallback(ctx context.Context, core, sourceLang, targetLang string, cause error) string {
	e.stats.RecordError(errorKind(cause))
	if errors.Is(cause, ErrDegenerateTranslation) {
		debugLog("Backend returned no usable translation for %q", truncateText(core, 50))
	} else {
		errorLog("Translation failed for %q (%s->%s): %v", truncateText(core, 50), sourceLang, targetLang, cause)
	}

	if similar := e.store.FindSimilar(ctx, core, sourceLang, targetLang); similar != nil {
		metrics.TranslationRequestsTotal.WithLabelValues("similar").Inc()
		infoLog("Fallback to similar cached translation for %q", truncateText(core, 30))
		return similar.TranslatedText
	}
	metrics.TranslationRequestsTotal.WithLabelValues("original").Inc()
	return core
}

func (e *TranslationEngine) serveRecord(ctx context.Context, record *models.TranslationRecord) string {
	e.stats.RecordCacheHit()
	e.store.IncrementUsage(record.ID)
	e.remember(ctx, cache.Key(record.SourceText, record.SourceLanguage, record.TargetLanguage), record.TranslatedText)
	return record.TranslatedText
}

// serveHot accounts a hot cache hit against the stored record.
func (e *TranslationEngine) serveHot(core, sourceLang, targetLang string) {
	e.stats.RecordCacheHit()
	e.store.IncrementUsageByKey(models.LookupKey(models.ContentHash(core), sourceLang, targetLang))
}

func (e *TranslationEngine) remember(ctx context.Context, key, translated string) {
	if e.hot != nil {
		e.hot.Set(ctx, key, translated)
	}
}

func (e *TranslationEngine) persist(ctx context.Context, p UpsertParams) {
	res, err := e.store.Upsert(ctx, p)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			e.stats.RecordError("store")
			errorLog("Failed to store translation for %q: %v", truncateText(p.SourceText, 30), err)
		}
		return
	}
	debugLog("Stored translation for %q: %s", truncateText(p.SourceText, 30), res.Outcome)
}

// persistAsync writes in the background so batch callers are not blocked.
// The write outlives the caller's context.
func (e *TranslationEngine) persistAsync(p UpsertParams) {
	if !e.store.Available() {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		e.persist(ctx, p)
	}()
}

// Wait blocks until background persistence finished. Used on shutdown and in tests.
func (e *TranslationEngine) Wait() {
	e.wg.Wait()
	e.store.Wait()
}

// GetStats reports counters plus store totals.
func (e *TranslationEngine) GetStats(ctx context.Context) (*EngineStats, error) {
	out := &EngineStats{Snapshot: e.stats.Snapshot()}
	storeStats, err := e.store.Stats(ctx)
	if err != nil {
		return out, fmt.Errorf("store stats: %w", err)
	}
	out.Store = storeStats
	out.TotalTranslations = storeStats.TotalCount
	out.LanguageCount = storeStats.LanguageCount
	return out, nil
}

// CleanupOldTranslations runs the retention sweep. Zero arguments use the
// defaults of 90 days and usage below 5.
func (e *TranslationEngine) CleanupOldTranslations(ctx context.Context, olderThanDays, usageBelow int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = defaultRetentionDays
	}
	if usageBelow <= 0 {
		usageBelow = defaultRetentionMinUsage
	}
	deleted, err := e.store.PurgeStale(ctx, olderThanDays, usageBelow)
	if err != nil {
		return 0, fmt.Errorf("purge stale translations: %w", err)
	}
	infoLog("Retention sweep removed %d translations (older than %d days, usage < %d)", deleted, olderThanDays, usageBelow)
	return deleted, nil
}

// ResetStats zeroes the process counters.
func (e *TranslationEngine) ResetStats() {
	e.stats.Reset()
}

// splitSegments splits a batch response and trims each segment.
func splitSegments(response, delimiter string) []string {
	parts := strings.Split(response, delimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// splitSpace separates surrounding whitespace so lookups use the trimmed text
// while callers get their padding back.
func splitSpace(text string) (lead, core, trail string) {
	start := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 {
		return text, "", ""
	}
	end := strings.LastIndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) })
	_, size := utf8.DecodeRuneInString(text[end:])
	end += size
	return text[:start], text[start:end], text[end:]
}

// rewrap puts the original padding of text around translated.
func rewrap(text, translated string) string {
	lead, _, trail := splitSpace(text)
	return lead + translated + trail
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
