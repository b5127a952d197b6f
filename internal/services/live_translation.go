package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/cache"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

const defaultLiveFlushTimeout = 5 * time.Minute

// SessionState is the lifecycle of one live-translated response.
type SessionState int32

const (
	// StateOriginalServed: the response goes out in the source language.
	StateOriginalServed SessionState = iota
	// StateCollecting: untranslated strings are being gathered.
	StateCollecting
	// StateBackgroundTranslating: the gathered strings are being translated after the response.
	StateBackgroundTranslating
	// StateCachePopulated: results are stored. Terminal.
	StateCachePopulated
)

func (s SessionState) String() string {
	switch s {
	case StateOriginalServed:
		return "ORIGINAL_SERVED"
	case StateCollecting:
		return "COLLECTING_UNTRANSLATED"
	case StateBackgroundTranslating:
		return "BACKGROUND_TRANSLATING"
	case StateCachePopulated:
		return "CACHE_POPULATED"
	}
	return fmt.Sprintf("SessionState(%d)", int32(s))
}

// LiveTranslator serves whatever is already translated in memory and
// translates the rest after the response went out, so the next request for
// the same content is served translated.
type LiveTranslator struct {
	engine  *TranslationEngine
	memory  cache.Cache
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewLiveTranslator creates a live translator. memory is the in-process map
// consulted while rendering; flushTimeout bounds each background batch.
func NewLiveTranslator(engine *TranslationEngine, memory cache.Cache, flushTimeout time.Duration) *LiveTranslator {
	if flushTimeout <= 0 {
		flushTimeout = defaultLiveFlushTimeout
	}
	return &LiveTranslator{engine: engine, memory: memory, timeout: flushTimeout}
}

// PageSession tracks the strings of one response.
type PageSession struct {
	ID             string
	PageKey        string
	SourceLanguage string
	TargetLanguage string

	lt      *LiveTranslator
	mu      sync.Mutex
	state   SessionState
	pending []string
	seen    map[string]bool
	done    chan struct{}
}

// NewSession starts a session in ORIGINAL_SERVED.
func (lt *LiveTranslator) NewSession(pageKey, sourceLang, targetLang string) *PageSession {
	return &PageSession{
		ID:             uuid.NewString(),
		PageKey:        pageKey,
		SourceLanguage: NormalizeLanguageCode(sourceLang),
		TargetLanguage: NormalizeLanguageCode(targetLang),
		lt:             lt,
		seen:           make(map[string]bool),
		done:           make(chan struct{}),
	}
}

// Text returns the translation of text if one is in memory. Otherwise it
// queues text for background translation and returns it unchanged.
func (s *PageSession) Text(ctx context.Context, text string) string {
	lead, core, trail := splitSpace(text)
	if core == "" || s.SourceLanguage == "" || s.TargetLanguage == "" || s.SourceLanguage == s.TargetLanguage {
		return text
	}

	if s.lt.memory != nil {
		if v, ok := s.lt.memory.Get(ctx, cache.Key(core, s.SourceLanguage, s.TargetLanguage)); ok && models.IsUsableTranslation(core, v) {
			return lead + v + trail
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state > StateCollecting {
		return text
	}
	s.state = StateCollecting
	if !s.seen[core] {
		s.seen[core] = true
		s.pending = append(s.pending, core)
	}
	return text
}

// State returns the current state.
func (s *PageSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the strings collected so far.
func (s *PageSession) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.pending...)
}

// Done is closed once the session reached CACHE_POPULATED.
func (s *PageSession) Done() <-chan struct{} {
	return s.done
}

// Flush starts background translation of the collected strings. Call it after
// the response was written. It never blocks and later calls are no-ops.
func (s *PageSession) Flush() {
	s.mu.Lock()
	if s.state > StateCollecting {
		s.mu.Unlock()
		return
	}
	pending := s.pending
	if len(pending) == 0 {
		s.state = StateCachePopulated
		s.mu.Unlock()
		close(s.done)
		return
	}
	s.state = StateBackgroundTranslating
	s.mu.Unlock()

	s.lt.wg.Add(1)
	go s.translate(pending)
}

func (s *PageSession) translate(texts []string) {
	defer s.lt.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			errorLog("Live translation %s panicked: %v", s.ID, r)
		}
		s.mu.Lock()
		s.state = StateCachePopulated
		s.mu.Unlock()
		close(s.done)
	}()

	// Detached from the request: it has already been served.
	ctx, cancel := context.WithTimeout(context.Background(), s.lt.timeout)
	defer cancel()

	results, err := s.lt.engine.TranslateBatch(ctx, texts, s.SourceLanguage, s.TargetLanguage, s.PageKey)
	if err != nil {
		errorLog("Live translation %s failed: %v", s.ID, err)
		return
	}

	stored := 0
	for i, text := range texts {
		if !models.IsUsableTranslation(text, results[i]) {
			continue
		}
		if s.lt.memory != nil {
			s.lt.memory.Set(ctx, cache.Key(text, s.SourceLanguage, s.TargetLanguage), results[i])
		}
		stored++
	}
	debugLog("Live translation %s: %d/%d strings cached for page %q", s.ID, stored, len(texts), s.PageKey)
}

// Wait blocks until every background translation finished.
func (lt *LiveTranslator) Wait() {
	lt.wg.Wait()
	lt.engine.Wait()
}
