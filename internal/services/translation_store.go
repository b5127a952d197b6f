package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

// ErrStoreUnavailable is returned by writes when no database is configured.
var ErrStoreUnavailable = errors.New("translation store unavailable")

const (
	// usageUpdateTimeout bounds fire-and-forget usage bumps
	usageUpdateTimeout = 5 * time.Second
	// exactLookupLimit bounds rows inspected when several records share a text
	exactLookupLimit = 5
	// topUsedLimit is the number of records reported by Stats
	topUsedLimit = 10
)

// UpsertOutcome describes which write path Upsert took.
type UpsertOutcome int

const (
	UpsertRejected UpsertOutcome = iota
	UpsertInserted
	UpsertUpdatedExisting
	UpsertConflictRetried
	UpsertDisambiguated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdatedExisting:
		return "updated_existing"
	case UpsertConflictRetried:
		return "conflict_retried"
	case UpsertDisambiguated:
		return "disambiguated"
	default:
		return "rejected"
	}
}

// UpsertParams describes one translation to persist.
type UpsertParams struct {
	SourceText     string
	TranslatedText string
	SourceLanguage string
	TargetLanguage string
	PageKey        string
	ElementKey     string

	// ExistingID targets a known record, typically an invalid one being healed.
	ExistingID uint
}

// UpsertResult is the outcome of Upsert. Record is nil when rejected.
type UpsertResult struct {
	Outcome UpsertOutcome
	Record  *models.TranslationRecord
}

// PairCount is the number of records for one language pair.
type PairCount struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Count          int64  `json:"count"`
}

// PageCount is the number of records attached to one page.
type PageCount struct {
	PageKey string `json:"page_key"`
	Count   int64  `json:"count"`
}

// StoreStats is the aggregate report of the translation store.
type StoreStats struct {
	TotalCount    int64                      `json:"total_count"`
	LanguageCount int                        `json:"language_count"`
	PairCounts    []PairCount                `json:"pair_counts"`
	PageCounts    []PageCount                `json:"page_counts"`
	TopUsed       []models.TranslationRecord `json:"top_used"`
}

// TranslationStore is the durable translation cache backed by GORM.
// A nil database turns every read into a miss and every write into ErrStoreUnavailable.
type TranslationStore struct {
	db  *gorm.DB
	now func() time.Time
	wg  sync.WaitGroup
}

// NewTranslationStore creates a store over db.
func NewTranslationStore(db *gorm.DB) *TranslationStore {
	return &TranslationStore{db: db, now: time.Now}
}

// Available reports whether a database is attached.
func (s *TranslationStore) Available() bool {
	return s != nil && s.db != nil
}

// FindExact returns the record for text in the language pair, matched by
// lookup key, exact source text or content hash. Valid records win over
// invalid ones when several match.
func (s *TranslationStore) FindExact(ctx context.Context, text, sourceLang, targetLang string) *models.TranslationRecord {
	if !s.Available() {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	hash := models.ContentHash(trimmed)

	var records []models.TranslationRecord
	err := s.db.WithContext(ctx).
		Where("source_language = ? AND target_language = ?", sourceLang, targetLang).
		Where("lookup_key = ? OR source_text = ? OR content_hash = ?",
			models.LookupKey(hash, sourceLang, targetLang), trimmed, hash).
		Order("id ASC").
		Limit(exactLookupLimit).
		Find(&records).Error
	if err != nil {
		errorLog("Store lookup failed for %q: %v", truncateText(trimmed, 50), err)
		return nil
	}
	return pickRecord(records)
}

// FindSimilar is a case-insensitive exact match. Only valid records are returned
// since the result is served as a fallback.
func (s *TranslationStore) FindSimilar(ctx context.Context, text, sourceLang, targetLang string) *models.TranslationRecord {
	if !s.Available() {
		return nil
	}
	trimmed := strings.TrimSpace(text)

	var records []models.TranslationRecord
	err := s.db.WithContext(ctx).
		Where("source_language = ? AND target_language = ?", sourceLang, targetLang).
		Where("LOWER(source_text) = LOWER(?)", trimmed).
		Order("usage_count DESC, id ASC").
		Limit(exactLookupLimit).
		Find(&records).Error
	if err != nil {
		errorLog("Store similar lookup failed for %q: %v", truncateText(trimmed, 50), err)
		return nil
	}
	for i := range records {
		if records[i].IsValid() {
			return &records[i]
		}
	}
	return nil
}

// FindByLocation returns the most recently updated record for a UI slot,
// regardless of its source text.
func (s *TranslationStore) FindByLocation(ctx context.Context, pageKey, elementKey, targetLang string) *models.TranslationRecord {
	if !s.Available() || pageKey == "" || elementKey == "" {
		return nil
	}

	var record models.TranslationRecord
	err := s.db.WithContext(ctx).
		Where("page_key = ? AND element_key = ? AND target_language = ?", pageKey, elementKey, targetLang).
		Order("updated_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			errorLog("Store location lookup failed for %s/%s: %v", pageKey, elementKey, err)
		}
		return nil
	}
	return &record
}

// FindByPage returns the records attached to pageKey in one query, keyed by
// element key. When several records share a slot the latest update wins.
func (s *TranslationStore) FindByPage(ctx context.Context, pageKey, sourceLang, targetLang string) map[string]models.TranslationRecord {
	out := make(map[string]models.TranslationRecord)
	if !s.Available() || pageKey == "" {
		return out
	}

	var records []models.TranslationRecord
	err := s.db.WithContext(ctx).
		Where("page_key = ? AND source_language = ? AND target_language = ? AND element_key IS NOT NULL",
			pageKey, sourceLang, targetLang).
		Order("updated_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		errorLog("Store page lookup failed for %s: %v", pageKey, err)
		return out
	}
	for _, r := range records {
		out[*r.ElementKey] = r
	}
	return out
}

// Upsert writes a translation without ever failing the caller on a write race.
// An existing record is updated in place; otherwise a conditional insert is
// attempted, a lost insert race turns into an update of the winner, and if that
// update fails too the record is written under a disambiguated key.
func (s *TranslationStore) Upsert(ctx context.Context, p UpsertParams) (UpsertResult, error) {
	p.SourceText = strings.TrimSpace(p.SourceText)
	if p.SourceText == "" || strings.TrimSpace(p.TranslatedText) == "" || p.SourceLanguage == "" || p.TargetLanguage == "" {
		warnLog("Rejected translation write: source=%q target_lang=%q source_lang=%q empty_translation=%v",
			truncateText(p.SourceText, 50), p.TargetLanguage, p.SourceLanguage, strings.TrimSpace(p.TranslatedText) == "")
		return UpsertResult{Outcome: UpsertRejected}, nil
	}
	if !s.Available() {
		return UpsertResult{Outcome: UpsertRejected}, ErrStoreUnavailable
	}

	db := s.db.WithContext(ctx)

	if p.ExistingID != 0 {
		if record, err := s.update(db, p.ExistingID, p); err == nil && record != nil {
			return UpsertResult{Outcome: UpsertUpdatedExisting, Record: record}, nil
		}
	}

	if existing := s.FindExact(ctx, p.SourceText, p.SourceLanguage, p.TargetLanguage); existing != nil {
		record, err := s.update(db, existing.ID, p)
		if err != nil {
			return UpsertResult{Outcome: UpsertRejected}, err
		}
		if record != nil {
			return UpsertResult{Outcome: UpsertUpdatedExisting, Record: record}, nil
		}
	}

	hash := models.ContentHash(p.SourceText)
	key := models.LookupKey(hash, p.SourceLanguage, p.TargetLanguage)
	record := s.newRecord(p, hash, key)

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lookup_key"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return UpsertResult{Outcome: UpsertRejected}, result.Error
	}
	if result.RowsAffected == 1 {
		return UpsertResult{Outcome: UpsertInserted, Record: record}, nil
	}

	// Lost the insert race: update the record that won.
	var winner models.TranslationRecord
	if err := db.Where("lookup_key = ?", key).First(&winner).Error; err == nil {
		if updated, err := s.update(db, winner.ID, p); err == nil && updated != nil {
			debugLog("Resolved write conflict for %q by updating record %d", truncateText(p.SourceText, 30), winner.ID)
			return UpsertResult{Outcome: UpsertConflictRetried, Record: updated}, nil
		}
	}

	record = s.newRecord(p, hash, key+"#"+uuid.NewString())
	if err := db.Create(record).Error; err != nil {
		return UpsertResult{Outcome: UpsertRejected}, err
	}
	infoLog("Stored %q under disambiguated key %s", truncateText(p.SourceText, 30), record.LookupKey)
	return UpsertResult{Outcome: UpsertDisambiguated, Record: record}, nil
}

func (s *TranslationStore) newRecord(p UpsertParams, hash, key string) *models.TranslationRecord {
	now := s.now()
	return &models.TranslationRecord{
		LookupKey:      key,
		ContentHash:    hash,
		SourceText:     p.SourceText,
		TranslatedText: strings.TrimSpace(p.TranslatedText),
		SourceLanguage: p.SourceLanguage,
		TargetLanguage: p.TargetLanguage,
		PageKey:        models.StringPtr(p.PageKey),
		ElementKey:     models.StringPtr(p.ElementKey),
		UsageCount:     1,
		LastUsed:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// update overwrites the translation of record id, bumps its usage and
// backfills its content hash. It returns nil when the record no longer exists.
func (s *TranslationStore) update(db *gorm.DB, id uint, p UpsertParams) (*models.TranslationRecord, error) {
	now := s.now()
	updates := map[string]interface{}{
		"translated_text": strings.TrimSpace(p.TranslatedText),
		"content_hash":    models.ContentHash(p.SourceText),
		"usage_count":     gorm.Expr("usage_count + 1"),
		"last_used":       now,
		"updated_at":      now,
	}
	if p.PageKey != "" {
		updates["page_key"] = p.PageKey
	}
	if p.ElementKey != "" {
		updates["element_key"] = p.ElementKey
	}

	result := db.Model(&models.TranslationRecord{}).Where("id = ?", id).UpdateColumns(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var record models.TranslationRecord
	if err := db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// IncrementUsage bumps usage and refreshes last_used in the background.
func (s *TranslationStore) IncrementUsage(id uint) {
	if id == 0 {
		return
	}
	s.bumpUsage("id = ?", id)
}

// IncrementUsageByKey is IncrementUsage for callers that only know the lookup key.
func (s *TranslationStore) IncrementUsageByKey(lookupKey string) {
	if lookupKey == "" {
		return
	}
	s.bumpUsage("lookup_key = ?", lookupKey)
}

func (s *TranslationStore) bumpUsage(query string, arg interface{}) {
	if !s.Available() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), usageUpdateTimeout)
		defer cancel()

		err := s.db.WithContext(ctx).Model(&models.TranslationRecord{}).Where(query, arg).
			UpdateColumns(map[string]interface{}{
				"usage_count": gorm.Expr("usage_count + 1"),
				"last_used":   s.now(),
			}).Error
		if err != nil {
			debugLog("Usage update failed for %v: %v", arg, err)
		}
	}()
}

// Wait blocks until background usage updates finished.
func (s *TranslationStore) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}

// Stats returns aggregate counts over the store.
func (s *TranslationStore) Stats(ctx context.Context) (*StoreStats, error) {
	out := &StoreStats{
		PairCounts: []PairCount{},
		PageCounts: []PageCount{},
		TopUsed:    []models.TranslationRecord{},
	}
	if !s.Available() {
		return out, nil
	}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.TranslationRecord{}).Count(&out.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.TranslationRecord{}).
		Select("source_language, target_language, COUNT(*) as count").
		Group("source_language, target_language").
		Order("count DESC").
		Scan(&out.PairCounts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.TranslationRecord{}).
		Select("page_key, COUNT(*) as count").
		Where("page_key IS NOT NULL").
		Group("page_key").
		Order("count DESC").
		Scan(&out.PageCounts).Error; err != nil {
		return nil, err
	}
	if err := db.Order("usage_count DESC, id ASC").Limit(topUsedLimit).Find(&out.TopUsed).Error; err != nil {
		return nil, err
	}

	targets := make(map[string]bool)
	for _, pc := range out.PairCounts {
		targets[pc.TargetLanguage] = true
	}
	out.LanguageCount = len(targets)
	return out, nil
}

// PurgeStale deletes records unused for olderThanDays whose usage stayed below usageBelow.
func (s *TranslationStore) PurgeStale(ctx context.Context, olderThanDays, usageBelow int) (int64, error) {
	if !s.Available() {
		return 0, ErrStoreUnavailable
	}
	cutoff := s.now().AddDate(0, 0, -olderThanDays)

	result := s.db.WithContext(ctx).
		Where("last_used < ? AND usage_count < ?", cutoff, usageBelow).
		Delete(&models.TranslationRecord{})
	if result.Error != nil {
		return 0, result.Error
	}

	metrics.TranslationRecordsPurged.Add(float64(result.RowsAffected))
	metrics.UpdateTranslationMetrics(s.db)
	return result.RowsAffected, nil
}

// pickRecord prefers the first valid record, then the first record at all.
func pickRecord(records []models.TranslationRecord) *models.TranslationRecord {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].IsValid() {
			return &records[i]
		}
	}
	return &records[0]
}
