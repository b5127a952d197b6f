package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// TranslationRecord stores one cached machine translation of a UI string.
//
// Records are logically unique per (source language, target language, source text).
// LookupKey carries that identity as hash:src:tgt so the database can enforce it
// with a single unique index; a record written after an unresolvable write conflict
// gets a "#suffix" appended to its LookupKey instead of being dropped.
//
// PageKey/ElementKey are optional locality hints: the same UI slot can be served
// from cache even if its source text changed slightly between deployments.
type TranslationRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	LookupKey      string    `gorm:"uniqueIndex;not null;size:200" json:"lookup_key"`
	ContentHash    string    `gorm:"index;size:64" json:"content_hash"` // SHA256 hex of trimmed SourceText
	SourceText     string    `gorm:"not null" json:"source_text"`
	TranslatedText string    `gorm:"not null" json:"translated_text"`
	SourceLanguage string    `gorm:"not null;size:10;index:idx_translation_pair" json:"source_language"`
	TargetLanguage string    `gorm:"not null;size:10;index:idx_translation_pair;index:idx_translation_location" json:"target_language"`
	PageKey        *string   `gorm:"size:200;index:idx_translation_location" json:"page_key"`
	ElementKey     *string   `gorm:"size:300;index:idx_translation_location" json:"element_key"`
	UsageCount     int       `gorm:"default:1" json:"usage_count"`
	LastUsed       time.Time `gorm:"index" json:"last_used"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (TranslationRecord) TableName() string {
	return "translation_records"
}

// IsValid reports whether the record can be served. Empty translations and
// translations identical to the source are leftovers of failed backend calls.
func (r *TranslationRecord) IsValid() bool {
	if r == nil {
		return false
	}
	return IsUsableTranslation(r.SourceText, r.TranslatedText)
}

// IsUsableTranslation reports whether translated is a non-empty result that
// differs from source.
func IsUsableTranslation(source, translated string) bool {
	t := strings.TrimSpace(translated)
	if t == "" {
		return false
	}
	return t != strings.TrimSpace(source)
}

// ContentHash creates a SHA256 hash of the trimmed text for efficient lookups
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(hash[:])
}

// LookupKey builds the canonical uniqueness key for a language pair.
func LookupKey(contentHash, sourceLang, targetLang string) string {
	return contentHash + ":" + sourceLang + ":" + targetLang
}

// StringPtr returns nil for empty strings so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
