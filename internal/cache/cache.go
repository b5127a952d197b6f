// Package cache provides the hot translation cache tiers that sit in front of
// the translation store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cache is a best-effort key/value tier. Implementations never fail loudly:
// an unreachable tier behaves like a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Key builds the cache key for a text and language pair.
func Key(text, sourceLang, targetLang string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return "tr:" + sourceLang + ":" + targetLang + ":" + hex.EncodeToString(hash[:])
}

// Tiered reads tiers in order and back-fills faster tiers on a hit.
// Writes go to every tier.
type Tiered []Cache

// NewTiered skips nil tiers so optional layers can be passed unconditionally.
func NewTiered(tiers ...Cache) Tiered {
	t := make(Tiered, 0, len(tiers))
	for _, c := range tiers {
		if c != nil {
			t = append(t, c)
		}
	}
	return t
}

func (t Tiered) Get(ctx context.Context, key string) (string, bool) {
	for i, c := range t {
		if v, ok := c.Get(ctx, key); ok {
			for j := 0; j < i; j++ {
				t[j].Set(ctx, key, v)
			}
			return v, true
		}
	}
	return "", false
}

func (t Tiered) Set(ctx context.Context, key, value string) {
	for _, c := range t {
		c.Set(ctx, key, value)
	}
}
