package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is a bounded in-process LRU whose entries expire after a TTL.
type Memory struct {
	lru *expirable.LRU[string, string]
}

// NewMemory creates an LRU holding at most size entries for ttl each.
func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key, value string) {
	m.lru.Add(key, value)
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.lru.Purge()
}
