package session

import (
	"context"
	"time"

	"kindlecrm/internal/cache"
	"kindlecrm/internal/core"
)

// Memory is the in-process Store. Sessions expire after ttl of inactivity
// and the least recently used ones are dropped beyond maxEntries.
type Memory struct {
	lru *cache.LRUCache[*core.Upload]
}

var _ Store = (*Memory)(nil)

func NewMemory(maxEntries int, ttl time.Duration, opts ...cache.Option) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts = append([]cache.Option{cache.WithSlidingExpiry()}, opts...)
	return &Memory{lru: cache.NewLRUCache[*core.Upload](maxEntries, ttl, opts...)}
}

func (m *Memory) Get(_ context.Context, id string) (*core.Upload, bool, error) {
	up, ok := m.lru.Get(id)
	return up, ok, nil
}

func (m *Memory) Put(_ context.Context, id string, up *core.Upload) error {
	m.lru.Set(id, up)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.lru.Delete(id)
	return nil
}

// Cleaner exposes the underlying cache to a cache.Manager.
func (m *Memory) Cleaner() cache.Cleaner {
	return m.lru
}

func (m *Memory) Len() int {
	return m.lru.Size()
}
