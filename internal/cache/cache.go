// Package cache memoises premium calculations. The premium formula is a pure
// function of its inputs, so cached entries never need invalidation beyond an
// optional TTL.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a MemoryCache built without WithMaxEntries.
const DefaultMaxEntries = 10000

// Cache stores string values by key. Get reports a miss with ok == false and a
// nil error; a non-nil error means the backend could not be consulted.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a process-local Cache guarded by a RWMutex. Entries expire
// after the configured TTL and the number of entries is capped.
type MemoryCache struct {
	mu         sync.RWMutex
	data       map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithTTL expires entries after ttl. Zero keeps entries until evicted.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryCache) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMaxEntries caps the number of stored entries.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryCache) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCache) {
		m.now = now
	}
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	m := &MemoryCache{
		data:       make(map[string]memoryEntry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || m.expired(entry, m.now()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string) error {
	now := m.now()
	entry := memoryEntry{value: value}
	if m.ttl > 0 {
		entry.expiresAt = now.Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.data[key] = entry
	return nil
}

// evictLocked drops expired entries, and one arbitrary entry if that frees nothing.
func (m *MemoryCache) evictLocked(now time.Time) {
	for k, e := range m.data {
		if m.expired(e, now) {
			delete(m.data, k)
		}
	}
	if len(m.data) < m.maxEntries {
		return
	}
	for k := range m.data {
		delete(m.data, k)
		return
	}
}

func (m *MemoryCache) expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Len reports the number of stored entries, expired ones included until evicted.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
