package repository

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CacheEntry is one stored value with its expiry bookkeeping
type CacheEntry struct {
	Key        string
	Value      []byte
	TTLSeconds int64
	WrittenAt  time.Time
}

// Expired reports whether the entry has outlived its TTL at now
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.WrittenAt.Add(time.Duration(e.TTLSeconds) * time.Second))
}

// MemoryBackend is an in-process Backend used when no Redis or Postgres
// is configured, and in tests
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]CacheEntry),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expiry
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok || entry.Expired(now) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(entry.Value))
	copy(out, entry.Value)
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = CacheEntry{
		Key:        key,
		Value:      stored,
		TTLSeconds: int64(ttl / time.Second),
		WrittenAt:  m.now(),
	}
	return nil
}

func (m *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	return ok && !entry.Expired(m.now()), nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Close() error { return nil }
