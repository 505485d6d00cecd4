package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/carparkfinder/backend/internal/domain/providers"
)

// DefaultMemoryEntries bounds the in-process cache when no size is given.
const DefaultMemoryEntries = 10000

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryAdapter implements the CacheProvider interface in process. Entries
// with an expiry live in an LRU and are dropped lazily on access. Entries
// stored without expiry (user state) are pinned outside the LRU and are never
// evicted to make room for cached responses.
type MemoryAdapter struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time

	mu     sync.RWMutex
	pinned map[string][]byte
}

// NewMemoryAdapter creates an in-memory cache holding at most size expiring entries
func NewMemoryAdapter(size int) (*MemoryAdapter, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryAdapter{entries: entries, now: time.Now, pinned: make(map[string][]byte)}, nil
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	value, ok := a.pinned[key]
	a.mu.RUnlock()
	if ok {
		return cloneBytes(value), nil
	}

	entry, ok := a.entries.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	if entry.expired(a.now()) {
		a.entries.Remove(key)
		return nil, providers.ErrCacheMiss
	}
	return cloneBytes(entry.value), nil
}

// Set stores a value in cache with expiration. Zero or negative expiration
// pins the value.
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	if expirationSeconds <= 0 {
		a.mu.Lock()
		a.pinned[key] = cloneBytes(value)
		a.mu.Unlock()
		a.entries.Remove(key)
		return nil
	}

	a.mu.Lock()
	delete(a.pinned, key)
	a.mu.Unlock()
	a.entries.Add(key, memoryEntry{
		value:     cloneBytes(value),
		expiresAt: a.now().Add(time.Duration(expirationSeconds) * time.Second),
	})
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.pinned, key)
	a.mu.Unlock()
	a.entries.Remove(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.RLock()
	_, ok := a.pinned[key]
	a.mu.RUnlock()
	if ok {
		return true, nil
	}

	entry, ok := a.entries.Peek(key)
	if !ok {
		return false, nil
	}
	if entry.expired(a.now()) {
		a.entries.Remove(key)
		return false, nil
	}
	return true, nil
}

// Len reports the number of stored entries, expired and pinned ones included.
func (a *MemoryAdapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entries.Len() + len(a.pinned)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
