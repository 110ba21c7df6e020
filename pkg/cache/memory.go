package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"beacon-hq/beacon/pkg/payload"
)

// memoryEntry wraps an Entry with bookkeeping for expiry and LRU eviction.
type memoryEntry struct {
	entry          Entry
	expiresAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// MemoryStore is a thread-safe in-memory store with TTL expiry and LRU
// eviction. Entries expire ttl after their last write; when the store reaches
// its capacity, the least recently accessed entry is evicted.
type MemoryStore struct {
	// entries maps metric keys to cached snapshots.
	entries map[string]*memoryEntry

	// ttl is the time-to-live for entries (0 = no expiry).
	ttl time.Duration

	// maxEntries is the capacity (0 = unlimited).
	maxEntries int

	// mu protects concurrent access to entries.
	mu sync.RWMutex

	// stopCh signals the cleanup goroutine to stop.
	stopCh   chan struct{}
	stopOnce sync.Once

	// cleanupInterval is how often to sweep expired entries.
	cleanupInterval time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemoryStore creates a new in-memory store.
// If ttl is 0, entries never expire. If maxEntries is 0, the store is
// unbounded. The expiry sweep interval defaults to ttl/2, floored at
// 10 seconds.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	cleanupInterval := time.Minute
	if ttl > 0 {
		cleanupInterval = ttl / 2
		if cleanupInterval < 10*time.Second {
			cleanupInterval = 10 * time.Second
		}
	}

	s := &MemoryStore{
		entries:         make(map[string]*memoryEntry),
		ttl:             ttl,
		maxEntries:      maxEntries,
		stopCh:          make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	if ttl > 0 {
		go s.sweepExpired()
	}

	return s
}

// Get returns the entry for key, or ErrNotFound if absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	me, ok := s.entries[key]
	if !ok {
		s.mu.RUnlock()
		s.misses.Add(1)
		return nil, ErrNotFound
	}
	if s.ttl > 0 && time.Now().After(me.expiresAt) {
		s.mu.RUnlock()
		s.misses.Add(1)
		return nil, ErrNotFound
	}
	entry := me.entry
	entry.Payload = me.entry.Payload.Clone()
	s.mu.RUnlock()

	// Touch access metadata under the write lock for LRU ordering.
	s.mu.Lock()
	if me, ok := s.entries[key]; ok {
		me.lastAccessedAt = time.Now()
		me.accessCount++
	}
	s.mu.Unlock()

	s.hits.Add(1)
	return &entry, nil
}

// Set writes or overwrites the entry for key.
func (s *MemoryStore) Set(_ context.Context, key string, p *payload.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		if _, exists := s.entries[key]; !exists {
			s.evictLRU()
		}
	}

	now := time.Now()
	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = now.Add(s.ttl)
	}

	s.entries[key] = &memoryEntry{
		entry: Entry{
			Key:      key,
			Payload:  p.Clone(),
			StoredAt: now,
		},
		expiresAt:      expiresAt,
		lastAccessedAt: now,
		accessCount:    1,
	}
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memoryEntry)
	return nil
}

// Stats returns cumulative store statistics.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	entries := len(s.entries)
	s.mu.RUnlock()

	return Stats{
		Entries:   entries,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}, nil
}

// Close stops the background sweep goroutine. The store must not be used
// after Close.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// evictLRU removes the least recently accessed entry.
// Must be called with the write lock held.
func (s *MemoryStore) evictLRU() {
	if len(s.entries) == 0 {
		return
	}

	var oldestKey string
	var oldestTime time.Time
	for key, me := range s.entries {
		if oldestKey == "" || me.lastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = me.lastAccessedAt
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
		s.evictions.Add(1)
	}
}

// sweepExpired periodically removes expired entries until Close is called.
func (s *MemoryStore) sweepExpired() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCh:
			return
		}
	}
}

// removeExpired removes all expired entries.
func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return
	}

	now := time.Now()
	for key, me := range s.entries {
		if now.After(me.expiresAt) {
			delete(s.entries, key)
			s.evictions.Add(1)
		}
	}
}
