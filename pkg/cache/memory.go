package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// MemoryStore is the in-process Store backend.
// Entries are spread over independently locked shards so unrelated keys do
// not contend. Expired entries are removed lazily on read and by Sweep.
type MemoryStore struct {
	shards [shardCount]*memoryShard
	size   atomic.Int64
	now    func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string]*Entry)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Get returns the payload for key if present and not expired.
// A stale entry is removed before returning a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool) {
	sh := s.shard(key)

	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, false
	}

	if entry.ExpiredAt(s.now()) {
		sh.mu.Lock()
		// Only drop the entry we saw; a concurrent Set may have replaced it.
		if sh.entries[key] == entry {
			delete(sh.entries, key)
			s.size.Add(-1)
			CacheEvictions.WithLabelValues(BackendMemory).Inc()
		}
		sh.mu.Unlock()
		s.reportSize()

		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(BackendMemory).Inc()
	return entry.payload(), true
}

// Set stores value under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	entry := newEntry(value, s.now(), ttl)
	sh := s.shard(key)

	sh.mu.Lock()
	if _, exists := sh.entries[key]; !exists {
		s.size.Add(1)
	}
	sh.entries[key] = entry
	sh.mu.Unlock()

	s.reportSize()
}

// Delete removes key. Missing keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, key string) {
	sh := s.shard(key)

	sh.mu.Lock()
	if _, exists := sh.entries[key]; exists {
		delete(sh.entries, key)
		s.size.Add(-1)
	}
	sh.mu.Unlock()

	s.reportSize()
}

// Clear removes every entry.
func (s *MemoryStore) Clear(_ context.Context) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		s.size.Add(-int64(len(sh.entries)))
		sh.entries = make(map[string]*Entry)
		sh.mu.Unlock()
	}
	s.reportSize()
}

// Sweep removes all expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if entry.ExpiredAt(now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	if removed > 0 {
		s.size.Add(-int64(removed))
		CacheEvictions.WithLabelValues(BackendMemory).Add(float64(removed))
		s.reportSize()
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of stored entries, including expired entries not yet swept.
func (s *MemoryStore) Len() int {
	return int(s.size.Load())
}

// Backend implements Store.
func (s *MemoryStore) Backend() string {
	return BackendMemory
}

// Close implements Store. The in-process backend holds no external resources.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) reportSize() {
	CacheEntries.WithLabelValues(BackendMemory).Set(float64(s.size.Load()))
}
