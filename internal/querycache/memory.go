package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

// entry is a cached payload with its creation time
type entry struct {
	results   []types.CourseResult
	createdAt time.Time
}

// MemoryStore is an in-process LRU store with per-entry ttl.
// Expired entries are reaped lazily by Get or pushed out by eviction.
type MemoryStore struct {
	mu       sync.Mutex
	cache    *lru.Cache[Key, *entry]
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a store holding at most capacity entries for ttl each
func NewMemoryStore(capacity int, ttl time.Duration, opts ...MemoryOption) (*MemoryStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	cache, err := lru.New[Key, *entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	s := &MemoryStore{
		cache:    cache,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns a copy of the cached results and marks the entry most recently used.
// An entry whose age has reached the ttl is removed and reported absent.
func (s *MemoryStore) Get(ctx context.Context, key Key) ([]types.CourseResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}

	if s.expired(e, s.now()) {
		s.cache.Remove(key)
		return nil, false, nil
	}

	return types.CopyResults(e.results), true, nil
}

// Put stores a copy of results. Overwriting refreshes payload, recency and
// creation time. At capacity the least recently used entry is evicted.
func (s *MemoryStore) Put(ctx context.Context, key Key, results []types.CourseResult) error {
	e := &entry{
		results: types.CopyResults(results),
	}
	if e.results == nil {
		e.results = []types.CourseResult{}
	}

	s.mu.Lock()
	e.createdAt = s.now()
	s.cache.Add(key, e)
	s.mu.Unlock()

	return nil
}

// Clear removes all entries
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

// Stats counts resident entries, including expired ones not yet reaped.
// It does not change recency.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := Stats{
		Total:    s.cache.Len(),
		Capacity: s.capacity,
		TTL:      s.ttl,
	}
	for _, key := range s.cache.Keys() {
		if e, ok := s.cache.Peek(key); ok && s.expired(e, now) {
			stats.Expired++
		}
	}
	stats.Active = stats.Total - stats.Expired

	return stats, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return now.Sub(e.createdAt) >= s.ttl
}
