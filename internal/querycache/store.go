package querycache

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

const (
	// DefaultCapacity is the default maximum number of resident entries
	DefaultCapacity = 1000
	// DefaultTTL is the default entry lifetime
	DefaultTTL = 300 * time.Second
)

var (
	// ErrInvalidCapacity is returned for a non-positive capacity
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
	// ErrInvalidTTL is returned for a non-positive ttl
	ErrInvalidTTL = errors.New("cache ttl must be positive")
	// ErrCorruptEntry is returned when a stored payload cannot be decoded
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// Store is a bounded, expiring mapping from Key to ordered course results.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached results if present and unexpired
	Get(ctx context.Context, key Key) ([]types.CourseResult, bool, error)

	// Put inserts or overwrites an entry and resets its ttl
	Put(ctx context.Context, key Key, results []types.CourseResult) error

	// Clear removes every entry
	Clear(ctx context.Context) error

	// Stats reports occupancy and configuration
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store
	Close() error
}

// Stats describes the current state of a Store
type Stats struct {
	Total    int           `json:"total_entries"`
	Expired  int           `json:"expired_entries"`
	Active   int           `json:"active_entries"`
	Capacity int           `json:"max_size"`
	TTL      time.Duration `json:"-"`
}

// TTLSeconds returns the ttl in whole seconds for display
func (s Stats) TTLSeconds() int64 {
	return int64(s.TTL / time.Second)
}
