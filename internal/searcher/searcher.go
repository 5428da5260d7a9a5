package searcher

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/catalogsearch-mcp/internal/log"
	"github.com/dshills/catalogsearch-mcp/internal/querycache"
	"github.com/dshills/catalogsearch-mcp/internal/ranking"
	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

const (
	DefaultMinQueryLength      = 1
	DefaultMinCacheQueryLength = 2
	DefaultLimit               = 50
	DefaultMaxLimit            = 100
	DefaultBackendTimeout      = 30 * time.Second
)

// Backend is the expensive catalog search the cache sits in front of.
// A limit <= 0 asks for every match.
type Backend interface {
	SearchCourses(ctx context.Context, universityID int64, query string, facultyCode *string, limit int) ([]types.CourseResult, error)
}

// Config tunes request validation and cache participation
type Config struct {
	// MinQueryLength rejects shorter normalized queries with ErrInvalidQuery
	MinQueryLength int
	// MinCacheQueryLength sends shorter normalized queries straight to the backend
	MinCacheQueryLength int
	// DefaultLimit applies when a request has no positive limit
	DefaultLimit int
	// MaxLimit caps request limits
	MaxLimit int
	// RankCandidateLimit bounds the backend rows fetched for a ranked
	// lookup; 0 fetches every match so truncation happens after ranking
	RankCandidateLimit int
	// BackendTimeout bounds a shared backing lookup. It runs detached from
	// any single caller's cancellation; 0 means no bound.
	BackendTimeout time.Duration
}

// DefaultConfig returns the searcher defaults
func DefaultConfig() Config {
	return Config{
		MinQueryLength:      DefaultMinQueryLength,
		MinCacheQueryLength: DefaultMinCacheQueryLength,
		DefaultLimit:        DefaultLimit,
		MaxLimit:            DefaultMaxLimit,
		BackendTimeout:      DefaultBackendTimeout,
	}
}

// SearchRequest contains parameters for a course search
type SearchRequest struct {
	UniversityID int64
	Query        string
	FacultyCode  *string // nil means no faculty filter
	Limit        int
	Rank         bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results  []types.CourseResult
	CacheHit bool // answered from the cache
	Cached   bool // went through the cache rather than bypassing it
	Ranked   bool
	Duration time.Duration
}

// Option configures a Searcher
type Option func(*Searcher)

// WithStore puts a query cache in front of the backend
func WithStore(store querycache.Store) Option {
	return func(s *Searcher) {
		s.store = store
	}
}

// WithConfig overrides the default Config. Non-positive fields keep their
// defaults, except RankCandidateLimit where 0 means unbounded.
func WithConfig(cfg Config) Option {
	return func(s *Searcher) {
		if cfg.MinQueryLength > 0 {
			s.cfg.MinQueryLength = cfg.MinQueryLength
		}
		if cfg.MinCacheQueryLength > 0 {
			s.cfg.MinCacheQueryLength = cfg.MinCacheQueryLength
		}
		if cfg.DefaultLimit > 0 {
			s.cfg.DefaultLimit = cfg.DefaultLimit
		}
		if cfg.MaxLimit > 0 {
			s.cfg.MaxLimit = cfg.MaxLimit
		}
		if cfg.RankCandidateLimit >= 0 {
			s.cfg.RankCandidateLimit = cfg.RankCandidateLimit
		}
		if cfg.BackendTimeout > 0 {
			s.cfg.BackendTimeout = cfg.BackendTimeout
		}
	}
}

// WithMetrics records cache and backend metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// Searcher coordinates the query cache, the backing search and ranking
type Searcher struct {
	backend Backend
	store   querycache.Store // nil disables caching
	cfg     Config
	metrics *Metrics
	group   singleflight.Group
}

// New creates a Searcher over backend
func New(backend Backend, opts ...Option) *Searcher {
	s := &Searcher{
		backend: backend,
		cfg:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.DefaultLimit > s.cfg.MaxLimit {
		s.cfg.DefaultLimit = s.cfg.MaxLimit
	}
	return s
}

// Config returns the effective configuration
func (s *Searcher) Config() Config {
	return s.cfg
}

// Search answers a course lookup, from the cache when possible
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.backend == nil {
		return nil, fmt.Errorf("backend not initialized")
	}

	query := querycache.NormalizeQuery(req.Query)
	queryLen := utf8.RuneCountInString(query)
	if queryLen < s.cfg.MinQueryLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", types.ErrInvalidQuery, s.cfg.MinQueryLength)
	}
	limit := s.resolveLimit(req.Limit)

	response := &SearchResponse{Ranked: req.Rank}

	if s.store == nil || queryLen < s.cfg.MinCacheQueryLength {
		s.metrics.bypass()
		results, err := s.lookup(ctx, req.UniversityID, query, req.FacultyCode, limit, req.Rank)
		if err != nil {
			return nil, err
		}
		response.Results = results
		response.Duration = time.Since(startTime)
		return response, nil
	}

	response.Cached = true
	key := querycache.BuildKey(querycache.KeyParams{
		Scope:  req.UniversityID,
		Query:  query,
		Filter: req.FacultyCode,
		Limit:  limit,
		Ranked: req.Rank,
	})

	if cached, ok := s.cacheGet(ctx, key); ok {
		s.metrics.hit()
		logger := log.Ctx(ctx)
		logger.Debug().
			Str(log.FieldCacheKey, key.String()).
			Int(log.FieldResults, len(cached)).
			Msg("cache hit")
		response.Results = cached
		response.CacheHit = true
		response.Duration = time.Since(startTime)
		return response, nil
	}
	s.metrics.miss()

	// Concurrent misses on one key share a single backend call. The call
	// is detached from the caller that starts it, so one caller giving up
	// does not fail the others; each caller stops waiting on its own ctx.
	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		lookupCtx, cancel := s.detach(ctx)
		defer cancel()
		results, err := s.lookup(lookupCtx, req.UniversityID, query, req.FacultyCode, limit, req.Rank)
		if err != nil {
			return nil, err
		}
		s.cachePut(lookupCtx, key, results)
		return results, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	results, ok := res.Val.([]types.CourseResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	response.Results = types.CopyResults(results)
	response.Duration = time.Since(startTime)
	return response, nil
}

// CacheStats reports query cache occupancy; zero when caching is disabled
func (s *Searcher) CacheStats(ctx context.Context) (querycache.Stats, error) {
	if s.store == nil {
		return querycache.Stats{}, nil
	}
	return s.store.Stats(ctx)
}

// ClearCache drops every cached lookup
func (s *Searcher) ClearCache(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logger := log.Ctx(ctx)
	logger.Info().Msg("query cache cleared")
	return nil
}

// CachingEnabled reports whether a store is configured
func (s *Searcher) CachingEnabled() bool {
	return s.store != nil
}

// detach returns a context that keeps ctx's values (logger) but not its
// cancellation, bounded by BackendTimeout when set
func (s *Searcher) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.cfg.BackendTimeout > 0 {
		return context.WithTimeout(detached, s.cfg.BackendTimeout)
	}
	return detached, func() {}
}

func (s *Searcher) resolveLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

// lookup runs the backing search then ranks and truncates to limit.
// The returned slice is never nil.
func (s *Searcher) lookup(ctx context.Context, universityID int64, query string, facultyCode *string, limit int, rank bool) ([]types.CourseResult, error) {
	candidates := limit
	if rank {
		candidates = s.cfg.RankCandidateLimit
		if candidates > 0 && candidates < limit {
			candidates = limit
		}
	}

	start := time.Now()
	results, err := s.backend.SearchCourses(ctx, universityID, query, facultyCode, candidates)
	s.metrics.backing(time.Since(start), err)
	if err != nil {
		logger := log.Ctx(ctx)
		logger.Error().Err(err).
			Int64(log.FieldUniversityID, universityID).
			Str(log.FieldQuery, query).
			Msg("backing search failed")
		return nil, fmt.Errorf("%w: %w", types.ErrBackingSearch, err)
	}

	if rank {
		results = ranking.Rank(results, query, limit)
	} else {
		if len(results) > limit {
			results = results[:limit]
		}
		results = types.CopyResults(results)
	}
	if results == nil {
		results = make([]types.CourseResult, 0)
	}
	return results, nil
}

// cacheGet reads from the store. Faults of any kind count as a miss.
func (s *Searcher) cacheGet(ctx context.Context, key querycache.Key) (results []types.CourseResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.cacheFault(ctx, "get", key, fmt.Errorf("panic: %v", r))
			results, ok = nil, false
		}
	}()

	results, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.cacheFault(ctx, "get", key, err)
		return nil, false
	}
	return results, ok
}

// cachePut stores results. Faults are logged and otherwise ignored.
func (s *Searcher) cachePut(ctx context.Context, key querycache.Key, results []types.CourseResult) {
	defer func() {
		if r := recover(); r != nil {
			s.cacheFault(ctx, "put", key, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.store.Put(ctx, key, results); err != nil {
		s.cacheFault(ctx, "put", key, err)
	}
}

func (s *Searcher) cacheFault(ctx context.Context, op string, key querycache.Key, err error) {
	s.metrics.cacheError(op)
	logger := log.Ctx(ctx)
	evt := logger.Warn()
	if errors.Is(err, querycache.ErrCorruptEntry) {
		evt = logger.Info()
	}
	evt.Err(err).
		Str(log.FieldCacheOp, op).
		Str(log.FieldCacheKey, key.String()).
		Msg("query cache fault, continuing without cache")
}
