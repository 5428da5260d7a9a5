// Package searcher answers course lookups through a query cache in front of
// the backing catalog search, with optional relevance ranking.
//
// # Basic Usage
//
//	store, _ := querycache.NewMemoryStore(1000, 5*time.Minute)
//	s := searcher.New(catalog,
//	    searcher.WithStore(store),
//	    searcher.WithMetrics(searcher.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    UniversityID: uni.ID,
//	    Query:        "cmput",
//	    Limit:        20,
//	    Rank:         true,
//	})
//
// # Lookup Flow
//
// The query is trimmed and lower-cased first. Queries shorter than
// Config.MinQueryLength fail with types.ErrInvalidQuery. Queries shorter than
// Config.MinCacheQueryLength, or any query when no store is configured, go
// straight to the backend without touching the cache.
//
// Otherwise the request fields (university, query, faculty filter, limit and
// ranked flag) are hashed into a querycache.Key. A hit returns the cached
// payload as-is. A miss runs the backend, ranks when asked, truncates to the
// limit and stores the result. Concurrent misses on one key share a single
// backend call.
//
// Ranked lookups fetch Config.RankCandidateLimit rows from the backend (0 means
// all matches) so that truncation happens after ranking.
//
// # Failure Handling
//
// Backend errors are returned wrapped in types.ErrBackingSearch and are
// never cached. Cache faults, including panics inside a store, are logged and
// counted, and the lookup continues as a miss.
package searcher
