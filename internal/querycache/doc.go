// Package querycache holds catalog search results keyed by query identity.
//
// A Key is a sha256 fingerprint of the parameters that decide what a lookup
// returns: university scope, normalized query text, optional faculty filter,
// result limit and whether ranking was applied. Two lookups share an entry
// only when all of those agree.
//
// Two Store implementations exist:
//   - MemoryStore: bounded LRU with per-entry TTL and lazy expiry on read
//   - RedisStore: shared Redis keyspace with server-side expiry
//
// # Basic Usage
//
//	store, err := querycache.NewMemoryStore(1000, 5*time.Minute)
//	if err != nil {
//	    return err
//	}
//
//	key := querycache.BuildKey(querycache.KeyParams{
//	    Scope: universityID,
//	    Query: "cmput",
//	    Limit: 50,
//	})
//
//	if results, ok, _ := store.Get(ctx, key); ok {
//	    return results
//	}
//
// Stores never own caller slices: Put stores a copy and Get returns a copy.
package querycache
