package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Key identifies a cached lookup
type Key [sha256.Size]byte

// String returns the lowercase hex form of the key
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// KeyParams lists every parameter that participates in cache identity.
// Filter is nil when no filter was given; a pointer to "" is a distinct filter.
type KeyParams struct {
	Scope  int64
	Query  string
	Filter *string
	Limit  int
	Ranked bool
}

// NormalizeQuery trims surrounding whitespace and lower-cases the query
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// BuildKey computes the cache key for a lookup.
// Fields are serialized in a fixed order and strings are quoted, so no field
// value can spill into its neighbour.
func BuildKey(p KeyParams) Key {
	var data strings.Builder
	data.WriteString("scope=")
	data.WriteString(strconv.FormatInt(p.Scope, 10))
	data.WriteString("|query=")
	data.WriteString(strconv.Quote(NormalizeQuery(p.Query)))
	data.WriteString("|filter=")
	if p.Filter == nil {
		data.WriteString("-")
	} else {
		data.WriteString("+")
		data.WriteString(strconv.Quote(*p.Filter))
	}
	data.WriteString("|limit=")
	data.WriteString(strconv.Itoa(p.Limit))
	data.WriteString("|ranked=")
	data.WriteString(strconv.FormatBool(p.Ranked))

	return sha256.Sum256([]byte(data.String()))
}
