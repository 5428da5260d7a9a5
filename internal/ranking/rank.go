package ranking

import (
	"sort"
	"strings"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

// rankedResult is a result annotated with its tier while sorting
type rankedResult struct {
	result  types.CourseResult
	tier    types.MatchTier
	codeKey string // upper-cased code
	nameKey string // lower-cased name
}

// matcher holds the query forms compared against each result
type matcher struct {
	codeQuery string // upper-cased
	nameQuery string // lower-cased
}

func newMatcher(query string) matcher {
	q := strings.TrimSpace(query)
	return matcher{
		codeQuery: strings.ToUpper(q),
		nameQuery: strings.ToLower(q),
	}
}

func (m matcher) classify(r types.CourseResult) types.MatchTier {
	// Malformed records never outrank well-formed ones
	if r.Code == "" || r.Name == "" || m.codeQuery == "" {
		return types.TierPartial
	}

	code := strings.ToUpper(r.Code)
	switch {
	case code == m.codeQuery:
		return types.TierExactCode
	case strings.HasPrefix(code, m.codeQuery):
		return types.TierCodePrefix
	case strings.HasPrefix(strings.ToLower(r.Name), m.nameQuery):
		return types.TierNamePrefix
	default:
		return types.TierPartial
	}
}

// Classify returns the match tier of a single result for query.
// Comparisons are case-insensitive. A result with an empty code or name is
// always TierPartial.
func Classify(r types.CourseResult, query string) types.MatchTier {
	return newMatcher(query).classify(r)
}

// Rank returns results ordered by (tier, code, name) and truncated to limit.
// A limit <= 0 keeps every result. The input slice is not modified.
func Rank(results []types.CourseResult, query string, limit int) []types.CourseResult {
	m := newMatcher(query)

	ranked := make([]rankedResult, len(results))
	for i, r := range results {
		ranked[i] = rankedResult{
			result:  r,
			tier:    m.classify(r),
			codeKey: strings.ToUpper(r.Code),
			nameKey: strings.ToLower(r.Name),
		}
	}

	sortRankedResults(ranked)

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	out := make([]types.CourseResult, len(ranked))
	for i, rr := range ranked {
		out[i] = rr.result
	}
	return out
}

// sortRankedResults sorts by tier, then code and name compared without
// case, then the raw code, name and ID so that equal inputs always produce
// equal output
func sortRankedResults(results []rankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.codeKey != b.codeKey {
			return a.codeKey < b.codeKey
		}
		if a.nameKey != b.nameKey {
			return a.nameKey < b.nameKey
		}
		if a.result.Code != b.result.Code {
			return a.result.Code < b.result.Code
		}
		if a.result.Name != b.result.Name {
			return a.result.Name < b.result.Name
		}
		return a.result.ID < b.result.ID
	})
}
