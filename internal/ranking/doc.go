// Package ranking orders catalog search results by relevance to a query.
//
// Each result is placed in a MatchTier (exact code, code prefix, name prefix,
// partial) and results are sorted by tier, then code, then name. The order
// depends only on the set of inputs, never on the order the backing store
// returned them in. Truncation to a limit happens after sorting.
package ranking
