// Package types provides shared type definitions for the catalog search server.
//
// # Course Results
//
// CourseResult is the unit returned by the backing catalog search and stored
// in the query cache. It carries only what a lookup needs to render a match:
//
//	result := types.CourseResult{
//	    ID:   42,
//	    Code: "CMPUT101",
//	    Name: "Introduction to Computing",
//	}
//
// # Match Tiers
//
// MatchTier classifies how well a result matches a query. Lower tiers are more
// relevant and sort first:
//
//	TierExactCode  < TierCodePrefix < TierNamePrefix < TierPartial
//
// Tiers are only used while ordering results; cached payloads hold plain
// CourseResult values.
package types
