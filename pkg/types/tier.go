package types

// MatchTier is the relevance class of a result relative to a query.
// Lower values are more relevant.
type MatchTier int

const (
	TierExactCode  MatchTier = iota // code equals the query
	TierCodePrefix                  // code starts with the query
	TierNamePrefix                  // name starts with the query
	TierPartial                     // substring anywhere, or malformed record
)

// String returns the tier name used in logs and tool output
func (t MatchTier) String() string {
	switch t {
	case TierExactCode:
		return "exact_code"
	case TierCodePrefix:
		return "code_prefix"
	case TierNamePrefix:
		return "name_prefix"
	case TierPartial:
		return "partial"
	default:
		return "unknown"
	}
}
