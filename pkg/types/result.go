package types

// CourseResult is a single catalog match as returned by the backing search.
type CourseResult struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// CopyResults returns an independent copy of results.
// A nil slice stays nil.
func CopyResults(src []CourseResult) []CourseResult {
	if src == nil {
		return nil
	}
	dst := make([]CourseResult, len(src))
	copy(dst, src)
	return dst
}
