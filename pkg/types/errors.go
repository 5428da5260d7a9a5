package types

import "errors"

// Domain errors shared by the searcher and its request layers
var (
	// ErrInvalidQuery is returned when a query is shorter than the minimum length
	ErrInvalidQuery = errors.New("invalid query")
	// ErrBackingSearch wraps any failure of the backing catalog search
	ErrBackingSearch = errors.New("backing search failed")
)
