package storage

import "strings"

// foldFunc is the SQL name of casefold, registered with the driver
const foldFunc = "casefold"

// casefold lower-cases text with Unicode rules. SQLite's LIKE and lower()
// only fold ASCII, so "École" would not match "école" without it.
func casefold(s string) string {
	return strings.ToLower(s)
}
