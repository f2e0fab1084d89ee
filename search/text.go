package search

import "strings"

// containsFold reports whether s contains substr under Unicode case
// folding.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// equalFold reports whether two names match ignoring case and
// surrounding whitespace.
func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
