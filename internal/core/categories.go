package core

import "strings"

const (
	Food          = "food"
	Transport     = "transport"
	Shopping      = "shopping"
	Entertainment = "entertainment"
	Other         = "other"

	// Uncategorized labels stored rows that carry no category.
	Uncategorized = "uncategorized"
)

// DefaultCategories is the fixed set offered before any custom category is added.
func DefaultCategories() []string {
	return []string{Food, Transport, Shopping, Entertainment, Other}
}

// NormalizeCategory trims whitespace and collapses inner runs of spaces.
// Case is preserved: labels are shown to the user as typed.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupeCategories normalizes labels, drops empty ones and comment lines,
// and removes duplicates while preserving first-seen order.
func DedupeCategories(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = NormalizeCategory(v)
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
