package dataset

import "strings"

// Document is a decoded dataset record
type Document = map[string]any

// SplitPath splits a dotted field name into its segments
func SplitPath(name string) []string {
	return strings.Split(name, ".")
}

// Lookup resolves a dotted path strictly: every intermediate segment must be
// a nested document.
func Lookup(doc Document, name string) (any, bool) {
	var cur any = doc
	for _, part := range SplitPath(name) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// IsEmpty reports whether a value counts as empty: missing, null or the
// literal "null" sentinel.
func IsEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "null" {
		return true
	}
	return false
}
