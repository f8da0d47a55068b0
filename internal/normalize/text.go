package normalize

import (
	"strings"
)

// separators replaced by a space before tokenizing
var separators = strings.NewReplacer(",", " ", ".", " ")

// Clean replaces commas and periods with spaces and collapses runs of
// whitespace into a single space
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(separators.Replace(raw)), " ")
}

// SplitSpaces splits on single spaces, keeping empty pieces between
// consecutive spaces
func SplitSpaces(s string) []string {
	return strings.Split(s, " ")
}

// Tokens cleans the value and returns its space-separated tokens
func Tokens(raw string) []string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return []string{}
	}
	return SplitSpaces(cleaned)
}

// RemoveWords cleans the value and drops every token found in the set
func RemoveWords(raw string, words *WordSet) string {
	tokens := Tokens(raw)
	kept := tokens[:0]
	for _, token := range tokens {
		if words != nil && words.Contains(token) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
