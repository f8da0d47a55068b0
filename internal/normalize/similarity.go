package normalize

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Similarity returns the normalized Levenshtein similarity of the case-folded
// strings: (maxLen - distance) / maxLen, and 1.0 when both are empty
func Similarity(a, b string) float64 {
	fold := cases.Fold()
	x := fold.String(a)
	y := fold.String(b)

	maxLen := utf8.RuneCountInString(x)
	if n := utf8.RuneCountInString(y); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(x, y)
	return float64(maxLen-dist) / float64(maxLen)
}
