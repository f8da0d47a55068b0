//go:build !libpostal

package address

import "github.com/rk-analyzer/internal/config"

// NewParser returns the dictionary-driven parser. Build with -tags libpostal
// to parse with libpostal instead.
func NewParser(dict *config.Dictionary, locale string) ComponentParser {
	return NewLexiconParser(dict, locale)
}
