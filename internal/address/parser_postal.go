//go:build libpostal

package address

import (
	postal "github.com/openvenues/gopostal/parser"

	"github.com/rk-analyzer/internal/config"
)

// PostalParser parses addresses with libpostal
type PostalParser struct {
	options postal.ParserOptions
}

// NewParser returns the libpostal parser
func NewParser(dict *config.Dictionary, locale string) ComponentParser {
	return PostalParser{options: postal.ParserOptions{Language: locale, Country: "ru"}}
}

func (p PostalParser) Parse(address string) []Component {
	parsed := postal.ParseAddressOptions(address, p.options)
	components := make([]Component, 0, len(parsed))
	for _, c := range parsed {
		components = append(components, Component{Label: c.Label, Value: c.Value})
	}
	return components
}
