package address

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/normalize"
	"github.com/rk-analyzer/internal/store"
)

// minSupport is the share of values that must agree on a role
const minSupport = 0.5

// Component is one labelled piece of a parsed address. Labels follow the
// libpostal names (state, city, suburb, road, house_number, ...).
type Component struct {
	Label string
	Value string
}

// ComponentParser splits a free-text address into labelled components
type ComponentParser interface {
	Parse(address string) []Component
}

// LabelRole maps a parser label onto an address role
func LabelRole(label string) dataset.Role {
	switch label {
	case "state", "state_district":
		return dataset.RoleRegion
	case "city", "suburb", "city_district", "town", "village":
		return dataset.RoleMunicipality
	case "road":
		return dataset.RoleStreet
	case "house_number":
		return dataset.RoleHouseNumber
	}
	return dataset.RoleNone
}

// LexiconParser labels comma-separated parts of an address by the type words
// they contain (область, район, улица, дом, ...). A LexiconParser is not safe
// for concurrent use.
type LexiconParser struct {
	region       *normalize.WordSet
	municipality *normalize.WordSet
	street       *normalize.WordSet
	house        *normalize.WordSet
}

// NewLexiconParser builds a parser from the dictionary type words
func NewLexiconParser(dict *config.Dictionary, locale string) *LexiconParser {
	folder := normalize.NewFolderForLocale(locale)
	return &LexiconParser{
		region:       folder.NewWordSet(dict.RegionTypes),
		municipality: folder.NewWordSet(dict.MunicipalityTypes),
		street:       folder.NewWordSet(dict.StreetTypes),
		house:        folder.NewWordSet(dict.HouseTypes),
	}
}

func (p *LexiconParser) Parse(address string) []Component {
	var components []Component
	for _, part := range strings.Split(address, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if label := p.label(part); label != "" {
			components = append(components, Component{Label: label, Value: part})
		}
	}
	return components
}

func (p *LexiconParser) label(part string) string {
	tokens := normalize.Tokens(part)
	// house words are checked first: "д 5" must not read as a street
	for _, check := range []struct {
		words *normalize.WordSet
		label string
	}{
		{p.house, "house_number"},
		{p.street, "road"},
		{p.municipality, "city"},
		{p.region, "state"},
	} {
		for _, t := range tokens {
			if check.words.Contains(t) {
				return check.label
			}
		}
	}
	if len(tokens) > 0 && startsWithDigit(tokens[0]) {
		return "house_number"
	}
	return ""
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}

// Suggestion proposes a role for an undeclared field
type Suggestion struct {
	Field   string         `json:"field"`
	Role    dataset.Role   `json:"-"`
	RoleTag string         `json:"role"`
	Support dataset.Metric `json:"support"`
}

// SuggestRoles parses the values of every string field without a role and
// proposes the role most values agree on
func SuggestRoles(ctx context.Context, q store.Query, pop store.Population, fields []dataset.FieldDefinition, parser ComponentParser) ([]Suggestion, error) {
	var suggestions []Suggestion
	for _, f := range fields {
		if f.Role != dataset.RoleNone || f.Type != dataset.TypeString || f.IsBlank() {
			continue
		}

		votes := make(map[dataset.Role]int)
		total := 0
		err := q.ForEachProjected(ctx, pop, f.Name, func(doc dataset.Document) error {
			v, ok := dataset.Lookup(doc, f.Name)
			if !ok {
				return nil
			}
			s, ok := v.(string)
			if !ok {
				return nil
			}
			total++
			if role := singleRole(parser.Parse(s)); role != dataset.RoleNone {
				votes[role]++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		best, bestVotes := dataset.RoleNone, 0
		for _, role := range dataset.AddressRoles {
			if votes[role] > bestVotes {
				best, bestVotes = role, votes[role]
			}
		}
		support := dataset.Ratio(bestVotes, total)
		if best == dataset.RoleNone || !support.Above(minSupport) {
			continue
		}
		suggestions = append(suggestions, Suggestion{Field: f.Name, Role: best, RoleTag: best.String(), Support: support})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Role < suggestions[j].Role
	})
	return suggestions, nil
}

// singleRole returns the role when every component agrees on it
func singleRole(components []Component) dataset.Role {
	role := dataset.RoleNone
	for _, c := range components {
		r := LabelRole(c.Label)
		if r == dataset.RoleNone {
			continue
		}
		if role != dataset.RoleNone && r != role {
			return dataset.RoleNone
		}
		role = r
	}
	return role
}
