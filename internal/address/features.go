// Package address finds address data in datasets: free-text address fields
// without declared roles, completeness of the declared address hierarchy and
// role suggestions for undeclared fields.
package address

import (
	"context"
	"sort"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/normalize"
	"github.com/rk-analyzer/internal/store"
)

// minWords is the token count a value must exceed to look like an address
const minWords = 3

// minLexiconHits is how many distinct lexicon words a value must contain
const minLexiconHits = 2

// FeatureDetector spots string fields that hold free-text addresses by
// intersecting their words with an address lexicon
type FeatureDetector struct {
	lexicon []string
	locale  string
}

// NewFeatureDetector creates a detector for the lexicon, comparing words
// under the locale's primary-strength collation
func NewFeatureDetector(lexicon []string, locale string) *FeatureDetector {
	return &FeatureDetector{lexicon: lexicon, locale: locale}
}

// KeyScore is the result for one top-level key
type KeyScore struct {
	Key        string `json:"key"`
	Candidates int    `json:"candidates"`
	Matches    int    `json:"matches"`
}

// Features is the outcome of a detection run
type Features struct {
	Found bool
	// Keys lists the retained keys, most matches first
	Keys []KeyScore
}

// Detect runs the heuristic over the population
func (d *FeatureDetector) Detect(ctx context.Context, q store.Query, pop store.Population) (Features, error) {
	half := pop.Size / 2

	candidates := make(map[string]int)
	err := q.ForEachDocument(ctx, pop, func(doc dataset.Document) error {
		for key, v := range doc {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if len(normalize.SplitSpaces(s)) > minWords {
				candidates[key]++
			}
		}
		return nil
	})
	if err != nil {
		return Features{}, err
	}

	retained := make(map[string]*KeyScore)
	for key, count := range candidates {
		if count >= half {
			retained[key] = &KeyScore{Key: key, Candidates: count}
		}
	}
	if len(retained) == 0 {
		return Features{}, nil
	}

	words := normalize.NewFolderForLocale(d.locale).NewWordSet(d.lexicon)
	err = q.ForEachDocument(ctx, pop, func(doc dataset.Document) error {
		for key, score := range retained {
			s, ok := doc[key].(string)
			if !ok {
				continue
			}
			if words.IntersectionSize(normalize.Tokens(s)) >= minLexiconHits {
				score.Matches++
			}
		}
		return nil
	})
	if err != nil {
		return Features{}, err
	}

	var result Features
	for _, score := range retained {
		result.Keys = append(result.Keys, *score)
		if score.Matches >= half {
			result.Found = true
		}
	}
	sort.Slice(result.Keys, func(i, j int) bool {
		if result.Keys[i].Matches != result.Keys[j].Matches {
			return result.Keys[i].Matches > result.Keys[j].Matches
		}
		return result.Keys[i].Key < result.Keys[j].Key
	})
	return result, nil
}
