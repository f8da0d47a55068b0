// Package stats computes the per-field quality metrics: fullness, type
// conformance, normalized entropy and index presence.
package stats

import (
	"context"
	"math"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

// Fullness returns the number of non-empty values and notEmpty/N
func Fullness(ctx context.Context, q store.Query, pop store.Population, field string) (int, dataset.Metric, error) {
	notEmpty, err := q.CountNotEmpty(ctx, pop, field)
	if err != nil {
		return 0, dataset.Undefined(), err
	}
	return notEmpty, dataset.Ratio(notEmpty, pop.Size), nil
}

// TypeMatching returns the share of non-empty values matching the declared type
func TypeMatching(ctx context.Context, q store.Query, pop store.Population, field dataset.FieldDefinition, notEmpty int) (dataset.Metric, error) {
	if notEmpty == 0 {
		return dataset.Undefined(), nil
	}
	matching, err := q.CountTypeMatching(ctx, pop, field.Name, field.Type)
	if err != nil {
		return dataset.Undefined(), err
	}
	return dataset.Ratio(matching, notEmpty), nil
}

// Entropy groups the non-empty values by exact equality and returns their
// normalized entropy. Blank field names are skipped.
func Entropy(ctx context.Context, q store.Query, pop store.Population, field dataset.FieldDefinition, notEmpty int) (dataset.Metric, error) {
	if field.IsBlank() || notEmpty == 0 {
		return dataset.Undefined(), nil
	}
	groups, err := q.GroupCounts(ctx, pop, field.Name, false)
	if err != nil {
		return dataset.Undefined(), err
	}
	return NormalizedEntropy(Counts(groups), notEmpty), nil
}

// Counts extracts the group sizes
func Counts(groups []store.ValueCount) []int {
	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = g.Count
	}
	return counts
}

// NormalizedEntropy returns H/log2(k) of the distribution counts/total,
// where k is the number of groups; 0 for a single group, clamped to 1
func NormalizedEntropy(counts []int, total int) dataset.Metric {
	if total <= 0 {
		return dataset.Undefined()
	}

	h := 0.0
	groups := 0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		groups++
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	if groups <= 1 {
		return dataset.Defined(0)
	}
	return dataset.Defined(h / math.Log2(float64(groups)))
}

// Indexed reports whether any index covers the field
func Indexed(indexes []store.Index, field string) bool {
	for _, ix := range indexes {
		if ix.References(field) {
			return true
		}
	}
	return false
}
