package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rk-analyzer/internal/dataset"
)

// ErrNotFound is returned when no quality state has been stored yet
var ErrNotFound = errors.New("not found")

// Population is the fixed set of records one analysis run works on. It is
// decided once per dataset and reused by every metric.
type Population struct {
	Dataset string
	// Total is the number of records in the dataset
	Total int64
	// Size is the analysis denominator N
	Size int
	// Sampled is true when IDs holds a random sample instead of the whole dataset
	Sampled bool
	IDs     []int64
}

// ValueCount is one group of a grouping query
type ValueCount struct {
	Value any
	Count int
}

// Index describes a secondary index of a dataset
type Index struct {
	Name string
	// Keys are the field paths indexed by exact value
	Keys []string
	// TextKeys are the field paths of a full-text (weighted) index
	TextKeys []string
}

// References reports whether the index covers the field as a key or a text key
func (ix Index) References(field string) bool {
	for _, k := range ix.Keys {
		if k == field {
			return true
		}
	}
	for _, k := range ix.TextKeys {
		if k == field {
			return true
		}
	}
	return false
}

// Query is the data-access capability the analysis runs against
type Query interface {
	// Count returns the number of records in the dataset
	Count(ctx context.Context, name string) (int64, error)

	// SampleIDs draws n random record identifiers
	SampleIDs(ctx context.Context, name string, n int) ([]int64, error)

	// CountNotEmpty counts records where every listed field is non-empty
	CountNotEmpty(ctx context.Context, pop Population, fields ...string) (int, error)

	// CountTypeMatching counts non-empty values of the declared type. Returns
	// dataset.ErrUnsupportedType when the predicate cannot be evaluated.
	CountTypeMatching(ctx context.Context, pop Population, field string, t dataset.FieldType) (int, error)

	// GroupCounts groups non-empty values, sorted by count descending. With
	// collated set, string values are grouped at primary strength and each
	// group reports its most frequent member, the smallest encoding on ties.
	GroupCounts(ctx context.Context, pop Population, field string, collated bool) ([]ValueCount, error)

	// ForEachProjected calls fn for every record where the field is non-empty,
	// with a document holding only the first segment of the field path
	ForEachProjected(ctx context.Context, pop Population, field string, fn func(dataset.Document) error) error

	// ForEachDocument calls fn with every record of the population
	ForEachDocument(ctx context.Context, pop Population, fn func(dataset.Document) error) error

	// Indexes lists the secondary indexes of the dataset
	Indexes(ctx context.Context, name string) ([]Index, error)
}

// Catalog holds dataset metadata and analysis results
type Catalog interface {
	// Fields returns the declared fields in order; dataset.ErrConfiguration
	// when the dataset has no structure
	Fields(ctx context.Context, name string) ([]dataset.FieldDefinition, error)

	// Record returns the catalog entry of the dataset
	Record(ctx context.Context, name string) (dataset.Record, error)

	// Datasets lists every registered dataset
	Datasets(ctx context.Context) ([]string, error)

	// WriteState replaces the stored quality state of the dataset
	WriteState(ctx context.Context, name string, state *dataset.QualityState) error

	// State returns the stored quality state document
	State(ctx context.Context, name string) (json.RawMessage, error)
}

// Store combines data access and catalog
type Store interface {
	Query
	Catalog
}
