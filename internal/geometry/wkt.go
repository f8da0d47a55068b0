package geometry

import (
	"context"
	"errors"
	"strings"

	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

var errFound = errors.New("found")

// IsWKT reports whether s parses as a Well-Known-Text geometry
func IsWKT(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	g, err := wkt.Unmarshal(s)
	return err == nil && g != nil
}

// HasWKT reports whether at least one non-empty value of the field parses as
// WKT. Parse failures are misses.
func HasWKT(ctx context.Context, q store.Query, pop store.Population, field string) (bool, error) {
	err := q.ForEachProjected(ctx, pop, field, func(doc dataset.Document) error {
		v, ok := dataset.Lookup(doc, field)
		if !ok {
			return nil
		}
		if s, isStr := v.(string); isStr && IsWKT(s) {
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return true, nil
	}
	return false, err
}
