package geometry

import (
	"context"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/stats"
	"github.com/rk-analyzer/internal/store"
)

// Quality holds the geometry metrics of one field
type Quality struct {
	Processed int
	Valid     int
	Validness dataset.Metric
	Adequacy  dataset.Metric
	Spread    dataset.Metric
}

// Assess walks every non-empty value of the field, validating its structure
// and checking its positions against the territory
func (v *Validator) Assess(ctx context.Context, q store.Query, pop store.Population, field string, territory Territory) (Quality, error) {
	path := dataset.SplitPath(field)
	var result Quality
	adequate := 0
	cells := make(map[string]int)
	placed := 0

	err := q.ForEachProjected(ctx, pop, field, func(doc dataset.Document) error {
		value := Navigate(doc, path)
		result.Processed++
		if v.Valid(value) {
			result.Valid++
		}

		positions := Positions(value)
		if len(positions) == 0 {
			return nil
		}
		inside := true
		for _, p := range positions {
			if !territory.Contains(p[0], p[1]) {
				inside = false
				break
			}
		}
		if inside {
			adequate++
		}
		first := positions[0]
		if inRange(first) {
			cells[Cell(first[0], first[1])]++
			placed++
		}
		return nil
	})
	if err != nil {
		return Quality{}, err
	}

	result.Validness = dataset.Ratio(result.Valid, result.Processed)
	if result.Processed == 0 {
		result.Validness = dataset.Defined(0)
	}
	result.Adequacy = dataset.Ratio(adequate, result.Processed)

	counts := make([]int, 0, len(cells))
	for _, c := range cells {
		counts = append(counts, c)
	}
	result.Spread = stats.NormalizedEntropy(counts, placed)
	return result, nil
}

func inRange(p [2]float64) bool {
	return p[1] >= -90 && p[1] <= 90 && p[0] >= -180 && p[0] <= 180
}

// Positions collects the [lng, lat] positions of a GeoJSON value, descending
// into collections and features
func Positions(value any) [][2]float64 {
	var out [][2]float64
	collectGeoJSON(value, &out)
	return out
}

func collectGeoJSON(value any, out *[][2]float64) {
	m, ok := value.(map[string]any)
	if !ok {
		return
	}
	if coords, ok := m["coordinates"]; ok {
		collectCoordinates(coords, out)
	}
	if geoms, ok := m["geometries"].([]any); ok {
		for _, g := range geoms {
			collectGeoJSON(g, out)
		}
	}
	if g, ok := m["geometry"]; ok {
		collectGeoJSON(g, out)
	}
	if features, ok := m["features"].([]any); ok {
		for _, f := range features {
			collectGeoJSON(f, out)
		}
	}
}

func collectCoordinates(value any, out *[][2]float64) {
	arr, ok := value.([]any)
	if !ok || len(arr) == 0 {
		return
	}
	if lng, ok := dataset.AsFloat(arr[0]); ok {
		if len(arr) < 2 {
			return
		}
		if lat, ok := dataset.AsFloat(arr[1]); ok {
			*out = append(*out, [2]float64{lng, lat})
		}
		return
	}
	for _, item := range arr {
		collectCoordinates(item, out)
	}
}
