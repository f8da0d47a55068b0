package geometry

import (
	"context"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
	"github.com/rk-analyzer/internal/store/memstore"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type GeometrySuite struct {
	validator *Validator
	territory Territory
}

var _ = Suite(&GeometrySuite{})

func (s *GeometrySuite) SetUpSuite(c *C) {
	v, err := NewValidator()
	c.Assert(err, IsNil)
	s.validator = v
	s.territory = NewTerritory(41, 82, 19, -169)
}

func point(lng, lat float64) map[string]any {
	return map[string]any{"type": "Point", "coordinates": []any{lng, lat}}
}

func (s *GeometrySuite) TestValidGeoJSON(c *C) {
	valid := []any{
		point(34.35, 61.78),
		map[string]any{"type": "LineString", "coordinates": []any{[]any{34.0, 61.0}, []any{34.5, 61.5}}},
		map[string]any{"type": "Polygon", "coordinates": []any{[]any{
			[]any{30.0, 60.0}, []any{31.0, 60.0}, []any{31.0, 61.0}, []any{30.0, 60.0},
		}}},
		map[string]any{"type": "GeometryCollection", "geometries": []any{point(1, 2)}},
		map[string]any{"type": "Feature", "geometry": nil, "properties": nil},
		map[string]any{"type": "Feature", "geometry": point(1, 2), "properties": map[string]any{"name": "x"}},
		map[string]any{"type": "FeatureCollection", "features": []any{}},
		map[string]any{
			"type": "Point", "coordinates": []any{1.0, 2.0},
			"crs":  map[string]any{"type": "name", "properties": map[string]any{"name": "EPSG:4326"}},
			"bbox": []any{1.0, 2.0, 1.0, 2.0},
		},
	}
	for i, v := range valid {
		c.Check(s.validator.Valid(v), Equals, true, Commentf("case %d: %v", i, v))
	}
}

func (s *GeometrySuite) TestInvalidGeoJSON(c *C) {
	invalid := []any{
		"POINT (30 10)",
		nil,
		map[string]any{"type": "Circle", "coordinates": []any{1.0, 2.0}},
		map[string]any{"type": "Point", "coordinates": []any{1.0}},
		map[string]any{"type": "Point"},
		map[string]any{"type": "Polygon", "coordinates": []any{[]any{
			[]any{30.0, 60.0}, []any{31.0, 60.0}, []any{30.0, 60.0},
		}}},
		map[string]any{"type": "Point", "coordinates": []any{1.0, 2.0}, "bbox": []any{1.0, 2.0}},
		map[string]any{"coordinates": []any{1.0, 2.0}},
	}
	for i, v := range invalid {
		c.Check(s.validator.Valid(v), Equals, false, Commentf("case %d: %v", i, v))
	}
}

func (s *GeometrySuite) TestNavigateIsLenient(c *C) {
	shape := point(34.35, 61.78)
	doc := map[string]any{"geo": map[string]any{"shape": shape, "label": "x"}}

	c.Assert(Navigate(doc, []string{"geo", "shape"}), DeepEquals, shape)
	// missing segment keeps the deepest document reached
	c.Assert(Navigate(doc, []string{"geo", "missing"}), DeepEquals, doc["geo"])
	// a scalar stops navigation
	c.Assert(Navigate(doc, []string{"geo", "label", "deeper"}), Equals, "x")
}

func (s *GeometrySuite) TestTerritory(c *C) {
	tests := []struct {
		lng, lat float64
		inside   bool
	}{
		{34.35, 61.78, true},  // Petrozavodsk
		{179.0, 65.0, true},   // east of the antimeridian
		{-172.0, 65.0, true},  // Chukotka past the antimeridian
		{-160.0, 65.0, false}, // Alaska
		{2.35, 48.85, false},  // Paris
		{34.0, 30.0, false},   // south of the box
		{200.0, 60.0, false},  // not a coordinate
	}
	for _, tt := range tests {
		c.Check(s.territory.Contains(tt.lng, tt.lat), Equals, tt.inside, Commentf("%v,%v", tt.lng, tt.lat))
	}
}

func (s *GeometrySuite) TestPositions(c *C) {
	collection := map[string]any{
		"type": "FeatureCollection",
		"features": []any{
			map[string]any{"type": "Feature", "geometry": point(1, 2), "properties": nil},
			map[string]any{"type": "Feature", "geometry": map[string]any{
				"type": "MultiPoint", "coordinates": []any{[]any{3.0, 4.0}, []any{5.0, 6.0}},
			}, "properties": nil},
		},
	}
	c.Assert(Positions(collection), DeepEquals, [][2]float64{{1, 2}, {3, 4}, {5, 6}})
	c.Assert(Positions("not geojson"), HasLen, 0)
}

func (s *GeometrySuite) TestIsWKT(c *C) {
	c.Check(IsWKT("POINT (30 10)"), Equals, true)
	c.Check(IsWKT("POLYGON ((30 10, 40 40, 20 40, 10 20, 30 10))"), Equals, true)
	c.Check(IsWKT("ул. Ленина, д. 5"), Equals, false)
	c.Check(IsWKT("   "), Equals, false)
}

func geometryStore(valid, total int) (*memstore.Store, store.Population) {
	docs := make([]dataset.Document, 0, total)
	for i := 0; i < total; i++ {
		if i < valid {
			docs = append(docs, dataset.Document{"geom": point(34.35, 61.78)})
		} else {
			docs = append(docs, dataset.Document{"geom": map[string]any{"type": "Point"}})
		}
	}
	st := memstore.New("ru")
	st.Add(&memstore.Dataset{Name: "objects", Docs: docs})
	return st, store.Population{Dataset: "objects", Total: int64(total), Size: total}
}

func (s *GeometrySuite) TestValidnessThreshold(c *C) {
	ctx := context.Background()

	st, pop := geometryStore(50, 100)
	q, err := s.validator.Assess(ctx, st, pop, "geom", s.territory)
	c.Assert(err, IsNil)
	v, _ := q.Validness.Get()
	c.Assert(v, Equals, 0.5)
	c.Assert(q.Validness.Above(0.5), Equals, false)

	st, pop = geometryStore(51, 100)
	q, err = s.validator.Assess(ctx, st, pop, "geom", s.territory)
	c.Assert(err, IsNil)
	c.Assert(q.Validness.Above(0.5), Equals, true)
}

func (s *GeometrySuite) TestAssessAdequacyAndSpread(c *C) {
	docs := []dataset.Document{
		{"geom": point(34.35, 61.78)},
		{"geom": point(33.08, 68.97)},
		{"geom": point(2.35, 48.85)},
		{"geom": nil},
	}
	st := memstore.New("ru")
	st.Add(&memstore.Dataset{Name: "objects", Docs: docs})
	pop := store.Population{Dataset: "objects", Total: 4, Size: 4}

	q, err := s.validator.Assess(context.Background(), st, pop, "geom", s.territory)
	c.Assert(err, IsNil)
	c.Assert(q.Processed, Equals, 3)
	c.Assert(q.Valid, Equals, 3)

	adequacy, ok := q.Adequacy.Get()
	c.Assert(ok, Equals, true)
	c.Assert(adequacy > 0.66 && adequacy < 0.67, Equals, true)

	spread, ok := q.Spread.Get()
	c.Assert(ok, Equals, true)
	c.Assert(spread > 0.99, Equals, true)
}

func (s *GeometrySuite) TestNothingProcessed(c *C) {
	st := memstore.New("ru")
	st.Add(&memstore.Dataset{Name: "objects", Docs: []dataset.Document{{"other": 1}}})
	pop := store.Population{Dataset: "objects", Total: 1, Size: 1}

	q, err := s.validator.Assess(context.Background(), st, pop, "geom", s.territory)
	c.Assert(err, IsNil)
	v, ok := q.Validness.Get()
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 0.0)
	c.Assert(q.Adequacy.IsDefined(), Equals, false)
}

func (s *GeometrySuite) TestHasWKT(c *C) {
	docs := []dataset.Document{
		{"wkt": "not a geometry"},
		{"wkt": "POINT (34.35 61.78)"},
		{"wkt": nil},
	}
	st := memstore.New("ru")
	st.Add(&memstore.Dataset{Name: "objects", Docs: docs})
	pop := store.Population{Dataset: "objects", Total: 3, Size: 3}

	found, err := HasWKT(context.Background(), st, pop, "wkt")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)

	found, err = HasWKT(context.Background(), st, pop, "missing")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)
}
