package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/store"
	"github.com/rk-analyzer/internal/store/memstore"
)

func testEnv(t *testing.T, limit int) *Env {
	t.Helper()
	dict, err := config.DefaultDictionary()
	if err != nil {
		t.Fatalf("failed to load default dictionary: %v", err)
	}
	env, err := NewEnvWithDictionary(config.Settings{
		RecordsToProcess: limit,
		Workers:          4,
		JoinKeyField:     "oarObject",
		Locale:           "ru",
	}, dict, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build env: %v", err)
	}
	return env
}

var shopFields = []dataset.FieldDefinition{
	{Name: "geom", Type: dataset.TypeGeometry},
	{Name: "region", Type: dataset.TypeString, Role: dataset.RoleRegion},
	{Name: "city", Type: dataset.TypeString, Role: dataset.RoleMunicipality},
	{Name: "street", Type: dataset.TypeString, Role: dataset.RoleStreet},
	{Name: "house", Type: dataset.TypeString, Role: dataset.RoleHouseNumber},
	{Name: "oarObject", Type: dataset.TypeString},
}

// shops builds n Karelian shops; the first linked have a join key
func shops(n, linked int) []dataset.Document {
	docs := make([]dataset.Document, n)
	for i := range docs {
		docs[i] = dataset.Document{
			"geom":   map[string]any{"type": "Point", "coordinates": []any{34.36, 61.78}},
			"region": "Республика Карелия",
			"city":   "Петрозаводский городской округ",
			"street": "ул. Ленина",
			"house":  fmt.Sprint(i + 1),
		}
		if i < linked {
			docs[i]["oarObject"] = fmt.Sprintf("obj-%d", i)
		}
	}
	return docs
}

func TestSample(t *testing.T) {
	s := memstore.New("ru").WithSeed(7)
	s.Add(&memstore.Dataset{Name: "shops", Docs: shops(50, 0)})

	tests := []struct {
		name        string
		limit       int
		wantSize    int
		wantSampled bool
	}{
		{"below cap", 100, 50, false},
		{"at cap", 50, 50, false},
		{"above cap", 10, 10, true},
		{"no cap", 0, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pop, err := Sample(context.Background(), s, "shops", tt.limit)
			if err != nil {
				t.Fatalf("Sample failed: %v", err)
			}
			if pop.Total != 50 || pop.Size != tt.wantSize || pop.Sampled != tt.wantSampled {
				t.Errorf("got %+v", pop)
			}
			if tt.wantSampled && len(pop.IDs) != tt.wantSize {
				t.Errorf("expected %d ids, got %d", tt.wantSize, len(pop.IDs))
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	s := memstore.New("ru")
	s.Add(&memstore.Dataset{
		Name:    "shops",
		Docs:    shops(10, 7),
		Fields:  shopFields,
		Indexes: []store.Index{{Name: "shops_oar", Keys: []string{"oarObject"}}},
		Record:  dataset.Record{PublicationID: "layer-1"},
	})

	tracker := progress.NewTracker()
	state, err := New(testEnv(t, 100), s, tracker).Analyze(context.Background(), "shops")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if state.Population != 10 || state.SampleSize != 10 || state.Sampled {
		t.Errorf("population = %d/%d sampled %v", state.Population, state.SampleSize, state.Sampled)
	}
	if state.RunID == "" || state.AnalyzedAt.IsZero() {
		t.Error("run id and time must be set")
	}

	want := dataset.Properties{
		HasGeometry: true,
		HasAddress:  true,
		Connected:   true,
		Published:   true,
	}
	got := state.Properties
	got.HasAddressFeatures = false
	if got != want {
		t.Errorf("properties = %+v, want %+v", state.Properties, want)
	}

	geom := state.Fields["geom"]
	if v, _ := geom.Validness.Get(); v != 1 {
		t.Errorf("validness = %v", geom.Validness)
	}
	if v, _ := geom.Adequacy.Get(); v != 1 {
		t.Errorf("adequacy = %v", geom.Adequacy)
	}

	join := state.Fields["oarObject"]
	if v, _ := join.Fullness.Get(); v != 0.7 || !join.Indexed {
		t.Errorf("join key report = %+v", join)
	}

	region := state.Fields["region"]
	if region.OneValue == nil || !*region.OneValue || region.CanonicalID != "rk_10" {
		t.Errorf("region report = %+v", region)
	}
	city := state.Fields["city"]
	if city.OneValue == nil || !*city.OneValue || city.CanonicalID != "86701000" {
		t.Errorf("city report = %+v", city)
	}
	if street := state.Fields["street"]; street.OneValue != nil {
		t.Errorf("street must not carry oneValue: %+v", street)
	}

	raw, err := s.State(context.Background(), "shops")
	if err != nil {
		t.Fatalf("state not stored: %v", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored state is not JSON: %v", err)
	}
	if stored["runId"] != state.RunID {
		t.Errorf("stored run id %v, want %s", stored["runId"], state.RunID)
	}
	if errs := tracker.Snapshot().Errors; len(errs) != 0 {
		t.Errorf("unexpected errors %v", errs)
	}
}

func TestAnalyzeSampled(t *testing.T) {
	s := memstore.New("ru").WithSeed(1)
	s.Add(&memstore.Dataset{Name: "shops", Docs: shops(60, 60), Fields: shopFields})

	state, err := New(testEnv(t, 20), s, nil).Analyze(context.Background(), "shops")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if state.Population != 60 || state.SampleSize != 20 || !state.Sampled {
		t.Errorf("population = %d/%d sampled %v", state.Population, state.SampleSize, state.Sampled)
	}
	if v, _ := state.Fields["oarObject"].Fullness.Get(); v != 1 {
		t.Errorf("fullness over the sample = %v", v)
	}
}

func TestAnalyzeFreeTextGeometry(t *testing.T) {
	docs := make([]dataset.Document, 10)
	for i := range docs {
		docs[i] = dataset.Document{"location": "unknown"}
		if i < 4 {
			docs[i]["location"] = "POINT (34.36 61.78)"
		}
	}
	s := memstore.New("ru")
	s.Add(&memstore.Dataset{
		Name:   "points",
		Docs:   docs,
		Fields: []dataset.FieldDefinition{{Name: "location", Type: dataset.TypeString}},
	})

	state, err := New(testEnv(t, 100), s, nil).Analyze(context.Background(), "points")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !state.Properties.HasGeometryFeatures {
		t.Error("WKT values must set has_geometry_features")
	}
	if state.Properties.HasGeometry {
		t.Error("no geometry field is declared")
	}
}

func TestAnalyzeDowngradesUnsupportedType(t *testing.T) {
	docs := []dataset.Document{
		{"name": "a", "when": "2024-01-01"},
		{"name": "b", "when": "2024-01-02"},
	}
	s := memstore.New("ru")
	s.Add(&memstore.Dataset{
		Name: "events",
		Docs: docs,
		Fields: []dataset.FieldDefinition{
			{Name: "name", Type: dataset.TypeString},
			{Name: "when", Type: dataset.TypeUnknown},
		},
	})

	tracker := progress.NewTracker()
	state, err := New(testEnv(t, 100), s, tracker).Analyze(context.Background(), "events")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	when := state.Fields["when"]
	if when.TypeMatching.IsDefined() {
		t.Errorf("typeMatching should be undefined, got %v", when.TypeMatching)
	}
	if v, ok := when.Fullness.Get(); !ok || v != 1 {
		t.Errorf("fullness = %v", when.Fullness)
	}
	if v, ok := when.Entropy.Get(); !ok || v != 1 {
		t.Errorf("entropy = %v", when.Entropy)
	}
	if v, _ := state.Fields["name"].TypeMatching.Get(); v != 1 {
		t.Errorf("name typeMatching = %v", state.Fields["name"].TypeMatching)
	}

	errs := tracker.Snapshot().Errors
	if len(errs) != 1 || !strings.Contains(errs[0], "events/when: typeMatching") {
		t.Errorf("errors = %v", errs)
	}
}

// unavailableStore fails every non-empty count
type unavailableStore struct {
	*memstore.Store
}

func (u unavailableStore) CountNotEmpty(ctx context.Context, pop store.Population, fields ...string) (int, error) {
	return 0, fmt.Errorf("%w: connection refused", dataset.ErrStoreUnavailable)
}

func TestAnalyzeStoreUnavailable(t *testing.T) {
	s := memstore.New("ru")
	s.Add(&memstore.Dataset{Name: "shops", Docs: shops(5, 5), Fields: shopFields})

	_, err := New(testEnv(t, 100), unavailableStore{s}, nil).Analyze(context.Background(), "shops")
	if !errors.Is(err, dataset.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable store error, got %v", err)
	}
	if _, err := s.State(context.Background(), "shops"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("no state may be written, got %v", err)
	}
}

func TestAnalyzeMissingDataset(t *testing.T) {
	_, err := New(testEnv(t, 100), memstore.New("ru"), nil).Analyze(context.Background(), "nope")
	if !errors.Is(err, dataset.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
