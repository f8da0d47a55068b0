package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocuments(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    int
	}{
		{"jsonl", "a.jsonl", "{\"n\": 1.5}\n\n{\"n\": 2}\n", 2},
		{"ndjson", "a.ndjson", "{\"n\": 1}\n", 1},
		{"json array", "a.json", `[{"n": 1}, {"n": 2.0}, {"n": null}]`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := LoadDocuments(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadDocuments failed: %v", err)
			}
			if len(docs) != tt.want {
				t.Fatalf("expected %d documents, got %d", tt.want, len(docs))
			}
			if _, ok := docs[0]["n"].(json.Number); !ok {
				t.Errorf("numbers must keep their literal form, got %T", docs[0]["n"])
			}
		})
	}

	if _, err := LoadDocuments(writeFile(t, "a.csv", "n\n1\n")); err == nil {
		t.Error("csv must be rejected")
	}
	if _, err := LoadDocuments(writeFile(t, "bad.jsonl", "{\"n\": 1}\n{oops\n")); err == nil {
		t.Error("malformed line must fail")
	}
}

type shopRow struct {
	Name  string  `parquet:"name"`
	Price float64 `parquet:"price"`
	Floor int64   `parquet:"floor"`
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shops.parquet")
	rows := []shopRow{{"Магазин", 10.5, 1}, {"Аптека", 3.25, 2}}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("failed to write parquet: %v", err)
	}

	docs, err := LoadDocuments(path)
	if err != nil {
		t.Fatalf("LoadDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	want := dataset.Document{"name": "Магазин", "price": 10.5, "floor": int64(1)}
	if !reflect.DeepEqual(docs[0], want) {
		t.Errorf("document = %#v, want %#v", docs[0], want)
	}
}

func TestStructure(t *testing.T) {
	path := writeFile(t, "shops.yaml", `dataset: shops
publication_id: layer-1
fields:
  - name: name
    type: string
  - name: addr.city
    type: String
    feature: municipality
  - name: price
    type: double
indexes:
  - name: shops_name
    keys: [name]
    text_keys: [descr]
`)
	st, err := LoadStructure(path)
	if err != nil {
		t.Fatalf("LoadStructure failed: %v", err)
	}
	ds := st.Dataset(nil)

	wantFields := []dataset.FieldDefinition{
		{Name: "name", Type: dataset.TypeString},
		{Name: "addr.city", Type: dataset.TypeString, Role: dataset.RoleMunicipality},
		{Name: "price", Type: dataset.TypeDouble},
	}
	if !reflect.DeepEqual(ds.Fields, wantFields) {
		t.Errorf("fields = %+v", ds.Fields)
	}
	if !ds.Record.Published() || ds.Name != "shops" {
		t.Errorf("record = %+v", ds.Record)
	}
	if len(ds.Indexes) != 1 || !ds.Indexes[0].References("name") {
		t.Errorf("indexes = %+v", ds.Indexes)
	}

	if _, err := LoadStructure(writeFile(t, "bad.yaml", "fields: [")); !errors.Is(err, dataset.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func testStore() (*Store, store.Population) {
	docs := []dataset.Document{
		{"city": "Петрозаводск", "price": json.Number("1.5"), "floor": json.Number("2"), "addr": map[string]any{"house": "5"}},
		{"city": "ПЕТРОЗАВОДСК", "price": json.Number("2"), "floor": json.Number("3")},
		{"city": "петрозаводск", "price": "n/a", "floor": nil},
		{"city": "Сегежа", "price": "null"},
		{"city": 42},
	}
	s := New("ru").WithSeed(42)
	s.Add(&Dataset{Name: "shops", Docs: docs})
	return s, store.Population{Dataset: "shops", Total: int64(len(docs)), Size: len(docs)}
}

func TestCounts(t *testing.T) {
	s, pop := testStore()
	ctx := context.Background()

	tests := []struct {
		name   string
		fields []string
		want   int
	}{
		{"all present", []string{"city"}, 5},
		{"null sentinel and missing", []string{"price"}, 3},
		{"nil values", []string{"floor"}, 2},
		{"nested path", []string{"addr.house"}, 1},
		{"all fields required", []string{"city", "floor"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CountNotEmpty(ctx, pop, tt.fields...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CountNotEmpty(%v) = %d, want %d", tt.fields, got, tt.want)
			}
		})
	}

	doubles, err := s.CountTypeMatching(ctx, pop, "price", dataset.TypeDouble)
	if err != nil || doubles != 1 {
		t.Errorf("double matches = %d (%v), want 1", doubles, err)
	}
	ints, err := s.CountTypeMatching(ctx, pop, "floor", dataset.TypeInt)
	if err != nil || ints != 2 {
		t.Errorf("int matches = %d (%v), want 2", ints, err)
	}
	if _, err := s.CountTypeMatching(ctx, pop, "city", dataset.TypeUnknown); !errors.Is(err, dataset.ErrUnsupportedType) {
		t.Errorf("expected unsupported type, got %v", err)
	}
}

func TestGroupCounts(t *testing.T) {
	s, pop := testStore()
	ctx := context.Background()

	exact, err := s.GroupCounts(ctx, pop, "city", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(exact) != 5 {
		t.Errorf("exact grouping = %+v", exact)
	}

	collated, err := s.GroupCounts(ctx, pop, "city", true)
	if err != nil {
		t.Fatal(err)
	}
	want := []store.ValueCount{
		{Value: "ПЕТРОЗАВОДСК", Count: 3},
		{Value: "Сегежа", Count: 1},
		{Value: 42, Count: 1},
	}
	if !reflect.DeepEqual(collated, want) {
		t.Errorf("collated grouping = %+v, want %+v", collated, want)
	}
}

func TestGroupCountsRepresentative(t *testing.T) {
	docs := []dataset.Document{
		{"region": "РЕСПУБЛИКА КАРЕЛИЯ"},
		{"region": "Республика Карелия"},
		{"region": "Республика Карелия"},
		{"region": "республика карелия"},
	}
	s := New("ru")
	s.Add(&Dataset{Name: "objects", Docs: docs})
	pop := store.Population{Dataset: "objects", Total: 4, Size: 4}

	got, err := s.GroupCounts(context.Background(), pop, "region", true)
	if err != nil {
		t.Fatal(err)
	}
	want := []store.ValueCount{{Value: "Республика Карелия", Count: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupCounts = %+v, want %+v", got, want)
	}
}

func TestSampleIDs(t *testing.T) {
	docs := make([]dataset.Document, 100)
	for i := range docs {
		docs[i] = dataset.Document{"i": i}
	}
	s := New("ru").WithSeed(3)
	s.Add(&Dataset{Name: "big", Docs: docs})
	ctx := context.Background()

	first, err := s.SampleIDs(ctx, "big", 10)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.SampleIDs(ctx, "big", 10)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed, different samples: %v vs %v", first, second)
	}
	seen := make(map[int64]bool)
	for _, id := range first {
		if id < 0 || id >= 100 || seen[id] {
			t.Fatalf("bad sample %v", first)
		}
		seen[id] = true
	}

	pop := store.Population{Dataset: "big", Total: 100, Size: 10, IDs: first, Sampled: true}
	n, err := s.CountNotEmpty(ctx, pop, "i")
	if err != nil || n != 10 {
		t.Errorf("count over the sample = %d (%v)", n, err)
	}
}

func TestCatalog(t *testing.T) {
	s, _ := testStore()
	ctx := context.Background()

	if _, err := s.Fields(ctx, "missing"); !errors.Is(err, dataset.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if _, err := s.State(ctx, "shops"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	state := dataset.NewQualityState("shops")
	state.RunID = "run-1"
	if err := s.WriteState(ctx, "shops", state); err != nil {
		t.Fatal(err)
	}
	raw, err := s.State(ctx, "shops")
	if err != nil {
		t.Fatal(err)
	}
	var got dataset.QualityState
	if err := json.Unmarshal(raw, &got); err != nil || got.RunID != "run-1" {
		t.Errorf("state = %s (%v)", raw, err)
	}

	names, err := s.Datasets(ctx)
	if err != nil || !reflect.DeepEqual(names, []string{"shops"}) {
		t.Errorf("datasets = %v (%v)", names, err)
	}
}
