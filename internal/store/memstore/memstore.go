package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/normalize"
	"github.com/rk-analyzer/internal/store"
)

// Dataset is an in-memory dataset with its catalog metadata
type Dataset struct {
	Name    string
	Docs    []dataset.Document
	Fields  []dataset.FieldDefinition
	Indexes []store.Index
	Record  dataset.Record
}

// Store keeps datasets in process memory. It implements store.Store and is
// safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	locale   string
	seed     uint64
	datasets map[string]*Dataset
	states   map[string]json.RawMessage
}

// New creates an empty store grouping strings under the locale's collation
func New(locale string) *Store {
	return &Store{
		locale:   locale,
		seed:     uint64(time.Now().UnixNano()),
		datasets: make(map[string]*Dataset),
		states:   make(map[string]json.RawMessage),
	}
}

// WithSeed fixes the sampling seed
func (s *Store) WithSeed(seed uint64) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	return s
}

// Add registers or replaces a dataset
func (s *Store) Add(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds.Record.Dataset == "" {
		ds.Record.Dataset = ds.Name
	}
	s.datasets[ds.Name] = ds
}

func (s *Store) get(name string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q not found", dataset.ErrConfiguration, name)
	}
	return ds, nil
}

func (s *Store) population(pop store.Population) ([]dataset.Document, error) {
	ds, err := s.get(pop.Dataset)
	if err != nil {
		return nil, err
	}
	if !pop.Sampled {
		return ds.Docs, nil
	}
	docs := make([]dataset.Document, 0, len(pop.IDs))
	for _, id := range pop.IDs {
		if id < 0 || int(id) >= len(ds.Docs) {
			return nil, fmt.Errorf("sample id %d out of range", id)
		}
		docs = append(docs, ds.Docs[id])
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	ds, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return int64(len(ds.Docs)), nil
}

func (s *Store) SampleIDs(ctx context.Context, name string, n int) ([]int64, error) {
	ds, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if n > len(ds.Docs) {
		n = len(ds.Docs)
	}

	s.mu.RLock()
	rng := rand.New(rand.NewPCG(s.seed, uint64(len(ds.Docs))))
	s.mu.RUnlock()

	perm := rng.Perm(len(ds.Docs))[:n]
	ids := make([]int64, n)
	for i, p := range perm {
		ids[i] = int64(p)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) CountNotEmpty(ctx context.Context, pop store.Population, fields ...string) (int, error) {
	docs, err := s.population(pop)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, doc := range docs {
		if allNotEmpty(doc, fields) {
			count++
		}
	}
	return count, nil
}

func allNotEmpty(doc dataset.Document, fields []string) bool {
	for _, f := range fields {
		v, ok := dataset.Lookup(doc, f)
		if dataset.IsEmpty(v, ok) {
			return false
		}
	}
	return true
}

func (s *Store) CountTypeMatching(ctx context.Context, pop store.Population, field string, t dataset.FieldType) (int, error) {
	docs, err := s.population(pop)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, doc := range docs {
		v, ok := dataset.Lookup(doc, field)
		if dataset.IsEmpty(v, ok) {
			continue
		}
		match, err := matchesType(v, t)
		if err != nil {
			return 0, err
		}
		if match {
			count++
		}
	}
	return count, nil
}

func matchesType(v any, t dataset.FieldType) (bool, error) {
	switch t {
	case dataset.TypeGeometry:
		m, ok := v.(map[string]any)
		if !ok {
			return false, nil
		}
		_, ok = m["type"].(string)
		return ok, nil
	case dataset.TypeString:
		_, ok := v.(string)
		return ok, nil
	case dataset.TypeDouble:
		return dataset.IsFractional(v), nil
	case dataset.TypeInt, dataset.TypeLong:
		return dataset.IsIntegral(v) && !dataset.IsFractional(v), nil
	case dataset.TypeBool:
		_, ok := v.(bool)
		return ok, nil
	case dataset.TypeDate:
		_, ok := v.(time.Time)
		return ok, nil
	case dataset.TypeObject:
		_, ok := v.(map[string]any)
		return ok, nil
	case dataset.TypeArray:
		_, ok := v.([]any)
		return ok, nil
	case dataset.TypeUnknown:
		return false, fmt.Errorf("%w: %s", dataset.ErrUnsupportedType, t)
	}
	return false, fmt.Errorf("%w: %s", dataset.ErrUnsupportedType, t)
}

// group is one grouping key; rep is its most frequent member, the smallest
// encoding on ties
type group struct {
	rep     any
	repJS   string
	count   int
	members map[string]int
}

func (g *group) add(v any, encoded string) {
	g.count++
	g.members[encoded]++
	n, best := g.members[encoded], g.members[g.repJS]
	if n > best || (n == best && encoded < g.repJS) {
		g.rep, g.repJS = v, encoded
	}
}

func (s *Store) GroupCounts(ctx context.Context, pop store.Population, field string, collated bool) ([]store.ValueCount, error) {
	docs, err := s.population(pop)
	if err != nil {
		return nil, err
	}

	var folder *normalize.Folder
	if collated {
		folder = normalize.NewFolderForLocale(s.locale)
	}

	groups := make(map[string]*group)
	for _, doc := range docs {
		v, ok := dataset.Lookup(doc, field)
		if dataset.IsEmpty(v, ok) {
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode value of %s: %w", field, err)
		}
		key := "j:" + string(encoded)
		if str, isStr := v.(string); isStr && folder != nil {
			key = "s:" + folder.Key(str)
		}

		g, exists := groups[key]
		if !exists {
			g = &group{rep: v, repJS: string(encoded), members: make(map[string]int)}
			groups[key] = g
		}
		g.add(v, string(encoded))
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].repJS < ordered[j].repJS
	})

	result := make([]store.ValueCount, len(ordered))
	for i, g := range ordered {
		result[i] = store.ValueCount{Value: g.rep, Count: g.count}
	}
	return result, nil
}

func (s *Store) ForEachProjected(ctx context.Context, pop store.Population, field string, fn func(dataset.Document) error) error {
	docs, err := s.population(pop)
	if err != nil {
		return err
	}
	first := dataset.SplitPath(field)[0]
	for _, doc := range docs {
		v, ok := dataset.Lookup(doc, field)
		if dataset.IsEmpty(v, ok) {
			continue
		}
		if err := fn(dataset.Document{first: doc[first]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ForEachDocument(ctx context.Context, pop store.Population, fn func(dataset.Document) error) error {
	docs, err := s.population(pop)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Indexes(ctx context.Context, name string) ([]store.Index, error) {
	ds, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return ds.Indexes, nil
}

func (s *Store) Fields(ctx context.Context, name string) ([]dataset.FieldDefinition, error) {
	ds, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if len(ds.Fields) == 0 {
		return nil, fmt.Errorf("%w: no structure declared for dataset %q", dataset.ErrConfiguration, name)
	}
	return ds.Fields, nil
}

func (s *Store) Record(ctx context.Context, name string) (dataset.Record, error) {
	ds, err := s.get(name)
	if err != nil {
		return dataset.Record{}, err
	}
	return ds.Record, nil
}

func (s *Store) Datasets(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) WriteState(ctx context.Context, name string, state *dataset.QualityState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = data
	return nil
}

func (s *Store) State(ctx context.Context, name string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.states[name]
	if !ok {
		return nil, fmt.Errorf("%w: no state stored for dataset %q", store.ErrNotFound, name)
	}
	return data, nil
}

var _ store.Store = (*Store)(nil)
