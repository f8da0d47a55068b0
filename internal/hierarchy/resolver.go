// Package hierarchy decides whether the Region and Municipality fields of a
// dataset hold a single value and resolves that value against the registry
// of administrative units.
package hierarchy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/normalize"
	"github.com/rk-analyzer/internal/store"
)

const (
	exactEntropy        = 0.05
	regionEntropy       = 0.5
	municipalityEntropy = 0.4
	mergeSimilarity     = 0.8
	dominantShare       = 0.9
	registrySimilarity  = 0.9
)

// Method tells how a single value was established
type Method string

const (
	MethodNone  Method = ""
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
)

// Resolution is the outcome for one hierarchy field
type Resolution struct {
	Field    string
	Role     dataset.Role
	OneValue bool
	Method   Method
	// Raw is the representative of the single-valued cluster: the most
	// frequent member of its collated group
	Raw string
	// Value is Raw without punctuation and stop-words
	Value string
	// Canonical is the matched registry entry, when Resolved
	Canonical dataset.RegistryEntry
	Resolved  bool
	Score     float64
}

// Result holds the region and municipality resolutions; either may be nil
// when the dataset declares no such field or Region was not single-valued
type Result struct {
	Region       *Resolution
	Municipality *Resolution
}

// Resolver holds the stop-words and the registry of one run
type Resolver struct {
	registry          []dataset.RegistryEntry
	regionTypes       []string
	municipalityTypes []string
	exclude           []string
	locale            string
	logger            *zap.Logger
}

// NewResolver builds a resolver from the dictionary
func NewResolver(dict *config.Dictionary, locale string, logger *zap.Logger) *Resolver {
	return &Resolver{
		registry:          dict.Regions,
		regionTypes:       dict.RegionTypes,
		municipalityTypes: dict.MunicipalityTypes,
		exclude:           dict.RegistryExclude,
		locale:            locale,
		logger:            logger.Named("hierarchy"),
	}
}

// WithRegistry replaces the registry, e.g. with one loaded from the store
func (r *Resolver) WithRegistry(registry []dataset.RegistryEntry) *Resolver {
	clone := *r
	clone.registry = registry
	return &clone
}

// level carries the per-level parameters
type level struct {
	role      dataset.Role
	threshold float64
	stop      []string
}

// Resolve examines the first Region field and, when it holds a single value,
// the first Municipality field. entropy carries the normalized entropy of
// each field computed over the same population.
func (r *Resolver) Resolve(ctx context.Context, q store.Query, pop store.Population, fields []dataset.FieldDefinition, entropy map[string]dataset.Metric) (Result, error) {
	var result Result
	folder := normalize.NewFolderForLocale(r.locale)

	regionField, ok := dataset.FirstWithRole(fields, dataset.RoleRegion)
	if !ok || regionField.IsBlank() {
		return result, nil
	}
	region, err := r.single(ctx, q, pop, regionField, entropy[regionField.Name], folder,
		level{role: dataset.RoleRegion, threshold: regionEntropy, stop: r.regionTypes})
	if err != nil {
		return result, err
	}
	result.Region = region
	if !region.OneValue {
		return result, nil
	}
	r.match(region, r.registry, folder.NewWordSet(r.regionTypes), folder)

	munField, ok := dataset.FirstWithRole(fields, dataset.RoleMunicipality)
	if !ok || munField.IsBlank() {
		return result, nil
	}
	mun, err := r.single(ctx, q, pop, munField, entropy[munField.Name], folder,
		level{role: dataset.RoleMunicipality, threshold: municipalityEntropy, stop: r.municipalityTypes})
	if err != nil {
		return result, err
	}
	result.Municipality = mun
	if mun.OneValue && region.Resolved {
		r.match(mun, region.Canonical.Children, folder.NewWordSet(r.municipalityTypes), folder)
	}
	return result, nil
}

// single runs the exact and fuzzy collapse for one field
func (r *Resolver) single(ctx context.Context, q store.Query, pop store.Population, field dataset.FieldDefinition, entropy dataset.Metric, folder *normalize.Folder, lvl level) (*Resolution, error) {
	res := &Resolution{Field: field.Name, Role: lvl.role}
	h, ok := entropy.Get()
	if !ok {
		return res, nil
	}
	stop := folder.NewWordSet(lvl.stop)

	switch {
	case h < exactEntropy:
		groups, err := q.GroupCounts(ctx, pop, field.Name, false)
		if err != nil {
			return nil, fmt.Errorf("failed to group %s: %w", field.Name, err)
		}
		if len(groups) == 0 {
			return res, nil
		}
		res.OneValue = true
		res.Method = MethodExact
		res.Raw = valueString(groups[0].Value)
		res.Value = normalize.RemoveWords(res.Raw, stop)

	case h < lvl.threshold:
		groups, err := q.GroupCounts(ctx, pop, field.Name, true)
		if err != nil {
			return nil, fmt.Errorf("failed to group %s: %w", field.Name, err)
		}
		clusters := Merge(Normalize(groups, stop))
		r.logger.Debug("Fuzzy clusters",
			zap.String("field", field.Name),
			zap.Int("groups", len(groups)),
			zap.Int("clusters", len(clusters)))
		if len(clusters) == 1 && float64(clusters[0].Count) > dominantShare*float64(pop.Size) {
			res.OneValue = true
			res.Method = MethodFuzzy
			res.Raw = clusters[0].Raw
			res.Value = normalize.RemoveWords(res.Raw, stop)
		}
	}
	return res, nil
}

// match resolves the value against the candidates; best score above the
// threshold wins, the first candidate on ties
func (r *Resolver) match(res *Resolution, candidates []dataset.RegistryEntry, stop *normalize.WordSet, folder *normalize.Folder) {
	excluded := folder.NewWordSet(r.exclude)
	best := 0.0
	for _, c := range candidates {
		if containsAny(c.Name, excluded) {
			continue
		}
		sim := normalize.Similarity(res.Value, normalize.RemoveWords(c.Name, stop))
		if sim > best && sim > registrySimilarity {
			best = sim
			res.Canonical = c
			res.Resolved = true
			res.Score = sim
		}
	}
	if res.Resolved {
		r.logger.Info("Resolved canonical unit",
			zap.String("field", res.Field),
			zap.String("role", res.Role.String()),
			zap.String("value", res.Value),
			zap.String("canonical", res.Canonical.Name),
			zap.String("id", res.Canonical.Identifier()),
			zap.Float64("score", res.Score))
	}
}

func containsAny(name string, words *normalize.WordSet) bool {
	if words.Len() == 0 {
		return false
	}
	for _, t := range normalize.Tokens(name) {
		if words.Contains(t) {
			return true
		}
	}
	return false
}

func valueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
