// Package analyzer runs the quality analysis of a dataset: it fixes the
// population, computes the per-field metrics on a bounded worker pool, runs
// the dataset-wide detectors and writes the resulting state.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rk-analyzer/internal/address"
	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/debug"
	"github.com/rk-analyzer/internal/geometry"
	"github.com/rk-analyzer/internal/hierarchy"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/stats"
	"github.com/rk-analyzer/internal/store"
)

// Analyzer computes and stores the quality state of datasets
type Analyzer struct {
	env      *Env
	store    store.Store
	sink     progress.Sink
	logger   *zap.Logger
	resolver *hierarchy.Resolver
	features *address.FeatureDetector
	now      func() time.Time
}

// New creates an analyzer over the store. A nil sink discards progress.
func New(env *Env, st store.Store, sink progress.Sink) *Analyzer {
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Analyzer{
		env:      env,
		store:    st,
		sink:     sink,
		logger:   env.Logger.Named("analyzer"),
		resolver: hierarchy.NewResolver(env.Dictionary, env.Settings.Locale, env.Logger),
		features: address.NewFeatureDetector(env.Dictionary.Lexicon, env.Settings.Locale),
		now:      time.Now,
	}
}

// WithRegistry returns a copy resolving against the given registry instead
// of the dictionary's
func (a *Analyzer) WithRegistry(registry []dataset.RegistryEntry) *Analyzer {
	clone := *a
	clone.resolver = a.resolver.WithRegistry(registry)
	return &clone
}

type fieldResult struct {
	report dataset.FieldQualityReport
	wkt    bool
}

// Analyze computes the quality state of the dataset and replaces the stored
// one. Metric failures leave that metric undefined; ErrConfiguration and
// ErrStoreUnavailable abort the dataset.
func (a *Analyzer) Analyze(ctx context.Context, name string) (*dataset.QualityState, error) {
	logger := a.logger.With(zap.String("dataset", name))
	defer debug.Timing(logger, "analyze")()

	fields, err := a.store.Fields(ctx, name)
	if err != nil {
		return nil, err
	}
	record, err := a.store.Record(ctx, name)
	if err != nil {
		return nil, err
	}
	pop, err := Sample(ctx, a.store, name, a.env.Settings.RecordsToProcess)
	if err != nil {
		return nil, err
	}
	logger.Info("Population fixed",
		zap.Int64("total", pop.Total),
		zap.Int("size", pop.Size),
		zap.Bool("sampled", pop.Sampled),
		zap.Int("fields", len(fields)))

	indexes, err := a.store.Indexes(ctx, name)
	if err := a.downgrade(logger, name, "", "indexed", err); err != nil {
		return nil, err
	}

	results := make([]fieldResult, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.env.Settings.Workers)
	for i, f := range fields {
		g.Go(func() error {
			r, err := a.analyzeField(gctx, logger, pop, f, indexes)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := dataset.NewQualityState(name)
	entropy := make(map[string]dataset.Metric, len(fields))
	var wktFields []string
	for i, f := range fields {
		state.Fields[f.Name] = results[i].report
		entropy[f.Name] = results[i].report.Entropy
		if results[i].wkt {
			wktFields = append(wktFields, f.Name)
		}
	}

	features, err := a.features.Detect(ctx, a.store, pop)
	if err := a.downgrade(logger, name, "", "has_address_features", err); err != nil {
		return nil, err
	}
	completeness, err := address.CheckCompleteness(ctx, a.store, pop, fields)
	if err := a.downgrade(logger, name, "", "has_address", err); err != nil {
		return nil, err
	}
	resolution, err := a.resolver.Resolve(ctx, a.store, pop, fields, entropy)
	if err := a.downgrade(logger, name, "", "oneValue", err); err != nil {
		return nil, err
	}
	applyResolution(state, fields, resolution)

	state.Properties = Classify(Signals{
		Fields:             fields,
		Reports:            state.Fields,
		WKTFields:          wktFields,
		HasAddress:         completeness.Complete,
		HasAddressFeatures: features.Found,
		Record:             record,
		JoinKey:            JoinKey(fields, a.env.Settings.JoinKeyField),
	})
	state.RunID = uuid.NewString()
	state.AnalyzedAt = a.now().UTC()
	state.Population = pop.Total
	state.SampleSize = pop.Size
	state.Sampled = pop.Sampled

	if err := a.store.WriteState(ctx, name, state); err != nil {
		return nil, fmt.Errorf("failed to write state of %s: %w", name, err)
	}
	logger.Info("Dataset analyzed",
		zap.String("run_id", state.RunID),
		zap.Bool("has_geometry", state.Properties.HasGeometry),
		zap.Bool("has_address", state.Properties.HasAddress),
		zap.Bool("has_address_features", state.Properties.HasAddressFeatures),
		zap.Bool("has_geometry_features", state.Properties.HasGeometryFeatures),
		zap.Bool("connected", state.Properties.Connected),
		zap.Bool("enriched", state.Properties.Enriched),
		zap.Bool("published", state.Properties.Published))
	return state, nil
}

func (a *Analyzer) analyzeField(ctx context.Context, logger *zap.Logger, pop store.Population, f dataset.FieldDefinition, indexes []store.Index) (fieldResult, error) {
	var res fieldResult
	r := &res.report
	r.Indexed = stats.Indexed(indexes, f.Name)

	notEmpty, fullness, err := stats.Fullness(ctx, a.store, pop, f.Name)
	if err := a.downgrade(logger, pop.Dataset, f.Name, "fullness", err); err != nil {
		return res, err
	}
	r.Fullness = fullness

	r.TypeMatching, err = stats.TypeMatching(ctx, a.store, pop, f, notEmpty)
	if err := a.downgrade(logger, pop.Dataset, f.Name, "typeMatching", err); err != nil {
		return res, err
	}

	r.Entropy, err = stats.Entropy(ctx, a.store, pop, f, notEmpty)
	if err := a.downgrade(logger, pop.Dataset, f.Name, "entropy", err); err != nil {
		return res, err
	}

	switch f.Type {
	case dataset.TypeGeometry:
		q, err := a.env.Validator.Assess(ctx, a.store, pop, f.Name, a.env.Territory)
		if err != nil {
			return res, a.downgrade(logger, pop.Dataset, f.Name, "validness", err)
		}
		r.Validness = q.Validness
		r.Adequacy = q.Adequacy
		r.Spread = q.Spread
	case dataset.TypeString:
		found, err := geometry.HasWKT(ctx, a.store, pop, f.Name)
		if err != nil {
			return res, a.downgrade(logger, pop.Dataset, f.Name, "wkt", err)
		}
		res.wkt = found
	}
	return res, nil
}

// downgrade lets a metric failure pass as an undefined metric. Unavailable
// stores and cancellation are returned.
func (a *Analyzer) downgrade(logger *zap.Logger, name, field, metric string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dataset.ErrStoreUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Warn("Metric failed", zap.String("field", field), zap.String("metric", metric), zap.Error(err))
	where := name
	if field != "" {
		where += "/" + field
	}
	a.sink.Error(fmt.Sprintf("%s: %s: %v", where, metric, err))
	return nil
}

// applyResolution marks every Region and Municipality field with oneValue and
// the resolved field with its canonical identifier
func applyResolution(state *dataset.QualityState, fields []dataset.FieldDefinition, result hierarchy.Result) {
	for _, f := range fields {
		if f.Role != dataset.RoleRegion && f.Role != dataset.RoleMunicipality {
			continue
		}
		r := state.Fields[f.Name]
		if r.OneValue == nil {
			r.OneValue = new(bool)
		}
		state.Fields[f.Name] = r
	}

	for _, res := range []*hierarchy.Resolution{result.Region, result.Municipality} {
		if res == nil || !res.OneValue {
			continue
		}
		r := state.Fields[res.Field]
		one := true
		r.OneValue = &one
		if res.Resolved {
			r.CanonicalID = res.Canonical.Identifier()
		}
		state.Fields[res.Field] = r
	}
}
