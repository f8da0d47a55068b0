package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/progress"
)

// Outcome is the result of one dataset within a run
type Outcome struct {
	Dataset string
	State   *dataset.QualityState
	Err     error
	Skipped bool
}

// Runner analyses a list of datasets
type Runner struct {
	analyzer *Analyzer
	sink     progress.Sink
	logger   *zap.Logger
	skip     map[string]bool
	parallel int
}

// NewRunner creates a sequential runner
func NewRunner(a *Analyzer, sink progress.Sink) *Runner {
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Runner{
		analyzer: a,
		sink:     sink,
		logger:   a.logger.Named("runner"),
		skip:     make(map[string]bool),
		parallel: 1,
	}
}

// WithSkip excludes datasets by name
func (r *Runner) WithSkip(names ...string) *Runner {
	for _, n := range names {
		r.skip[n] = true
	}
	return r
}

// WithParallel bounds the number of datasets analysed at once
func (r *Runner) WithParallel(n int) *Runner {
	if n < 1 {
		n = 1
	}
	r.parallel = n
	return r
}

// Run analyses the datasets. Configuration and metric errors are recorded
// per dataset and the run continues; an unavailable store stops the run and
// is returned along with the outcomes collected so far. Only a run that
// finishes is reported complete to the sink.
func (r *Runner) Run(ctx context.Context, names []string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(names))
	var (
		mu   sync.Mutex
		done int
	)
	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		r.sink.Progress(float64(done)/float64(len(names)), done)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, name := range names {
		outcomes[i].Dataset = name
		if r.skip[name] {
			outcomes[i].Skipped = true
			r.logger.Info("Skipping dataset", zap.String("dataset", name))
			finish()
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.sink.Start(name)
			state, err := r.analyzer.Analyze(gctx, name)
			outcomes[i].State = state
			outcomes[i].Err = err
			defer finish()

			switch {
			case err == nil:
				return nil
			case errors.Is(err, dataset.ErrStoreUnavailable):
				r.sink.Error(fmt.Sprintf("%s: %v", name, err))
				return err
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case errors.Is(err, dataset.ErrConfiguration):
				outcomes[i].Skipped = true
				r.logger.Warn("Dataset misconfigured, skipped", zap.String("dataset", name), zap.Error(err))
			default:
				r.logger.Error("Dataset analysis failed", zap.String("dataset", name), zap.Error(err))
			}
			r.sink.Error(fmt.Sprintf("%s: %v", name, err))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	r.sink.Complete(done)
	return outcomes, nil
}
