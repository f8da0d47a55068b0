package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/store/memstore"
)

func TestRunner(t *testing.T) {
	s := memstore.New("ru")
	s.Add(&memstore.Dataset{Name: "shops", Docs: shops(10, 10), Fields: shopFields})
	s.Add(&memstore.Dataset{Name: "legacy", Docs: shops(3, 0), Fields: shopFields})

	for _, parallel := range []int{1, 3} {
		tracker := progress.NewTracker()
		runner := NewRunner(New(testEnv(t, 100), s, tracker), tracker).
			WithSkip("legacy").
			WithParallel(parallel)

		outcomes, err := runner.Run(context.Background(), []string{"shops", "legacy", "missing"})
		if err != nil {
			t.Fatalf("parallel %d: Run failed: %v", parallel, err)
		}
		if len(outcomes) != 3 {
			t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
		}

		if o := outcomes[0]; o.Err != nil || o.State == nil || o.Skipped {
			t.Errorf("shops outcome = %+v", o)
		}
		if o := outcomes[1]; !o.Skipped || o.State != nil {
			t.Errorf("legacy outcome = %+v", o)
		}
		if o := outcomes[2]; !o.Skipped || !errors.Is(o.Err, dataset.ErrConfiguration) {
			t.Errorf("missing outcome = %+v", o)
		}

		status := tracker.Snapshot()
		if !status.Completed || status.Inserted != 3 {
			t.Errorf("status = %+v", status)
		}
		if len(status.Errors) != 1 {
			t.Errorf("expected the configuration error only, got %v", status.Errors)
		}
	}
}

func TestRunnerStopsWhenStoreUnavailable(t *testing.T) {
	s := memstore.New("ru")
	s.Add(&memstore.Dataset{Name: "a", Docs: shops(3, 3), Fields: shopFields})
	s.Add(&memstore.Dataset{Name: "b", Docs: shops(3, 3), Fields: shopFields})

	tracker := progress.NewTracker()
	runner := NewRunner(New(testEnv(t, 100), unavailableStore{s}, tracker), tracker)
	outcomes, err := runner.Run(context.Background(), []string{"a", "b"})
	if !errors.Is(err, dataset.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable store error, got %v", err)
	}
	if !errors.Is(outcomes[0].Err, dataset.ErrStoreUnavailable) {
		t.Errorf("first outcome = %+v", outcomes[0])
	}
	if outcomes[1].State != nil {
		t.Errorf("second dataset must not be analysed: %+v", outcomes[1])
	}

	status := tracker.Snapshot()
	if status.Completed || status.Progress == 1 {
		t.Errorf("aborted run reported as complete: %+v", status)
	}
	if len(status.Errors) == 0 {
		t.Error("abort not recorded")
	}
}
