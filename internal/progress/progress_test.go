package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Start("shops")
	tr.Progress(0.5, 1)
	tr.Error("shops/name: typeMatching: unsupported type")

	s := tr.Snapshot()
	if s.Current != "shops" || s.Progress != 0.5 || s.Inserted != 1 {
		t.Errorf("unexpected status %+v", s)
	}
	if len(s.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", s.Errors)
	}

	// snapshots are copies
	s.Errors[0] = "changed"
	if tr.Snapshot().Errors[0] == "changed" {
		t.Error("snapshot shares the error slice")
	}

	tr.Complete(2)
	s = tr.Snapshot()
	if !s.Completed || s.Progress != 1 || s.Inserted != 2 || s.Current != "" {
		t.Errorf("unexpected completed status %+v", s)
	}

	tr.Reset()
	if s := tr.Snapshot(); s.Completed || len(s.Errors) != 0 {
		t.Errorf("reset left %+v", s)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Error("boom")
		}()
	}
	wg.Wait()
	if n := len(tr.Snapshot().Errors); n != 20 {
		t.Errorf("expected 20 errors, got %d", n)
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.json")
	tracker := NewTracker()
	var sink Sink = Multi{NewFileSink(path, tracker, zap.NewNop()), NewLogSink(zap.NewNop()), Nop{}}

	sink.Start("shops")
	sink.Progress(0.25, 1)
	sink.Error("shops: store unavailable")
	sink.Complete(4)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("progress file not written: %v", err)
	}
	var status map[string]any
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	for _, key := range []string{"progress", "inserted", "errors", "completed"} {
		if _, ok := status[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if status["completed"] != true || status["inserted"] != float64(4) {
		t.Errorf("unexpected status %s", data)
	}
}
