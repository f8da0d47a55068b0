// Package progress reports run progress: fraction done, processed count,
// accumulated errors and completion.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the progress document
type Status struct {
	Progress  float64   `json:"progress"`
	Inserted  int       `json:"inserted"`
	Errors    []string  `json:"errors"`
	Completed bool      `json:"completed"`
	Current   string    `json:"current,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sink receives progress updates. Implementations must be safe for
// concurrent use.
type Sink interface {
	Start(dataset string)
	Progress(fraction float64, processed int)
	Error(description string)
	Complete(processed int)
}

// Tracker keeps the latest status in memory
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{status: Status{Errors: []string{}, UpdatedAt: time.Now()}}
}

// Reset clears the status for a new run
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{Errors: []string{}, UpdatedAt: time.Now()}
}

func (t *Tracker) Start(dataset string) {
	t.update(func(s *Status) { s.Current = dataset })
}

func (t *Tracker) Progress(fraction float64, processed int) {
	t.update(func(s *Status) {
		s.Progress = fraction
		s.Inserted = processed
	})
}

func (t *Tracker) Error(description string) {
	t.update(func(s *Status) { s.Errors = append(s.Errors, description) })
}

func (t *Tracker) Complete(processed int) {
	t.update(func(s *Status) {
		s.Progress = 1
		s.Inserted = processed
		s.Completed = true
		s.Current = ""
	})
}

func (t *Tracker) update(fn func(*Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.status)
	t.status.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the current status
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.status
	s.Errors = append([]string{}, t.status.Errors...)
	return s
}

// FileSink mirrors a tracker into a JSON file after every update
type FileSink struct {
	path    string
	tracker *Tracker
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewFileSink writes the status of tracker to path
func NewFileSink(path string, tracker *Tracker, logger *zap.Logger) *FileSink {
	return &FileSink{path: path, tracker: tracker, logger: logger.Named("progress")}
}

func (f *FileSink) Start(dataset string) {
	f.tracker.Start(dataset)
	f.flush()
}

func (f *FileSink) Progress(fraction float64, processed int) {
	f.tracker.Progress(fraction, processed)
	f.flush()
}

func (f *FileSink) Error(description string) {
	f.tracker.Error(description)
	f.flush()
}

func (f *FileSink) Complete(processed int) {
	f.tracker.Complete(processed)
	f.flush()
}

// flush writes through a temporary file so readers never see a partial document
func (f *FileSink) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeJSON(f.path, f.tracker.Snapshot()); err != nil {
		f.logger.Warn("Failed to write progress file", zap.String("path", f.path), zap.Error(err))
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".progress-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Multi fans updates out to several sinks
type Multi []Sink

func (m Multi) Start(dataset string) {
	for _, s := range m {
		s.Start(dataset)
	}
}

func (m Multi) Progress(fraction float64, processed int) {
	for _, s := range m {
		s.Progress(fraction, processed)
	}
}

func (m Multi) Error(description string) {
	for _, s := range m {
		s.Error(description)
	}
}

func (m Multi) Complete(processed int) {
	for _, s := range m {
		s.Complete(processed)
	}
}

// LogSink logs every update
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging through logger
func NewLogSink(logger *zap.Logger) LogSink {
	return LogSink{logger: logger.Named("progress")}
}

func (l LogSink) Start(dataset string) {
	l.logger.Info("Analysing dataset", zap.String("dataset", dataset))
}

func (l LogSink) Progress(fraction float64, processed int) {
	l.logger.Info("Progress", zap.Float64("progress", fraction), zap.Int("processed", processed))
}

func (l LogSink) Error(description string) {
	l.logger.Warn("Run error", zap.String("error", description))
}

func (l LogSink) Complete(processed int) {
	l.logger.Info("Run completed", zap.Int("processed", processed))
}

// Nop discards updates
type Nop struct{}

func (Nop) Start(string)          {}
func (Nop) Progress(float64, int) {}
func (Nop) Error(string)          {}
func (Nop) Complete(int)          {}

var (
	_ Sink = (*Tracker)(nil)
	_ Sink = (*FileSink)(nil)
	_ Sink = Multi(nil)
	_ Sink = LogSink{}
	_ Sink = Nop{}
)
