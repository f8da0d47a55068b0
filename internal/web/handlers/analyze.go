package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/address"
	"github.com/rk-analyzer/internal/analyzer"
	"github.com/rk-analyzer/internal/progress"
)

// AnalyzeHandler triggers analyses and role suggestions
type AnalyzeHandler struct {
	Analyzer *analyzer.Analyzer
	Tracker  *progress.Tracker
	Config   *Config
	Logger   *zap.Logger

	mu      sync.Mutex
	running string
}

// AnalyzeResponse acknowledges a background analysis
type AnalyzeResponse struct {
	Dataset   string    `json:"dataset"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Analyze starts the analysis of a dataset. With ?wait=true the state is
// returned once written; otherwise the run continues in the background and
// its progress is served by /api/progress. One run at a time.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if !h.Config.Features.AnalyzeEnabled {
		http.Error(w, "Analyze feature disabled", http.StatusForbidden)
		return
	}
	name := mux.Vars(r)["dataset"]

	if !h.acquire(name) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "analysis of " + h.current() + " in progress"})
		return
	}
	h.Tracker.Reset()
	h.Tracker.Start(name)

	if r.URL.Query().Get("wait") == "true" {
		defer h.release()
		state, err := h.run(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer h.release()
		h.run(ctx, name)
	}()
	writeJSON(w, http.StatusAccepted, AnalyzeResponse{Dataset: name, Status: "started", Timestamp: time.Now().UTC()})
}

func (h *AnalyzeHandler) run(ctx context.Context, name string) (any, error) {
	state, err := h.Analyzer.Analyze(ctx, name)
	if err != nil {
		h.Logger.Error("Analysis failed", zap.String("dataset", name), zap.Error(err))
		h.Tracker.Error(name + ": " + err.Error())
		return nil, err
	}
	h.Tracker.Complete(1)
	return state, nil
}

func (h *AnalyzeHandler) acquire(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running != "" {
		return false
	}
	h.running = name
	return true
}

func (h *AnalyzeHandler) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = ""
}

func (h *AnalyzeHandler) current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Roles suggests address roles for the undeclared string fields
func (h *AnalyzeHandler) Roles(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]
	suggestions, err := h.Analyzer.SuggestRoles(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []address.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dataset": name, "suggestions": suggestions})
}
