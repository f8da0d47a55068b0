package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/store"
)

// Config represents the web server configuration (simplified)
type Config struct {
	Features struct {
		AnalyzeEnabled bool `json:"analyze_enabled"`
	} `json:"features"`
}

// Pinger checks the backing database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIHandler handles the read-only endpoints
type APIHandler struct {
	Catalog store.Catalog
	Tracker *progress.Tracker
	// DB is nil for in-memory stores
	DB     Pinger
	Config *Config
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
	Error  string    `json:"error,omitempty"`
}

// Health reports whether the service and its store are up
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Time: time.Now().UTC()}
	status := http.StatusOK
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

// Progress returns the status of the current or last run
func (h *APIHandler) Progress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Tracker.Snapshot())
}

// Datasets lists the registered datasets
func (h *APIHandler) Datasets(w http.ResponseWriter, r *http.Request) {
	names, err := h.Catalog.Datasets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": names})
}

// State returns the stored quality state of a dataset
func (h *APIHandler) State(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]
	state, err := h.Catalog.State(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(state)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dataset.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, dataset.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
