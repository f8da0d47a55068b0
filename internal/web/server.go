package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/analyzer"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/store"
	"github.com/rk-analyzer/internal/web/handlers"
	"github.com/rk-analyzer/internal/web/middleware"
)

// Deps are the services the server exposes
type Deps struct {
	Analyzer *analyzer.Analyzer
	Store    store.Store
	Tracker  *progress.Tracker
	// DB is nil when the store is in memory
	DB     handlers.Pinger
	Logger *zap.Logger
}

// Server represents the web server
type Server struct {
	config     *Config
	deps       Deps
	logger     *zap.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(config *Config, deps Deps) *Server {
	server := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger.Named("web"),
	}

	// Setup routes
	server.setupRoutes()

	// Create HTTP server. Synchronous analyses can outlast a short write timeout.
	server.httpServer = &http.Server{
		Addr:         config.Server.Addr(),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Convert config for handlers (to avoid import cycle)
	handlerConfig := &handlers.Config{}
	handlerConfig.Features.AnalyzeEnabled = s.config.Features.AnalyzeEnabled

	apiHandler := &handlers.APIHandler{
		Catalog: s.deps.Store,
		Tracker: s.deps.Tracker,
		DB:      s.deps.DB,
		Config:  handlerConfig,
	}
	analyzeHandler := &handlers.AnalyzeHandler{
		Analyzer: s.deps.Analyzer,
		Tracker:  s.deps.Tracker,
		Config:   handlerConfig,
		Logger:   s.logger,
	}

	// API routes
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", apiHandler.Health).Methods("GET")
	api.HandleFunc("/progress", apiHandler.Progress).Methods("GET")
	api.HandleFunc("/datasets", apiHandler.Datasets).Methods("GET")
	api.HandleFunc("/datasets/{dataset}/state", apiHandler.State).Methods("GET")
	api.HandleFunc("/datasets/{dataset}/roles", analyzeHandler.Roles).Methods("GET")
	api.HandleFunc("/datasets/{dataset}/analyze", analyzeHandler.Analyze).Methods("POST")

	// Apply middleware
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigin))
	s.router.Use(middleware.RequestLogging(s.logger))
	api.Use(middleware.Authentication(s.config.Auth.APIKey))
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}
