package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
)

// Options configures the HTTP server.
type Options struct {
	HTTPAddr  string
	AuthToken string
	// TaskTTL is how long finished async tasks are kept. 0 keeps them forever.
	TaskTTL time.Duration
	Match   match.Options
	Cluster cluster.Options
}

// Server exposes the graph store, matching and clustering over HTTP.
type Server struct {
	Engine *engine.Engine

	matcher   *match.Engine
	clusterer *cluster.Clusterer

	httpServer  *http.Server
	taskManager *TaskManager
	authToken   string

	// ctx scopes async tasks; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires the HTTP interface to an already opened Engine.
func NewServer(eng *engine.Engine, opts Options) (*Server, error) {
	store := eng.MatchStore()
	matcher, err := match.NewEngine(store, store, opts.Match)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}
	clusterer, err := cluster.New(store, store, opts.Cluster)
	if err != nil {
		return nil, fmt.Errorf("clusterer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Engine:      eng,
		matcher:     matcher,
		clusterer:   clusterer,
		taskManager: NewTaskManager(opts.TaskTTL),
		authToken:   opts.AuthToken,
		ctx:         ctx,
		cancel:      cancel,
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Recovery -> Logging -> Auth -> Mux. Recovery must be outer-most.
	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.httpServer = &http.Server{
		Addr:              opts.HTTPAddr,
		Handler:           rootMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until Shutdown. It does not own the Engine.
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and cancels running tasks. The Engine is
// closed by the caller.
func (s *Server) Shutdown() {
	slog.Info("Starting graceful shutdown of HTTP server")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}
