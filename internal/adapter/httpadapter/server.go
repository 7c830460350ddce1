package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/border-data-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Loader returns the border data aggregate, loading it on first use.
type Loader interface {
	Load(ctx context.Context) (*domain.AggregateResult, error)
}

// Server exposes the border data API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	loader     Loader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/border routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, loader Loader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// The first API request may wait for the full dataset download.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		loader: loader,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/border/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/border/ports/{key}", s.handlePort)
	mux.HandleFunc("GET /api/border/ports/{key}/series", s.handlePortSeries)
	mux.HandleFunc("GET /api/border/years/{year}", s.handleYear)
	mux.HandleFunc("GET /api/border/compare", s.handleCompare)
	mux.HandleFunc("GET /api/border/map", s.handleMap)
	mux.HandleFunc("GET /api/border/export.xlsx", s.handleExport)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
