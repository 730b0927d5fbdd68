// Package http exposes health, progress, and metrics endpoints while a
// batch is running. Enabled only when HTTP_ADDR is configured.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

// BatchProgress is the view of the running batch the server publishes.
type BatchProgress interface {
	// CheckReadiness returns nil once the batch has made progress.
	CheckReadiness(ctx context.Context) error
	// Snapshot returns the per-year results recorded so far.
	Snapshot() []domain.YearResult
}

// Server serves /healthz, /readyz, /progress, and /metrics.
type Server struct {
	httpServer *http.Server
	batch      BatchProgress
	logger     *slog.Logger
}

// NewServer creates the observability server for a running batch.
func NewServer(addr string, batch BatchProgress, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		batch:  batch,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /progress", s.handleProgress)
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.batch.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleProgress reports the years finished so far and how they ended.
func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	results := s.batch.Snapshot()
	failed := 0
	for _, r := range results {
		if !r.Succeeded {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed": len(results),
		"failed":    failed,
		"years":     results,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort status response
}
