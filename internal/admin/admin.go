// Package admin exposes a small read-only diagnostics endpoint: health,
// delivery counters, durable-queue contents, and the watched pages.
// Strictly observational — nothing here mutates agent state.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gushwork/leadwatch/internal/delivery"
	"github.com/gushwork/leadwatch/internal/store"
)

// Source is the agent state the admin surface reads.
type Source interface {
	Stats() delivery.StatsSnapshot
	Queue() store.Queue
	Pages() []string
}

// Server serves the diagnostics endpoint.
type Server struct {
	httpSrv *http.Server
	logger  *slog.Logger
}

// New builds a Server listening on addr over the given source.
func New(addr string, src Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, src.Stats())
	})

	r.Get("/queue", func(w http.ResponseWriter, req *http.Request) {
		entries, err := src.Queue().Entries(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"depth":   len(entries),
			"entries": entries,
		})
	})

	r.Get("/pages", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"pages": src.Pages()})
	})

	return &Server{
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("admin: listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin: serve failed", "error", err)
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
