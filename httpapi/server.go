// Package httpapi exposes the job registry over HTTP for presentation
// layers: submission, listing, cancellation, and a live snapshot stream
// per job (server-sent events).
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prismrag/ragjobs/pkg/archive"
	"github.com/prismrag/ragjobs/pkg/registry"
)

// Server holds the handler dependencies.
type Server struct {
	registry *registry.Registry
	archive  *archive.Store
	logger   *slog.Logger
}

// Option configures a Server.
type Option interface {
	apply(*Server)
}

type optionFunc func(*Server)

func (f optionFunc) apply(s *Server) { f(s) }

// WithArchive enables the history endpoint backed by the archive store.
func WithArchive(store *archive.Store) Option {
	return optionFunc(func(s *Server) {
		s.archive = store
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *Server) {
		if l != nil {
			s.logger = l
		}
	})
}

// NewHandler builds the chi router with the middleware stack and all
// routes.
func NewHandler(reg *registry.Registry, opts ...Option) http.Handler {
	s := &Server{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(s)
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/api/v1/healthz", s.health)

	r.Post("/api/v1/files", s.submitFile)
	r.Post("/api/v1/generate", s.submitPrompt)

	r.Get("/api/v1/jobs", s.listJobs)
	r.Get("/api/v1/jobs/{jobID}", s.getJob)
	r.Post("/api/v1/jobs/{jobID}/cancel", s.cancelJob)
	r.Get("/api/v1/jobs/{jobID}/events", s.streamJob)

	r.Get("/api/v1/history", s.listHistory)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
