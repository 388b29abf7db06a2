// Package status serves run progress over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bft-labs/scrubber/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// Source returns the value served on /v1/progress.
type Source func() any

// Server exposes /health and /v1/progress.
type Server struct {
	router *chi.Mux
	addr   string
	source Source
	logger ports.Logger
}

// NewServer creates a server listening on addr (e.g. "127.0.0.1:8750").
func NewServer(addr string, source Source, logger ports.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		addr:   addr,
		source: source,
		logger: logger,
	}
	router.Use(s.logRequests)

	router.Get("/health", s.health)
	router.Get("/v1/progress", s.progress)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server starting", ports.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			ports.String("method", r.Method),
			ports.String("path", r.URL.Path),
			ports.Int("status", ww.Status()),
			ports.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source())
}

// writeJSON encodes v after the header is sent, so an encoding error can
// only be logged.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to encode response", ports.Err(err))
	}
}
