// Package server exposes the run bridge over HTTP: health, agent and suite
// listings, run execution and persisted run history.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// requestTimeout bounds one API request end to end, including multi-suite
// real dispatch.
const requestTimeout = 10 * time.Minute

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	httpServer *http.Server
}

// New builds the router with the standard middleware chain and mounts the
// API handler.
func New(port int, logger *slog.Logger, h *Handler) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "testbridge")
	})

	h.Routes(r)

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// Start serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
