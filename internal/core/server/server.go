package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geos/internal/core/config"
	"github.com/mohammed-shakir/geos/internal/core/health"
	middleware "github.com/mohammed-shakir/geos/internal/core/middleware"
	"github.com/mohammed-shakir/geos/internal/core/router"
	"github.com/mohammed-shakir/geos/internal/metrics"
)

// NewHandler wires the ops endpoints and the service routes. The metrics
// path is mounted only when the provider serves it inline; p may be nil.
func NewHandler(logger *slog.Logger, svc *router.Service, p *metrics.Provider) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(svc))
	if p.Inline() {
		r.Method(http.MethodGet, p.Path(), p.Handler())
	}
	svc.Routes(r)
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// prints of large pages at high dpi take minutes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
