package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/h3-elevations/internal/core/config"
	"github.com/mohammed-shakir/h3-elevations/internal/core/health"
	"github.com/mohammed-shakir/h3-elevations/internal/core/middleware"
)

// Handlers carries the wired endpoints so main owns construction order.
type Handlers struct {
	Elevations http.HandlerFunc
	Ready      http.HandlerFunc
}

// New builds the full route tree. Split out from Run so tests can serve
// the real mux without binding a port.
func New(logger *slog.Logger, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/elevations", func(r chi.Router) {
		r.Post("/", h.Elevations)
		r.Options("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "This endpoint only accepts POST or OPTIONS requests.", http.StatusMethodNotAllowed)
		})
	})

	r.Get("/healthz", health.Liveness())
	if h.Ready != nil {
		r.Get("/readyz", h.Ready)
	}
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

// Run serves until ctx is cancelled, then drains for up to ten seconds.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h Handlers) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           New(logger, h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
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
