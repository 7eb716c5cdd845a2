package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/h3-elevations/internal/core/config"
	"github.com/mohammed-shakir/h3-elevations/internal/core/observability"
	"github.com/mohammed-shakir/h3-elevations/internal/logger"
	"github.com/mohammed-shakir/h3-elevations/internal/popworker"
	"github.com/mohammed-shakir/h3-elevations/internal/store/redisstore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "popworker",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	slog.SetDefault(appLog)
	observability.ExposeBuildInfo(Version)

	wcfg := popworker.FromEnv()
	appLog.Info("starting population worker",
		"version", Version,
		"redis", cfg.RedisAddr,
		"brokers", wcfg.Brokers,
		"topic", wcfg.Topic,
		"group", wcfg.GroupID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		appLog.Error("elevation store unreachable", "addr", cfg.RedisAddr, "err", err)
		return 1
	}
	defer func() { _ = rc.Close() }()

	serveMetrics(ctx, appLog)

	w := popworker.New(wcfg, appLog, redisstore.NewGateway(rc, appLog), popworker.SyntheticSource{})
	if err := w.Start(ctx); err != nil {
		appLog.Error("worker exited with error", "err", err)
		return 1
	}
	appLog.Info("worker stopped")
	return 0
}

func serveMetrics(ctx context.Context, appLog *slog.Logger) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9091"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		appLog.Info("metrics listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("metrics server exited", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
