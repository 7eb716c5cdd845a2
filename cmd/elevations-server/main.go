package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/h3-elevations/internal/composer"
	"github.com/mohammed-shakir/h3-elevations/internal/core/config"
	"github.com/mohammed-shakir/h3-elevations/internal/core/health"
	"github.com/mohammed-shakir/h3-elevations/internal/core/observability"
	"github.com/mohammed-shakir/h3-elevations/internal/core/router"
	"github.com/mohammed-shakir/h3-elevations/internal/core/server"
	"github.com/mohammed-shakir/h3-elevations/internal/dedup"
	"github.com/mohammed-shakir/h3-elevations/internal/engine"
	"github.com/mohammed-shakir/h3-elevations/internal/logger"
	h3mapper "github.com/mohammed-shakir/h3-elevations/internal/mapper/h3"
	"github.com/mohammed-shakir/h3-elevations/internal/populator"
	"github.com/mohammed-shakir/h3-elevations/internal/populator/httppop"
	"github.com/mohammed-shakir/h3-elevations/internal/populator/kafkapop"
	"github.com/mohammed-shakir/h3-elevations/internal/resolver"
	"github.com/mohammed-shakir/h3-elevations/internal/store"
	"github.com/mohammed-shakir/h3-elevations/internal/store/memcache"
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
		Component: "elevations",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	slog.SetDefault(appLog)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting elevations server",
		"addr", cfg.Addr,
		"version", Version,
		"redis", cfg.RedisAddr,
		"populator", cfg.Populator.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		appLog.Error("elevation store unreachable", "addr", cfg.RedisAddr, "err", err)
		return 1
	}
	defer rc.Close()

	var gw store.Gateway = redisstore.NewGateway(rc, appLog)
	if cfg.Memcache.Enabled {
		mc, err := memcache.Wrap(gw, memcache.Config{
			SizeMB:     cfg.Memcache.SizeMB,
			LifeWindow: cfg.Memcache.LifeWindow,
		})
		if err != nil {
			appLog.Error("memcache setup failed", "err", err)
			return 1
		}
		defer mc.Close()
		gw = mc
	}

	pop, err := newPopulator(cfg, appLog)
	if err != nil {
		appLog.Error("populator setup failed", "driver", cfg.Populator.Driver, "err", err)
		return 1
	}
	if c, ok := pop.(io.Closer); ok {
		defer c.Close()
	}

	eng := engine.New(
		appLog,
		h3mapper.New(),
		resolver.Limits{
			MinResolution:   cfg.MinResolution,
			MaxResolution:   cfg.MaxResolution,
			CellLimit:       cfg.CellLimit,
			PolygonCellMult: cfg.PolygonCellMult,
		},
		gw,
		dedup.New(cfg.DedupMaxEntries, cfg.PopulationTTL),
		pop,
		engine.WithLookupTimeout(cfg.LookupTimeout),
	)
	comp := composer.New(composer.Config{
		BaseWaitSeconds:    cfg.WaitBaseSeconds,
		PerCellWaitSeconds: cfg.WaitPerCellSeconds,
	})

	h := server.Handlers{
		Elevations: router.HandleElevations(appLog, eng, comp),
		Ready:      health.Readiness(rc),
	}
	if err := server.Run(ctx, cfg, appLog, h); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func newPopulator(cfg config.Config, log *slog.Logger) (populator.Interface, error) {
	switch cfg.Populator.Driver {
	case "kafka":
		return kafkapop.New(cfg.Populator.KafkaBrokerList(), cfg.Populator.Topic, cfg.Populator.Queue, log)
	case "http":
		return httppop.New(cfg.Populator.WebhookURL, cfg.Populator.Queue, cfg.Populator.Timeout, log)
	case "log":
		return populator.NewLog(log), nil
	default:
		return nil, fmt.Errorf("unknown populator driver %q", cfg.Populator.Driver)
	}
}
