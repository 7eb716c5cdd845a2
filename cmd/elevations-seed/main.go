// Seeds the elevation store with synthetic values for a rectangular area,
// so local runs answer requests without a real population pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"math"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	h3mapper "github.com/mohammed-shakir/h3-elevations/internal/mapper/h3"
	"github.com/mohammed-shakir/h3-elevations/internal/popworker"
	"github.com/mohammed-shakir/h3-elevations/internal/store/redisstore"
)

type Config struct {
	RedisAddr string
	MinLat    float64
	MaxLat    float64
	MinLng    float64
	MaxLng    float64
	Res       int
	TTL       time.Duration
	Value     float64
	Batch     int
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.RedisAddr, "redis", "localhost:6379", "Elevation store address")
	flag.Float64Var(&cfg.MinLat, "min-lat", 54.45, "South edge of the seeded area")
	flag.Float64Var(&cfg.MaxLat, "max-lat", 54.60, "North edge of the seeded area")
	flag.Float64Var(&cfg.MinLng, "min-lng", 5.85, "West edge of the seeded area")
	flag.Float64Var(&cfg.MaxLng, "max-lng", 6.10, "East edge of the seeded area")
	flag.IntVar(&cfg.Res, "res", 10, "H3 resolution to seed at")
	flag.DurationVar(&cfg.TTL, "ttl", 0, "Value TTL (0 persists)")
	flag.Float64Var(&cfg.Value, "value", math.NaN(), "Fixed elevation in meters (default: synthetic per cell)")
	flag.IntVar(&cfg.Batch, "batch", 500, "Cells per write pipeline")
	flag.Parse()
	return cfg
}

func main() {
	cfg := loadConfig()
	if cfg.Batch <= 0 {
		cfg.Batch = 500
	}

	area := model.Polygon{
		{Lat: cfg.MinLat, Lng: cfg.MinLng},
		{Lat: cfg.MinLat, Lng: cfg.MaxLng},
		{Lat: cfg.MaxLat, Lng: cfg.MaxLng},
		{Lat: cfg.MaxLat, Lng: cfg.MinLng},
	}
	cells, err := h3mapper.New().CellsForPolygon(area, cfg.Res)
	if err != nil {
		log.Fatalf("cover area: %v", err)
	}
	if len(cells) == 0 {
		log.Fatalf("area covers no cells at resolution %d", cfg.Res)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cli, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("connect store: %v", err)
	}
	defer func() { _ = cli.Close() }()
	gw := redisstore.NewGateway(cli, slog.Default())

	source := popworker.SyntheticSource{}
	start := time.Now()
	batch := make(map[model.Cell]float64, cfg.Batch)
	written := 0
	for _, c := range cells {
		v := cfg.Value
		if math.IsNaN(v) {
			v, _ = source.Elevation(c)
		}
		batch[c] = v
		if len(batch) >= cfg.Batch {
			if err := gw.Put(ctx, batch, cfg.TTL); err != nil {
				log.Fatalf("write batch: %v", err)
			}
			written += len(batch)
			batch = make(map[model.Cell]float64, cfg.Batch)
		}
	}
	if len(batch) > 0 {
		if err := gw.Put(ctx, batch, cfg.TTL); err != nil {
			log.Fatalf("write batch: %v", err)
		}
		written += len(batch)
	}

	log.Printf("seeded %d cells at res %d in %s", written, cfg.Res, time.Since(start).Round(time.Millisecond))
}
