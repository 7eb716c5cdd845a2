// Package memcache puts a small in-process cache in front of the elevation
// store so hot cells skip the network round-trip. Only present values are
// cached: a cell that is being populated must read as missing until the
// store actually has it.
package memcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/internal/core/observability"
	"github.com/mohammed-shakir/h3-elevations/internal/store"
)

type Config struct {
	SizeMB     int
	LifeWindow time.Duration
}

type Cache struct {
	inner store.Gateway
	bc    *bigcache.BigCache
}

// Wrap layers the cache over inner. Elevations are written once and never
// change, so entries stay valid for the whole life window.
func Wrap(inner store.Gateway, cfg Config) (*Cache, error) {
	if cfg.SizeMB <= 0 {
		cfg.SizeMB = 32
	}
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = 10 * time.Minute
	}
	bc, err := bigcache.New(context.Background(), bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        time.Minute,
		MaxEntriesInWindow: 1000 * 10 * 60,
		MaxEntrySize:       16,
		HardMaxCacheSize:   cfg.SizeMB,
		Verbose:            false,
	})
	if err != nil {
		return nil, fmt.Errorf("bigcache: %w", err)
	}
	return &Cache{inner: inner, bc: bc}, nil
}

func (c *Cache) Lookup(ctx context.Context, cells []model.Cell) (map[model.Cell]float64, error) {
	out := make(map[model.Cell]float64, len(cells))
	var missing []model.Cell
	for _, cell := range cells {
		if raw, err := c.bc.Get(cacheKey(cell)); err == nil && len(raw) == 8 {
			out[cell] = math.Float64frombits(binary.BigEndian.Uint64(raw))
			continue
		}
		missing = append(missing, cell)
	}
	observability.AddMemcacheHits(len(out))
	observability.AddMemcacheMisses(len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.Lookup(ctx, missing)
	if err != nil {
		return nil, err
	}
	for cell, v := range fetched {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
		_ = c.bc.Set(cacheKey(cell), b[:])
		out[cell] = v
	}
	return out, nil
}

func (c *Cache) Close() error { return c.bc.Close() }

func cacheKey(c model.Cell) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(c))
	return string(b[:])
}
