package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

const keyPrefix = "elev:"

// Key returns the store key for a cell, e.g. "elev:8c1f36764d203ff".
func Key(c model.Cell) string { return keyPrefix + c.String() }

// FormatValue renders an elevation the way the store expects it. The
// population pipeline and the seed tool write the same representation.
func FormatValue(meters float64) []byte {
	return strconv.AppendFloat(nil, meters, 'f', -1, 64)
}

// Gateway resolves cells against Redis with one MGET per request.
type Gateway struct {
	cli *Client
	log *slog.Logger
}

func NewGateway(cli *Client, log *slog.Logger) *Gateway {
	return &Gateway{cli: cli, log: log}
}

// Put writes elevations in one pipeline. A zero TTL persists. The
// population worker and the seed tool both write through here so the key
// and value encoding stays in one place.
func (g *Gateway) Put(ctx context.Context, elevations map[model.Cell]float64, ttl time.Duration) error {
	if len(elevations) == 0 {
		return nil
	}
	kv := make(map[string][]byte, len(elevations))
	for c, meters := range elevations {
		kv[Key(c)] = FormatValue(meters)
	}
	if err := g.cli.MSetWithTTL(ctx, kv, ttl); err != nil {
		return fmt.Errorf("put %d cells: %w", len(elevations), err)
	}
	return nil
}

func (g *Gateway) Lookup(ctx context.Context, cells []model.Cell) (map[model.Cell]float64, error) {
	out := make(map[model.Cell]float64, len(cells))
	if len(cells) == 0 {
		return out, nil
	}

	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = Key(c)
	}
	raw, err := g.cli.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("lookup %d cells: %w", len(cells), err)
	}

	for i, c := range cells {
		v, ok := raw[keys[i]]
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			// a corrupt value reads as missing so it gets repopulated
			g.log.Warn("unparsable elevation value",
				"cell", c.String(), "raw", string(v), "err", err)
			continue
		}
		out[c] = f
	}
	return out, nil
}
