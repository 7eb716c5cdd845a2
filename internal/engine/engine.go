// Package engine orchestrates one elevation request: normalize the cell
// set, split it against the store, and trigger population for the gap.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/internal/core/observability"
	"github.com/mohammed-shakir/h3-elevations/internal/dedup"
	"github.com/mohammed-shakir/h3-elevations/internal/mapper"
	"github.com/mohammed-shakir/h3-elevations/internal/populator"
	"github.com/mohammed-shakir/h3-elevations/internal/resolver"
	"github.com/mohammed-shakir/h3-elevations/internal/store"
)

// Result partitions the requested set: every requested cell is either in
// Available or in Unavailable, never both. Unavailable keeps the set's
// order so responses render deterministically.
type Result struct {
	Set         model.RequestedSet
	Available   map[model.Cell]float64
	Unavailable []model.Cell
}

type Engine struct {
	logger  *slog.Logger
	codec   mapper.Interface
	limits  resolver.Limits
	store   store.Gateway
	pending *dedup.Cache
	pop     populator.Interface

	lookupTimeout time.Duration
}

type Option func(*Engine)

// WithLookupTimeout bounds the store round-trip per request. Zero disables
// the extra deadline and the caller's context rules alone.
func WithLookupTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lookupTimeout = d }
}

func New(
	logger *slog.Logger,
	codec mapper.Interface,
	limits resolver.Limits,
	gw store.Gateway,
	pending *dedup.Cache,
	pop populator.Interface,
	opts ...Option,
) *Engine {
	e := &Engine{
		logger:        logger,
		codec:         codec,
		limits:        limits,
		store:         gw,
		pending:       pending,
		pop:           pop,
		lookupTimeout: 2 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Resolve runs the full pipeline. A *resolver.Error means the request was
// rejected before any store work; any other error is a store failure.
func (e *Engine) Resolve(ctx context.Context, p resolver.Payload) (Result, error) {
	start := time.Now()

	rs, err := resolver.Resolve(p, e.limits, e.codec)
	if err != nil {
		return Result{}, err
	}

	lctx := ctx
	if e.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, e.lookupTimeout)
		defer cancel()
	}
	lookupStart := time.Now()
	found, err := e.store.Lookup(lctx, rs.Cells)
	if err != nil {
		return Result{}, fmt.Errorf("store lookup: %w", err)
	}
	lookupDur := time.Since(lookupStart)

	res := Result{Set: rs, Available: make(map[model.Cell]float64, len(found))}
	for _, c := range rs.Cells {
		if v, ok := found[c]; ok {
			res.Available[c] = v
		} else {
			res.Unavailable = append(res.Unavailable, c)
		}
	}
	observability.AddCellsAvailable(len(res.Available))
	observability.AddCellsUnavailable(len(res.Unavailable))

	suppressed := 0
	populate := 0
	if len(res.Unavailable) > 0 {
		pending := e.pending.StillPending(res.Unavailable)
		toPopulate := make([]model.Cell, 0, len(res.Unavailable)-len(pending))
		for _, c := range res.Unavailable {
			if _, ok := pending[c]; ok {
				continue
			}
			toPopulate = append(toPopulate, c)
		}
		suppressed = len(res.Unavailable) - len(toPopulate)
		populate = len(toPopulate)
		if len(toPopulate) > 0 {
			// mark first so a racing request sees these as pending
			e.pending.MarkPending(toPopulate)
			e.pop.RequestPopulation(toPopulate)
		}
		observability.AddPopulationRequested(populate)
		observability.AddPopulationSuppressed(suppressed)
	}
	observability.SetDedupEntries(e.pending.Len())

	e.logger.InfoContext(ctx, "elevations resolved",
		"shape", rs.Shape.String(), "res", rs.Resolution,
		"cells", rs.Len(), "available", len(res.Available), "unavailable", len(res.Unavailable),
		"populate", populate, "suppressed", suppressed,
		"lookup_dur", lookupDur.String(),
		"total_dur", time.Since(start).String())
	return res, nil
}
