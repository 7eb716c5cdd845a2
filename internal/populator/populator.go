// Package populator triggers elevation computation for cells the store
// does not have yet.
package populator

import (
	"log/slog"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/pkg/populate"
)

// Interface is the population trigger. Implementations must not block the
// request path; delivery is best effort and the dedup TTL re-arms the
// trigger if a request is lost.
type Interface interface {
	RequestPopulation(cells []model.Cell)
}

// NewRequest builds the wire message for a batch of cells.
func NewRequest(cells []model.Cell) populate.Request {
	ids := make([]uint64, len(cells))
	for i, c := range cells {
		ids[i] = uint64(c)
	}
	return populate.Request{Cells: ids, RequestedAt: time.Now().UTC()}
}

// LogDriver only records population requests. It is the development
// fallback when no pipeline is wired.
type LogDriver struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *LogDriver { return &LogDriver{log: log} }

func (d *LogDriver) RequestPopulation(cells []model.Cell) {
	d.log.Info("population requested", "cells", len(cells))
}
