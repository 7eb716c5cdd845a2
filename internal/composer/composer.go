// Package composer assembles the outward response envelope, echoing every
// requested cell under the addressing the caller used.
package composer

import (
	"encoding/json"
	"strconv"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

// Key is one response identifier: a decimal cell id for cell- and
// polygon-addressed requests, or the literal originating coordinate pair
// for coordinate-addressed ones.
type Key struct {
	cell  string
	coord *model.Coordinate
}

// MarshalJSON renders coordinates as a [lat, lng] array and cells as a
// quoted decimal string, matching how each appeared in the request.
func (k Key) MarshalJSON() ([]byte, error) {
	if k.coord != nil {
		return json.Marshal([2]float64{k.coord.Lat, k.coord.Lng})
	}
	return json.Marshal(k.cell)
}

// String renders the key the way it appears in the elevations map, where
// JSON forces every key to be a string.
func (k Key) String() string {
	if k.coord != nil {
		return coordString(*k.coord)
	}
	return k.cell
}

// Envelope is the response body. Elevations is never nil so an empty
// result renders as {} rather than null. Pending and the wait estimate
// appear together or not at all.
type Envelope struct {
	Elevations        map[string]float64 `json:"elevations"`
	Pending           []Key              `json:"pending,omitempty"`
	EstimatedWaitTime int                `json:"estimated_wait_time,omitempty"`
}

type Config struct {
	BaseWaitSeconds    int
	PerCellWaitSeconds int
}

type Composer struct {
	baseWait    int
	perCellWait int
}

func New(cfg Config) *Composer {
	if cfg.BaseWaitSeconds <= 0 {
		cfg.BaseWaitSeconds = 240
	}
	if cfg.PerCellWaitSeconds < 0 {
		cfg.PerCellWaitSeconds = 0
	}
	return &Composer{baseWait: cfg.BaseWaitSeconds, perCellWait: cfg.PerCellWaitSeconds}
}

// Build keys the available elevations and the pending list by the set's
// original addressing. Pending keeps the order of unavailable.
func (c *Composer) Build(set model.RequestedSet, available map[model.Cell]float64, unavailable []model.Cell) Envelope {
	env := Envelope{Elevations: make(map[string]float64, len(available))}
	for cell, meters := range available {
		env.Elevations[keyFor(set, cell).String()] = meters
	}
	if len(unavailable) == 0 {
		return env
	}
	env.Pending = make([]Key, 0, len(unavailable))
	for _, cell := range unavailable {
		env.Pending = append(env.Pending, keyFor(set, cell))
	}
	env.EstimatedWaitTime = c.baseWait + c.perCellWait*len(unavailable)
	return env
}

// keyFor maps a cell back to its request-time identifier. A coordinate
// request falls back to the cell id if the cell has no recorded source,
// which cannot happen for sets built by the resolver.
func keyFor(set model.RequestedSet, cell model.Cell) Key {
	if set.Shape == model.ShapeCoordinates {
		if src, ok := set.Sources[cell]; ok {
			return Key{coord: &src}
		}
	}
	return Key{cell: cell.Decimal()}
}

func coordString(c model.Coordinate) string {
	return "[" + strconv.FormatFloat(c.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Lng, 'f', -1, 64) + "]"
}
