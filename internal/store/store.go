// Package store defines the gateway to the elevation store.
package store

import (
	"context"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

// Gateway answers which of the requested cells have a computed elevation.
// Lookup returns a value for every cell the store knows; absent cells are
// simply missing from the map. A partial store answer is not an error, a
// failed lookup is.
type Gateway interface {
	Lookup(ctx context.Context, cells []model.Cell) (map[model.Cell]float64, error)
}
