// Package mapper converts between geometric coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

type Interface interface {
	// CellFromCoordinate indexes one point at the given resolution.
	CellFromCoordinate(c model.Coordinate, res int) (model.Cell, error)

	// CellsForPolygon returns the cells whose centerpoints fall inside the
	// ring, deduplicated and sorted. An empty result is not an error.
	CellsForPolygon(poly model.Polygon, res int) ([]model.Cell, error)

	// ValidCell reports whether the index is structurally well-formed.
	ValidCell(c model.Cell) bool
}
