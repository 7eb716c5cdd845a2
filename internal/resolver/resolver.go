// Package resolver normalizes the three request addressing modes into one
// canonical cell set and enforces request limits.
package resolver

import (
	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/internal/mapper"
)

// Payload is the decoded request body. Exactly one of Cells, Coordinates
// or Polygon must be present; a nil slice means the key was absent.
type Payload struct {
	Cells       []uint64    `json:"cells"`
	Coordinates [][]float64 `json:"coordinates"`
	Polygon     [][]float64 `json:"polygon"`
	Resolution  *int        `json:"resolution"`
}

// Limits bound how much work one request may demand.
type Limits struct {
	MinResolution   int
	MaxResolution   int
	CellLimit       int
	PolygonCellMult int
}

func (l Limits) polygonCellLimit() int { return l.CellLimit * l.PolygonCellMult }

// Resolve validates the payload and derives the canonical cell set. The
// returned error is always a *Error.
//
// Checks run cheapest-first: shape dispatch, resolution bounds, then
// cardinality on the deduplicated set, then structural cell validation.
// A request that would be rejected never reaches the store.
func Resolve(p Payload, lim Limits, codec mapper.Interface) (model.RequestedSet, error) {
	shapes := 0
	if p.Cells != nil {
		shapes++
	}
	if p.Coordinates != nil {
		shapes++
	}
	if p.Polygon != nil {
		shapes++
	}
	if shapes != 1 {
		return model.RequestedSet{}, newError(KindMalformed,
			"request must contain exactly one of cells, coordinates or polygon")
	}

	switch {
	case p.Cells != nil:
		// resolution is meaningless for explicit cells and is ignored
		return resolveCells(p.Cells, lim, codec)
	case p.Coordinates != nil:
		res, err := effectiveResolution(p.Resolution, lim)
		if err != nil {
			return model.RequestedSet{}, err
		}
		return resolveCoordinates(p.Coordinates, res, lim, codec)
	default:
		res, err := effectiveResolution(p.Resolution, lim)
		if err != nil {
			return model.RequestedSet{}, err
		}
		return resolvePolygon(p.Polygon, res, lim, codec)
	}
}

func effectiveResolution(res *int, lim Limits) (int, error) {
	if res == nil {
		return lim.MaxResolution, nil
	}
	if *res < lim.MinResolution || *res > lim.MaxResolution {
		return 0, newError(KindResolution,
			"Request for resolution %d rejected - the resolution must be between %d and %d inclusively.",
			*res, lim.MinResolution, lim.MaxResolution)
	}
	return *res, nil
}

func resolveCells(in []uint64, lim Limits, codec mapper.Interface) (model.RequestedSet, error) {
	if len(in) == 0 {
		return model.RequestedSet{}, newError(KindMalformed, "Request for zero cells rejected.")
	}
	cells := make([]model.Cell, 0, len(in))
	seen := make(map[model.Cell]struct{}, len(in))
	for _, raw := range in {
		c := model.Cell(raw)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cells = append(cells, c)
	}
	if err := checkCellLimit(len(cells), lim.CellLimit); err != nil {
		return model.RequestedSet{}, err
	}
	for _, c := range cells {
		if !codec.ValidCell(c) {
			return model.RequestedSet{}, newError(KindInvalidCell,
				"%s is not a valid H3 cell - aborting request.", c.Decimal())
		}
	}
	return model.RequestedSet{Shape: model.ShapeCells, Cells: cells}, nil
}

func resolveCoordinates(in [][]float64, res int, lim Limits, codec mapper.Interface) (model.RequestedSet, error) {
	if len(in) == 0 {
		return model.RequestedSet{}, newError(KindMalformed, "Request for zero cells rejected.")
	}
	cells := make([]model.Cell, 0, len(in))
	sources := make(map[model.Cell]model.Coordinate, len(in))
	for i, pair := range in {
		if len(pair) != 2 {
			return model.RequestedSet{}, newError(KindMalformed,
				"coordinate %d must be a [latitude, longitude] pair", i)
		}
		coord := model.Coordinate{Lat: pair[0], Lng: pair[1]}
		if !coord.Valid() {
			return model.RequestedSet{}, newError(KindMalformed,
				"coordinate %d is outside geographic bounds", i)
		}
		cell, err := codec.CellFromCoordinate(coord, res)
		if err != nil {
			return model.RequestedSet{}, newError(KindMalformed, "coordinate %d: %v", i, err)
		}
		if _, ok := sources[cell]; !ok {
			cells = append(cells, cell)
		}
		// when several points land in one cell the last one seen wins
		sources[cell] = coord
	}
	if err := checkCellLimit(len(cells), lim.CellLimit); err != nil {
		return model.RequestedSet{}, err
	}
	return model.RequestedSet{
		Shape:      model.ShapeCoordinates,
		Resolution: res,
		Cells:      cells,
		Sources:    sources,
	}, nil
}

func resolvePolygon(in [][]float64, res int, lim Limits, codec mapper.Interface) (model.RequestedSet, error) {
	if len(in) < 3 {
		return model.RequestedSet{}, newError(KindMalformed,
			"a polygon requires at least 3 vertices")
	}
	ring := make(model.Polygon, 0, len(in))
	for i, pair := range in {
		if len(pair) != 2 {
			return model.RequestedSet{}, newError(KindMalformed,
				"polygon vertex %d must be a [latitude, longitude] pair", i)
		}
		coord := model.Coordinate{Lat: pair[0], Lng: pair[1]}
		if !coord.Valid() {
			return model.RequestedSet{}, newError(KindMalformed,
				"polygon vertex %d is outside geographic bounds", i)
		}
		ring = append(ring, coord)
	}
	cells, err := codec.CellsForPolygon(ring, res)
	if err != nil {
		return model.RequestedSet{}, newError(KindMalformed, "polygon: %v", err)
	}
	if len(cells) == 0 {
		return model.RequestedSet{}, newError(KindEmptyCoverage, "Request for zero cells rejected.")
	}
	if err := checkCellLimit(len(cells), lim.polygonCellLimit()); err != nil {
		return model.RequestedSet{}, err
	}
	return model.RequestedSet{
		Shape:      model.ShapePolygon,
		Resolution: res,
		Cells:      cells,
	}, nil
}

func checkCellLimit(n, limit int) error {
	if n > limit {
		return newError(KindCellLimit,
			"Request for %d cells rejected - only %d cells can be sent per request.", n, limit)
	}
	return nil
}
