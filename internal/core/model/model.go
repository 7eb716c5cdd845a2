// Package model defines core domain types shared across the service.
package model

import (
	"math"
	"strconv"

	h3 "github.com/uber/h3-go/v4"
)

// Cell is an H3 index addressing one hexagonal grid cell at a fixed
// resolution. The zero value is not a valid cell.
type Cell uint64

// Valid reports whether the index is structurally well-formed. It never
// consults the store.
func (c Cell) Valid() bool { return h3.Cell(c).IsValid() }

// String returns the canonical H3 hex form, used in store keys and logs.
func (c Cell) String() string { return h3.Cell(c).String() }

// Decimal returns the base-10 form used as the caller-facing identifier.
func (c Cell) Decimal() string { return strconv.FormatUint(uint64(c), 10) }

func (c Cell) Resolution() int { return h3.Cell(c).Resolution() }

// Coordinate is a (latitude, longitude) pair in degrees, EPSG:4326.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid reports whether both components are finite and inside geographic
// bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Polygon is an implicitly closed ring of vertices (last connects to first).
type Polygon []Coordinate

// Shape identifies which addressing mode a request used.
type Shape int

const (
	ShapeCells Shape = iota
	ShapeCoordinates
	ShapePolygon
)

func (s Shape) String() string {
	switch s {
	case ShapeCells:
		return "cells"
	case ShapeCoordinates:
		return "coordinates"
	case ShapePolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// RequestedSet is the canonical cell set derived from one request.
//
// Cells is deduplicated and keeps first-seen order (polyfill output arrives
// sorted). Caller-facing responses are rebuilt from this order so repeat
// requests render identically.
type RequestedSet struct {
	Shape      Shape
	Resolution int
	Cells      []Cell

	// Sources maps each cell back to an originating coordinate. Populated
	// only for coordinate-addressed requests; when several input points land
	// in one cell the last one seen wins.
	Sources map[Cell]Coordinate
}

func (r RequestedSet) Len() int { return len(r.Cells) }
