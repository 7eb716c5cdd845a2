package h3mapper

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

// polyfillMemoSize bounds the ring-to-cells memo. Covering rings repeat
// heavily (map viewports, site boundaries) and polyfill is the costly call.
const polyfillMemoSize = 128

type Mapper struct {
	memo *lru.Cache[uint64, []model.Cell]
}

func New() *Mapper {
	memo, _ := lru.New[uint64, []model.Cell](polyfillMemoSize)
	return &Mapper{memo: memo}
}

func (m *Mapper) CellFromCoordinate(c model.Coordinate, res int) (model.Cell, error) {
	if err := validateRes(res); err != nil {
		return 0, err
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: c.Lat, Lng: c.Lng}, res)
	if err != nil {
		return 0, fmt.Errorf("h3 index (%v, %v) at res %d: %w", c.Lat, c.Lng, res, err)
	}
	return model.Cell(cell), nil
}

func (m *Mapper) CellsForPolygon(poly model.Polygon, res int) ([]model.Cell, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	ring := poly
	// drop duplicated closing vertex if present
	if len(ring) >= 2 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("polygon ring has %d vertices, need at least 3", len(ring))
	}

	key := memoKey(ring, res)
	if cells, ok := m.memo.Get(key); ok {
		return cells, nil
	}

	loop := make(h3.GeoLoop, 0, len(ring))
	for _, v := range ring {
		loop = append(loop, h3.LatLng{Lat: v.Lat, Lng: v.Lng})
	}
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	// unique and sorted for determinism
	out := make([]model.Cell, 0, len(indexes))
	seen := make(map[model.Cell]struct{}, len(indexes))
	for _, idx := range indexes {
		c := model.Cell(idx)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	slices.Sort(out)

	m.memo.Add(key, out)
	return out, nil
}

func (m *Mapper) ValidCell(c model.Cell) bool { return c.Valid() }

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// memoKey hashes the resolution and the exact vertex float bits. Rings that
// differ in vertex order hash differently, which is fine: they are distinct
// inputs even when they enclose the same area.
func memoKey(poly model.Polygon, res int) uint64 {
	d := xxhash.New()
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(res))
	_, _ = d.Write(b[:])
	for _, v := range poly {
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Lat))
		_, _ = d.Write(b[:])
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Lng))
		_, _ = d.Write(b[:])
	}
	return d.Sum64()
}
