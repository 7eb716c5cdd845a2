package resolver

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

// fakeCodec lets each case script the geometry layer.
type fakeCodec struct {
	invalid   map[model.Cell]bool
	coordCell func(c model.Coordinate, res int) model.Cell
	polyCells []model.Cell
	polyErr   error

	lastRes int
}

func (f *fakeCodec) CellFromCoordinate(c model.Coordinate, res int) (model.Cell, error) {
	f.lastRes = res
	if f.coordCell == nil {
		return model.Cell(1000 + res), nil
	}
	return f.coordCell(c, res), nil
}

func (f *fakeCodec) CellsForPolygon(_ model.Polygon, res int) ([]model.Cell, error) {
	f.lastRes = res
	return f.polyCells, f.polyErr
}

func (f *fakeCodec) ValidCell(c model.Cell) bool { return !f.invalid[c] }

func limits() Limits {
	return Limits{MinResolution: 8, MaxResolution: 12, CellLimit: 15, PolygonCellMult: 100}
}

func asResolverError(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a rejection, got nil")
	}
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error %T is not *resolver.Error: %v", err, err)
	}
	if rerr.Kind != kind {
		t.Fatalf("kind = %v, want %v (msg %q)", rerr.Kind, kind, rerr.Error())
	}
	return rerr
}

func TestResolve_CellsShape(t *testing.T) {
	badRes := 99 // would be rejected for any other shape
	p := Payload{
		Cells:      []uint64{30, 10, 20, 10, 30},
		Resolution: &badRes,
	}

	rs, err := Resolve(p, limits(), &fakeCodec{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rs.Shape != model.ShapeCells {
		t.Fatalf("shape = %v, want cells", rs.Shape)
	}
	want := []model.Cell{30, 10, 20}
	if !reflect.DeepEqual(rs.Cells, want) {
		t.Fatalf("cells = %v, want %v (deduplicated, first-seen order)", rs.Cells, want)
	}
	if rs.Sources != nil {
		t.Fatalf("cells shape must not carry sources")
	}
}

func TestResolve_CellLimitBeforeValidity(t *testing.T) {
	in := make([]uint64, 16)
	invalid := make(map[model.Cell]bool, 16)
	for i := range in {
		in[i] = uint64(i)
		invalid[model.Cell(i)] = true
	}

	_, err := Resolve(Payload{Cells: in}, limits(), &fakeCodec{invalid: invalid})
	rerr := asResolverError(t, err, KindCellLimit)
	want := "Request for 16 cells rejected - only 15 cells can be sent per request."
	if rerr.Error() != want {
		t.Fatalf("msg = %q, want %q", rerr.Error(), want)
	}
}

func TestResolve_CellLimitCountsDeduplicated(t *testing.T) {
	in := make([]uint64, 16)
	for i := range in {
		in[i] = uint64(100 + i)
	}
	in[15] = in[0] // 15 unique

	rs, err := Resolve(Payload{Cells: in}, limits(), &fakeCodec{})
	if err != nil {
		t.Fatalf("Resolve rejected 15 unique cells: %v", err)
	}
	if rs.Len() != 15 {
		t.Fatalf("len = %d, want 15", rs.Len())
	}
}

func TestResolve_InvalidCell(t *testing.T) {
	p := Payload{Cells: []uint64{1, 630949280220393983}}
	codec := &fakeCodec{invalid: map[model.Cell]bool{1: true}}

	_, err := Resolve(p, limits(), codec)
	rerr := asResolverError(t, err, KindInvalidCell)
	want := "1 is not a valid H3 cell - aborting request."
	if rerr.Error() != want {
		t.Fatalf("msg = %q, want %q", rerr.Error(), want)
	}
}

func TestResolve_ZeroCells(t *testing.T) {
	_, err := Resolve(Payload{Cells: []uint64{}}, limits(), &fakeCodec{})
	rerr := asResolverError(t, err, KindMalformed)
	if rerr.Error() != "Request for zero cells rejected." {
		t.Fatalf("msg = %q", rerr.Error())
	}
}

func TestResolve_ShapeDispatch(t *testing.T) {
	res := 11
	cases := map[string]Payload{
		"none":  {Resolution: &res},
		"two":   {Cells: []uint64{1}, Coordinates: [][]float64{{54.5, 5.9}}},
		"three": {Cells: []uint64{1}, Coordinates: [][]float64{{54.5, 5.9}}, Polygon: [][]float64{{54.5, 5.9}}},
	}
	for name, p := range cases {
		_, err := Resolve(p, limits(), &fakeCodec{})
		var rerr *Error
		if err == nil || !errors.As(err, &rerr) || rerr.Kind != KindMalformed {
			t.Fatalf("%s: err = %v, want malformed rejection", name, err)
		}
	}
}

func TestResolve_CoordinatesDefaultResolution(t *testing.T) {
	codec := &fakeCodec{coordCell: func(c model.Coordinate, res int) model.Cell {
		if c.Lng < 6 {
			return 500
		}
		return 600
	}}
	p := Payload{Coordinates: [][]float64{
		{54.1, 5.1},
		{54.2, 6.5},
		{54.3, 5.2}, // same cell as the first point
	}}

	rs, err := Resolve(p, limits(), codec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if codec.lastRes != 12 {
		t.Fatalf("resolution passed to codec = %d, want max default 12", codec.lastRes)
	}
	if rs.Resolution != 12 {
		t.Fatalf("rs.Resolution = %d, want 12", rs.Resolution)
	}
	if want := []model.Cell{500, 600}; !reflect.DeepEqual(rs.Cells, want) {
		t.Fatalf("cells = %v, want %v", rs.Cells, want)
	}
	// last point mapping to cell 500 wins the source slot
	src, ok := rs.Sources[500]
	if !ok || src.Lat != 54.3 {
		t.Fatalf("sources[500] = %+v, want the last coordinate (54.3, 5.2)", src)
	}
}

func TestResolve_ResolutionBounds(t *testing.T) {
	for _, res := range []int{7, 13} {
		r := res
		_, err := Resolve(Payload{Coordinates: [][]float64{{54.5, 5.9}}, Resolution: &r}, limits(), &fakeCodec{})
		rerr := asResolverError(t, err, KindResolution)
		want := fmt.Sprintf("Request for resolution %d rejected - the resolution must be between 8 and 12 inclusively.", res)
		if rerr.Error() != want {
			t.Fatalf("msg = %q, want %q", rerr.Error(), want)
		}
	}
	for _, res := range []int{8, 12} {
		r := res
		codec := &fakeCodec{}
		rs, err := Resolve(Payload{Coordinates: [][]float64{{54.5, 5.9}}, Resolution: &r}, limits(), codec)
		if err != nil {
			t.Fatalf("boundary resolution %d rejected: %v", res, err)
		}
		if codec.lastRes != res || rs.Resolution != res {
			t.Fatalf("resolution %d not carried through (codec %d, set %d)", res, codec.lastRes, rs.Resolution)
		}
	}
}

func TestResolve_CoordinateValidation(t *testing.T) {
	cases := map[string][][]float64{
		"short pair":    {{54.5}},
		"long pair":     {{54.5, 5.9, 1.0}},
		"lat overflow":  {{91, 0}},
		"lng underflow": {{0, -181}},
	}
	for name, coords := range cases {
		_, err := Resolve(Payload{Coordinates: coords}, limits(), &fakeCodec{})
		if rerr := asResolverError(t, err, KindMalformed); rerr.Error() == "" {
			t.Fatalf("%s rejected without a message", name)
		}
	}

	_, err := Resolve(Payload{Coordinates: [][]float64{}}, limits(), &fakeCodec{})
	rerr := asResolverError(t, err, KindMalformed)
	if rerr.Error() != "Request for zero cells rejected." {
		t.Fatalf("msg = %q", rerr.Error())
	}
}

func TestResolve_Polygon(t *testing.T) {
	ring := [][]float64{{54.53, 5.96}, {54.52, 5.96}, {54.52, 5.97}}

	codec := &fakeCodec{polyCells: []model.Cell{7, 8, 9}}
	rs, err := Resolve(Payload{Polygon: ring}, limits(), codec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rs.Shape != model.ShapePolygon || rs.Resolution != 12 {
		t.Fatalf("shape/res = %v/%d, want polygon/12", rs.Shape, rs.Resolution)
	}
	if !reflect.DeepEqual(rs.Cells, []model.Cell{7, 8, 9}) {
		t.Fatalf("cells = %v", rs.Cells)
	}
}

func TestResolve_PolygonEmptyCoverage(t *testing.T) {
	ring := [][]float64{{54.53, 5.96}, {54.52, 5.96}, {54.52, 5.97}}

	_, err := Resolve(Payload{Polygon: ring}, limits(), &fakeCodec{polyCells: nil})
	rerr := asResolverError(t, err, KindEmptyCoverage)
	if rerr.Error() != "Request for zero cells rejected." {
		t.Fatalf("msg = %q", rerr.Error())
	}
}

func TestResolve_PolygonCellLimitScaled(t *testing.T) {
	lim := Limits{MinResolution: 8, MaxResolution: 12, CellLimit: 2, PolygonCellMult: 2}
	ring := [][]float64{{54.53, 5.96}, {54.52, 5.96}, {54.52, 5.97}}
	codec := &fakeCodec{polyCells: []model.Cell{1, 2, 3, 4, 5}}

	_, err := Resolve(Payload{Polygon: ring}, lim, codec)
	rerr := asResolverError(t, err, KindCellLimit)
	want := "Request for 5 cells rejected - only 4 cells can be sent per request."
	if rerr.Error() != want {
		t.Fatalf("msg = %q, want %q", rerr.Error(), want)
	}
}

func TestResolve_PolygonVertexValidation(t *testing.T) {
	cases := map[string][][]float64{
		"too few":    {{54.5, 5.9}, {54.6, 5.9}},
		"bad pair":   {{54.5, 5.9}, {54.6}, {54.6, 6.0}},
		"out of rng": {{54.5, 5.9}, {95.0, 5.9}, {54.6, 6.0}},
	}
	for name, ring := range cases {
		_, err := Resolve(Payload{Polygon: ring}, limits(), &fakeCodec{})
		if rerr := asResolverError(t, err, KindMalformed); rerr.Error() == "" {
			t.Fatalf("%s rejected without a message", name)
		}
	}
}
