package composer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

func cellSet(cells ...model.Cell) model.RequestedSet {
	return model.RequestedSet{Shape: model.ShapeCells, Cells: cells}
}

func TestBuild_CellKeysAreDecimalStrings(t *testing.T) {
	set := cellSet(630949280935159295, 630949280220393983)
	env := New(Config{}).Build(set, map[model.Cell]float64{
		630949280935159295: 32.1,
		630949280220393983: 59,
	}, nil)

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		Elevations map[string]float64 `json:"elevations"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Elevations["630949280935159295"] != 32.1 || got.Elevations["630949280220393983"] != 59 {
		t.Fatalf("elevations = %v", got.Elevations)
	}
	if strings.Contains(string(raw), "pending") || strings.Contains(string(raw), "estimated_wait_time") {
		t.Fatalf("fully-available response carries a pending section: %s", raw)
	}
}

func TestBuild_CoordinateEchoIsVerbatim(t *testing.T) {
	cell := model.Cell(631053048207246335)
	set := model.RequestedSet{
		Shape:      model.ShapeCoordinates,
		Resolution: 12,
		Cells:      []model.Cell{cell},
		Sources:    map[model.Cell]model.Coordinate{cell: {Lat: 54.53097, Lng: 5.96836}},
	}
	env := New(Config{}).Build(set, map[model.Cell]float64{cell: 1}, nil)

	if v, ok := env.Elevations["[54.53097, 5.96836]"]; !ok || v != 1 {
		t.Fatalf("elevations = %v, want the literal input coordinate as key", env.Elevations)
	}
}

func TestBuild_PendingCoordinatesRenderAsPairs(t *testing.T) {
	cell := model.Cell(631053048207246335)
	set := model.RequestedSet{
		Shape:      model.ShapeCoordinates,
		Resolution: 12,
		Cells:      []model.Cell{cell},
		Sources:    map[model.Cell]model.Coordinate{cell: {Lat: 54.53097, Lng: 5.96836}},
	}
	env := New(Config{}).Build(set, nil, []model.Cell{cell})

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"pending":[[54.53097,5.96836]]`) {
		t.Fatalf("pending does not echo the coordinate pair: %s", raw)
	}
	if !strings.Contains(string(raw), `"estimated_wait_time":240`) {
		t.Fatalf("wait estimate missing or wrong: %s", raw)
	}
	if !strings.Contains(string(raw), `"elevations":{}`) {
		t.Fatalf("empty elevations must render as an object: %s", raw)
	}
}

func TestBuild_PendingCellsRenderAsDecimalStrings(t *testing.T) {
	set := cellSet(630949280220402687, 630949280220390399)
	env := New(Config{}).Build(set, nil, set.Cells)

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"pending":["630949280220402687","630949280220390399"]`) {
		t.Fatalf("pending = %s", raw)
	}
}

func TestBuild_WaitScalesWithUnavailableCount(t *testing.T) {
	set := cellSet(1, 2, 3)
	env := New(Config{BaseWaitSeconds: 100, PerCellWaitSeconds: 10}).Build(set, nil, set.Cells)
	if env.EstimatedWaitTime != 130 {
		t.Fatalf("EstimatedWaitTime = %d, want 130", env.EstimatedWaitTime)
	}
}

func TestBuild_MixedAvailability(t *testing.T) {
	set := cellSet(10, 20, 30)
	env := New(Config{}).Build(set, map[model.Cell]float64{10: 5.5}, []model.Cell{20, 30})

	if len(env.Elevations) != 1 || env.Elevations["10"] != 5.5 {
		t.Fatalf("elevations = %v", env.Elevations)
	}
	if len(env.Pending) != 2 || env.Pending[0].String() != "20" || env.Pending[1].String() != "30" {
		t.Fatalf("pending = %v", env.Pending)
	}
	if env.EstimatedWaitTime != 240 {
		t.Fatalf("EstimatedWaitTime = %d, want 240", env.EstimatedWaitTime)
	}
}

func TestBuild_CoordinateWithoutSourceFallsBackToCellID(t *testing.T) {
	set := model.RequestedSet{
		Shape:      model.ShapeCoordinates,
		Resolution: 12,
		Cells:      []model.Cell{42},
		Sources:    map[model.Cell]model.Coordinate{},
	}
	env := New(Config{}).Build(set, map[model.Cell]float64{42: 7}, nil)
	if _, ok := env.Elevations["42"]; !ok {
		t.Fatalf("elevations = %v, want cell id fallback", env.Elevations)
	}
}

func TestNew_GuardsNonPositiveBase(t *testing.T) {
	env := New(Config{BaseWaitSeconds: -1, PerCellWaitSeconds: -5}).Build(cellSet(1), nil, []model.Cell{1})
	if env.EstimatedWaitTime != 240 {
		t.Fatalf("EstimatedWaitTime = %d, want default 240", env.EstimatedWaitTime)
	}
}
