package memcache

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

type fakeGateway struct {
	data  map[model.Cell]float64
	err   error
	calls int
	last  []model.Cell
}

func (f *fakeGateway) Lookup(_ context.Context, cells []model.Cell) (map[model.Cell]float64, error) {
	f.calls++
	f.last = append([]model.Cell(nil), cells...)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[model.Cell]float64)
	for _, c := range cells {
		if v, ok := f.data[c]; ok {
			out[c] = v
		}
	}
	return out, nil
}

func newWrapped(t *testing.T, inner *fakeGateway) *Cache {
	t.Helper()
	c, err := Wrap(inner, Config{})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLookup_SecondReadServedFromMemory(t *testing.T) {
	inner := &fakeGateway{data: map[model.Cell]float64{1: 32.1, 2: 59}}
	c := newWrapped(t, inner)
	ctx := context.Background()

	first, err := c.Lookup(ctx, []model.Cell{1, 2})
	if err != nil {
		t.Fatalf("first Lookup: %v", err)
	}
	second, err := c.Lookup(ctx, []model.Cell{1, 2})
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reads diverged: %v vs %v", first, second)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1 (second read should hit memory)", inner.calls)
	}
}

func TestLookup_AbsenceIsNotCached(t *testing.T) {
	inner := &fakeGateway{data: map[model.Cell]float64{1: 32.1}}
	c := newWrapped(t, inner)
	ctx := context.Background()

	got, err := c.Lookup(ctx, []model.Cell{1, 2})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v, want only cell 1", got)
	}

	// the store catches up; the next read must see the new value
	inner.data[2] = 17.5
	got, err = c.Lookup(ctx, []model.Cell{1, 2})
	if err != nil {
		t.Fatalf("Lookup after populate: %v", err)
	}
	if got[2] != 17.5 {
		t.Fatalf("freshly populated cell not visible: %v", got)
	}
	// only the miss goes to the store
	if !reflect.DeepEqual(inner.last, []model.Cell{2}) {
		t.Fatalf("inner asked for %v, want [2]", inner.last)
	}
}

func TestLookup_InnerErrorPropagates(t *testing.T) {
	inner := &fakeGateway{err: errors.New("store down")}
	c := newWrapped(t, inner)

	if _, err := c.Lookup(context.Background(), []model.Cell{1}); err == nil {
		t.Fatalf("Lookup swallowed the store error")
	}
}

func TestLookup_FullMemoryHitSkipsStore(t *testing.T) {
	inner := &fakeGateway{data: map[model.Cell]float64{1: 32.1}}
	c := newWrapped(t, inner)
	ctx := context.Background()

	if _, err := c.Lookup(ctx, []model.Cell{1}); err != nil {
		t.Fatalf("prime: %v", err)
	}

	inner.err = errors.New("store down")
	got, err := c.Lookup(ctx, []model.Cell{1})
	if err != nil {
		t.Fatalf("memory-served Lookup failed: %v", err)
	}
	if got[1] != 32.1 {
		t.Fatalf("got %v, want cached 32.1", got)
	}
}
