package manifest

import (
	"testing"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
)

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	p := &Pipeline{Slots: []Slot{
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "a"},
	}}
	order, err := TopoSort(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	p := &Pipeline{Slots: []Slot{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}}
	_, err := TopoSort(p)
	if _, ok := err.(*errs.Cycle); !ok {
		t.Fatalf("expected *errs.Cycle, got %T", err)
	}
}

func TestLayersGroupsIndependentSlots(t *testing.T) {
	p := &Pipeline{Slots: []Slot{
		{ID: "a"},
		{ID: "b"},
		{ID: "c", DependsOn: []string{"a", "b"}},
	}}
	layers, err := Layers(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d: %v", len(layers), layers)
	}
	if len(layers[0]) != 2 {
		t.Fatalf("expected layer 0 to hold a and b, got %v", layers[0])
	}
	if len(layers[1]) != 1 || layers[1][0] != "c" {
		t.Fatalf("expected layer 1 to hold c, got %v", layers[1])
	}
}
