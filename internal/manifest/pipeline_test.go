package manifest

import (
	"testing"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
)

func TestLoadPipelineValid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", `
pipeline:
  name: example
  execution: {max_threads: 4, timeout: "300s", retries: 1, error_policy: halt}
  modules:
    - { id: producer, name: src_mod, run_mode: once }
    - { id: consumer, name: dst_mod, depends_on: [producer],
        input: { data: producer.result }, run_mode: reactive }
`)
	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "example" || len(p.Slots) != 2 {
		t.Fatalf("unexpected pipeline: %+v", p)
	}
	consumer := p.SlotByID("consumer")
	if consumer == nil {
		t.Fatalf("expected consumer slot")
	}
	binding, ok := consumer.Input["data"]
	if !ok || binding.SlotID != "producer" || binding.Output != "result" {
		t.Fatalf("unexpected binding: %+v", binding)
	}
}

func TestLoadPipelineCycle(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", `
pipeline:
  name: cyclic
  modules:
    - { id: a, name: mod_a, depends_on: [b] }
    - { id: b, name: mod_b, depends_on: [a] }
`)
	_, err := LoadPipeline(path)
	cyc, ok := err.(*errs.Cycle)
	if !ok {
		t.Fatalf("expected *errs.Cycle, got %T (%v)", err, err)
	}
	if len(cyc.Nodes) != 2 {
		t.Fatalf("expected both nodes reported, got %v", cyc.Nodes)
	}
}

func TestLoadPipelineUnknownDependency(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", `
pipeline:
  name: bad
  modules:
    - { id: a, name: mod_a, depends_on: [ghost] }
`)
	if _, err := LoadPipeline(path); err == nil {
		t.Fatalf("expected error for unknown depends_on target")
	}
}

func TestLoadPipelineDuplicateSlotID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", `
pipeline:
  name: dup
  modules:
    - { id: a, name: mod_a }
    - { id: a, name: mod_b }
`)
	if _, err := LoadPipeline(path); err == nil {
		t.Fatalf("expected error for duplicate slot id")
	}
}

func TestValidateSemanticsTypeCoercion(t *testing.T) {
	p := &Pipeline{
		Name: "p",
		Slots: []Slot{
			{ID: "producer", Name: "src_mod", RunMode: RunModeOnce},
			{ID: "consumer", Name: "dst_mod", RunMode: RunModeReactive,
				DependsOn: []string{"producer"},
				Input:     map[string]InputBinding{"y": {SlotID: "producer", Output: "x"}}},
		},
	}
	manifests := map[string]*Manifest{
		"src_mod": {Name: "src_mod", Outputs: []Port{{Name: "x", Type: "int"}}},
		"dst_mod": {Name: "dst_mod", Inputs: []Port{{Name: "y", Type: "float"}}},
	}
	resolve := func(name string) (*Manifest, bool) {
		m, ok := manifests[name]
		return m, ok
	}
	if err := ValidateSemantics(p, resolve); err != nil {
		t.Fatalf("expected int -> float to validate, got %v", err)
	}
}

func TestValidateSemanticsTypeIncompatible(t *testing.T) {
	p := &Pipeline{
		Name: "p",
		Slots: []Slot{
			{ID: "producer", Name: "src_mod", RunMode: RunModeOnce},
			{ID: "consumer", Name: "dst_mod", RunMode: RunModeReactive,
				DependsOn: []string{"producer"},
				Input:     map[string]InputBinding{"y": {SlotID: "producer", Output: "x"}}},
		},
	}
	manifests := map[string]*Manifest{
		"src_mod": {Name: "src_mod", Outputs: []Port{{Name: "x", Type: "str"}}},
		"dst_mod": {Name: "dst_mod", Inputs: []Port{{Name: "y", Type: "int"}}},
	}
	resolve := func(name string) (*Manifest, bool) {
		m, ok := manifests[name]
		return m, ok
	}
	err := ValidateSemantics(p, resolve)
	if _, ok := err.(*errs.TypeIncompatible); !ok {
		t.Fatalf("expected *errs.TypeIncompatible, got %T (%v)", err, err)
	}
}

func TestValidateSemanticsOnTriggerRequiresTriggerInput(t *testing.T) {
	p := &Pipeline{
		Name: "p",
		Slots: []Slot{
			{ID: "a", Name: "mod_a", RunMode: RunModeOnTrigger},
		},
	}
	manifests := map[string]*Manifest{
		"mod_a": {Name: "mod_a", Inputs: []Port{{Name: "x", Type: "any"}}},
	}
	resolve := func(name string) (*Manifest, bool) {
		m, ok := manifests[name]
		return m, ok
	}
	err := ValidateSemantics(p, resolve)
	if _, ok := err.(*errs.BadPipeline); !ok {
		t.Fatalf("expected *errs.BadPipeline, got %T (%v)", err, err)
	}
}

func TestValidateSemanticsUnknownModule(t *testing.T) {
	p := &Pipeline{Name: "p", Slots: []Slot{{ID: "a", Name: "ghost"}}}
	resolve := func(name string) (*Manifest, bool) { return nil, false }
	err := ValidateSemantics(p, resolve)
	if _, ok := err.(*errs.UnknownModule); !ok {
		t.Fatalf("expected *errs.UnknownModule, got %T (%v)", err, err)
	}
}

func TestValidateSemanticsUnknownOutput(t *testing.T) {
	p := &Pipeline{
		Name: "p",
		Slots: []Slot{
			{ID: "producer", Name: "src_mod"},
			{ID: "consumer", Name: "dst_mod", DependsOn: []string{"producer"},
				Input: map[string]InputBinding{"y": {SlotID: "producer", Output: "missing"}}},
		},
	}
	manifests := map[string]*Manifest{
		"src_mod": {Name: "src_mod", Outputs: []Port{{Name: "x", Type: "int"}}},
		"dst_mod": {Name: "dst_mod", Inputs: []Port{{Name: "y", Type: "int"}}},
	}
	resolve := func(name string) (*Manifest, bool) {
		m, ok := manifests[name]
		return m, ok
	}
	err := ValidateSemantics(p, resolve)
	if _, ok := err.(*errs.UnknownOutput); !ok {
		t.Fatalf("expected *errs.UnknownOutput, got %T (%v)", err, err)
	}
}
