package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
	"github.com/flowmesh-dev/flowmesh/internal/translate"
	"github.com/flowmesh-dev/flowmesh/internal/typeexpr"
)

// UnmarshalYAML decodes the compact "slotId.outputName" form used for
// pipeline input wiring into its SlotID/Output parts.
func (b *InputBinding) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return fmt.Errorf("invalid input binding %q: expected form slotId.outputName", s)
	}
	b.SlotID = s[:idx]
	b.Output = s[idx+1:]
	return nil
}

// MarshalYAML renders an InputBinding back to its compact form.
func (b InputBinding) MarshalYAML() (any, error) {
	return b.SlotID + "." + b.Output, nil
}

// ManifestLoader parses a module manifest document from disk.
type ManifestLoader interface {
	Load(path string) (*Manifest, error)
}

type yamlManifestLoader struct{}

// NewManifestLoader returns the default YAML-backed ManifestLoader.
func NewManifestLoader() ManifestLoader { return &yamlManifestLoader{} }

func (l *yamlManifestLoader) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.BadManifest{Path: path, Reason: "manifest file not found"}
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &errs.BadManifest{Path: path, Reason: fmt.Sprintf("invalid YAML: %s", err)}
	}

	if err := validateManifest(&m, path); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest is a convenience wrapper around NewManifestLoader().Load.
func LoadManifest(path string) (*Manifest, error) {
	return NewManifestLoader().Load(path)
}

// validateManifest checks required fields, input/output name uniqueness
// within the manifest, and that every declared type parses under the
// internal/typeexpr grammar, per spec §4.1.
func validateManifest(m *Manifest, path string) error {
	if strings.TrimSpace(m.Name) == "" {
		return &errs.BadManifest{Path: path, Reason: "name is required"}
	}
	if strings.TrimSpace(m.Version) == "" {
		return &errs.BadManifest{Path: path, Reason: "version is required"}
	}
	if strings.TrimSpace(m.Runtime.Main) == "" {
		return &errs.BadManifest{Path: path, Reason: "runtime.main is required"}
	}

	seen := make(map[string]bool, len(m.Inputs))
	for _, in := range m.Inputs {
		if strings.TrimSpace(in.Name) == "" {
			return &errs.BadManifest{Path: path, Reason: "an input is missing a name"}
		}
		if seen[in.Name] {
			return &errs.BadManifest{Path: path, Reason: fmt.Sprintf("duplicate input name %q", in.Name)}
		}
		seen[in.Name] = true
		if _, err := typeexpr.Parse(in.Type); err != nil {
			return &errs.BadManifest{Path: path, Reason: fmt.Sprintf("input %q: %s", in.Name, err)}
		}
	}

	seen = make(map[string]bool, len(m.Outputs))
	for _, out := range m.Outputs {
		if strings.TrimSpace(out.Name) == "" {
			return &errs.BadManifest{Path: path, Reason: "an output is missing a name"}
		}
		if seen[out.Name] {
			return &errs.BadManifest{Path: path, Reason: fmt.Sprintf("duplicate output name %q", out.Name)}
		}
		seen[out.Name] = true
		if _, err := typeexpr.Parse(out.Type); err != nil {
			return &errs.BadManifest{Path: path, Reason: fmt.Sprintf("output %q: %s", out.Name, err)}
		}
	}

	return nil
}

// PipelineLoader parses a pipeline document from disk, performing
// syntactic (self-contained) validation only; semantic validation
// against a manifest resolver is performed by ValidateSemantics.
type PipelineLoader interface {
	Load(path string) (*Pipeline, error)
}

type yamlPipelineLoader struct{}

// NewPipelineLoader returns the default YAML-backed PipelineLoader.
func NewPipelineLoader() PipelineLoader { return &yamlPipelineLoader{} }

func (l *yamlPipelineLoader) Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.BadPipeline{Path: path, Reason: "pipeline file not found"}
		}
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}

	var doc pipelineDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("invalid YAML: %s", err)}
	}

	p := &Pipeline{
		Name:      doc.Pipeline.Name,
		Execution: doc.Pipeline.Execution,
		Slots:     doc.Pipeline.Slots,
	}
	if err := validatePipelineSyntax(p, path); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPipeline is a convenience wrapper around NewPipelineLoader().Load.
func LoadPipeline(path string) (*Pipeline, error) {
	return NewPipelineLoader().Load(path)
}

func validatePipelineSyntax(p *Pipeline, path string) error {
	if strings.TrimSpace(p.Name) == "" {
		return &errs.BadPipeline{Path: path, Reason: "pipeline.name is required"}
	}
	if len(p.Slots) == 0 {
		return &errs.BadPipeline{Path: path, Reason: "pipeline.modules must declare at least one slot"}
	}
	if p.Execution.ErrorPolicy == "" {
		p.Execution.ErrorPolicy = ErrorPolicyHalt
	} else if !p.Execution.ErrorPolicy.Valid() {
		return &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("unknown error_policy %q", p.Execution.ErrorPolicy)}
	}

	ids := make(map[string]bool, len(p.Slots))
	for i := range p.Slots {
		slot := &p.Slots[i]
		if strings.TrimSpace(slot.ID) == "" {
			return &errs.BadPipeline{Path: path, Reason: "a slot is missing an id"}
		}
		if ids[slot.ID] {
			return &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("duplicate slot id %q", slot.ID)}
		}
		ids[slot.ID] = true
		if strings.TrimSpace(slot.Name) == "" {
			return &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("slot %q is missing a module name", slot.ID)}
		}
		if slot.RunMode == "" {
			slot.RunMode = RunModeLoop
		} else if !slot.RunMode.Valid() {
			return &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("slot %q: unknown run_mode %q", slot.ID, slot.RunMode)}
		}
	}

	for _, slot := range p.Slots {
		for _, dep := range slot.DependsOn {
			if !ids[dep] {
				return &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("slot %q depends_on unknown slot %q", slot.ID, dep)}
			}
		}
		for local, binding := range slot.Input {
			if !ids[binding.SlotID] {
				return &errs.BadPipeline{Path: path, Reason: fmt.Sprintf("slot %q input %q references unknown slot %q", slot.ID, local, binding.SlotID)}
			}
		}
	}

	if _, err := TopoSort(p); err != nil {
		return err
	}
	return nil
}

// ManifestResolver resolves a manifest by the name referenced from a
// pipeline slot. Satisfied by *registry.Registry in the composed Engine.
type ManifestResolver func(name string) (*Manifest, bool)

// ValidateSemantics performs the cross-document validation of spec
// §4.1: every slot's name resolves, every input binding's target slot
// and output exist, and every such binding is type-compatible, plus
// the on_trigger requires-declared-trigger-input rule (Open Question
// 3, decided in DESIGN.md).
func ValidateSemantics(p *Pipeline, resolve ManifestResolver) error {
	manifests := make(map[string]*Manifest, len(p.Slots))
	for _, slot := range p.Slots {
		m, ok := resolve(slot.Name)
		if !ok {
			return &errs.UnknownModule{SlotID: slot.ID, Name: slot.Name}
		}
		manifests[slot.ID] = m
	}

	for _, slot := range p.Slots {
		m := manifests[slot.ID]

		if slot.RunMode == RunModeOnTrigger && m.TriggerInput() == nil {
			return &errs.BadPipeline{Path: p.Name, Reason: fmt.Sprintf("slot %q uses run_mode on_trigger but module %q declares no trigger input", slot.ID, slot.Name)}
		}

		if m.ConfigSchema != nil {
			if err := ValidateConfigSchema(&slot, m); err != nil {
				return err
			}
		}

		for local, binding := range slot.Input {
			inPort := m.GetInput(local)
			if inPort == nil {
				return &errs.BadPipeline{Path: p.Name, Reason: fmt.Sprintf("slot %q: module %q has no input %q", slot.ID, slot.Name, local)}
			}

			targetManifest, ok := manifests[binding.SlotID]
			if !ok {
				return &errs.UnknownModule{SlotID: slot.ID, Name: binding.SlotID}
			}
			outPort := targetManifest.GetOutput(binding.Output)
			if outPort == nil {
				return &errs.UnknownOutput{SlotID: slot.ID, TargetSlot: binding.SlotID, Output: binding.Output}
			}

			outType, err := typeexpr.Parse(outPort.Type)
			if err != nil {
				return &errs.BadManifest{Path: slot.Name, Reason: err.Error()}
			}
			inType, err := typeexpr.Parse(inPort.Type)
			if err != nil {
				return &errs.BadManifest{Path: slot.Name, Reason: err.Error()}
			}
			if !translate.Compatible(outType, inType) {
				return &errs.TypeIncompatible{SlotID: slot.ID, Input: local, SourceTyp: outPort.Type, DestTyp: inPort.Type}
			}
		}
	}
	return nil
}

// Load is kept for symmetry with callers expecting a package-level
// manifest loader entry point; equivalent to LoadManifest.
func Load(path string) (*Manifest, error) {
	return LoadManifest(path)
}
