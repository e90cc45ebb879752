package manifest

// Requirement is a declared dependency of a module on another module,
// by name and a semver-style version constraint.
type Requirement struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Port describes one declared input or output of a module: a name, a
// type expression drawn from the internal/typeexpr grammar, and an
// optional human-readable description. Trigger marks an input as the
// sentinel input for the on_trigger run mode.
type Port struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Trigger     bool   `yaml:"trigger,omitempty"`
}

// Runtime names the entry points a module exposes.
type Runtime struct {
	Main  string `yaml:"main"`
	Tests string `yaml:"tests,omitempty"`
}

// Manifest is the parsed, validated description of one module on disk.
type Manifest struct {
	Name         string        `yaml:"name"`
	Alias        string        `yaml:"alias,omitempty"`
	Creator      string        `yaml:"creator,omitempty"`
	Version      string        `yaml:"version"`
	Description  string        `yaml:"description,omitempty"`
	Repository   string        `yaml:"repository,omitempty"`
	Runtime      Runtime       `yaml:"runtime"`
	Requirements []Requirement `yaml:"requirements,omitempty"`
	Inputs       []Port        `yaml:"inputs,omitempty"`
	Outputs      []Port        `yaml:"outputs,omitempty"`

	// ConfigSchema is a supplemented feature (SPEC_FULL §5): an optional
	// JSON Schema, validated against a slot's config override at
	// pipeline-load time when present.
	ConfigSchema map[string]any `yaml:"config_schema,omitempty"`
}

// GetInput returns the declared input port named name, or nil.
func (m *Manifest) GetInput(name string) *Port {
	for i := range m.Inputs {
		if m.Inputs[i].Name == name {
			return &m.Inputs[i]
		}
	}
	return nil
}

// GetOutput returns the declared output port named name, or nil.
func (m *Manifest) GetOutput(name string) *Port {
	for i := range m.Outputs {
		if m.Outputs[i].Name == name {
			return &m.Outputs[i]
		}
	}
	return nil
}

// TriggerInput returns the input port declared trigger: true, or nil
// if the manifest declares none.
func (m *Manifest) TriggerInput() *Port {
	for i := range m.Inputs {
		if m.Inputs[i].Trigger {
			return &m.Inputs[i]
		}
	}
	return nil
}

// ErrorPolicy is the pipeline-wide module-fault resolution strategy.
type ErrorPolicy string

const (
	ErrorPolicyHalt     ErrorPolicy = "halt"
	ErrorPolicyContinue ErrorPolicy = "continue"
	ErrorPolicyIsolate  ErrorPolicy = "isolate"
	ErrorPolicyLogOnly  ErrorPolicy = "log_only"
)

// Valid reports whether p is one of the four recognised policies.
func (p ErrorPolicy) Valid() bool {
	switch p {
	case ErrorPolicyHalt, ErrorPolicyContinue, ErrorPolicyIsolate, ErrorPolicyLogOnly:
		return true
	}
	return false
}

// RunMode is a slot's scheduling discipline.
type RunMode string

const (
	RunModeLoop      RunMode = "loop"
	RunModeOnce      RunMode = "once"
	RunModeReactive  RunMode = "reactive"
	RunModeOnTrigger RunMode = "on_trigger"
)

// Valid reports whether m is one of the four recognised run modes.
func (m RunMode) Valid() bool {
	switch m {
	case RunModeLoop, RunModeOnce, RunModeReactive, RunModeOnTrigger:
		return true
	}
	return false
}

// Execution holds a pipeline's concurrency and fault-policy options.
type Execution struct {
	MaxThreads  int         `yaml:"max_threads,omitempty"`
	Timeout     string      `yaml:"timeout,omitempty"`
	Retries     int         `yaml:"retries,omitempty"`
	ErrorPolicy ErrorPolicy `yaml:"error_policy,omitempty"`
}

// InputBinding names the upstream slot and output a local input is
// wired to. It unmarshals from the compact "slotId.outputName" form
// used in pipeline documents.
type InputBinding struct {
	SlotID string
	Output string
}

// Slot is one occurrence of a module within a pipeline.
type Slot struct {
	ID        string                  `yaml:"id"`
	Name      string                  `yaml:"name"`
	Config    map[string]any          `yaml:"config,omitempty"`
	RunMode   RunMode                 `yaml:"run_mode,omitempty"`
	DependsOn []string                `yaml:"depends_on,omitempty"`
	Input     map[string]InputBinding `yaml:"input,omitempty"`
}

// Pipeline is the parsed, validated description of one run.
type Pipeline struct {
	Name      string
	Execution Execution
	Slots     []Slot
}

// pipelineDocument mirrors the on-disk YAML shape, root key "pipeline".
type pipelineDocument struct {
	Pipeline struct {
		Name      string    `yaml:"name"`
		Execution Execution `yaml:"execution,omitempty"`
		Slots     []Slot    `yaml:"modules"`
	} `yaml:"pipeline"`
}

// SlotByID returns the slot with the given id, or nil.
func (p *Pipeline) SlotByID(id string) *Slot {
	for i := range p.Slots {
		if p.Slots[i].ID == id {
			return &p.Slots[i]
		}
	}
	return nil
}
