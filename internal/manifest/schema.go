package manifest

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
)

// ValidateConfigSchema checks a slot's config override against its
// manifest's optional config_schema, the supplemented per-module
// config validation feature of SPEC_FULL §5. A manifest with no
// config_schema accepts any config unconditionally.
func ValidateConfigSchema(slot *Slot, m *Manifest) error {
	if m.ConfigSchema == nil {
		return nil
	}

	url := "flowmesh://manifest/" + m.Name + "/config_schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, m.ConfigSchema); err != nil {
		return &errs.BadManifest{Path: m.Name, Reason: fmt.Sprintf("invalid config_schema: %s", err)}
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return &errs.BadManifest{Path: m.Name, Reason: fmt.Sprintf("invalid config_schema: %s", err)}
	}

	instance := map[string]any{}
	for k, v := range slot.Config {
		instance[k] = v
	}
	if err := sch.Validate(instance); err != nil {
		return &errs.BadPipeline{Path: slot.ID, Reason: fmt.Sprintf("slot %q config fails config_schema: %s", slot.ID, err)}
	}
	return nil
}
