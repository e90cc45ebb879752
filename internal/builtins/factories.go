package builtins

import "github.com/flowmesh-dev/flowmesh/internal/module"

// Factories returns the module.Factory map for every built-in module,
// keyed by the manifest name a pipeline slot references. Pass this (or
// a superset merged with the operator's own factories) to engine.New.
func Factories() map[string]module.Factory {
	return map[string]module.Factory{
		"ticker": NewTicker,
		"double": NewDouble,
		"logger": NewLogger,
	}
}
