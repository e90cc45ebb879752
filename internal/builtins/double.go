package builtins

import (
	"context"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/module"
)

// Double republishes every float it receives on input "value",
// multiplied by two, on output "doubled". Reactive: one Iterate per
// coalesced input.
type Double struct {
	caps    module.Capabilities
	pending float64
	got     bool
}

func NewDouble() module.Module { return &Double{} }

func (d *Double) Initialise(ctx context.Context, cfg module.Config, caps module.Capabilities) error {
	d.caps = caps
	return nil
}

func (d *Double) OnInput(ctx context.Context, env bus.Envelope) error {
	if f, ok := env.Value().(float64); ok {
		d.pending = f
		d.got = true
	}
	return nil
}

func (d *Double) Iterate(ctx context.Context) error {
	if !d.got {
		return nil
	}
	d.caps.Pub.Publish("doubled", d.pending*2)
	d.got = false
	return nil
}

func (d *Double) Teardown(ctx context.Context) error { return nil }
