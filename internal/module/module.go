// Package module defines the contract every flowmesh module
// implements and the capabilities a Module Host hands it at
// construction time (spec §4.6).
package module

import (
	"context"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	"github.com/flowmesh-dev/flowmesh/internal/workerpool"
)

// Config is a slot's resolved configuration, decoded from its
// pipeline-document config block and validated against the module's
// manifest config_schema.
type Config map[string]any

// Module is the contract every flowmesh module implements. A module
// is constructed once per slot; Initialise/OnInput/Iterate/Teardown
// are invoked by its Module Host according to the slot's run_mode.
type Module interface {
	// Initialise is called once, before the slot's first Iterate or
	// OnInput, with the slot's resolved config and capabilities.
	Initialise(ctx context.Context, config Config, caps Capabilities) error

	// OnInput is invoked synchronously from the bus delivery path for
	// every envelope addressed to one of this slot's inputs. It must
	// not block: the host serialises OnInput against Iterate so a
	// module never observes both concurrently, but a slow OnInput
	// still stalls every other pending delivery to this slot.
	OnInput(ctx context.Context, env bus.Envelope) error

	// Iterate is invoked according to the slot's run_mode: once for
	// `once`, repeatedly for `loop`, once per coalesced input batch
	// for `reactive`, and once per coalesced batch of trigger envelopes
	// for `on_trigger`.
	Iterate(ctx context.Context) error

	// Teardown is called during shutdown, in reverse topological
	// order relative to Initialise. It may run for up to the host's
	// configured grace period before being forcibly abandoned.
	Teardown(ctx context.Context) error
}

// Publisher is the narrow view of the bus a module uses to publish
// its own outputs, scoped to the slot that owns it.
type Publisher interface {
	Publish(outputName string, payload any)
}

// Capabilities is everything Initialise receives besides config: a
// scoped publishing handle, a diagnostics sink, and the shared worker
// pool's blocking-call entry point.
type Capabilities struct {
	SlotID string
	Pub    Publisher
	Events diagnostics.EventEmitter
	Pool   *workerpool.Pool
}

// Factory constructs a fresh module instance for one slot. The Engine
// looks factories up by manifest name from a caller-supplied registry;
// flowmesh does not dynamically load module code, it composes
// pre-linked Go implementations by name (SPEC_FULL §7).
type Factory func() Module

// RunBlocking offloads fn to the shared worker pool and awaits its
// result, the concrete form of the spec's run_blocking(fn, args).
func RunBlocking[T any](ctx context.Context, caps Capabilities, fn func(ctx context.Context) (T, error)) (T, error) {
	return workerpool.RunBlocking(ctx, caps.Pool, fn)
}
