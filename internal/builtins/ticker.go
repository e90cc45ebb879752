// Package builtins supplies a handful of pre-linked reference modules
// (ticker, double, logger) so a pipeline document can be exercised
// end to end without a separately compiled module binary, and maps
// their manifest names to module.Factory for Engine construction
// (SPEC_FULL §7: flowmesh composes pre-linked Go implementations
// looked up by name, it does not dynamically load module code).
package builtins

import (
	"context"
	"sync/atomic"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/module"
)

// Ticker publishes an incrementing counter on every Iterate, starting
// from its slot config's optional "start" value.
type Ticker struct {
	caps  module.Capabilities
	count int64
}

func NewTicker() module.Module { return &Ticker{} }

func (t *Ticker) Initialise(ctx context.Context, cfg module.Config, caps module.Capabilities) error {
	t.caps = caps
	if start, ok := cfg["start"]; ok {
		if n, ok := toInt64(start); ok {
			atomic.StoreInt64(&t.count, n)
		}
	}
	return nil
}

func (t *Ticker) OnInput(ctx context.Context, env bus.Envelope) error { return nil }

func (t *Ticker) Iterate(ctx context.Context) error {
	n := atomic.AddInt64(&t.count, 1)
	t.caps.Pub.Publish("count", n)
	return nil
}

func (t *Ticker) Teardown(ctx context.Context) error { return nil }

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
