package builtins

import (
	"context"
	"fmt"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	"github.com/flowmesh-dev/flowmesh/internal/module"
)

// Logger emits a diagnostics event for every value delivered to its
// "value" input. It never iterates on its own.
type Logger struct {
	caps module.Capabilities
}

func NewLogger() module.Module { return &Logger{} }

func (l *Logger) Initialise(ctx context.Context, cfg module.Config, caps module.Capabilities) error {
	l.caps = caps
	return nil
}

func (l *Logger) OnInput(ctx context.Context, env bus.Envelope) error {
	l.caps.Events.Emit(diagnostics.Event{
		SlotID:  l.caps.SlotID,
		State:   diagnostics.StateIterated,
		Message: fmt.Sprintf("received %v on %s from %s", env.Value(), env.DestinationInput, env.SourceSlotID),
	})
	return nil
}

func (l *Logger) Iterate(ctx context.Context) error  { return nil }
func (l *Logger) Teardown(ctx context.Context) error { return nil }
