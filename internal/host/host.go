// Package host implements the Module Host (C6): it adapts one slot's
// module instance to its declared run_mode, serialises OnInput
// against Iterate, offloads blocking work to the shared worker pool,
// and classifies faults per the pipeline's error_policy.
package host

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	"github.com/flowmesh-dev/flowmesh/internal/errs"
	"github.com/flowmesh-dev/flowmesh/internal/manifest"
	"github.com/flowmesh-dev/flowmesh/internal/module"
	"github.com/flowmesh-dev/flowmesh/internal/typeexpr"
	"github.com/flowmesh-dev/flowmesh/internal/workerpool"
)

// State is a slot's position in the lifecycle of spec §4.2.
type State int32

const (
	StateConstructed State = iota
	StateInitialised
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateInitialised:
		return "initialised"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultCycleDelay is the pause between completed loop-mode
// iterations when a slot declares none.
const DefaultCycleDelay = time.Second

// DefaultGracePeriod bounds how long Teardown waits for a module
// before forcibly abandoning it.
const DefaultGracePeriod = 10 * time.Second

// scopedPublisher is the module.Publisher a Host hands to its module
// through Capabilities: a Bus.Publish bound to this slot's id and
// pre-resolved output types.
type scopedPublisher struct {
	b           *bus.Bus
	slotID      string
	outputTypes map[string]*typeexpr.Expr
}

func (p *scopedPublisher) Publish(outputName string, payload any) {
	typ, ok := p.outputTypes[outputName]
	if !ok {
		return
	}
	p.b.Publish(p.slotID, outputName, payload, typ)
}

// Host runs one slot's module instance as an independently
// schedulable task.
type Host struct {
	SlotID string

	mod         module.Module
	manifestRef *manifest.Manifest
	slot        *manifest.Slot
	bus         *bus.Bus
	pool        *workerpool.Pool
	events      diagnostics.EventEmitter
	errorPolicy manifest.ErrorPolicy
	outputTypes map[string]*typeexpr.Expr

	cycleDelay  time.Duration
	gracePeriod time.Duration
	onFault     func(slotID string, err error)

	callMu sync.Mutex // serialises OnInput against Iterate

	ctxMu sync.RWMutex
	ctx   context.Context

	stateVal int32 // atomic State
	errCount int32 // atomic

	workCh   chan struct{}
	stopped  chan struct{}
	cancel   context.CancelFunc
}

// New constructs a Host for one slot. pool and events may be nil; a
// nil events sink discards every diagnostic.
func New(slotID string, mod module.Module, m *manifest.Manifest, slot *manifest.Slot, b *bus.Bus, pool *workerpool.Pool, errorPolicy manifest.ErrorPolicy, events diagnostics.EventEmitter, onFault func(slotID string, err error)) (*Host, error) {
	outputTypes := make(map[string]*typeexpr.Expr, len(m.Outputs))
	for _, p := range m.Outputs {
		typ, err := typeexpr.Parse(p.Type)
		if err != nil {
			return nil, err
		}
		outputTypes[p.Name] = typ
	}
	if events == nil {
		events = diagnostics.Discard()
	}
	return &Host{
		SlotID:      slotID,
		mod:         mod,
		manifestRef: m,
		slot:        slot,
		bus:         b,
		pool:        pool,
		events:      events,
		errorPolicy: errorPolicy,
		outputTypes: outputTypes,
		cycleDelay:  DefaultCycleDelay,
		gracePeriod: DefaultGracePeriod,
		onFault:     onFault,
		ctx:         context.Background(),
		workCh:      make(chan struct{}, 1),
		stopped:     make(chan struct{}),
	}, nil
}

// SetCycleDelay overrides the default loop-mode cycle delay.
func (h *Host) SetCycleDelay(d time.Duration) { h.cycleDelay = d }

// SetGracePeriod overrides the default shutdown grace period.
func (h *Host) SetGracePeriod(d time.Duration) { h.gracePeriod = d }

// State returns the host's current lifecycle state.
func (h *Host) State() State { return State(atomic.LoadInt32(&h.stateVal)) }

func (h *Host) setState(s State) { atomic.StoreInt32(&h.stateVal, int32(s)) }

// ErrorCount returns the number of faults absorbed under
// error_policy: continue.
func (h *Host) ErrorCount() int { return int(atomic.LoadInt32(&h.errCount)) }

// Stopped is closed once the host's scheduling loop has exited,
// whether by completing its run mode or by a fault.
func (h *Host) Stopped() <-chan struct{} { return h.stopped }

func (h *Host) context() context.Context {
	h.ctxMu.RLock()
	defer h.ctxMu.RUnlock()
	return h.ctx
}

func (h *Host) setContext(ctx context.Context) {
	h.ctxMu.Lock()
	h.ctx = ctx
	h.ctxMu.Unlock()
}

func (h *Host) capabilities() module.Capabilities {
	return module.Capabilities{
		SlotID: h.SlotID,
		Pub:    &scopedPublisher{b: h.bus, slotID: h.SlotID, outputTypes: h.outputTypes},
		Events: h.events,
		Pool:   h.pool,
	}
}

// Initialise calls through to the module's Initialise. The Engine
// calls this in topological order, once per slot.
func (h *Host) Initialise(ctx context.Context, config module.Config) error {
	if err := h.mod.Initialise(ctx, config, h.capabilities()); err != nil {
		return err
	}
	h.setState(StateInitialised)
	h.events.Emit(diagnostics.Event{State: diagnostics.StateInitialised, SlotID: h.SlotID})
	return nil
}

// Run starts the host's scheduling loop in a goroutine. It blocks
// entry into Running until depsReady is closed (all direct
// dependencies have reached Initialised), or returns early if ctx is
// cancelled first.
func (h *Host) Run(ctx context.Context, depsReady <-chan struct{}) {
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.setContext(runCtx)
	go h.runLoop(runCtx, depsReady)
}

func (h *Host) runLoop(ctx context.Context, depsReady <-chan struct{}) {
	defer close(h.stopped)

	select {
	case <-depsReady:
	case <-ctx.Done():
		return
	}

	h.setState(StateRunning)
	h.events.Emit(diagnostics.Event{State: diagnostics.StateRunning, SlotID: h.SlotID})

	switch h.slot.RunMode {
	case manifest.RunModeOnce:
		h.iterate(ctx)
	case manifest.RunModeLoop:
		h.runCycles(ctx)
	case manifest.RunModeReactive, manifest.RunModeOnTrigger:
		h.runReactive(ctx)
	default:
		h.runCycles(ctx)
	}
}

func (h *Host) runCycles(ctx context.Context) {
	delay := h.cycleDelay
	if delay <= 0 {
		delay = DefaultCycleDelay
	}
	for {
		if !h.iterate(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (h *Host) runReactive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.workCh:
			if !h.iterate(ctx) {
				return
			}
		}
	}
}

func (h *Host) signalWork() {
	select {
	case h.workCh <- struct{}{}:
	default:
	}
}

// HandleEnvelope is the bus.Deliver callback bound to every input
// this slot subscribes to. It calls the module's OnInput under the
// same mutex Iterate runs under, then, for reactive/on_trigger slots,
// signals the scheduling loop that work is pending. Multiple
// envelopes arriving while an iteration is already scheduled coalesce
// into the single pending signal already queued.
func (h *Host) HandleEnvelope(env bus.Envelope) {
	h.callMu.Lock()
	err := h.mod.OnInput(h.context(), env)
	h.callMu.Unlock()
	if err != nil {
		if !h.fault("on_input", err) && h.cancel != nil {
			h.cancel()
		}
		return
	}

	switch h.slot.RunMode {
	case manifest.RunModeReactive:
		h.signalWork()
	case manifest.RunModeOnTrigger:
		if trig := h.manifestRef.TriggerInput(); trig != nil && env.DestinationInput == trig.Name {
			h.signalWork()
		}
	}
}

func (h *Host) iterate(ctx context.Context) bool {
	h.callMu.Lock()
	err := h.mod.Iterate(ctx)
	h.callMu.Unlock()
	if err != nil {
		return h.fault("iterate", err)
	}
	h.events.Emit(diagnostics.Event{State: diagnostics.StateIterated, SlotID: h.SlotID})
	return true
}

// fault classifies one error raised from OnInput or Iterate per
// error_policy, returning whether the scheduling loop should keep
// running.
func (h *Host) fault(phase string, cause error) bool {
	wrapped := &errs.ModuleFault{SlotID: h.SlotID, Phase: phase, Cause: cause}
	h.events.Emit(diagnostics.Event{State: diagnostics.StateFault, SlotID: h.SlotID, Err: wrapped.Error()})

	switch h.errorPolicy {
	case manifest.ErrorPolicyHalt:
		if h.onFault != nil {
			h.onFault(h.SlotID, wrapped)
		}
		return false
	case manifest.ErrorPolicyIsolate:
		h.setState(StateTerminated)
		h.events.Emit(diagnostics.Event{State: diagnostics.StateIsolated, SlotID: h.SlotID})
		return false
	case manifest.ErrorPolicyLogOnly:
		return true
	case manifest.ErrorPolicyContinue:
		fallthrough
	default:
		atomic.AddInt32(&h.errCount, 1)
		return true
	}
}

// Teardown cancels the host's scheduling loop and calls the module's
// Teardown, abandoning it once gracePeriod elapses.
func (h *Host) Teardown(ctx context.Context) error {
	h.setState(StateShuttingDown)
	h.events.Emit(diagnostics.Event{State: diagnostics.StateShuttingDown, SlotID: h.SlotID})
	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan error, 1)
	go func() {
		h.callMu.Lock()
		defer h.callMu.Unlock()
		done <- h.mod.Teardown(ctx)
	}()

	select {
	case err := <-done:
		h.setState(StateTerminated)
		h.events.Emit(diagnostics.Event{State: diagnostics.StateTerminated, SlotID: h.SlotID})
		return err
	case <-time.After(h.gracePeriod):
		h.setState(StateTerminated)
		h.events.Emit(diagnostics.Event{State: diagnostics.StateTerminated, SlotID: h.SlotID, Message: "grace period exceeded"})
		return &errs.ShutdownTimeout{SlotID: h.SlotID}
	}
}
