// Package engine implements the Module Engine (C7), the composition
// root that discovers modules, validates and security-admits a
// pipeline document, wires its slots onto the bus, constructs and
// initialises them in topological order, runs them, and coordinates
// shutdown.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	"github.com/flowmesh-dev/flowmesh/internal/errs"
	"github.com/flowmesh-dev/flowmesh/internal/host"
	"github.com/flowmesh-dev/flowmesh/internal/manifest"
	"github.com/flowmesh-dev/flowmesh/internal/module"
	"github.com/flowmesh-dev/flowmesh/internal/registry"
	"github.com/flowmesh-dev/flowmesh/internal/security"
	"github.com/flowmesh-dev/flowmesh/internal/typeexpr"
	"github.com/flowmesh-dev/flowmesh/internal/workerpool"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultMailboxSize is used for a subscription whose slot config
// declares none.
const DefaultMailboxSize = 64

// Option configures an Engine at construction time, following the
// teacher's functional-options idiom.
type Option func(*Engine)

// WithAdmitter overrides the default Admitter (default mode, with a
// prompt that denies every question).
func WithAdmitter(a *security.Admitter) Option {
	return func(e *Engine) { e.admitter = a }
}

// WithEvents sets the diagnostics sink; the default discards events.
func WithEvents(emitter diagnostics.EventEmitter) Option {
	return func(e *Engine) { e.events = emitter }
}

// WithShutdownGrace overrides the default per-host teardown grace
// period.
func WithShutdownGrace(d time.Duration) Option {
	return func(e *Engine) { e.shutdownGrace = d }
}

// WithDefaultMailbox overrides the default mailbox size and overflow
// policy applied to a subscription whose slot config declares none.
func WithDefaultMailbox(size int, policy bus.OverflowPolicy) Option {
	return func(e *Engine) { e.defaultMailboxSize, e.defaultPolicy = size, policy }
}

// Engine composes a Registry, a Bus, a worker Pool, and module
// Factories into one running pipeline.
type Engine struct {
	reg       *registry.Registry
	factories map[string]module.Factory
	admitter  *security.Admitter
	events    diagnostics.EventEmitter
	pool      *workerpool.Pool

	defaultMailboxSize int
	defaultPolicy      bus.OverflowPolicy
	shutdownGrace      time.Duration

	bus *bus.Bus

	mu       sync.Mutex
	hosts    map[string]*host.Host
	order    []string // topological order of surviving slots
	slots    map[string]*manifest.Slot
	manifests map[string]*manifest.Manifest

	haltOnce  sync.Once
	haltCause error
	shutdownCh chan struct{}

	runID string
}

// New builds an Engine from a discovered Registry and a module
// Factory registry keyed by manifest name.
func New(reg *registry.Registry, factories map[string]module.Factory, opts ...Option) *Engine {
	e := &Engine{
		reg:                reg,
		factories:          factories,
		admitter:           security.NewAdmitter(security.ModeDefault, security.DenyAll),
		events:             diagnostics.Discard(),
		defaultMailboxSize: DefaultMailboxSize,
		defaultPolicy:      bus.PolicyBlock,
		shutdownGrace:      host.DefaultGracePeriod,
		hosts:              make(map[string]*host.Host),
		slots:              make(map[string]*manifest.Slot),
		manifests:          make(map[string]*manifest.Manifest),
		shutdownCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prepare runs steps 2-6 of spec §4.7: validate, verify+admit with
// transitive exclusion, topologically sort the survivors, wire them
// onto the bus, and construct (but do not yet initialise) every
// surviving slot's module.
func (e *Engine) Prepare(p *manifest.Pipeline) error {
	if err := manifest.ValidateSemantics(p, e.reg.ResolveManifest); err != nil {
		return err
	}

	rejected := make(map[string]bool)
	var firstRejection error
	for _, slot := range p.Slots {
		entry, ok := e.reg.Resolve(slot.Name)
		if !ok {
			return &errs.UnknownModule{SlotID: slot.ID, Name: slot.Name}
		}
		if err := e.admitter.Decide(slot.ID, slot.Name, entry.Result); err != nil {
			e.events.Emit(diagnostics.Event{
				State: diagnostics.StateRejected, SlotID: slot.ID, Module: slot.Name,
				Verdict: string(entry.Result.Verdict), Message: err.Error(),
			})
			rejected[slot.ID] = true
			if firstRejection == nil {
				firstRejection = err
			}
			continue
		}
		e.events.Emit(diagnostics.Event{
			State: diagnostics.StateAdmitted, SlotID: slot.ID, Module: slot.Name,
			Verdict: string(entry.Result.Verdict), Signer: entry.Result.SignerID,
		})
	}

	excluded := transitiveExclusion(p, rejected)
	survivors := &manifest.Pipeline{Name: p.Name, Execution: p.Execution}
	for _, slot := range p.Slots {
		if !excluded[slot.ID] {
			s := slot
			survivors.Slots = append(survivors.Slots, s)
		}
	}
	// A security rejection is fatal only when no slot survives it.
	if len(survivors.Slots) == 0 && firstRejection != nil {
		return firstRejection
	}

	order, err := manifest.TopoSort(survivors)
	if err != nil {
		return err
	}
	e.order = order

	pool := workerpool.New(survivors.Execution.MaxThreads)
	e.pool = pool
	e.bus = bus.New(func(f errs.TranslationFailure) {
		e.events.Emit(diagnostics.Event{State: diagnostics.StateTranslateErr, Message: f.Error()})
	})

	for _, slot := range survivors.Slots {
		s := slot
		e.slots[s.ID] = &s
		m, _ := e.reg.ResolveManifest(s.Name)
		e.manifests[s.ID] = m
	}

	// Declare every surviving slot's output topics before any
	// subscription is registered.
	for _, slotID := range e.order {
		m := e.manifests[slotID]
		for _, out := range m.Outputs {
			typ, err := typeexpr.Parse(out.Type)
			if err != nil {
				return &errs.BadManifest{Path: m.Name, Reason: err.Error()}
			}
			e.bus.DeclareTopic(slotID, out.Name, typ)
		}
	}

	// Construct (instantiate, no Initialise) every surviving slot.
	for _, slotID := range e.order {
		slot := e.slots[slotID]
		m := e.manifests[slotID]
		factory, ok := e.factories[m.Name]
		if !ok {
			return fmt.Errorf("engine: no factory registered for module %q", m.Name)
		}
		h, err := host.New(slotID, factory(), m, slot, e.bus, e.pool, survivors.Execution.ErrorPolicy, e.events, e.onFault)
		if err != nil {
			return err
		}
		h.SetGracePeriod(e.shutdownGrace)
		e.hosts[slotID] = h
		e.events.Emit(diagnostics.Event{State: diagnostics.StateConstructed, SlotID: slotID, Module: m.Name})
	}

	// Wire: subscribe every input binding to its declared topic.
	for _, slotID := range e.order {
		slot := e.slots[slotID]
		h := e.hosts[slotID]
		for local, binding := range slot.Input {
			inPort := e.manifests[slotID].GetInput(local)
			inType, err := typeexpr.Parse(inPort.Type)
			if err != nil {
				return &errs.BadManifest{Path: e.manifests[slotID].Name, Reason: err.Error()}
			}
			qualified := binding.SlotID + "." + binding.Output
			size, policy := e.mailboxSettings(slot)
			if err := e.bus.Subscribe(slotID, local, qualified, inType, size, policy, h.HandleEnvelope); err != nil {
				return err
			}
		}
		e.events.Emit(diagnostics.Event{State: diagnostics.StateWired, SlotID: slotID})
	}

	return nil
}

// mailboxSettings reads an optional "mailbox_size"/"mailbox_policy"
// pair out of a slot's config block, falling back to the Engine's
// configured defaults.
func (e *Engine) mailboxSettings(slot *manifest.Slot) (int, bus.OverflowPolicy) {
	size, policy := e.defaultMailboxSize, e.defaultPolicy
	if slot.Config == nil {
		return size, policy
	}
	if v, ok := slot.Config["mailbox_size"]; ok {
		if n, ok := v.(int); ok && n > 0 {
			size = n
		}
	}
	if v, ok := slot.Config["mailbox_policy"]; ok {
		if s, ok := v.(string); ok && bus.OverflowPolicy(s).Valid() {
			policy = bus.OverflowPolicy(s)
		}
	}
	return size, policy
}

// transitiveExclusion extends rejected with every slot that depends,
// directly or indirectly (via depends_on or an input binding), on an
// already-excluded slot.
func transitiveExclusion(p *manifest.Pipeline, rejected map[string]bool) map[string]bool {
	deps := make(map[string]map[string]bool, len(p.Slots))
	for _, slot := range p.Slots {
		set := make(map[string]bool)
		for _, d := range slot.DependsOn {
			set[d] = true
		}
		for _, b := range slot.Input {
			set[b.SlotID] = true
		}
		deps[slot.ID] = set
	}

	excluded := make(map[string]bool, len(rejected))
	for id := range rejected {
		excluded[id] = true
	}
	for changed := true; changed; {
		changed = false
		for _, slot := range p.Slots {
			if excluded[slot.ID] {
				continue
			}
			for dep := range deps[slot.ID] {
				if excluded[dep] {
					excluded[slot.ID] = true
					changed = true
					break
				}
			}
		}
	}
	return excluded
}

// Run initialises every surviving slot's module in topological order,
// then starts its host. It blocks until ctx is cancelled or the
// shutdown coordinator is triggered, then tears every host down in
// reverse topological order.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.runID = uuid.New().String()
	e.events.Emit(diagnostics.Event{State: diagnostics.StateRunStarted, RunID: e.runID, Message: "pipeline run starting"})

	ready := make(map[string]chan struct{}, len(e.order))
	for _, slotID := range e.order {
		ready[slotID] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(runCtx)
	for _, slotID := range e.order {
		id := slotID
		h := e.hosts[id]
		slot := e.slots[id]
		g.Go(func() error {
			for _, dep := range slot.DependsOn {
				select {
				case <-ready[dep]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			for local := range slot.Input {
				depID := slot.Input[local].SlotID
				select {
				case <-ready[depID]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			cfg := module.Config(slot.Config)
			if cfg == nil {
				cfg = module.Config{}
			}
			if err := h.Initialise(gctx, cfg); err != nil {
				return fmt.Errorf("slot %q: initialise: %w", id, err)
			}
			close(ready[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cancel()
		return err
	}

	depsReady := closedChan()
	for _, slotID := range e.order {
		e.hosts[slotID].Run(runCtx, depsReady)
	}

	select {
	case <-runCtx.Done():
	case <-e.shutdownCh:
	}

	e.shutdown()
	return e.haltCause
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// onFault is the halt callback every Host is constructed with: an
// error under error_policy: halt triggers engine-wide shutdown.
func (e *Engine) onFault(slotID string, err error) {
	e.haltOnce.Do(func() {
		e.haltCause = fmt.Errorf("slot %q: %w", slotID, err)
		close(e.shutdownCh)
	})
}

// Shutdown triggers the shutdown coordinator from outside (operator
// interrupt, pipeline timeout).
func (e *Engine) Shutdown() {
	e.haltOnce.Do(func() { close(e.shutdownCh) })
}

// shutdown tears every host down in reverse topological order, then
// closes the bus, counting mailbox contents dropped at close time.
//
// Each slot's inbound bindings are unsubscribed before its Teardown
// runs, so no envelope is delivered after a subscriber's teardown has
// begun: Unsubscribe closes the binding's mailbox and waits for its
// dispatch goroutine to exit before returning.
func (e *Engine) shutdown() {
	grace, cancel := context.WithTimeout(context.Background(), e.shutdownGrace+time.Second)
	defer cancel()

	for i := len(e.order) - 1; i >= 0; i-- {
		slotID := e.order[i]
		slot := e.slots[slotID]
		for local, binding := range slot.Input {
			qualified := binding.SlotID + "." + binding.Output
			e.bus.Unsubscribe(qualified, slotID, local)
		}
		h := e.hosts[slotID]
		if err := h.Teardown(grace); err != nil {
			e.events.Emit(diagnostics.Event{State: diagnostics.StateFault, SlotID: slotID, Err: err.Error()})
		}
	}
	dropped := e.bus.Shutdown()
	e.events.Emit(diagnostics.Event{State: diagnostics.StateTerminated, RunID: e.runID, Dropped: dropped, Message: "engine shutdown complete"})
}

// Order returns the engine's computed topological slot order, for
// diagnostics and tests.
func (e *Engine) Order() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}
