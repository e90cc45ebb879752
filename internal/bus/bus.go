package bus

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
	"github.com/flowmesh-dev/flowmesh/internal/translate"
	"github.com/flowmesh-dev/flowmesh/internal/typeexpr"
)

// Deliver receives one envelope already translated into the
// subscriber's declared input type. It is invoked from the bus's
// per-subscription dispatch loop and must not block for long, per
// spec §4.5 (a slow subscriber only ever back-pressures its own
// mailbox, never another subscriber's).
type Deliver func(Envelope)

// Topic is declared by the Engine during wiring, once per producer
// output, before any subscriber binds to it.
type topic struct {
	name string
	typ  *typeexpr.Expr
	subs []*subscription
}

type subscription struct {
	subscriberSlotID string
	inputName        string
	typ              *typeexpr.Expr
	box              *mailbox
	deliver          Deliver
	done             chan struct{}
}

// Bus is the Message Bus (C5). A nil *Bus is a valid, inert bus: every
// method is a no-op, which lets tests and fixtures omit wiring a bus
// entirely.
type Bus struct {
	mu       sync.RWMutex
	topics   map[string]*topic
	cache    *translate.Cache
	onFailed func(errs.TranslationFailure)
	// unsubDropped counts envelopes dropped by mailboxes already
	// closed through Unsubscribe; Shutdown adds it to its total.
	unsubDropped int
}

// New creates an empty Bus. onFailed, if non-nil, observes every
// translation failure encountered during Publish; a failure drops the
// envelope for that one subscription binding only, leaving delivery to
// every other binding unaffected.
func New(onFailed func(errs.TranslationFailure)) *Bus {
	return &Bus{
		topics:   make(map[string]*topic),
		cache:    translate.NewCache(translate.DefaultCacheSize),
		onFailed: onFailed,
	}
}

// qualifiedTopic builds the "<producerSlotId>.<outputName>" form used
// throughout the bus and spec.
func qualifiedTopic(slotID, outputName string) string {
	return slotID + "." + outputName
}

// DeclareTopic registers a producer output's declared type under its
// qualified topic name. Declaring the same topic twice with an
// unequal type is a programmer error in the Engine's wiring stage and
// panics, matching Kahn-order wiring's single-declaration invariant.
func (b *Bus) DeclareTopic(producerSlotID, outputName string, typ *typeexpr.Expr) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name := qualifiedTopic(producerSlotID, outputName)
	if existing, ok := b.topics[name]; ok {
		if !existing.typ.Equal(typ) {
			panic(fmt.Sprintf("bus: topic %q redeclared with a different type", name))
		}
		return
	}
	b.topics[name] = &topic{name: name, typ: typ}
}

// Subscribe binds one subscriber input to a qualified topic. The
// topic must already be declared. mailboxSize and policy govern the
// back-pressure behaviour of this one binding; deliver is invoked,
// serialized per binding, from a dedicated dispatch goroutine as
// envelopes are drained from the mailbox.
func (b *Bus) Subscribe(subscriberSlotID, inputName, qualifiedTopicName string, inputType *typeexpr.Expr, mailboxSize int, policy OverflowPolicy, deliver Deliver) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	t, ok := b.topics[qualifiedTopicName]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("bus: topic %q is not declared", qualifiedTopicName)
	}
	if !translate.Compatible(t.typ, inputType) {
		b.mu.Unlock()
		return fmt.Errorf("bus: topic %q (%s) is not compatible with input type %s", qualifiedTopicName, t.typ, inputType)
	}
	sub := &subscription{
		subscriberSlotID: subscriberSlotID,
		inputName:        inputName,
		typ:              inputType,
		box:              newMailbox(mailboxSize, policy),
		deliver:          deliver,
		done:             make(chan struct{}),
	}
	t.subs = append(t.subs, sub)
	b.mu.Unlock()

	go sub.dispatch()
	return nil
}

// dispatch drains box in delivery order and invokes deliver for each
// envelope, until the mailbox is closed and drained.
func (s *subscription) dispatch() {
	defer close(s.done)
	for {
		env, ok := s.box.receive()
		if !ok {
			return
		}
		s.deliver(env)
	}
}

// Publish fans payload out to every subscription bound to
// producerSlotID's outputName, translating the payload into each
// subscriber's declared input type where the two types are not
// already equal. A topic with no subscribers is a no-op: the bus
// retains no history.
func (b *Bus) Publish(producerSlotID, outputName string, payload any, sourceType *typeexpr.Expr) {
	if b == nil {
		return
	}
	name := qualifiedTopic(producerSlotID, outputName)
	b.mu.RLock()
	t, ok := b.topics[name]
	if !ok {
		b.mu.RUnlock()
		return
	}
	subs := make([]*subscription, len(t.subs))
	copy(subs, t.subs)
	b.mu.RUnlock()

	env := NewEnvelope(payload, name, producerSlotID, sourceType.String())
	for _, sub := range subs {
		out := payload
		typ := sourceType.String()
		if !sourceType.Equal(sub.typ) {
			translated, err := translate.Translate(b.cache, payload, sourceType, sub.typ)
			if err != nil {
				if b.onFailed != nil {
					b.onFailed(errs.TranslationFailure{
						Src:    sourceType.String(),
						Dst:    sub.typ.String(),
						Reason: err.Error(),
					})
				}
				continue
			}
			out = translated
			typ = sub.typ.String()
		}
		sub.box.enqueue(env.withDestination(sub.inputName, out, typ))
	}
}

// Unsubscribe closes the mailbox for one subscriber input on a topic,
// stopping its dispatch goroutine. Envelopes still queued are dropped
// and counted. It is a no-op if no such binding exists.
func (b *Bus) Unsubscribe(qualifiedTopicName, subscriberSlotID, inputName string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	t, ok := b.topics[qualifiedTopicName]
	if !ok {
		b.mu.Unlock()
		return
	}
	kept := t.subs[:0]
	var removed *subscription
	for _, s := range t.subs {
		if s.subscriberSlotID == subscriberSlotID && s.inputName == inputName {
			removed = s
			continue
		}
		kept = append(kept, s)
	}
	t.subs = kept
	b.mu.Unlock()

	if removed != nil {
		removed.box.close()
		<-removed.done
		b.mu.Lock()
		b.unsubDropped += removed.box.overflowCount()
		b.mu.Unlock()
	}
}

// Shutdown closes every subscription's mailbox and waits for its
// dispatch goroutine to exit, returning the number of envelopes
// dropped across all mailboxes, by their overflow policy or at close
// time, including mailboxes already closed through Unsubscribe.
func (b *Bus) Shutdown() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	var all []*subscription
	for _, t := range b.topics {
		all = append(all, t.subs...)
	}
	dropped := b.unsubDropped
	b.mu.Unlock()

	for _, s := range all {
		s.box.close()
		<-s.done
		dropped += s.box.overflowCount()
	}
	return dropped
}

// Topics returns the qualified names of every declared topic, sorted,
// for diagnostics and introspection.
func (b *Bus) Topics() []string {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
