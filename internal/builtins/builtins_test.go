package builtins

import (
	"context"
	"testing"

	"github.com/flowmesh-dev/flowmesh/internal/bus"
	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	"github.com/flowmesh-dev/flowmesh/internal/module"
)

type recordingPublisher struct {
	name    string
	payload any
}

func (p *recordingPublisher) Publish(outputName string, payload any) {
	p.name, p.payload = outputName, payload
}

func TestTickerStartsFromConfiguredValueAndIncrements(t *testing.T) {
	pub := &recordingPublisher{}
	tk := NewTicker()
	caps := module.Capabilities{SlotID: "t", Pub: pub, Events: diagnostics.Discard()}
	if err := tk.Initialise(context.Background(), module.Config{"start": 10}, caps); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if err := tk.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if pub.name != "count" || pub.payload != int64(11) {
		t.Fatalf("expected count=11, got %s=%v", pub.name, pub.payload)
	}
}

func TestDoubleCoalescesLatestInputPerIterate(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDouble()
	caps := module.Capabilities{SlotID: "d", Pub: pub, Events: diagnostics.Discard()}
	if err := d.Initialise(context.Background(), module.Config{}, caps); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	// No input yet: Iterate must not publish.
	if err := d.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if pub.name != "" {
		t.Fatalf("expected no publish before any input, got %s", pub.name)
	}

	if err := d.OnInput(context.Background(), newTestEnvelope(3.5)); err != nil {
		t.Fatalf("OnInput: %v", err)
	}
	if err := d.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if pub.name != "doubled" || pub.payload != 7.0 {
		t.Fatalf("expected doubled=7.0, got %s=%v", pub.name, pub.payload)
	}

	// A second Iterate with no fresh input must not re-publish.
	pub.name = ""
	if err := d.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if pub.name != "" {
		t.Fatalf("expected no re-publish without fresh input, got %s", pub.name)
	}
}

func TestLoggerEmitsOneEventPerInput(t *testing.T) {
	var got []diagnostics.Event
	recorder := recorderEmitter{events: &got}
	l := NewLogger()
	caps := module.Capabilities{SlotID: "l", Pub: &recordingPublisher{}, Events: recorder}
	if err := l.Initialise(context.Background(), module.Config{}, caps); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if err := l.OnInput(context.Background(), newTestEnvelope(42)); err != nil {
		t.Fatalf("OnInput: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].SlotID != "l" {
		t.Fatalf("expected SlotID %q, got %q", "l", got[0].SlotID)
	}
}

type recorderEmitter struct {
	events *[]diagnostics.Event
}

func (r recorderEmitter) Emit(ev diagnostics.Event) {
	*r.events = append(*r.events, ev)
}

func newTestEnvelope(payload any) bus.Envelope {
	return bus.NewEnvelope(payload, "src.out", "src", "any")
}
