// Package bus implements the Message Bus (C5): typed pub/sub over
// qualified topics, translation on type mismatch, per-subscriber
// bounded mailboxes for back-pressure, and ordered per-binding
// delivery.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the wrapper around every in-flight payload (spec §3).
// It is the only object subscribers observe; Value is its stable
// payload accessor.
type Envelope struct {
	payload          any
	ID               string
	Topic            string
	SourceSlotID     string
	Timestamp        time.Time
	DestinationInput string
	SourceType       string
}

// Value returns the envelope's payload.
func (e Envelope) Value() any { return e.payload }

// NewEnvelope constructs an Envelope carrying payload, addressed by
// topic and tagged with the producing slot and its declared output
// type. Bus.Publish uses this to wrap every outgoing message; module
// tests use it directly to hand a module.Module a payload without
// standing up a full Bus. Each envelope gets a fresh id, stable across
// translation and fan-out to every subscriber.
func NewEnvelope(payload any, topic, sourceSlotID, sourceType string) Envelope {
	return Envelope{
		payload:      payload,
		ID:           uuid.New().String(),
		Topic:        topic,
		SourceSlotID: sourceSlotID,
		Timestamp:    time.Now(),
		SourceType:   sourceType,
	}
}

// withDestination returns a copy of e addressed to a specific
// subscriber input and carrying payload (post-translation).
func (e Envelope) withDestination(inputName string, payload any, typ string) Envelope {
	e.DestinationInput = inputName
	e.payload = payload
	e.SourceType = typ
	return e
}
