package events

import "pactnet/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that expose their full attribute record.
// The journal and metrics emitters use it to avoid depending on the concrete
// wrapper types each engine declares.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while
// discarding all events. Engines default to it so emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Fanout forwards each event to every configured emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
