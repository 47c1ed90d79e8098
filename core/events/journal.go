package events

import (
	"strings"
	"sync"

	"pactnet/core/types"
)

// Entry is a journaled event with its assignment order. Sequence numbers are
// monotonically increasing across all modules for the lifetime of the node.
type Entry struct {
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Journal retains a bounded window of emitted events in memory so the RPC
// surface can serve a tail of recent activity. Older entries are dropped once
// the capacity is exceeded; durable indexing is a downstream concern.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	next     int64
	entries  []Entry
}

const defaultJournalCapacity = 4096

// NewJournal constructs a journal retaining at most capacity entries. A
// non-positive capacity selects the default window.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &Journal{capacity: capacity, next: 1}
}

// Emit implements the Emitter interface.
func (j *Journal) Emit(evt Event) {
	if j == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	record := payload.Event()
	if record == nil {
		return
	}
	attrs := make(map[string]string, len(record.Attributes))
	for k, v := range record.Attributes {
		attrs[k] = v
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, Entry{Sequence: j.next, Type: record.Type, Attributes: attrs})
	j.next++
	if len(j.entries) > j.capacity {
		j.entries = j.entries[len(j.entries)-j.capacity:]
	}
}

// Tail returns up to limit of the most recent entries whose type carries the
// supplied prefix, oldest first. An empty prefix matches everything.
func (j *Journal) Tail(prefix string, limit int) []Entry {
	if j == nil {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	matched := make([]Entry, 0, len(j.entries))
	for _, entry := range j.entries {
		if prefix == "" || strings.HasPrefix(entry.Type, prefix) {
			matched = append(matched, entry)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]Entry, len(matched))
	copy(out, matched)
	return out
}

// Wrap adapts a raw event record into the Emitter payload contract. Engines
// that do not declare their own wrapper use it for ad-hoc emission.
func Wrap(evt *types.Event) Event {
	return wrapped{evt: evt}
}

type wrapped struct {
	evt *types.Event
}

func (w wrapped) EventType() string {
	if w.evt == nil {
		return ""
	}
	return w.evt.Type
}

func (w wrapped) Event() *types.Event { return w.evt }
