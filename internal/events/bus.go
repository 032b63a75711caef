// Package events fans pipeline events out to in-process subscribers and
// exposes them to clients over server-sent events.
package events

import (
	"encoding/json"
	"sync"
)

// Event is one published pipeline event.
type Event struct {
	// Type identifies the event, e.g. "new-signal" or "trade-completed".
	Type string `json:"type"`
	// Payload is the event body, already shaped for clients.
	Payload interface{} `json:"payload,omitempty"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses events rather than blocking publishers.
const subscriberBuffer = 64

// Bus is an in-process fan-out of pipeline events.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[uint64]chan Event),
	}
}

// Publish delivers the event to all current subscribers. Slow subscribers
// with a full buffer are skipped.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes
// the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++

	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// MarshalEvent encodes an event for the SSE wire. Kept as a helper so
// handler and tests agree on the encoding.
func MarshalEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}
