// Package window implements the window and aggregation processors of
// spec.md §4.F. Each processor implements Process(chunk), consuming a
// chain of arriving StreamEvents and producing a chain that tags emitted
// events Current or Expired so downstream aggregators can decrement state
// on expiry.
package window

import "github.com/eventflux-io/engine/internal/core/event"

// Processor is the common shape every window implements.
type Processor interface {
	Process(chunk *event.StreamEvent) *event.StreamEvent
}

// chainBuilder accumulates StreamEvent nodes into a singly linked output
// chain in append order.
type chainBuilder struct {
	head, tail *event.StreamEvent
}

func (b *chainBuilder) append(se *event.StreamEvent) {
	se.Next = nil
	if b.head == nil {
		b.head = se
		b.tail = se
		return
	}
	b.tail.Next = se
	b.tail = se
}

func (b *chainBuilder) result() *event.StreamEvent {
	return b.head
}

// eachDetached walks chunk, detaching each node from its Next pointer
// before calling fn, so the caller can safely relink each node elsewhere.
func eachDetached(chunk *event.StreamEvent, fn func(*event.StreamEvent)) {
	se := chunk
	for se != nil {
		next := se.Next
		se.Next = nil
		fn(se)
		se = next
	}
}

func taggedClone(se *event.StreamEvent, t event.EventType) *event.StreamEvent {
	c := se.Clone()
	c.Type = t
	return c
}
