package pipeline

import "sync"

// EventPool recycles *PooledEvent nodes so the hot publish/consume path
// avoids one allocation per event. Grounded on the borrow/return shape in
// the reference corpus's in-memory event bus (pool.PoolManager /
// BorrowEventInsts / ReturnEventInsts): a sync.Pool underneath, sized
// informally at 2*capacity by virtue of how many nodes are ever in flight
// between publishers and the slowest consumer.
type EventPool struct {
	pool sync.Pool
}

// PooledEvent is the ring-buffer node; Put zeroes its fields before reuse so a
// recycled event never leaks a previous publisher's payload to a consumer.
type PooledEvent struct {
	Timestamp int64
	Data      []any
	IsExpired bool
}

func (p *PooledEvent) reset() {
	p.Timestamp = 0
	p.IsExpired = false
	for i := range p.Data {
		p.Data[i] = nil
	}
	p.Data = p.Data[:0]
}

// NewEventPool constructs a pool; attributeHint is the capacity of the Data
// backing array new nodes are created with. The pool itself grows/shrinks
// elastically — sync.Pool does not enforce a hard cap, matching "may be
// recycled from a pool", not "must".
func NewEventPool(attributeHint int) *EventPool {
	p := &EventPool{}
	p.pool.New = func() any {
		return &PooledEvent{Data: make([]any, 0, attributeHint)}
	}
	return p
}

// Get borrows a zeroed PooledEvent.
func (p *EventPool) Get() *PooledEvent {
	ev := p.pool.Get().(*PooledEvent)
	return ev
}

// Put returns ev to the pool after zeroing it. Consumers own the event they
// receive from Consume; Put is only called once the engine is certain no
// other reference to ev survives (after dispatch to every subscriber or on
// a drop path).
func (p *EventPool) Put(ev *PooledEvent) {
	if ev == nil {
		return
	}
	ev.reset()
	p.pool.Put(ev)
}
