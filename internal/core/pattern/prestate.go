// Package pattern implements the pattern/sequence state machine of
// spec.md §4.G: pre-state/post-state processors chained per pattern state,
// count quantifiers, EVERY, WITHIN timing, and the logical/absence
// operators.
//
// Grounded on the pending/re-queue/trim state machine described in
// original_source's count_pre_state_processor.rs, and on
// pattern_every_overlapping_test.rs for the EVERY overlap scenario.
package pattern

import "github.com/eventflux-io/engine/internal/core/event"

// StateID identifies a position in a pattern's StateEvent slot array.
type StateID int

// CountPreStateProcessor is the pre-state for one pattern position bound
// to a count quantifier A{min,max} (min==max==1 for an unquantified
// element). It maintains the pending list of in-flight partial matches
// that have reached this state and advances all of them on each qualifying
// arrival.
type CountPreStateProcessor struct {
	StateID StateID
	Min     int
	Max     int

	// IsStartState marks the first state of the pattern/sequence: arrivals
	// here may seed brand new partial matches rather than only advancing
	// ones forwarded from an earlier state.
	IsStartState bool
	// Every marks a start state quantified with EVERY: overlapping windows
	// are allowed to coexist (spec.md §4.G).
	Every bool

	// NumSlots sizes freshly seeded StateEvents.
	NumSlots int

	// Forward is called with a clone of a StateEvent each time this state's
	// quantifier is satisfied (min <= count <= max).
	Forward func(*event.StateEvent)

	pending []*event.StateEvent
}

// Attach adds an in-flight partial match forwarded from an earlier pattern
// state into this state's pending list.
func (p *CountPreStateProcessor) Attach(se *event.StateEvent) {
	p.pending = append(p.pending, se)
}

// Pending exposes the current pending list (read-only use by tests and the
// EVERY loopback machinery).
func (p *CountPreStateProcessor) Pending() []*event.StateEvent {
	return p.pending
}

// Arrive processes one qualifying arrival: for a start state it first
// applies the seeding/overlap rule (see every.go), then runs the five-step
// pending-update algorithm across every pending entry, including any just
// seeded.
func (p *CountPreStateProcessor) Arrive(raw *event.StreamEvent) {
	if p.IsStartState {
		p.handleStartArrival(raw)
	}
	p.advancePending(raw)
}

// advancePending implements the five-step algorithm from spec.md §4.G:
//  1. clone the incoming event into this state's slot of every pending entry
//  2. count the events now bound at that slot
//  3. min<=count<=max: forward a clone; drop from pending if count==max,
//     otherwise re-queue
//  4. count<min: re-queue without forwarding
//  5. count>max (only possible right after a trim elsewhere): trim the last
//     bound event and re-queue — re-queuing is mandatory, discarding loses
//     future matches
func (p *CountPreStateProcessor) advancePending(raw *event.StreamEvent) {
	requeued := p.pending[:0:0]
	for _, se := range p.pending {
		se.AppendToSlot(int(p.StateID), event.CloneChain(raw))
		count := se.SlotChainLen(int(p.StateID))

		switch {
		case count < p.Min:
			requeued = append(requeued, se)
		case count <= p.Max:
			if p.Forward != nil {
				p.Forward(se.Clone())
			}
			if count < p.Max {
				requeued = append(requeued, se)
			}
			// count == p.Max: chain complete at this state, drop from pending.
		default: // count > p.Max
			se.TrimSlotTail(int(p.StateID))
			requeued = append(requeued, se)
		}
	}
	p.pending = requeued
}
