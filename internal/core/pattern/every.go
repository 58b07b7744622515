package pattern

import "github.com/eventflux-io/engine/internal/core/event"

// handleStartArrival implements the start-state seeding/EVERY-overlap rule.
// The actual binding of raw into the seeded (and any pre-existing) pending
// entries happens afterward in advancePending, which is why a freshly
// seeded entry with count >= Min fires immediately: it goes through the
// same five-step algorithm as everything else.
func (p *CountPreStateProcessor) handleStartArrival(raw *event.StreamEvent) {
	if !p.Every {
		if len(p.pending) == 0 {
			p.pending = append(p.pending, p.seedState())
		}
		return
	}

	p.filterCompletedResidues()
	hadExisting := len(p.pending) > 0
	if !hadExisting {
		p.pending = append(p.pending, p.seedState())
		return
	}
	// A pre-existing window already holds events here: spawn an additional
	// fresh single-event window for this arrival, overlapping the existing
	// ones (spec.md §4.G EVERY).
	p.pending = append(p.pending, p.seedState())
}

// filterCompletedResidues drops pending entries that are loopback
// residues: StateEvents whose later slots are already bound, meaning this
// instance already completed and looped back through the start state.
// Mixing those with fresh matches would double-count.
func (p *CountPreStateProcessor) filterCompletedResidues() {
	kept := p.pending[:0:0]
	for _, se := range p.pending {
		if !se.IsCompletedBeyond(int(p.StateID)) {
			kept = append(kept, se)
		}
	}
	p.pending = kept
}

func (p *CountPreStateProcessor) seedState() *event.StateEvent {
	return event.NewStateEvent(p.NumSlots)
}

// LoopbackReset is invoked by the runtime when a completed EVERY pattern
// loops back to its start state: it clears the completed StateEvent's
// slots at and after this state (spec.md §9 design note: model the reset
// as a first-class operation) so old residues never mix with the new
// instance, then drops it from pending — the caller is expected to forward
// the completion downstream before calling LoopbackReset.
func (p *CountPreStateProcessor) LoopbackReset(se *event.StateEvent) {
	se.ResetSlotsFrom(int(p.StateID))
	kept := p.pending[:0:0]
	for _, pe := range p.pending {
		if pe != se {
			kept = append(kept, pe)
		}
	}
	p.pending = kept
}
