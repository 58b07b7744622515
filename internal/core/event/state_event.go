package event

// StateEvent is a fixed-arity (auto-expanding) array of stream-event slots,
// one per state position in a pattern, used by the pattern/sequence matcher
// (spec.md §4.G). Each slot may itself hold a StreamEvent chain when a count
// quantifier binds multiple events to one state position.
type StateEvent struct {
	StreamEvents []*StreamEvent // slot i == events bound at pattern state i
	OutputData   []any
	Type         EventType

	// Deadline is the WITHIN expiry timestamp (ms since epoch), 0 meaning unbounded.
	Deadline int64
}

// NewStateEvent creates a StateEvent with size pre-allocated slots.
func NewStateEvent(size int) *StateEvent {
	return &StateEvent{StreamEvents: make([]*StreamEvent, size)}
}

// ensureSize auto-expands StreamEvents so index i is addressable.
func (s *StateEvent) ensureSize(i int) {
	if i < len(s.StreamEvents) {
		return
	}
	grown := make([]*StreamEvent, i+1)
	copy(grown, s.StreamEvents)
	s.StreamEvents = grown
}

// SetSlot binds a single StreamEvent at a state position, expanding the slot
// array if needed.
func (s *StateEvent) SetSlot(i int, se *StreamEvent) {
	s.ensureSize(i)
	s.StreamEvents[i] = se
}

// Slot returns the chain bound at a state position, or nil if out of range
// or unbound.
func (s *StateEvent) Slot(i int) *StreamEvent {
	if i < 0 || i >= len(s.StreamEvents) {
		return nil
	}
	return s.StreamEvents[i]
}

// AppendToSlot appends a new StreamEvent onto the chain at a state position,
// used by count quantifiers (A{n,m}) to accumulate multiple bound events at
// one slot.
func (s *StateEvent) AppendToSlot(i int, se *StreamEvent) {
	s.ensureSize(i)
	s.StreamEvents[i] = AppendChain(s.StreamEvents[i], se)
}

// SlotChainLen returns how many events are bound at a state position.
func (s *StateEvent) SlotChainLen(i int) int {
	return ChainLen(s.Slot(i))
}

// Clone deep-copies a StateEvent, including every slot's chain, so that a
// pre-state processor can fork a partial match without aliasing mutable
// state with the original.
func (s *StateEvent) Clone() *StateEvent {
	if s == nil {
		return nil
	}
	clone := &StateEvent{
		StreamEvents: make([]*StreamEvent, len(s.StreamEvents)),
		Type:         s.Type,
		Deadline:     s.Deadline,
	}
	for i, se := range s.StreamEvents {
		clone.StreamEvents[i] = CloneChain(se)
	}
	if s.OutputData != nil {
		clone.OutputData = append([]any(nil), s.OutputData...)
	}
	return clone
}

// TrimSlotTail removes the last-appended event from the chain bound at a
// state position, used when a count quantifier overshoots max after
// trimming (spec.md §4.G step 5): the overshoot is discarded but the
// StateEvent itself is re-queued, never dropped.
func (s *StateEvent) TrimSlotTail(i int) {
	head := s.Slot(i)
	if head == nil {
		return
	}
	if head.Next == nil {
		s.StreamEvents[i] = nil
		return
	}
	prev := head
	for prev.Next.Next != nil {
		prev = prev.Next
	}
	prev.Next = nil
}

// IsCompletedBeyond reports whether any slot strictly after stateID holds a
// bound event — used by the EVERY loopback filter (spec.md §4.G) to
// distinguish live partial matches at the start state from stale residues of
// an already-advanced match looping back through it.
func (s *StateEvent) IsCompletedBeyond(stateID int) bool {
	for i := stateID + 1; i < len(s.StreamEvents); i++ {
		if s.StreamEvents[i] != nil {
			return true
		}
	}
	return false
}

// ResetSlotsFrom clears every slot at or after stateID, modelling the EVERY
// loopback reset as a first-class operation rather than mutating a shared
// pending list in place (spec.md §9 design note).
func (s *StateEvent) ResetSlotsFrom(stateID int) {
	for i := stateID; i < len(s.StreamEvents); i++ {
		s.StreamEvents[i] = nil
	}
}
