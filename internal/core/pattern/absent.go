package pattern

import (
	"sync"
	"time"

	"github.com/eventflux-io/engine/internal/core/event"
)

// AbsentProcessor implements `NOT stream FOR duration`: a negative
// condition that completes successfully only if no matching event of
// stream arrives within duration of activation.
type AbsentProcessor struct {
	Duration time.Duration
	// Forward is called with the StateEvent when the absence succeeds
	// (the timer elapsed without a disqualifying arrival).
	Forward func(*event.StateEvent)

	mu        sync.Mutex
	activated map[*event.StateEvent]*time.Timer
}

// Activate starts the FOR duration clock for se.
func (p *AbsentProcessor) Activate(se *event.StateEvent) {
	p.mu.Lock()
	if p.activated == nil {
		p.activated = make(map[*event.StateEvent]*time.Timer)
	}
	p.activated[se] = time.AfterFunc(p.Duration, func() { p.fire(se) })
	p.mu.Unlock()
}

func (p *AbsentProcessor) fire(se *event.StateEvent) {
	p.mu.Lock()
	if _, ok := p.activated[se]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.activated, se)
	p.mu.Unlock()
	if p.Forward != nil {
		p.Forward(se)
	}
}

// MatchArrival cancels se's absence timer: a disqualifying event of the
// watched stream arrived before the duration elapsed, so the absence
// condition fails and se never completes through this path.
func (p *AbsentProcessor) MatchArrival(se *event.StateEvent) {
	p.mu.Lock()
	if t, ok := p.activated[se]; ok {
		t.Stop()
		delete(p.activated, se)
	}
	p.mu.Unlock()
}

// Active reports whether se still has a live absence timer, for tests.
func (p *AbsentProcessor) Active(se *event.StateEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.activated[se]
	return ok
}
