package window

import (
	"sync"
	"time"

	"github.com/eventflux-io/engine/internal/core/event"
)

// SessionWindow groups arrivals by gap: a session stays open as long as
// events keep arriving within gap of the previous one, and closes — emitting
// its contents expired — either when a later arrival exceeds the gap, or
// when no event arrives within gap of the last one (an inactivity timeout).
type SessionWindow struct {
	mu          sync.Mutex
	gap         time.Duration
	active      []*event.StreamEvent
	lastArrival int64
	hasActive   bool
	Emit        func(*event.StreamEvent)
	timer       *time.Timer
}

func NewSessionWindow(gap time.Duration, emit func(*event.StreamEvent)) *SessionWindow {
	return &SessionWindow{gap: gap, Emit: emit}
}

func (w *SessionWindow) Process(chunk *event.StreamEvent) *event.StreamEvent {
	var b chainBuilder
	var expiredFromClose *event.StreamEvent

	w.mu.Lock()
	eachDetached(chunk, func(se *event.StreamEvent) {
		if w.hasActive && se.Timestamp-w.lastArrival > w.gap.Milliseconds() {
			closed := w.closeSessionLocked()
			if closed != nil {
				if expiredFromClose == nil {
					expiredFromClose = closed
				} else {
					lastOfClose := expiredFromClose
					for lastOfClose.Next != nil {
						lastOfClose = lastOfClose.Next
					}
					lastOfClose.Next = closed
				}
			}
		}
		w.lastArrival = se.Timestamp
		w.hasActive = true
		w.active = append(w.active, se.Clone())
		b.append(taggedClone(se, event.Current))
		w.resetTimerLocked()
	})
	w.mu.Unlock()

	if expiredFromClose != nil && w.Emit != nil {
		w.Emit(expiredFromClose)
	}
	return b.result()
}

// closeSessionLocked must be called with mu held. It clears the active
// session and returns its contents tagged expired, or nil if empty.
func (w *SessionWindow) closeSessionLocked() *event.StreamEvent {
	if !w.hasActive || len(w.active) == 0 {
		w.hasActive = false
		w.active = nil
		return nil
	}
	var b chainBuilder
	for _, se := range w.active {
		b.append(taggedClone(se, event.Expired))
	}
	w.active = nil
	w.hasActive = false
	return b.result()
}

func (w *SessionWindow) resetTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.gap, w.onTimeout)
}

func (w *SessionWindow) onTimeout() {
	w.mu.Lock()
	closed := w.closeSessionLocked()
	w.mu.Unlock()
	if closed != nil && w.Emit != nil {
		w.Emit(closed)
	}
}

// Stop releases the inactivity timer without closing the session.
func (w *SessionWindow) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
