package pattern

import (
	"sync"
	"time"

	"github.com/eventflux-io/engine/internal/core/event"
)

// WithinScheduler prunes StateEvents whose WITHIN deadline has elapsed.
// Start-state arrivals stamp se.Deadline = t+within; the deadline does not
// reset at intermediate states, so this scheduler is the only place a
// StateEvent's lifetime is enforced.
type WithinScheduler struct {
	mu       sync.Mutex
	tracked  map[*event.StateEvent]struct{}
	OnExpire func(*event.StateEvent)
	clock    func() int64

	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func NewWithinScheduler(tick time.Duration, onExpire func(*event.StateEvent)) *WithinScheduler {
	w := &WithinScheduler{
		tracked:  make(map[*event.StateEvent]struct{}),
		OnExpire: onExpire,
		clock:    func() int64 { return time.Now().UnixMilli() },
		ticker:   time.NewTicker(tick),
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *WithinScheduler) loop() {
	for {
		select {
		case <-w.ticker.C:
			w.sweep()
		case <-w.stopCh:
			w.ticker.Stop()
			return
		}
	}
}

// Track stamps se's deadline and begins tracking it for expiry.
func (w *WithinScheduler) Track(se *event.StateEvent, deadline int64) {
	se.Deadline = deadline
	w.mu.Lock()
	w.tracked[se] = struct{}{}
	w.mu.Unlock()
}

// Untrack removes se from expiry consideration, e.g. once it has completed
// and been forwarded downstream.
func (w *WithinScheduler) Untrack(se *event.StateEvent) {
	w.mu.Lock()
	delete(w.tracked, se)
	w.mu.Unlock()
}

func (w *WithinScheduler) sweep() {
	now := w.clock()
	var expired []*event.StateEvent
	w.mu.Lock()
	for se := range w.tracked {
		if se.Deadline > 0 && se.Deadline <= now {
			expired = append(expired, se)
			delete(w.tracked, se)
		}
	}
	w.mu.Unlock()

	for _, se := range expired {
		if w.OnExpire != nil {
			w.OnExpire(se)
		}
	}
}

// Stop terminates the background sweep goroutine.
func (w *WithinScheduler) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}
