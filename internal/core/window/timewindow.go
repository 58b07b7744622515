package window

import (
	"sync"
	"time"

	"github.com/eventflux-io/engine/internal/core/event"
)

// TimeWindow is the sliding time window: every arrival is emitted current
// immediately, and a periodic scheduler callback walks the head of the
// retained queue expiring events whose timestamp <= now-duration.
type TimeWindow struct {
	mu       sync.Mutex
	duration time.Duration
	queue    []*event.StreamEvent
	Emit     func(*event.StreamEvent)
	clock    func() int64

	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

// NewTimeWindow starts a background expiry scheduler ticking at a fraction
// of duration (capped to a sane minimum so short windows still get timely
// expiry checks).
func NewTimeWindow(duration time.Duration, emit func(*event.StreamEvent)) *TimeWindow {
	tick := duration / 10
	if tick < time.Millisecond {
		tick = time.Millisecond
	}
	w := &TimeWindow{
		duration: duration,
		Emit:     emit,
		clock:    func() int64 { return time.Now().UnixMilli() },
		ticker:   time.NewTicker(tick),
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *TimeWindow) loop() {
	for {
		select {
		case <-w.ticker.C:
			w.expireOld()
		case <-w.stopCh:
			w.ticker.Stop()
			return
		}
	}
}

// Process emits every arrival as current immediately and retains it for
// later expiry.
func (w *TimeWindow) Process(chunk *event.StreamEvent) *event.StreamEvent {
	var b chainBuilder
	w.mu.Lock()
	eachDetached(chunk, func(se *event.StreamEvent) {
		w.queue = append(w.queue, se)
		b.append(taggedClone(se, event.Current))
	})
	w.mu.Unlock()
	return b.result()
}

func (w *TimeWindow) expireOld() {
	cutoff := w.clock() - w.duration.Milliseconds()

	w.mu.Lock()
	var b chainBuilder
	for len(w.queue) > 0 && w.queue[0].Timestamp <= cutoff {
		head := w.queue[0]
		w.queue = w.queue[1:]
		b.append(taggedClone(head, event.Expired))
	}
	w.mu.Unlock()

	if out := b.result(); out != nil && w.Emit != nil {
		w.Emit(out)
	}
}

// Stop terminates the background expiry scheduler.
func (w *TimeWindow) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}
