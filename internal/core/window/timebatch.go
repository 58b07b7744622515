package window

import (
	"sync"
	"time"

	"github.com/eventflux-io/engine/internal/core/event"
)

// TimeBatchWindow accumulates events for a fixed wall duration; on tick it
// emits the accumulated batch tagged current, then the previous batch
// tagged expired, then clears. Emission happens on the ticker goroutine via
// Emit, not synchronously from Process, since a batch boundary is a clock
// event, not an arrival event.
type TimeBatchWindow struct {
	mu       sync.Mutex
	duration time.Duration
	current  []*event.StreamEvent
	previous []*event.StreamEvent
	Emit     func(*event.StreamEvent)

	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func NewTimeBatchWindow(duration time.Duration, emit func(*event.StreamEvent)) *TimeBatchWindow {
	w := &TimeBatchWindow{
		duration: duration,
		Emit:     emit,
		ticker:   time.NewTicker(duration),
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *TimeBatchWindow) loop() {
	for {
		select {
		case <-w.ticker.C:
			w.tick()
		case <-w.stopCh:
			w.ticker.Stop()
			return
		}
	}
}

// Process buffers arrivals into the current batch; it never emits directly.
func (w *TimeBatchWindow) Process(chunk *event.StreamEvent) *event.StreamEvent {
	w.mu.Lock()
	eachDetached(chunk, func(se *event.StreamEvent) {
		w.current = append(w.current, se)
	})
	w.mu.Unlock()
	return nil
}

func (w *TimeBatchWindow) tick() {
	w.mu.Lock()
	curBatch := w.current
	prevBatch := w.previous
	w.previous = curBatch
	w.current = nil
	w.mu.Unlock()

	var b chainBuilder
	for _, se := range curBatch {
		b.append(taggedClone(se, event.Current))
	}
	for _, se := range prevBatch {
		b.append(taggedClone(se, event.Expired))
	}
	if out := b.result(); out != nil && w.Emit != nil {
		w.Emit(out)
	}
}

// Stop terminates the background ticker goroutine.
func (w *TimeBatchWindow) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}
