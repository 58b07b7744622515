package window

import "github.com/eventflux-io/engine/internal/core/event"

// LengthWindow is a FIFO of fixed capacity n: every arrival is emitted
// current; once size exceeds n the head is dequeued and emitted expired.
type LengthWindow struct {
	capacity int
	queue    []*event.StreamEvent
}

func NewLengthWindow(capacity int) *LengthWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &LengthWindow{capacity: capacity}
}

func (w *LengthWindow) Process(chunk *event.StreamEvent) *event.StreamEvent {
	var b chainBuilder
	eachDetached(chunk, func(se *event.StreamEvent) {
		w.queue = append(w.queue, se)
		b.append(taggedClone(se, event.Current))
		if len(w.queue) > w.capacity {
			head := w.queue[0]
			w.queue = w.queue[1:]
			b.append(taggedClone(head, event.Expired))
		}
	})
	return b.result()
}

// Len reports how many events the window currently holds.
func (w *LengthWindow) Len() int { return len(w.queue) }
