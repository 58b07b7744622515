package window

import (
	"sort"

	"github.com/eventflux-io/engine/internal/core/event"
)

// SortWindow is a bounded priority queue of capacity n, ordered by keyFn.
// Every arrival is admitted (emitted current); once size exceeds n the
// dominated element (the worst under the configured ordering) is evicted
// and emitted expired.
type SortWindow struct {
	capacity  int
	ascending bool
	keyFn     func(*event.StreamEvent) float64
	items     []*event.StreamEvent // kept sorted ascending by keyFn(item)
}

func NewSortWindow(capacity int, ascending bool, keyFn func(*event.StreamEvent) float64) *SortWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &SortWindow{capacity: capacity, ascending: ascending, keyFn: keyFn}
}

func (w *SortWindow) Process(chunk *event.StreamEvent) *event.StreamEvent {
	var b chainBuilder
	eachDetached(chunk, func(se *event.StreamEvent) {
		b.append(taggedClone(se, event.Current))
		w.insert(se)
		if len(w.items) > w.capacity {
			evicted := w.evictDominated()
			b.append(taggedClone(evicted, event.Expired))
		}
	})
	return b.result()
}

func (w *SortWindow) insert(se *event.StreamEvent) {
	key := w.keyFn(se)
	idx := sort.Search(len(w.items), func(i int) bool {
		return w.keyFn(w.items[i]) >= key
	})
	w.items = append(w.items, nil)
	copy(w.items[idx+1:], w.items[idx:])
	w.items[idx] = se
}

// evictDominated removes and returns the worst element under the
// configured ordering: the last (largest key) when ascending, the first
// (smallest key) when descending.
func (w *SortWindow) evictDominated() *event.StreamEvent {
	var evicted *event.StreamEvent
	if w.ascending {
		evicted = w.items[len(w.items)-1]
		w.items = w.items[:len(w.items)-1]
	} else {
		evicted = w.items[0]
		w.items = w.items[1:]
	}
	return evicted
}

// Len reports how many events the window currently holds.
func (w *SortWindow) Len() int { return len(w.items) }
