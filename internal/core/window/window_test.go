package window

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/event"
)

func chainOf(timestamps ...int64) *event.StreamEvent {
	var head, tail *event.StreamEvent
	for _, ts := range timestamps {
		se := event.NewStreamEvent(ts, []any{ts})
		if head == nil {
			head = se
			tail = se
		} else {
			tail.Next = se
			tail = se
		}
	}
	return head
}

func collectTimestampsByType(chain *event.StreamEvent, t event.EventType) []int64 {
	var out []int64
	for se := chain; se != nil; se = se.Next {
		if se.Type == t {
			out = append(out, se.Timestamp)
		}
	}
	return out
}

func TestLengthWindow_EmitsExpiredOnceOverCapacity(t *testing.T) {
	w := NewLengthWindow(3)

	out := w.Process(chainOf(1, 2, 3))
	assert.Empty(t, collectTimestampsByType(out, event.Expired))
	assert.Equal(t, []int64{1, 2, 3}, collectTimestampsByType(out, event.Current))

	out = w.Process(chainOf(4))
	assert.Equal(t, []int64{4}, collectTimestampsByType(out, event.Current))
	assert.Equal(t, []int64{1}, collectTimestampsByType(out, event.Expired))
	assert.Equal(t, 3, w.Len())
}

func TestSortWindow_EvictsDominatedOnOverflow(t *testing.T) {
	keyFn := func(se *event.StreamEvent) float64 { return float64(se.Timestamp) }
	w := NewSortWindow(2, true, keyFn) // ascending: keep the two smallest

	out := w.Process(chainOf(5, 1, 3))
	expired := collectTimestampsByType(out, event.Expired)
	require.Len(t, expired, 1)
	assert.Equal(t, int64(5), expired[0]) // largest evicted first
	assert.Equal(t, 2, w.Len())
}

func TestTimeBatchWindow_TicksAccumulateThenExpirePrevious(t *testing.T) {
	var emitted []*event.StreamEvent
	var mu sync.Mutex
	w := NewTimeBatchWindow(20*time.Millisecond, func(se *event.StreamEvent) {
		mu.Lock()
		emitted = append(emitted, se)
		mu.Unlock()
	})
	defer w.Stop()

	w.Process(chainOf(1, 2))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) >= 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	first := emitted[0]
	mu.Unlock()
	assert.Equal(t, []int64{1, 2}, collectTimestampsByType(first, event.Current))
	assert.Empty(t, collectTimestampsByType(first, event.Expired))
}

func TestAvgAggregator_ComputedFromSumAndCount(t *testing.T) {
	a := NewAvg()
	a.Add(10)
	a.Add(20)
	assert.Equal(t, 15.0, a.Value())
	a.Remove(10)
	assert.Equal(t, 20.0, a.Value())
}

func TestMinMaxAggregator_RescanAfterExtremeRemoved(t *testing.T) {
	min := NewMin()
	min.Add(5)
	min.Add(1)
	min.Add(3)
	assert.Equal(t, 1.0, min.Value())
	min.Remove(1)
	assert.Equal(t, 3.0, min.Value())
}

func TestDistinctCountAggregator(t *testing.T) {
	d := NewDistinctCount()
	d.Add(1)
	d.Add(1)
	d.Add(2)
	assert.Equal(t, 2.0, d.Value())
	d.Remove(1)
	assert.Equal(t, 2.0, d.Value())
	d.Remove(1)
	assert.Equal(t, 1.0, d.Value())
}

func TestTumblingWindowAggregation_ThreeClosedSecondsScenario(t *testing.T) {
	// spec.md §8 scenario 3: SELECT symbol, sum(volume) FROM S
	// WINDOW('tumbling', INTERVAL '1' SECOND) GROUP BY symbol, fed
	// [0ms sym=X vol=1][200ms sym=X vol=2][1100ms sym=X vol=3][2100ms sym=X vol=4]
	// over 2.5s, expects three closed-second rows: (X,3), (X,3), (X,4).
	w := NewTimeBatchWindow(time.Second, nil)
	defer w.Stop()

	groupKeyFn := func(se *event.StreamEvent) string { return se.BeforeWindowData[0].(string) }
	valueFn := func(se *event.StreamEvent) float64 { return se.BeforeWindowData[1].(float64) }
	ga := NewGroupAggregator([]AggSpec{{Name: "sum", Func: FuncSum, ValueFn: valueFn}}, groupKeyFn)

	var sums []float64
	w.Emit = func(batch *event.StreamEvent) {
		for _, r := range ga.Process(batch) {
			sums = append(sums, r.Values["sum"])
		}
	}

	mk := func(sym string, vol float64) *event.StreamEvent {
		return event.NewStreamEvent(0, []any{sym, vol})
	}

	w.Process(mk("X", 1))
	w.Process(mk("X", 2))
	w.tick() // closes second 1: current=[1,2] -> sum 3, no previous batch yet

	w.Process(mk("X", 3))
	w.tick() // closes second 2: current=[3] -> sum 3, previous=[1,2] expires -> nets back to 3

	w.Process(mk("X", 4))
	w.tick() // closes second 3: current=[4] -> sum 4, previous=[3] expires -> nets to 4

	assert.Equal(t, []float64{3, 3, 4}, sums)
}

func TestGroupAggregator_EmitsLastGroupAtEndOfEachChunk(t *testing.T) {
	groupKeyFn := func(se *event.StreamEvent) string {
		return se.OutputData[0].(string)
	}
	valueFn := func(se *event.StreamEvent) float64 {
		return se.OutputData[1].(float64)
	}
	ga := NewGroupAggregator([]AggSpec{{Name: "cnt", Func: FuncCount, ValueFn: valueFn}}, groupKeyFn)

	mk := func(group string, v float64, typ event.EventType) *event.StreamEvent {
		se := event.NewStreamEvent(0, nil)
		se.OutputData = []any{group, v}
		se.Type = typ
		return se
	}

	chain1 := mk("X", 1, event.Current)
	chain1.Next = mk("X", 1, event.Current)
	chain1.Next.Next = mk("X", 1, event.Current)

	results := ga.Process(chain1)
	require.Len(t, results, 1)
	assert.Equal(t, "X", results[0].GroupKey)
	assert.Equal(t, 3.0, results[0].Values["cnt"])

	chain2 := mk("X", 1, event.Current)
	results = ga.Process(chain2)
	require.Len(t, results, 1)
	assert.Equal(t, 4.0, results[0].Values["cnt"])
}
