package junction

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/pipeline"
)

type countingSubscriber struct {
	id    string
	count atomic.Int64
	fail  bool
	seen  []int64
	mu    sync.Mutex
}

func (s *countingSubscriber) ID() string { return s.id }

func (s *countingSubscriber) Handle(ev *event.StreamEvent) error {
	s.count.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, ev.Timestamp)
	s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	return nil
}

func TestJunction_SyncDispatchInOrder(t *testing.T) {
	j := New(Config{Mode: Sync, ErrorAction: Log})
	sub := &countingSubscriber{id: "s1"}
	j.Subscribe(sub)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, j.SendEvent(event.NewStreamEvent(i, nil)))
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, sub.seen)
}

func TestJunction_SyncAbortsOnSubscriberFailure(t *testing.T) {
	j := New(Config{Mode: Sync, ErrorAction: Log})
	sub := &countingSubscriber{id: "s1", fail: true}
	j.Subscribe(sub)

	err := j.SendEvent(event.NewStreamEvent(1, nil))
	assert.Error(t, err)
}

func TestJunction_DropErrorActionSwallowsFailure(t *testing.T) {
	j := New(Config{Mode: Sync, ErrorAction: Drop})
	sub := &countingSubscriber{id: "s1", fail: true}
	j.Subscribe(sub)

	err := j.SendEvent(event.NewStreamEvent(1, nil))
	assert.NoError(t, err)
}

func TestJunction_SubscribeIsIdempotent(t *testing.T) {
	j := New(Config{Mode: Sync, ErrorAction: Log})
	sub := &countingSubscriber{id: "dup"}
	j.Subscribe(sub)
	j.Subscribe(sub)

	require.NoError(t, j.SendEvent(event.NewStreamEvent(1, nil)))
	assert.Equal(t, int64(1), sub.count.Load())
}

func TestJunction_CloneNMinus1TransferLast(t *testing.T) {
	j := New(Config{Mode: Sync, ErrorAction: Log})
	a := &countingSubscriber{id: "a"}
	b := &countingSubscriber{id: "b"}
	j.Subscribe(a)
	j.Subscribe(b)

	orig := event.NewStreamEvent(42, []any{"x"})
	require.NoError(t, j.SendEvent(orig))

	assert.Equal(t, int64(42), a.seen[0])
	assert.Equal(t, int64(42), b.seen[0])
}

func TestJunction_AsyncAutoStartsAndDeliversAll(t *testing.T) {
	j := New(Config{
		Mode:               Async,
		ErrorAction:        Log,
		Capacity:           16,
		PoolSize:           4,
		RequestedConsumers: 2,
		Backpressure:       pipeline.DefaultBackpressureConfig(),
	})
	defer j.Shutdown()

	sub := &countingSubscriber{id: "s1"}
	j.Subscribe(sub)

	for i := int64(0); i < 50; i++ {
		require.NoError(t, j.SendEvent(event.NewStreamEvent(i, nil)))
	}

	require.Eventually(t, func() bool {
		return sub.count.Load() == 50
	}, time.Second, time.Millisecond)
}

func TestClampConsumers_ExecutorStarvationRule(t *testing.T) {
	assert.Equal(t, 1, clampConsumers(1, 4))  // pool_size==1 -> inline single consumer
	assert.Equal(t, 3, clampConsumers(4, 4))  // pool_size<=requested -> pool_size-1
	assert.Equal(t, 2, clampConsumers(10, 2)) // pool has headroom -> requested unchanged
}
