// Package junction implements the stream junction described in spec.md
// §4.B: the fan-out hub that routes events of one stream definition to a
// dynamic set of subscribing processors, either inline (synchronous) or
// through a queue drained by consumer goroutines (asynchronous).
//
// Grounded on the read-biased subscriber registry and per-event dispatch
// loop shape of the reference eventmultiplexer corpus entry, and on the
// borrow/clone-N-1/transfer-last optimization of the reference in-memory
// event bus's fan-out path.
package junction

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/metrics"
	"github.com/eventflux-io/engine/internal/core/pipeline"
)

var errQueueFull = errors.New("junction: queue full")

// Mode selects synchronous or asynchronous dispatch.
type Mode int

const (
	Sync Mode = iota
	Async
)

// ErrorAction governs what happens when a subscriber's Handle returns an
// error, or an event is dropped under backpressure in async mode.
type ErrorAction int

const (
	Log ErrorAction = iota
	Drop
	StreamToFaultJunction
	StoreToErrorStore
)

// Subscriber is a processor attached to a junction. ID distinguishes
// subscribers for idempotent (re-)registration: subscribing the same ID
// twice is a no-op, matching "duplicate subscriptions are idempotent".
type Subscriber interface {
	ID() string
	Handle(ev *event.StreamEvent) error
}

// ErrorStore receives (event, error, subscriber id) triples when the
// junction's ErrorAction is StoreToErrorStore.
type ErrorStore interface {
	Store(ev *event.StreamEvent, subscriberID string, err error)
}

// Logger is the minimal surface the junction needs for the Log error action.
type Logger interface {
	Printf(format string, args ...any)
}

// Config configures a Junction at construction time. Async-only fields
// (Capacity, PoolSize, RequestedConsumers, Backpressure) are ignored in Sync
// mode.
type Config struct {
	Mode               Mode
	ErrorAction        ErrorAction
	Capacity           int
	PoolSize           int
	RequestedConsumers int
	Backpressure       pipeline.BackpressureConfig
	FaultJunction      *Junction
	ErrorStore         ErrorStore
	Logger             Logger

	// StreamName labels this junction's metrics. Empty leaves the "stream"
	// label blank, which is harmless but less useful; Metrics nil disables
	// recording entirely.
	StreamName string
	Metrics    *metrics.Registry
}

// Junction routes events of one stream definition to its subscribers.
type Junction struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	ids         map[string]struct{}

	mode        Mode
	errorAction ErrorAction
	fault       *Junction
	errorStore  ErrorStore
	logger      Logger

	queue     chan *event.StreamEvent
	bp        pipeline.BackpressureConfig
	consumers int
	stopCh    chan struct{}
	wg        sync.WaitGroup
	started   atomic.Bool

	droppedCount int64

	streamName string
	metrics    *metrics.Registry
}

// New constructs a Junction. Async junctions start their consumer
// goroutines immediately, before New returns: the auto-start rule in
// spec.md §4.B exists precisely because a version that deferred start to a
// separate call let production code skip it and silently lose every event.
func New(cfg Config) *Junction {
	j := &Junction{
		ids:         make(map[string]struct{}),
		mode:        cfg.Mode,
		errorAction: cfg.ErrorAction,
		fault:       cfg.FaultJunction,
		errorStore:  cfg.ErrorStore,
		logger:      cfg.Logger,
		bp:          cfg.Backpressure,
		streamName:  cfg.StreamName,
		metrics:     cfg.Metrics,
	}
	if j.mode == Async {
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 1024
		}
		j.queue = make(chan *event.StreamEvent, capacity)
		j.stopCh = make(chan struct{})
		j.consumers = clampConsumers(cfg.PoolSize, cfg.RequestedConsumers)
		j.startConsumers()
	}
	return j
}

// clampConsumers implements the executor-starvation rule: if the shared
// pool cannot spare one slot per requested consumer, either clamp consumers
// to pool_size-1, or — if pool_size==1 — run a single consumer that
// dispatches to subscribers inline on its own goroutine.
func clampConsumers(poolSize, requested int) int {
	if requested < 1 {
		requested = 1
	}
	if poolSize <= 0 {
		return requested
	}
	if poolSize <= requested {
		if poolSize == 1 {
			return 1
		}
		return poolSize - 1
	}
	return requested
}

func (j *Junction) startConsumers() {
	for i := 0; i < j.consumers; i++ {
		j.wg.Add(1)
		go j.consumeLoop()
	}
	j.started.Store(true)
}

func (j *Junction) consumeLoop() {
	defer j.wg.Done()
	for {
		select {
		case ev, ok := <-j.queue:
			if !ok {
				return
			}
			j.observeQueueDepth()
			j.dispatch(ev)
		case <-j.stopCh:
			// drain whatever is already queued, then exit.
			for {
				select {
				case ev, ok := <-j.queue:
					if !ok {
						return
					}
					j.observeQueueDepth()
					j.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

// Subscribe registers a subscriber. Re-subscribing the same ID is a no-op.
func (j *Junction) Subscribe(s Subscriber) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.ids[s.ID()]; ok {
		return
	}
	j.ids[s.ID()] = struct{}{}
	j.subscribers = append(j.subscribers, s)
}

// Unsubscribe removes a subscriber by ID.
func (j *Junction) Unsubscribe(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.ids[id]; !ok {
		return
	}
	delete(j.ids, id)
	for i, s := range j.subscribers {
		if s.ID() == id {
			j.subscribers = append(j.subscribers[:i], j.subscribers[i+1:]...)
			break
		}
	}
}

// SendEvent routes ev according to the junction's mode.
func (j *Junction) SendEvent(ev *event.StreamEvent) error {
	if j.mode == Sync {
		return j.dispatch(ev)
	}
	select {
	case j.queue <- ev:
		j.observeQueueDepth()
		return nil
	default:
		return j.publishAsyncFull(ev)
	}
}

// observeQueueDepth reports the async queue's current depth. Reading len()
// on a channel under concurrent send/receive is inherently a snapshot, not
// an exact count, which is all the gauge promises.
func (j *Junction) observeQueueDepth() {
	if j.metrics == nil || j.queue == nil {
		return
	}
	j.metrics.JunctionQueueDepth.WithLabelValues(j.streamName).Set(float64(len(j.queue)))
}

func (j *Junction) publishAsyncFull(ev *event.StreamEvent) error {
	switch j.bp.Policy {
	case pipeline.Drop:
		atomic.AddInt64(&j.droppedCount, 1)
		if j.metrics != nil {
			j.metrics.PipelineDropped.WithLabelValues(j.streamName).Inc()
		}
		j.handleError(ev, "", errs.New("junction.send", errs.AppRuntime, errQueueFull))
		return nil
	case pipeline.Fail:
		if j.metrics != nil {
			j.metrics.PipelineErrors.WithLabelValues(j.streamName).Inc()
		}
		return errs.New("junction.send", errs.SendError, errQueueFull)
	case pipeline.ExponentialBackoff:
		delay := time.Millisecond
		for {
			select {
			case j.queue <- ev:
				j.observeQueueDepth()
				return nil
			default:
			}
			time.Sleep(delay)
			delay *= 2
			max := time.Duration(j.bp.MaxMs) * time.Millisecond
			if max > 0 && delay > max {
				delay = max
			}
			select {
			case <-j.stopCh:
				return errs.New("junction.send", errs.SendError, errQueueFull)
			default:
			}
		}
	default: // Block
		select {
		case j.queue <- ev:
			j.observeQueueDepth()
			return nil
		case <-j.stopCh:
			return errs.New("junction.send", errs.SendError, errQueueFull)
		}
	}
}

// dispatch takes a read snapshot of subscribers and fans ev out, cloning
// the event chain once per subscriber except the last, and transferring
// ownership of the original chain to the last subscriber to avoid a final
// clone.
func (j *Junction) dispatch(ev *event.StreamEvent) error {
	j.mu.RLock()
	subs := make([]Subscriber, len(j.subscribers))
	copy(subs, j.subscribers)
	j.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}
	if j.metrics != nil {
		j.metrics.JunctionThroughput.WithLabelValues(j.streamName).Inc()
		j.metrics.PipelinePublished.WithLabelValues(j.streamName).Inc()
	}
	for i, s := range subs {
		var chain *event.StreamEvent
		if i == len(subs)-1 {
			chain = ev
		} else {
			chain = event.CloneChain(ev)
		}
		if err := s.Handle(chain); err != nil {
			if herr := j.handleError(chain, s.ID(), err); herr != nil {
				return herr
			}
		}
	}
	return nil
}

func (j *Junction) handleError(ev *event.StreamEvent, subscriberID string, err error) error {
	if j.metrics != nil {
		j.metrics.PipelineErrors.WithLabelValues(j.streamName).Inc()
	}
	switch j.errorAction {
	case Drop:
		return nil
	case StreamToFaultJunction:
		if j.fault != nil {
			return j.fault.SendEvent(ev)
		}
		return nil
	case StoreToErrorStore:
		if j.errorStore != nil {
			j.errorStore.Store(ev, subscriberID, err)
		}
		return nil
	default: // Log
		if j.logger != nil {
			j.logger.Printf("junction: subscriber %s failed: %v", subscriberID, err)
		}
		if j.mode == Sync {
			return err
		}
		return nil
	}
}

// Shutdown stops consumer goroutines (async mode only) after draining the
// queue, and blocks until they exit.
func (j *Junction) Shutdown() {
	if j.mode != Async {
		return
	}
	close(j.stopCh)
	j.wg.Wait()
}

// DroppedCount reports how many events the Drop backpressure policy
// discarded under a full queue.
func (j *Junction) DroppedCount() int64 {
	return atomic.LoadInt64(&j.droppedCount)
}
