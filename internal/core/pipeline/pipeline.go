// Package pipeline implements the bounded MPSC ring buffer described in
// spec.md §4.A: the lock-minimized event distribution primitive that
// junctions (§4.B) build async mode on top of.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PublishResult is the outcome of a single Publish call.
type PublishResult int

const (
	Success PublishResult = iota
	Full
	ShutdownResult
	Timeout
)

func (r PublishResult) String() string {
	switch r {
	case Success:
		return "Success"
	case Full:
		return "Full"
	case ShutdownResult:
		return "Shutdown"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Metrics tracks the counters spec.md §4.A requires backpressure drops and
// errors to be visible in.
type Metrics struct {
	Published int64
	Dropped   int64
	Errors    int64
}

// Pipeline is a bounded ring buffer of capacity N (a power of two is
// recommended so index masking can replace modulo, but any positive capacity
// works). A mutex + condition-variable pair back the queue; this matches the
// "interior mutability behind a mutex" shared-resource policy in spec.md §5
// rather than a lock-free CAS implementation, which Go's runtime does not
// reward the way a systems language with manual memory control does.
type Pipeline struct {
	mu        sync.Mutex
	notEmpty  *sync.Cond
	notFull   *sync.Cond
	buf       []*PooledEvent
	head      int
	size      int
	capacity  int
	mask      int // capacity-1 when capacity is a power of two, else -1 (unused)
	powerOf2  bool
	bp        BackpressureConfig
	closed    bool
	closeOnce sync.Once

	metrics Metrics
}

// New constructs a Pipeline. If capacity is a power of two, index arithmetic
// uses masking instead of modulo.
func New(capacity int, bp BackpressureConfig) *Pipeline {
	if capacity <= 0 {
		capacity = 1
	}
	p := &Pipeline{
		buf:      make([]*PooledEvent, capacity),
		capacity: capacity,
		bp:       bp,
	}
	if capacity&(capacity-1) == 0 {
		p.powerOf2 = true
		p.mask = capacity - 1
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	return p
}

func (p *Pipeline) idx(i int) int {
	if p.powerOf2 {
		return i & p.mask
	}
	return i % p.capacity
}

// Shutdown sets the one-shot shutdown flag. Publishers after Shutdown
// receive ShutdownResult; Consume drains whatever was already published,
// then returns.
func (p *Pipeline) Shutdown() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.notEmpty.Broadcast()
		p.notFull.Broadcast()
	})
}

func (p *Pipeline) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pipeline) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadInt64(&p.metrics.Published),
		Dropped:   atomic.LoadInt64(&p.metrics.Dropped),
		Errors:    atomic.LoadInt64(&p.metrics.Errors),
	}
}

// Publish admits one event, honoring the configured backpressure policy.
func (p *Pipeline) Publish(ctx context.Context, ev *PooledEvent) (PublishResult, error) {
	switch p.bp.Policy {
	case Drop:
		return p.tryPublish(ev)
	case Fail:
		res, err := p.tryPublish(ev)
		if res == Full {
			atomic.AddInt64(&p.metrics.Errors, 1)
		}
		return res, err
	case ExponentialBackoff:
		return p.publishWithBackoff(ctx, ev)
	default: // Block
		return p.publishBlocking(ctx, ev)
	}
}

func (p *Pipeline) tryPublish(ev *PooledEvent) (PublishResult, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ShutdownResult, nil
	}
	if p.size == p.capacity {
		p.mu.Unlock()
		if p.bp.Policy == Drop {
			atomic.AddInt64(&p.metrics.Dropped, 1)
			return Success, nil // Drop swallows the event but reports success to the publisher
		}
		return Full, nil
	}
	p.enqueueLocked(ev)
	p.mu.Unlock()
	p.notEmpty.Signal()
	atomic.AddInt64(&p.metrics.Published, 1)
	return Success, nil
}

func (p *Pipeline) publishBlocking(ctx context.Context, ev *PooledEvent) (PublishResult, error) {
	p.mu.Lock()
	for !p.closed && p.size == p.capacity {
		if ctx != nil && ctx.Err() != nil {
			p.mu.Unlock()
			return Timeout, ctx.Err()
		}
		p.notFull.Wait()
	}
	if p.closed {
		p.mu.Unlock()
		return ShutdownResult, nil
	}
	p.enqueueLocked(ev)
	p.mu.Unlock()
	p.notEmpty.Signal()
	atomic.AddInt64(&p.metrics.Published, 1)
	return Success, nil
}

func (p *Pipeline) publishWithBackoff(ctx context.Context, ev *PooledEvent) (PublishResult, error) {
	delay := p.bp.nextDelay(0) / 2 // first retry delay == nextDelay(0), so seed at half
	for {
		res, err := p.tryPublish(ev)
		if res != Full {
			return res, err
		}
		delay = p.bp.nextDelay(delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctxDone(ctx):
			timer.Stop()
			return Timeout, ctx.Err()
		}
	}
}

func (p *Pipeline) enqueueLocked(ev *PooledEvent) {
	tailIdx := p.idx(p.head + p.size)
	p.buf[tailIdx] = ev
	p.size++
}

// PublishBatch admits each event in order, returning one PublishResult per
// event. On the first ShutdownResult, every remaining event is accounted as
// Dropped rather than silently succeeding (spec.md §4.A, §8 invariant 5).
func (p *Pipeline) PublishBatch(ctx context.Context, evs []*PooledEvent) []PublishResult {
	results := make([]PublishResult, len(evs))
	shutdownSeen := false
	for i, ev := range evs {
		if shutdownSeen {
			results[i] = ShutdownResult
			atomic.AddInt64(&p.metrics.Dropped, 1)
			continue
		}
		res, _ := p.Publish(ctx, ev)
		results[i] = res
		if res == ShutdownResult {
			shutdownSeen = true
		}
	}
	return results
}

// Consume blocks pulling events and invoking handler until Shutdown is
// called and the buffer is drained, then returns. Multiple goroutines may
// call Consume concurrently on the same Pipeline to get K parallel
// consumers; ordering is then only preserved per goroutine, not globally
// (spec.md §4.A/§5).
func (p *Pipeline) Consume(handler func(*PooledEvent)) {
	for {
		ev, ok := p.dequeue()
		if !ok {
			return
		}
		handler(ev)
	}
}

func (p *Pipeline) dequeue() (*PooledEvent, bool) {
	p.mu.Lock()
	for p.size == 0 && !p.closed {
		p.notEmpty.Wait()
	}
	if p.size == 0 && p.closed {
		p.mu.Unlock()
		return nil, false
	}
	ev := p.buf[p.idx(p.head)]
	p.buf[p.idx(p.head)] = nil
	p.head = p.idx(p.head + 1)
	p.size--
	p.mu.Unlock()
	p.notFull.Signal()
	return ev, true
}

func ctxDone(ctx context.Context) <-chan struct{} {
	if ctx == nil {
		return nil
	}
	return ctx.Done()
}
