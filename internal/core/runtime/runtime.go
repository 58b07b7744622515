// Package runtime implements the query runtime and application lifecycle of
// spec.md §4.H: construction (typed configs, junctions, processor chains,
// idempotent source/sink handler registration), startup/shutdown
// sequencing, and snapshot/restore behind a thread barrier.
//
// Grounded on original_source/src/core/eventflux_app_runtime.rs for the
// construction/startup/shutdown/snapshot sequencing this package mirrors.
package runtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/eventflux-io/engine/internal/core/config"
	"github.com/eventflux-io/engine/internal/core/connector"
	"github.com/eventflux-io/engine/internal/core/corelog"
	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/junction"
	"github.com/eventflux-io/engine/internal/core/metrics"
	"github.com/eventflux-io/engine/internal/core/persistence"
)

// Mapper turns a source's raw bytes into a StreamEvent before it reaches a
// stream's junction (spec.md §4.H step 2: "invokes the mapper then feeds the
// input handler").
type Mapper func(raw []byte) (*event.StreamEvent, error)

// Formatter turns a StreamEvent reaching a sink's junction subscription back
// into the raw bytes a sink's Publish writes out.
type Formatter func(ev *event.StreamEvent) ([]byte, error)

// streamHandler bundles whichever of Source/Sink a stream's WITH clause
// bound, plus the mapper used to decode source payloads and/or the
// formatter used to encode outbound sink payloads.
type streamHandler struct {
	streamName string
	source     connector.Source
	sink       connector.Sink
	mapper     Mapper
	formatter  Formatter
	errCtx     *connector.SourceErrorContext

	started bool
}

// sinkSubscriber adapts a connector.Sink into a junction.Subscriber: the
// junction delivers each StreamEvent it carries, the formatter renders it to
// bytes, and the shared Sink handle (never a clone) publishes them, so the
// same instance that received Start/Stop also serves every Publish call
// (spec.md §4.I).
type sinkSubscriber struct {
	id        string
	sink      connector.Sink
	formatter Formatter
}

func (s sinkSubscriber) ID() string { return s.id }

func (s sinkSubscriber) Handle(ev *event.StreamEvent) error {
	raw, err := s.formatter(ev)
	if err != nil {
		return err
	}
	return s.sink.Publish(context.Background(), raw)
}

// PersistReport is returned by Persist: SuccessCount is 1 when the snapshot
// blob was saved; FailCount is 1 and Errors holds the store's error when
// saving it failed.
type PersistReport struct {
	SuccessCount int
	FailCount    int
	Errors       []error
}

// AppRuntime is one constructed, running (or stopped) EventFlux application.
type AppRuntime struct {
	AppID string

	mu        sync.RWMutex
	junctions map[string]*junction.Junction
	handlers  map[string]*streamHandler

	registry *connector.Registry
	store    persistence.Store
	logger   *corelog.Logger
	metrics  *metrics.Registry

	revision int64

	// barrier implements the §4.H thread-barrier protocol as a reader/writer
	// lock: every unit of event processing holds barrierMu for reading
	// (BeginProcessing/EndProcessing), so RestoreRevision's write Lock both
	// waits for every active thread to drain *and* blocks new ones from
	// starting for the duration of the restore, matching the original's
	// "lock the barrier to prevent new events from entering" (not merely a
	// wait-for-drain with a gap new threads could slip into).
	barrierMu     sync.RWMutex
	activeThreads int64

	started bool
}

// New constructs an empty AppRuntime. Streams, junctions, and handlers are
// added via RegisterJunction/RegisterHandler before Start.
func New(appID string, registry *connector.Registry, store persistence.Store, logger *corelog.Logger) *AppRuntime {
	return &AppRuntime{
		AppID:     appID,
		junctions: make(map[string]*junction.Junction),
		handlers:  make(map[string]*streamHandler),
		registry:  registry,
		store:     store,
		logger:    logger,
	}
}

// SetMetrics attaches the registry sourceCallback records
// published/error counts against. Nil (the default) disables recording.
func (r *AppRuntime) SetMetrics(m *metrics.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// RegisterJunction binds a stream name to its junction, built by the caller
// per spec.md §4.H step 3. Re-registering the same name replaces the
// junction (construction is expected to run once per rebuild, not to
// accumulate stale junctions across rebuilds).
func (r *AppRuntime) RegisterJunction(streamName string, j *junction.Junction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.junctions[streamName] = j
}

// Junction returns the junction registered for streamName, or nil.
func (r *AppRuntime) Junction(streamName string) *junction.Junction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.junctions[streamName]
}

// RegisterSinkFormatter attaches the encoder a sink's junction subscription
// uses to turn delivered StreamEvents back into bytes. It is a no-op if
// streamName has no registered sink handler; call it any time before Start.
func (r *AppRuntime) RegisterSinkFormatter(streamName string, formatter Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handlers[streamName]; ok {
		h.formatter = formatter
	}
}

// RegisterHandler registers a source or sink handler for one stream, keyed
// by stream name and idempotent: a second registration for the same stream
// name is a no-op, matching "register source/sink handlers... idempotent"
// (spec.md §4.H step 4). Internal-kind streams have no handler and are
// silently accepted.
func (r *AppRuntime) RegisterHandler(streamName string, cfg *config.StreamTypeConfig, mapper Mapper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[streamName]; exists {
		return nil
	}
	if cfg.Kind == config.Internal {
		return nil
	}

	ext := ""
	if cfg.Extension != nil {
		ext = *cfg.Extension
	}

	h := &streamHandler{streamName: streamName, mapper: mapper}
	switch cfg.Kind {
	case config.Source:
		src, err := r.registry.CreateSource(ext, streamName, cfg.Properties)
		if err != nil {
			return err
		}
		h.source = src
		errCtx, err := connector.NewSourceErrorContext(streamName, cfg.Properties)
		if err != nil {
			return err
		}
		h.errCtx = errCtx
	case config.Sink:
		sink, err := r.registry.CreateSink(ext, streamName, cfg.Properties)
		if err != nil {
			return err
		}
		h.sink = sink
	}
	r.handlers[streamName] = h
	return nil
}

// Start implements spec.md §4.H startup: validate connectivity, start every
// source (wiring its callback through the error-context retry loop into the
// mapper and the stream's junction) and every sink. If every handler that
// required attachment failed at the validation step, Start aborts with an
// aggregate error; otherwise it proceeds, logging individual failures.
func (r *AppRuntime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var validationErrs []error
	attempted := 0
	for _, h := range r.handlers {
		attempted++
		if h.source != nil {
			if err := h.source.ValidateConnectivity(ctx); err != nil {
				validationErrs = append(validationErrs, err)
				continue
			}
		}
	}
	if attempted > 0 && len(validationErrs) == attempted {
		return errs.NewAggregate("AppRuntime.Start", validationErrs)
	}

	for name, h := range r.handlers {
		if h.started {
			continue
		}
		j := r.junctions[name]
		if h.source != nil {
			callback := r.sourceCallback(name, h, j)
			if err := h.source.Start(ctx, callback); err != nil {
				if r.logger != nil {
					r.logger.Errorf("source %s failed to start: %v", name, err)
				}
				continue
			}
		}
		if h.sink != nil {
			if err := h.sink.Start(ctx); err != nil {
				if r.logger != nil {
					r.logger.Errorf("sink %s failed to start: %v", name, err)
				}
				continue
			}
			if h.formatter != nil && j != nil {
				j.Subscribe(sinkSubscriber{
					id:        "sink-" + name + "-" + uuid.NewString(),
					sink:      h.sink,
					formatter: h.formatter,
				})
			}
		}
		h.started = true
	}

	r.started = true
	return nil
}

func (r *AppRuntime) sourceCallback(streamName string, h *streamHandler, j *junction.Junction) connector.DataCallback {
	inner := func(ctx context.Context, raw []byte) error {
		r.BeginProcessing()
		defer r.EndProcessing()

		se, err := h.mapper(raw)
		if err != nil {
			if r.metrics != nil {
				r.metrics.PipelineErrors.WithLabelValues(streamName).Inc()
			}
			return err
		}
		if j == nil {
			return nil
		}
		if err := j.SendEvent(se); err != nil {
			if r.metrics != nil {
				r.metrics.PipelineErrors.WithLabelValues(streamName).Inc()
			}
			return err
		}
		if r.metrics != nil {
			r.metrics.PipelinePublished.WithLabelValues(streamName).Inc()
		}
		return nil
	}
	if h.errCtx == nil {
		return inner
	}
	rc := connector.NewRetryingCallback(inner, h.errCtx, r.junctions[h.errCtx.DlqStream])
	return rc.Call
}

// BeginProcessing marks the start of one unit of event processing, for the
// thread-barrier protocol RestoreRevision relies on. It blocks for as long
// as a RestoreRevision is in flight, so no new processing can start during a
// restore (it does not merely wait for a past drain).
func (r *AppRuntime) BeginProcessing() {
	r.barrierMu.RLock()
	atomic.AddInt64(&r.activeThreads, 1)
}

// EndProcessing marks the end of one unit of event processing, releasing
// the read-side of the barrier so a RestoreRevision blocked on draining
// active threads can proceed once every one of them has called this.
func (r *AppRuntime) EndProcessing() {
	atomic.AddInt64(&r.activeThreads, -1)
	r.barrierMu.RUnlock()
}

// Stop implements spec.md §4.H shutdown: stop every source then every sink
// (each lifecycle call idempotent), shut down async junctions, and leave
// persisted revisions untouched.
func (r *AppRuntime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}

	var stopErrs []error
	for _, h := range r.handlers {
		if h.source != nil {
			if err := h.source.Stop(); err != nil {
				stopErrs = append(stopErrs, err)
			}
		}
	}
	for _, h := range r.handlers {
		if h.sink != nil {
			if err := h.sink.Stop(); err != nil {
				stopErrs = append(stopErrs, err)
			}
		}
		h.started = false
	}
	for _, j := range r.junctions {
		j.Shutdown()
	}

	r.started = false
	return errs.NewAggregate("AppRuntime.Stop", stopErrs)
}

// Persist snapshots blob (produced by the caller from whatever processor
// state it tracks) at the next revision number and reports whether that one
// save succeeded. Serializing each
// individual processor's internal state into that blob is left to the
// caller: this module implements the lifecycle and storage contract, not a
// binary format for arbitrary window/pattern processor state.
func (r *AppRuntime) Persist(ctx context.Context, blob []byte) (PersistReport, error) {
	r.mu.RLock()
	rev := r.revision + 1
	r.mu.RUnlock()

	if err := r.store.Save(ctx, r.AppID, rev, blob); err != nil {
		return PersistReport{FailCount: 1, Errors: []error{err}}, err
	}

	r.mu.Lock()
	r.revision = rev
	r.mu.Unlock()
	return PersistReport{SuccessCount: 1}, nil
}

// RestoreRevision implements spec.md §4.H: take the thread barrier lock,
// wait for active_threads == 0, load revision's blob and hand it to apply,
// then release the lock. Taking the write side of barrierMu both waits for
// every BeginProcessing/EndProcessing-bracketed unit already in flight to
// drain and blocks any new one from starting until this function returns,
// so apply never runs concurrently with event processing. apply is expected
// to clear and repopulate group state in every select processor from the
// restored blob.
func (r *AppRuntime) RestoreRevision(ctx context.Context, revision int64, apply func([]byte) error) error {
	r.barrierMu.Lock()
	defer r.barrierMu.Unlock()

	blob, err := r.store.Load(ctx, r.AppID, revision)
	if err != nil {
		return err
	}
	if err := apply(blob); err != nil {
		return err
	}

	r.mu.Lock()
	r.revision = revision
	r.mu.Unlock()
	return nil
}

// Revision reports the currently active snapshot revision.
func (r *AppRuntime) Revision() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}
