// Package connector implements the source/sink lifecycle contracts of
// spec.md §4.I: start/stop, the retry/error-action loop around a source's
// data callback, and a factory registry keyed by (kind, extension).
package connector

import "context"

// DataCallback receives raw bytes read off a source's transport. Returning
// an error triggers the source's configured ErrorAction.
type DataCallback func(ctx context.Context, raw []byte) error

// Source is a live external data producer attached to a stream. Start is
// invoked once; the source is expected to spawn its own goroutine that
// drives callback on each inbound message and returns promptly. Stop signals
// that goroutine to drain and exit; it must be idempotent and safe to call
// even if Start was never called.
type Source interface {
	Start(ctx context.Context, callback DataCallback) error
	Stop() error
	// ValidateConnectivity performs a best-effort reachability probe used at
	// attach time; it must not mutate the source's running state.
	ValidateConnectivity(ctx context.Context) error
	// Clone returns a fresh, unstarted instance with the same configuration;
	// it must never share running state with the receiver (spec.md §4.I).
	Clone() Source
}

// Sink is a live external data consumer attached to a stream. The same Sink
// instance must receive both the lifecycle calls (Start/Stop) and every
// Publish call: cloning it for callback purposes instead of sharing the
// instance loses state and is a documented bug (spec.md §4.I).
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	Publish(ctx context.Context, raw []byte) error
}

// SinkCallbackAdapter forwards event deliveries to a shared Sink handle
// rather than holding (or cloning) the sink itself, so the lifecycle
// instance and the delivery path always agree on connection state.
type SinkCallbackAdapter struct {
	sink Sink
}

func NewSinkCallbackAdapter(sink Sink) *SinkCallbackAdapter {
	return &SinkCallbackAdapter{sink: sink}
}

func (a *SinkCallbackAdapter) Publish(ctx context.Context, raw []byte) error {
	return a.sink.Publish(ctx, raw)
}
