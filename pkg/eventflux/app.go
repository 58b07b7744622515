// Package eventflux is the public, consumer-facing façade over the engine:
// one EventFluxApp per running application, wiring together stream
// junctions, connector sources/sinks, window/pattern processors built from
// a translated query IR, persistence, logging, and metrics.
//
// Mirrors the teacher's top-level entry point shape (a single constructor
// that wires a store/pool and hands back one object the caller drives),
// generalized from one datastore handle to one CEP application runtime.
package eventflux

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventflux-io/engine/internal/core/config"
	"github.com/eventflux-io/engine/internal/core/connector"
	"github.com/eventflux-io/engine/internal/core/connector/amqpconn"
	"github.com/eventflux-io/engine/internal/core/connector/websocketconn"
	"github.com/eventflux-io/engine/internal/core/corelog"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/junction"
	"github.com/eventflux-io/engine/internal/core/metrics"
	"github.com/eventflux-io/engine/internal/core/persistence"
	"github.com/eventflux-io/engine/internal/core/query"
	"github.com/eventflux-io/engine/internal/core/queryrt"
	"github.com/eventflux-io/engine/internal/core/runtime"
	"github.com/eventflux-io/engine/internal/core/typesys"
)

// Options configures a new App at construction time. Store is required (New
// panics without it); a nil MetricsRegistry defaults to a fresh,
// unregistered prometheus registry, and LogLevel is the minimum level of the
// stderr logger New creates.
type Options struct {
	AppID           string
	Store           persistence.Store
	LogLevel        corelog.Level
	MetricsRegistry prometheus.Registerer
}

// App is one constructed EventFlux application: a set of stream
// junctions, their attached connectors, and the lifecycle/snapshot
// machinery of the underlying runtime.AppRuntime.
type App struct {
	rt       *runtime.AppRuntime
	registry *connector.Registry
	logger   *corelog.Logger
	metrics  *metrics.Registry

	junctions map[string]*junction.Junction
	queries   []*queryrt.Query
}

// New constructs an App with the built-in connector extensions
// (websocket, amqp) pre-registered under those names. Callers add their
// own extensions with RegisterSourceExtension/RegisterSinkExtension before
// attaching streams that reference them.
func New(opts Options) *App {
	if opts.Store == nil {
		panic("eventflux: Options.Store is required")
	}
	logger := corelog.New(opts.LogLevel)
	reg := opts.MetricsRegistry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	registry := connector.NewRegistry()
	registerBuiltinConnectors(registry)

	a := &App{
		rt:        runtime.New(opts.AppID, registry, opts.Store, logger),
		registry:  registry,
		logger:    logger,
		metrics:   metrics.NewRegistry(reg),
		junctions: make(map[string]*junction.Junction),
	}
	return a
}

func registerBuiltinConnectors(registry *connector.Registry) {
	registry.RegisterSourceFactory("websocket", func(streamName string, props map[string]string) (connector.Source, error) {
		cfg := websocketconn.Config{URL: props["url"]}
		if cfg.URL == "" {
			return nil, fmt.Errorf("eventflux: websocket source %q missing required property %q", streamName, "url")
		}
		return websocketconn.NewSource(cfg), nil
	})
	registry.RegisterSinkFactory("websocket", func(streamName string, props map[string]string) (connector.Sink, error) {
		cfg := websocketconn.Config{URL: props["url"]}
		if cfg.URL == "" {
			return nil, fmt.Errorf("eventflux: websocket sink %q missing required property %q", streamName, "url")
		}
		return websocketconn.NewSink(cfg), nil
	})
	registry.RegisterSourceFactory("amqp", func(streamName string, props map[string]string) (connector.Source, error) {
		cfg := amqpConfigFromProperties(props)
		return amqpconn.NewSource(cfg), nil
	})
	registry.RegisterSinkFactory("amqp", func(streamName string, props map[string]string) (connector.Sink, error) {
		cfg := amqpConfigFromProperties(props)
		return amqpconn.NewSink(cfg), nil
	})
}

func amqpConfigFromProperties(props map[string]string) amqpconn.Config {
	return amqpconn.Config{
		URL:          props["url"],
		Exchange:     props["exchange"],
		ExchangeKind: props["exchange-kind"],
		Queue:        props["queue"],
		RoutingKey:   props["routing-key"],
		Durable:      props["durable"] == "true",
	}
}

// RegisterSourceExtension exposes connector.Registry.RegisterSourceFactory
// for user-defined source kinds (idempotent: re-registering the same
// extension name replaces the factory).
func (a *App) RegisterSourceExtension(extension string, factory connector.SourceFactory) {
	a.registry.RegisterSourceFactory(extension, factory)
}

// RegisterSinkExtension exposes connector.Registry.RegisterSinkFactory for
// user-defined sink kinds.
func (a *App) RegisterSinkExtension(extension string, factory connector.SinkFactory) {
	a.registry.RegisterSinkFactory(extension, factory)
}

// AddStream creates (or replaces) the junction backing one stream
// definition and returns it so the caller can subscribe processors before
// Start.
func (a *App) AddStream(name string, jc junction.Config) *junction.Junction {
	jc.StreamName = name
	jc.Metrics = a.metrics
	j := junction.New(jc)
	a.junctions[name] = j
	a.rt.RegisterJunction(name, j)
	return j
}

// Junction returns the junction backing a previously added stream, or nil.
func (a *App) Junction(name string) *junction.Junction {
	return a.junctions[name]
}

// AttachSource wires a connector-backed source onto streamName per cfg,
// decoding each inbound payload with mapper before it reaches the stream's
// junction.
func (a *App) AttachSource(streamName string, cfg *config.StreamTypeConfig, mapper runtime.Mapper) error {
	return a.rt.RegisterHandler(streamName, cfg, mapper)
}

// AttachSink wires a connector-backed sink onto streamName per cfg,
// subscribing it to the stream's junction and encoding every delivered
// event with formatter before publishing.
func (a *App) AttachSink(streamName string, cfg *config.StreamTypeConfig, formatter runtime.Formatter) error {
	if err := a.rt.RegisterHandler(streamName, cfg, nil); err != nil {
		return err
	}
	a.rt.RegisterSinkFormatter(streamName, formatter)
	return nil
}

// AddQuery compiles a translated query (translate.Translate's output)
// into a running processor chain — window/aggregation for a single-input
// query, pattern/sequence state machine for a PATTERN/SEQUENCE input — and
// subscribes it to its input stream(s)' junctions, publishing each
// projected result row into the INTO stream's junction (spec.md §4.H step
// 3). Every stream ir and catalog reference must already exist via
// AddStream.
func (a *App) AddQuery(ir *query.IR, catalog *typesys.SqlCatalog) error {
	lookup := func(name string) (*junction.Junction, bool) {
		j, ok := a.junctions[name]
		return j, ok
	}
	output := func(ev *event.StreamEvent) {
		if ir.Output.Stream == "" {
			return
		}
		if j, ok := a.junctions[ir.Output.Stream]; ok {
			_ = j.SendEvent(ev)
		}
	}
	q, err := queryrt.Compile(ir, catalog, lookup, output)
	if err != nil {
		return err
	}
	a.queries = append(a.queries, q)
	return nil
}

// Emit publishes a StreamEvent directly into streamName's junction,
// bypassing any attached source (used for in-process producers and tests).
func (a *App) Emit(streamName string, ev *event.StreamEvent) error {
	j, ok := a.junctions[streamName]
	if !ok {
		return fmt.Errorf("eventflux: stream %q has no junction", streamName)
	}
	return j.SendEvent(ev)
}

// Start validates and attaches every registered source/sink (spec.md
// §4.H step 5).
func (a *App) Start(ctx context.Context) error {
	return a.rt.Start(ctx)
}

// Stop tears down every source/sink and async junction (idempotent), and
// halts every query's background processors (time/session/time-batch
// windows).
func (a *App) Stop() error {
	for _, q := range a.queries {
		q.Stop()
	}
	return a.rt.Stop()
}

// Persist snapshots blob at the next revision.
func (a *App) Persist(ctx context.Context, blob []byte) (runtime.PersistReport, error) {
	return a.rt.Persist(ctx, blob)
}

// RestoreRevision loads revision's snapshot behind the thread barrier and
// hands it to apply.
func (a *App) RestoreRevision(ctx context.Context, revision int64, apply func([]byte) error) error {
	return a.rt.RestoreRevision(ctx, revision, apply)
}

// Revision reports the currently active snapshot revision.
func (a *App) Revision() int64 {
	return a.rt.Revision()
}

// Metrics exposes the app's prometheus collectors for callers that want to
// observe pipeline/junction counters directly (no HTTP scrape endpoint is
// implemented here, per the engine's observability-transport non-goal).
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Logger exposes the app's structured logger.
func (a *App) Logger() *corelog.Logger {
	return a.logger
}
