// Package metrics exposes the counters and gauges spec.md §4.A/§4.B require
// for backpressure drops/errors and junction throughput, using
// github.com/prometheus/client_golang. Exposing these over a push/scrape
// transport is explicitly out of scope (spec.md §1); callers register a
// *Registry's collectors with their own http.Handler if they want one.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups every metric the engine emits under one
// prometheus.Registerer so an embedding host can wire it into its own
// /metrics endpoint without the engine owning an HTTP listener.
type Registry struct {
	PipelinePublished  *prometheus.CounterVec
	PipelineDropped    *prometheus.CounterVec
	PipelineErrors     *prometheus.CounterVec
	JunctionThroughput *prometheus.CounterVec
	JunctionQueueDepth *prometheus.GaugeVec
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PipelinePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventflux_pipeline_published_total",
			Help: "Events successfully published into a pipeline.",
		}, []string{"stream"}),
		PipelineDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventflux_pipeline_dropped_total",
			Help: "Events dropped under a Drop backpressure policy.",
		}, []string{"stream"}),
		PipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventflux_pipeline_errors_total",
			Help: "Publish attempts that returned an error (Fail policy or send failure).",
		}, []string{"stream"}),
		JunctionThroughput: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventflux_junction_events_total",
			Help: "Events dispatched through a junction to its subscribers.",
		}, []string{"stream"}),
		JunctionQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventflux_junction_queue_depth",
			Help: "Current depth of an async junction's internal queue.",
		}, []string{"stream"}),
	}
	reg.MustRegister(m.PipelinePublished, m.PipelineDropped, m.PipelineErrors, m.JunctionThroughput, m.JunctionQueueDepth)
	return m
}
