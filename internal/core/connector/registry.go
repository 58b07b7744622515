package connector

import (
	"fmt"
	"sync"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// SourceFactory builds a Source from a stream's raw WITH-clause properties.
type SourceFactory func(streamName string, props map[string]string) (Source, error)

// SinkFactory builds a Sink from a stream's raw WITH-clause properties.
type SinkFactory func(streamName string, props map[string]string) (Sink, error)

// Registry is a process-wide factory table keyed by extension name,
// mirroring the pluggable (kind, extension) factory-registration scheme
// (spec.md §4.H step 4, §13): registration is idempotent, re-registering the
// same extension overwrites the prior factory rather than erroring, matching
// how query-runtime construction re-registers handlers on every rebuild.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
	sinks   map[string]SinkFactory
}

func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		sinks:   make(map[string]SinkFactory),
	}
}

func (r *Registry) RegisterSourceFactory(extension string, f SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[extension] = f
}

func (r *Registry) RegisterSinkFactory(extension string, f SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[extension] = f
}

func (r *Registry) CreateSource(extension, streamName string, props map[string]string) (Source, error) {
	r.mu.RLock()
	f, ok := r.sources[extension]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NewValidation("Registry.CreateSource", "extension", extension,
			fmt.Errorf("no source factory registered for extension %q", extension))
	}
	return f(streamName, props)
}

func (r *Registry) CreateSink(extension, streamName string, props map[string]string) (Sink, error) {
	r.mu.RLock()
	f, ok := r.sinks[extension]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NewValidation("Registry.CreateSink", "extension", extension,
			fmt.Errorf("no sink factory registered for extension %q", extension))
	}
	return f(streamName, props)
}
