package config

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// StreamKind distinguishes how a stream definition's WITH clause binds to
// I/O: a live source, a live sink, or a purely internal (in-process) stream.
type StreamKind int

const (
	Internal StreamKind = iota
	Source
	Sink
)

func (k StreamKind) String() string {
	switch k {
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// StreamTypeConfig is the validated, typed view of a stream's WITH clause:
// kind, optional extension/format, and the full raw property map for the
// connector factory to consume.
type StreamTypeConfig struct {
	Kind       StreamKind
	Extension  *string
	Format     *string
	Properties map[string]string
}

// FromFlatConfig reads the mandatory "type" key and optional
// "extension"/"format" keys from a FlatConfig, retains the full property map,
// and validates the kind-specific invariant from spec.md §3:
//
//	Source/Sink  => extension and format both required
//	Internal     => extension and format both absent
func FromFlatConfig(fc *FlatConfig) (*StreamTypeConfig, error) {
	typeStr, ok := fc.Get("type")
	if !ok {
		return nil, errs.NewValidation("StreamTypeConfig.FromFlatConfig", "type", "",
			fmt.Errorf("required property \"type\" is missing"))
	}

	var kind StreamKind
	switch typeStr {
	case "source":
		kind = Source
	case "sink":
		kind = Sink
	case "internal":
		kind = Internal
	default:
		return nil, errs.NewValidation("StreamTypeConfig.FromFlatConfig", "type", typeStr,
			fmt.Errorf("unknown stream type %q, expected source|sink|internal", typeStr))
	}

	props := make(map[string]string)
	for _, k := range fc.Keys() {
		v, _ := fc.Get(k)
		props[k] = v
	}

	var ext, format *string
	if v, ok := fc.Get("extension"); ok {
		ext = &v
	}
	if v, ok := fc.Get("format"); ok {
		format = &v
	}

	cfg := &StreamTypeConfig{Kind: kind, Extension: ext, Format: format, Properties: props}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *StreamTypeConfig) validate() error {
	switch c.Kind {
	case Source, Sink:
		if c.Extension == nil || c.Format == nil {
			return errs.NewValidation("StreamTypeConfig.validate", "extension/format", "",
				fmt.Errorf("%s streams require both extension and format", c.Kind))
		}
	case Internal:
		if c.Extension != nil || c.Format != nil {
			return errs.NewValidation("StreamTypeConfig.validate", "extension/format", "",
				fmt.Errorf("internal streams must not set extension or format"))
		}
	}
	return nil
}
