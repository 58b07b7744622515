// Package appconfig loads the application descriptor (YAML or TOML) that
// feeds the AppGlobal layer of config.FlatConfig (spec.md §4.C, §4.H step
// 1): per-stream WITH-like properties plus engine-wide defaults, read with
// gopkg.in/yaml.v3 and github.com/pelletier/go-toml/v2.
package appconfig

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/eventflux-io/engine/internal/core/config"
)

// Descriptor is the on-disk shape of an application config file:
//
//	global:
//	  error.retry.max-attempts: "3"
//	streams:
//	  Orders:
//	    type: source
//	    extension: websocket
//	    format: json
type Descriptor struct {
	Global  map[string]string            `yaml:"global" toml:"global"`
	Streams map[string]map[string]string `yaml:"streams" toml:"streams"`
}

// LoadYAML reads and parses a YAML application descriptor.
func LoadYAML(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadTOML reads and parses a TOML application descriptor.
func LoadTOML(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ApplyGlobal merges the descriptor's engine-wide defaults into fc at the
// AppGlobal priority tier.
func (d *Descriptor) ApplyGlobal(fc *config.FlatConfig) {
	for k, v := range d.Global {
		fc.Set(k, v, config.AppGlobal)
	}
}

// StreamConfig returns a FlatConfig seeded with this descriptor's
// AppGlobal-tier properties for one stream, ready for the SQL WITH clause
// (applied at a strictly higher tier, so "SQL wins ties", spec.md §4.H step
// 1) to be merged on top of it.
func (d *Descriptor) StreamConfig(streamName string) *config.FlatConfig {
	fc := config.NewFlatConfig()
	for k, v := range d.Streams[streamName] {
		fc.Set(k, v, config.AppGlobal)
	}
	return fc
}

// StreamNames returns every stream name the descriptor configures, for
// auto-attach enumeration at startup (spec.md §4.H step 1).
func (d *Descriptor) StreamNames() []string {
	names := make([]string, 0, len(d.Streams))
	for name := range d.Streams {
		names = append(names, name)
	}
	return names
}

// isTOMLPath reports whether path looks like a TOML file by extension, used
// by callers that accept either format from one config flag.
func isTOMLPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".toml")
}

// Load dispatches to LoadYAML or LoadTOML based on path's extension.
func Load(path string) (*Descriptor, error) {
	if isTOMLPath(path) {
		return LoadTOML(path)
	}
	return LoadYAML(path)
}
