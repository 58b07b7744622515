// Package config implements the layered property resolver (FlatConfig),
// the typed stream/sink config (StreamTypeConfig), and the retry/backoff
// configuration (RetryConfig) described in spec.md §4.C.
package config

import "strings"

// PropertySource is the priority tier a property value was set from. Higher
// numeric value means higher priority.
type PropertySource int

const (
	CodeDefault PropertySource = iota
	AppGlobal
	StreamSection
	InlineWithClause
)

func (p PropertySource) priority() int { return int(p) }

// FlatConfig is a layered map<string,string> where each key remembers which
// priority tier last set it. Insertion obeys: a new source's priority must be
// strictly greater than the current source's priority to override;
// equal-or-lower is silently ignored. This asymmetric rule ensures
// first-writer-wins within a tier (spec.md §3, invariant 1 in §8).
type FlatConfig struct {
	values  map[string]string
	sources map[string]PropertySource
}

// NewFlatConfig returns an empty FlatConfig.
func NewFlatConfig() *FlatConfig {
	return &FlatConfig{
		values:  make(map[string]string),
		sources: make(map[string]PropertySource),
	}
}

// Set applies the asymmetric "strictly greater" priority rule: the write is
// a no-op if an existing value was set at a source whose priority is >= src.
func (c *FlatConfig) Set(key, value string, src PropertySource) {
	if cur, ok := c.sources[key]; ok && cur.priority() >= src.priority() {
		return
	}
	c.values[key] = value
	c.sources[key] = src
}

// Get returns the current value for key and whether it is present.
func (c *FlatConfig) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetOr returns the current value for key, or def if absent.
func (c *FlatConfig) GetOr(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// SourceOf returns the PropertySource that currently owns key.
func (c *FlatConfig) SourceOf(key string) (PropertySource, bool) {
	s, ok := c.sources[key]
	return s, ok
}

// Merge applies every key/value/source triple from other onto c using the
// same priority rule as Set — equivalent to replaying other's insertion
// history against c.
func (c *FlatConfig) Merge(other *FlatConfig) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		c.Set(k, v, other.sources[k])
	}
}

// GetWithPrefix returns a lazily-filtered view: every key beginning with
// prefix, stripped of that prefix.
func (c *FlatConfig) GetWithPrefix(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range c.values {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Keys returns every key currently set, in no particular order.
func (c *FlatConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a deep copy of c.
func (c *FlatConfig) Clone() *FlatConfig {
	clone := NewFlatConfig()
	for k, v := range c.values {
		clone.values[k] = v
		clone.sources[k] = c.sources[k]
	}
	return clone
}
