package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatConfig_PriorityMonotonicity(t *testing.T) {
	fc := NewFlatConfig()
	fc.Set("buffer_size", "1024", CodeDefault)
	fc.Set("buffer_size", "2048", AppGlobal)
	fc.Set("buffer_size", "4096", StreamSection)
	fc.Set("buffer_size", "512", InlineWithClause)

	v, ok := fc.Get("buffer_size")
	assert.True(t, ok)
	assert.Equal(t, "512", v, "InlineWithClause (priority 3) strictly exceeds StreamSection (priority 2) and must win")

	src, _ := fc.SourceOf("buffer_size")
	assert.Equal(t, InlineWithClause, src)
}

func TestFlatConfig_EqualOrLowerPriorityIsNoOp(t *testing.T) {
	fc := NewFlatConfig()
	fc.Set("x", "first", StreamSection)
	fc.Set("x", "second", StreamSection) // same tier: first-writer-wins
	fc.Set("x", "third", AppGlobal)      // lower tier: ignored

	v, _ := fc.Get("x")
	assert.Equal(t, "first", v)
}

func TestFlatConfig_Merge(t *testing.T) {
	a := NewFlatConfig()
	a.Set("k", "a-value", AppGlobal)

	b := NewFlatConfig()
	b.Set("k", "b-value", InlineWithClause)

	a.Merge(b)
	v, _ := a.Get("k")
	assert.Equal(t, "b-value", v)
}

func TestFlatConfig_GetWithPrefix(t *testing.T) {
	fc := NewFlatConfig()
	fc.Set("error.retry.max-attempts", "5", InlineWithClause)
	fc.Set("error.retry.backoff", "linear", InlineWithClause)
	fc.Set("format", "json", InlineWithClause)

	prefixed := fc.GetWithPrefix("error.retry.")
	assert.Equal(t, "5", prefixed["max-attempts"])
	assert.Equal(t, "linear", prefixed["backoff"])
	_, ok := prefixed["format"]
	assert.False(t, ok)
}

// TestFlatConfig_LayeredConfigScenario reproduces spec.md §8 end-to-end
// scenario 4 under the ordering given there: CodeDefault, AppGlobal,
// StreamSection, then InlineWith. InlineWith strictly outranks StreamSection
// so it wins even though it was applied last, giving 512 as documented by
// the scenario's second (corrected) conclusion.
func TestFlatConfig_LayeredConfigScenario(t *testing.T) {
	fc := NewFlatConfig()
	fc.Set("buffer_size", "1024", CodeDefault)
	fc.Set("buffer_size", "2048", AppGlobal)
	fc.Set("buffer_size", "4096", StreamSection)
	fc.Set("buffer_size", "512", InlineWithClause)

	v, _ := fc.Get("buffer_size")
	assert.Equal(t, "512", v)
}

// TestFlatConfig_LayeredConfigScenario_NoInlineWith pins the other ordering
// named by scenario 4: without an InlineWith set at all, StreamSection (the
// highest priority source actually used) wins.
func TestFlatConfig_LayeredConfigScenario_NoInlineWith(t *testing.T) {
	fc := NewFlatConfig()
	fc.Set("buffer_size", "1024", CodeDefault)
	fc.Set("buffer_size", "2048", AppGlobal)
	fc.Set("buffer_size", "4096", StreamSection)

	v, _ := fc.Get("buffer_size")
	assert.Equal(t, "4096", v)
}
