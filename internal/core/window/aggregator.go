package window

import "math"

// Aggregator is an incremental aggregate function: Add accounts for a
// current event's value, Remove accounts for an expired event's value
// (decrementing state rather than recomputing from scratch).
type Aggregator interface {
	Add(v float64)
	Remove(v float64)
	Value() float64
}

// SumAggregator maintains a running sum.
type SumAggregator struct{ sum float64 }

func NewSum() *SumAggregator              { return &SumAggregator{} }
func (a *SumAggregator) Add(v float64)    { a.sum += v }
func (a *SumAggregator) Remove(v float64) { a.sum -= v }
func (a *SumAggregator) Value() float64   { return a.sum }

// CountAggregator maintains a running count.
type CountAggregator struct{ count int64 }

func NewCount() *CountAggregator          { return &CountAggregator{} }
func (a *CountAggregator) Add(float64)    { a.count++ }
func (a *CountAggregator) Remove(float64) { a.count-- }
func (a *CountAggregator) Value() float64 { return float64(a.count) }

// AvgAggregator computes avg = sum/count from the two tracked scalars.
type AvgAggregator struct {
	sum   float64
	count int64
}

func NewAvg() *AvgAggregator { return &AvgAggregator{} }
func (a *AvgAggregator) Add(v float64) {
	a.sum += v
	a.count++
}
func (a *AvgAggregator) Remove(v float64) {
	a.sum -= v
	a.count--
}
func (a *AvgAggregator) Value() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// multisetExtreme backs MinAggregator/MaxAggregator: removal requires a
// multiset (the same value may be present more than once in the window),
// and the current extreme is only rescanned when its own count hits zero.
type multisetExtreme struct {
	counts   map[float64]int64
	extreme  float64
	hasValue bool
	better   func(a, b float64) bool // true if a is "more extreme" than b
}

func newMultisetExtreme(better func(a, b float64) bool) *multisetExtreme {
	return &multisetExtreme{counts: make(map[float64]int64), better: better}
}

func (m *multisetExtreme) Add(v float64) {
	m.counts[v]++
	if !m.hasValue || m.better(v, m.extreme) {
		m.extreme = v
		m.hasValue = true
	}
}

func (m *multisetExtreme) Remove(v float64) {
	if c, ok := m.counts[v]; ok {
		if c <= 1 {
			delete(m.counts, v)
		} else {
			m.counts[v] = c - 1
		}
	}
	if v == m.extreme && m.counts[v] == 0 {
		m.rescan()
	}
}

func (m *multisetExtreme) rescan() {
	m.hasValue = false
	for k := range m.counts {
		if !m.hasValue || m.better(k, m.extreme) {
			m.extreme = k
			m.hasValue = true
		}
	}
}

func (m *multisetExtreme) Value() float64 {
	if !m.hasValue {
		return 0
	}
	return m.extreme
}

// MinAggregator tracks the minimum of the retained values.
type MinAggregator struct{ *multisetExtreme }

func NewMin() *MinAggregator {
	return &MinAggregator{newMultisetExtreme(func(a, b float64) bool { return a < b })}
}

// MaxAggregator tracks the maximum of the retained values.
type MaxAggregator struct{ *multisetExtreme }

func NewMax() *MaxAggregator {
	return &MaxAggregator{newMultisetExtreme(func(a, b float64) bool { return a > b })}
}

// DistinctCountAggregator counts distinct values currently retained.
type DistinctCountAggregator struct {
	counts map[float64]int64
}

func NewDistinctCount() *DistinctCountAggregator {
	return &DistinctCountAggregator{counts: make(map[float64]int64)}
}

func (a *DistinctCountAggregator) Add(v float64) { a.counts[v]++ }
func (a *DistinctCountAggregator) Remove(v float64) {
	if c, ok := a.counts[v]; ok {
		if c <= 1 {
			delete(a.counts, v)
		} else {
			a.counts[v] = c - 1
		}
	}
}
func (a *DistinctCountAggregator) Value() float64 { return float64(len(a.counts)) }

// StdDevAggregator maintains running sum and sum-of-squares to compute
// population standard deviation incrementally.
type StdDevAggregator struct {
	sum   float64
	sumSq float64
	count int64
}

func NewStdDev() *StdDevAggregator { return &StdDevAggregator{} }

func (a *StdDevAggregator) Add(v float64) {
	a.sum += v
	a.sumSq += v * v
	a.count++
}

func (a *StdDevAggregator) Remove(v float64) {
	a.sum -= v
	a.sumSq -= v * v
	a.count--
}

func (a *StdDevAggregator) Value() float64 {
	if a.count == 0 {
		return 0
	}
	mean := a.sum / float64(a.count)
	variance := a.sumSq/float64(a.count) - mean*mean
	if variance < 0 {
		variance = 0 // floating point drift under repeated Add/Remove
	}
	return math.Sqrt(variance)
}
