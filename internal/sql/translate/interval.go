// Package translate implements the SQL-to-Query-IR translator of §4.E: it
// only ever reads from internal/sql/ast, never constructs SQL text, and
// produces an internal/core/query.IR for the dataflow builder to consume.
package translate

import (
	"fmt"
	"time"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// Fixed-duration approximations for calendar units without a constant
// length. Documented here because the translator's output must be
// explicit about it: a year is always treated as 365 days, a month as 30
// days, regardless of calendar position.
const (
	approxDaysPerMonth = 30
	approxDaysPerYear  = 365
)

// IntervalToDuration converts an `INTERVAL 'n' UNIT` literal to a
// time.Duration. Second/minute/hour/day are exact; year/month use the
// fixed approximations above.
func IntervalToDuration(lit ast.IntervalLiteral) (time.Duration, error) {
	if lit.Value < 0 {
		return 0, errs.New("translate.IntervalToDuration", errs.Configuration,
			fmt.Errorf("interval value must be non-negative, got %d", lit.Value))
	}
	n := time.Duration(lit.Value)
	switch lit.Unit {
	case ast.UnitSecond:
		return n * time.Second, nil
	case ast.UnitMinute:
		return n * time.Minute, nil
	case ast.UnitHour:
		return n * time.Hour, nil
	case ast.UnitDay:
		return n * 24 * time.Hour, nil
	case ast.UnitMonth:
		return n * approxDaysPerMonth * 24 * time.Hour, nil
	case ast.UnitYear:
		return n * approxDaysPerYear * 24 * time.Hour, nil
	default:
		return 0, errs.New("translate.IntervalToDuration", errs.Configuration,
			fmt.Errorf("unknown interval unit %d", lit.Unit))
	}
}
