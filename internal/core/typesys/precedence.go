// Package typesys implements the type inference engine described in
// spec.md §4.D: a pure function set over a SqlCatalog, used to validate a
// query's clauses before any dataflow is constructed.
package typesys

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
)

// Type aliases event.ValueKind so callers in this package don't need to
// import event just to spell out a value kind.
type Type = event.ValueKind

const (
	TInt32  = event.KindInt32
	TInt64  = event.KindInt64
	TFloat  = event.KindFloat
	TDouble = event.KindDouble
	TBool   = event.KindBool
	TString = event.KindString
	TBytes  = event.KindBytes
	TObject = event.KindObject
)

// precedence ranks the numeric types: Double(4) > Float(3) > Long(2) > Int(1).
var precedence = map[Type]int{
	TInt32:  1,
	TInt64:  2,
	TFloat:  3,
	TDouble: 4,
}

// IsNumeric reports whether t participates in numeric precedence.
func IsNumeric(t Type) bool {
	_, ok := precedence[t]
	return ok
}

// NumericPrecedence returns t's precedence rank and whether t is numeric.
func NumericPrecedence(t Type) (int, bool) {
	p, ok := precedence[t]
	return p, ok
}

// ArithmeticResult returns the result type of a binary arithmetic
// expression: the higher-precedence operand's type. Non-numeric operands
// are a type error.
func ArithmeticResult(op string, a, b Type) (Type, error) {
	pa, okA := precedence[a]
	pb, okB := precedence[b]
	if !okA || !okB {
		return 0, errs.NewType("typesys.ArithmeticResult", op,
			fmt.Errorf("arithmetic operator %q requires numeric operands, got %s and %s", op, a, b))
	}
	if pa >= pb {
		return a, nil
	}
	return b, nil
}
