package pattern

import "github.com/eventflux-io/engine/internal/core/event"

// LogicalOp is AND or OR composition of two pattern operands bound to
// distinct slots of the same StateEvent.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// LogicalComplete reports whether a logical composition has completed: AND
// requires both slots bound (in either order), OR requires just one.
func LogicalComplete(se *event.StateEvent, op LogicalOp, leftSlot, rightSlot int) bool {
	left := se.Slot(leftSlot) != nil
	right := se.Slot(rightSlot) != nil
	switch op {
	case LogicalAnd:
		return left && right
	case LogicalOr:
		return left || right
	default:
		return false
	}
}
