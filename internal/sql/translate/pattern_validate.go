package translate

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// ValidatePattern performs the four pattern-validation rules of §4.E
// post-parse, pre-dataflow. All violations are collected rather than
// failing fast on the first one, so a user fixing a query sees every
// problem in one pass.
func ValidatePattern(pe *ast.PatternExpr) error {
	v := &patternValidator{mode: pe.Mode}
	v.walkTop(pe.Root)
	return errs.NewAggregate("translate.ValidatePattern", v.errors)
}

type patternValidator struct {
	mode   ast.PatternMode
	errors []error
}

func (v *patternValidator) fail(format string, args ...any) {
	v.errors = append(v.errors, fmt.Errorf(format, args...))
}

// walkTop handles pe.Root specially: a SequenceNode or LogicalNode sitting
// directly at the root is the pattern's structural wrapper, not a nesting
// level, so its direct children stay at depth 0. This is what makes a
// top-level `EVERY (A{1} -> B{1})` validate, matching
// ast/pattern.go's "Every... at the top level" contract — without this,
// every multi-element pattern would see its first element one level too
// deep.
func (v *patternValidator) walkTop(n ast.PatternNode) {
	switch node := n.(type) {
	case *ast.LogicalNode:
		v.checkAbsentOperand(node.Left, node.Op)
		v.checkAbsentOperand(node.Right, node.Op)
		v.walk(node.Left, 0)
		v.walk(node.Right, 0)
	case *ast.SequenceNode:
		for _, elem := range node.Elements {
			v.walk(elem, 0)
		}
	default:
		v.walk(n, 0)
	}
}

func (v *patternValidator) walk(n ast.PatternNode, depth int) {
	switch node := n.(type) {
	case *ast.StateElement:
		v.checkEvery(node, depth)
		v.checkQuantifier(node)
	case *ast.LogicalNode:
		v.checkAbsentOperand(node.Left, node.Op)
		v.checkAbsentOperand(node.Right, node.Op)
		v.walk(node.Left, depth+1)
		v.walk(node.Right, depth+1)
	case *ast.SequenceNode:
		for _, elem := range node.Elements {
			v.walk(elem, depth+1)
		}
	case *ast.AbsentNode:
		// validity of appearing here as a bare sequence element is fine;
		// the AND/OR restriction is enforced in checkAbsentOperand above.
	}
}

// checkEvery enforces rules 1 and 2: EVERY only in PATTERN mode, and only
// at the top level (depth 0), never nested inside sequence, logical, or
// another EVERY.
func (v *patternValidator) checkEvery(elem *ast.StateElement, depth int) {
	if !elem.Every {
		return
	}
	if v.mode == ast.ModeSequence {
		v.fail("EVERY is not permitted in SEQUENCE mode: sequences auto-restart")
	}
	if depth != 0 {
		v.fail("EVERY must appear at the top level only, found nested at depth %d", depth)
	}
}

// checkQuantifier enforces rule 3: min >= 1, max explicit, max >= min.
func (v *patternValidator) checkQuantifier(elem *ast.StateElement) {
	q := elem.Quantifier
	if q == nil {
		return
	}
	if q.Min < 1 {
		v.fail("count quantifier min must be >= 1, got %d", q.Min)
	}
	if q.Max == 0 {
		v.fail("count quantifier max must be explicit; unbounded +/* is not permitted")
	}
	if q.Max < q.Min {
		v.fail("count quantifier max (%d) must be >= min (%d)", q.Max, q.Min)
	}
}

// checkAbsentOperand enforces rule 4: an absent pattern cannot be an
// operand of AND/OR.
func (v *patternValidator) checkAbsentOperand(n ast.PatternNode, op string) {
	if _, ok := n.(*ast.AbsentNode); ok {
		v.fail("absent pattern (NOT ... FOR ...) may not be an operand of %s; use SEQUENCE instead", op)
	}
}
