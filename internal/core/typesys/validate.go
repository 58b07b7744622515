package typesys

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// ValidateBooleanClause enforces that WHERE, HAVING, and JOIN ON all infer
// to Bool. The error names the clause and, when a numeric type was
// supplied, suggests a comparison — the common mistake of
// writing `WHERE count` instead of `WHERE count > 0`.
func ValidateBooleanClause(clause string, t Type) error {
	if t == TBool {
		return nil
	}
	msg := fmt.Sprintf("%s must be a boolean expression, got %s", clause, t)
	if IsNumeric(t) {
		msg += "; did you mean to add a comparison, e.g. `> 0`?"
	}
	return errs.NewType("typesys.ValidateBooleanClause", clause, fmt.Errorf("%s", msg))
}

// ValidateLogicalOperand enforces that AND/OR/NOT operands are Bool.
func ValidateLogicalOperand(op string, t Type) error {
	if t == TBool {
		return nil
	}
	return errs.NewType("typesys.ValidateLogicalOperand", op,
		fmt.Errorf("%s operand must be boolean, got %s", op, t))
}

// ValidateComparison enforces the comparison compatibility rules: BOOL
// compares only with BOOL and only via ==/!=; STRING compares only with
// STRING; numeric operands intermix freely.
func ValidateComparison(op string, left, right Type) error {
	switch {
	case left == TBool || right == TBool:
		if left != TBool || right != TBool {
			return errs.NewType("typesys.ValidateComparison", op,
				fmt.Errorf("cannot compare %s with %s", left, right))
		}
		if op != "==" && op != "!=" {
			return errs.NewType("typesys.ValidateComparison", op,
				fmt.Errorf("boolean values only support == and !=, got %s", op))
		}
		return nil
	case left == TString || right == TString:
		if left != TString || right != TString {
			return errs.NewType("typesys.ValidateComparison", op,
				fmt.Errorf("cannot compare %s with %s", left, right))
		}
		return nil
	case IsNumeric(left) && IsNumeric(right):
		return nil
	default:
		return errs.NewType("typesys.ValidateComparison", op,
			fmt.Errorf("cannot compare %s with %s", left, right))
	}
}

// ValidateCase enforces that every WHEN result and the ELSE result agree,
// modulo Null/Object which are permissive (they unify with anything).
func ValidateCase(whenTypes []Type, elseType Type) (Type, error) {
	var result Type
	have := false
	unify := func(t Type) error {
		if t == TObject {
			return nil
		}
		if !have {
			result = t
			have = true
			return nil
		}
		if result != t {
			return errs.NewType("typesys.ValidateCase", "CASE",
				fmt.Errorf("CASE branches disagree: %s vs %s", result, t))
		}
		return nil
	}
	for _, t := range whenTypes {
		if err := unify(t); err != nil {
			return 0, err
		}
	}
	if err := unify(elseType); err != nil {
		return 0, err
	}
	if !have {
		return TObject, nil
	}
	return result, nil
}
