// Package exprexec implements the scalar expression evaluator the query
// runtime (spec.md §4.H) uses to evaluate WHERE filters, SELECT projections,
// and pattern-state filters against a live event.StreamEvent.
//
// Grounded on original_source/src/core/executor/function/builtin_wrapper.rs:
// that file wraps every scalar function behind one ExpressionExecutor
// interface (execute(event) -> AttributeValue) compiled once from the typed
// AST and re-evaluated per event, which is exactly the Compile-once/
// Execute-per-event split below. build_cast/build_convert/build_default name
// the three builtin functions this package implements as CallExpr targets.
package exprexec

import (
	"fmt"
	"strings"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// Executor evaluates a compiled expression against one StreamEvent's
// before-window data.
type Executor interface {
	Execute(se *event.StreamEvent) (any, error)
}

// Compile binds expr's column references against def's positional schema
// and returns a reusable Executor. def may be nil only for expressions that
// contain no ColumnRef (e.g. a bare literal).
func Compile(expr ast.Expr, def *event.StreamDefinition) (Executor, error) {
	switch e := expr.(type) {
	case *ast.ColumnRef:
		if def == nil {
			return nil, errs.New("exprexec.Compile", errs.AppCreation,
				fmt.Errorf("column reference %q with no bound schema", e.Column))
		}
		idx := def.IndexOf(e.Column)
		if idx < 0 {
			return nil, errs.New("exprexec.Compile", errs.AppCreation,
				fmt.Errorf("unknown column %q", e.Column))
		}
		return columnExecutor{idx: idx, name: e.Column}, nil

	case *ast.Literal:
		return literalExecutor{value: e.Value}, nil

	case *ast.BinaryOp:
		left, err := Compile(e.Left, def)
		if err != nil {
			return nil, err
		}
		right, err := Compile(e.Right, def)
		if err != nil {
			return nil, err
		}
		return binaryExecutor{op: e.Op, left: left, right: right}, nil

	case *ast.LogicalOp:
		left, err := Compile(e.Left, def)
		if err != nil {
			return nil, err
		}
		right, err := Compile(e.Right, def)
		if err != nil {
			return nil, err
		}
		return logicalExecutor{op: e.Op, left: left, right: right}, nil

	case *ast.NotOp:
		operand, err := Compile(e.Operand, def)
		if err != nil {
			return nil, err
		}
		return notExecutor{operand: operand}, nil

	case *ast.CaseExpr:
		return compileCase(e, def)

	case *ast.CastExpr:
		operand, err := Compile(e.Operand, def)
		if err != nil {
			return nil, err
		}
		return castExecutor{operand: operand, to: e.To}, nil

	case *ast.CallExpr:
		return compileCall(e, def)

	default:
		return nil, errs.New("exprexec.Compile", errs.AppCreation,
			fmt.Errorf("unsupported expression type %T", expr))
	}
}

// EvalBool runs an already compiled Executor against se, requiring a boolean result;
// used by pattern filters and WHERE clauses that need a yes/no answer.
func EvalBool(exec Executor, se *event.StreamEvent) (bool, error) {
	v, err := exec.Execute(se)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errs.New("exprexec.EvalBool", errs.AppRuntime,
			fmt.Errorf("expression produced non-boolean value %v (%T)", v, v))
	}
	return b, nil
}

type columnExecutor struct {
	idx  int
	name string
}

func (c columnExecutor) Execute(se *event.StreamEvent) (any, error) {
	if c.idx < 0 || c.idx >= len(se.BeforeWindowData) {
		return nil, errs.New("exprexec.columnExecutor", errs.AppRuntime,
			fmt.Errorf("column %q index %d out of range (event has %d fields)", c.name, c.idx, len(se.BeforeWindowData)))
	}
	return se.BeforeWindowData[c.idx], nil
}

type literalExecutor struct{ value any }

func (l literalExecutor) Execute(*event.StreamEvent) (any, error) { return l.value, nil }

type binaryExecutor struct {
	op          string
	left, right Executor
}

func (b binaryExecutor) Execute(se *event.StreamEvent) (any, error) {
	lv, err := b.left.Execute(se)
	if err != nil {
		return nil, err
	}
	rv, err := b.right.Execute(se)
	if err != nil {
		return nil, err
	}
	return evalBinary(b.op, lv, rv)
}

func evalBinary(op string, lv, rv any) (any, error) {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(op, lv, rv)
	case "+", "-", "*", "/":
		if op == "+" {
			if ls, lok := lv.(string); lok {
				rs := fmt.Sprintf("%v", rv)
				return ls + rs, nil
			}
		}
		lf, lok := toFloat(lv)
		rf, rok := toFloat(rv)
		if !lok || !rok {
			return nil, errs.New("exprexec.evalBinary", errs.AppRuntime,
				fmt.Errorf("operator %q requires numeric operands, got %v and %v", op, lv, rv))
		}
		switch op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, errs.New("exprexec.evalBinary", errs.AppRuntime, fmt.Errorf("division by zero"))
			}
			return lf / rf, nil
		}
	}
	return nil, errs.New("exprexec.evalBinary", errs.AppCreation, fmt.Errorf("unsupported operator %q", op))
}

func compare(op string, lv, rv any) (any, error) {
	if lf, lok := toFloat(lv); lok {
		if rf, rok := toFloat(rv); rok {
			switch op {
			case "==":
				return lf == rf, nil
			case "!=":
				return lf != rf, nil
			case "<":
				return lf < rf, nil
			case "<=":
				return lf <= rf, nil
			case ">":
				return lf > rf, nil
			case ">=":
				return lf >= rf, nil
			}
		}
	}
	ls := fmt.Sprintf("%v", lv)
	rs := fmt.Sprintf("%v", rv)
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case "<":
		return ls < rs, nil
	case "<=":
		return ls <= rs, nil
	case ">":
		return ls > rs, nil
	case ">=":
		return ls >= rs, nil
	}
	return nil, errs.New("exprexec.compare", errs.AppCreation, fmt.Errorf("unsupported comparison operator %q", op))
}

// ToFloat exports toFloat's numeric coercion for callers outside this
// package (the query runtime's aggregate value extractors) that need the
// same "any numeric kind becomes float64" rule this package uses internally.
func ToFloat(v any) (float64, bool) {
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

type logicalExecutor struct {
	op          string
	left, right Executor
}

func (l logicalExecutor) Execute(se *event.StreamEvent) (any, error) {
	lv, err := l.left.Execute(se)
	if err != nil {
		return nil, err
	}
	lb, ok := lv.(bool)
	if !ok {
		return nil, errs.New("exprexec.logicalExecutor", errs.AppRuntime, fmt.Errorf("left operand of %s is not boolean", l.op))
	}
	// short-circuit
	if l.op == "AND" && !lb {
		return false, nil
	}
	if l.op == "OR" && lb {
		return true, nil
	}
	rv, err := l.right.Execute(se)
	if err != nil {
		return nil, err
	}
	rb, ok := rv.(bool)
	if !ok {
		return nil, errs.New("exprexec.logicalExecutor", errs.AppRuntime, fmt.Errorf("right operand of %s is not boolean", l.op))
	}
	return rb, nil
}

type notExecutor struct{ operand Executor }

func (n notExecutor) Execute(se *event.StreamEvent) (any, error) {
	v, err := n.operand.Execute(se)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, errs.New("exprexec.notExecutor", errs.AppRuntime, fmt.Errorf("NOT operand is not boolean"))
	}
	return !b, nil
}

type caseArm struct {
	cond   Executor
	result Executor
}

type caseExecutor struct {
	whens    []caseArm
	elseExec Executor
}

func compileCase(e *ast.CaseExpr, def *event.StreamDefinition) (Executor, error) {
	arms := make([]caseArm, 0, len(e.Whens))
	for _, w := range e.Whens {
		cond, err := Compile(w.Cond, def)
		if err != nil {
			return nil, err
		}
		result, err := Compile(w.Result, def)
		if err != nil {
			return nil, err
		}
		arms = append(arms, caseArm{cond: cond, result: result})
	}
	var elseExec Executor
	if e.Else != nil {
		var err error
		elseExec, err = Compile(e.Else, def)
		if err != nil {
			return nil, err
		}
	}
	return caseExecutor{whens: arms, elseExec: elseExec}, nil
}

func (c caseExecutor) Execute(se *event.StreamEvent) (any, error) {
	for _, arm := range c.whens {
		ok, err := EvalBool(arm.cond, se)
		if err != nil {
			return nil, err
		}
		if ok {
			return arm.result.Execute(se)
		}
	}
	if c.elseExec != nil {
		return c.elseExec.Execute(se)
	}
	return nil, nil
}

type castExecutor struct {
	operand Executor
	to      event.ValueKind
}

func (c castExecutor) Execute(se *event.StreamEvent) (any, error) {
	v, err := c.operand.Execute(se)
	if err != nil {
		return nil, err
	}
	return castValue(v, c.to)
}

func castValue(v any, to event.ValueKind) (any, error) {
	switch to {
	case event.KindString:
		return fmt.Sprintf("%v", v), nil
	case event.KindBool:
		switch n := v.(type) {
		case bool:
			return n, nil
		case string:
			return strings.EqualFold(n, "true"), nil
		default:
			if f, ok := toFloat(v); ok {
				return f != 0, nil
			}
		}
	case event.KindInt32, event.KindInt64, event.KindFloat, event.KindDouble:
		if f, ok := toFloat(v); ok {
			return castNumeric(f, to), nil
		}
		if s, ok := v.(string); ok {
			var f float64
			if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
				return castNumeric(f, to), nil
			}
		}
	}
	return nil, errs.New("exprexec.castValue", errs.AppRuntime, fmt.Errorf("cannot cast %v (%T) to %s", v, v, to))
}

func castNumeric(f float64, to event.ValueKind) any {
	switch to {
	case event.KindInt32:
		return int32(f)
	case event.KindInt64:
		return int64(f)
	case event.KindFloat:
		return float32(f)
	default:
		return f
	}
}

// compileCall supports the builtin scalar functions named in
// original_source's builtin_wrapper.rs: cast(value, type) — identical to
// CastExpr but spelled as a call — convert(value, type), which is an alias
// for cast here since this engine has no separate "lossy reinterpret"
// semantics, and default(args...), which returns the first non-nil argument
// (SQL COALESCE).
func compileCall(e *ast.CallExpr, def *event.StreamDefinition) (Executor, error) {
	name := strings.ToLower(e.Name)
	switch name {
	case "cast", "convert":
		if len(e.Args) != 2 {
			return nil, errs.New("exprexec.compileCall", errs.AppCreation, fmt.Errorf("%s() requires two arguments", name))
		}
		lit, ok := e.Args[1].(*ast.Literal)
		if !ok {
			return nil, errs.New("exprexec.compileCall", errs.AppCreation, fmt.Errorf("%s()'s second argument must be a type literal", name))
		}
		targetName, _ := lit.Value.(string)
		target, err := parseKind(targetName)
		if err != nil {
			return nil, err
		}
		operand, err := Compile(e.Args[0], def)
		if err != nil {
			return nil, err
		}
		return castExecutor{operand: operand, to: target}, nil
	case "default":
		args := make([]Executor, 0, len(e.Args))
		for _, a := range e.Args {
			exec, err := Compile(a, def)
			if err != nil {
				return nil, err
			}
			args = append(args, exec)
		}
		return defaultExecutor{args: args}, nil
	default:
		return nil, errs.New("exprexec.compileCall", errs.AppCreation, fmt.Errorf("unknown function %q", e.Name))
	}
}

func parseKind(name string) (event.ValueKind, error) {
	switch strings.ToUpper(name) {
	case "INT":
		return event.KindInt32, nil
	case "LONG":
		return event.KindInt64, nil
	case "FLOAT":
		return event.KindFloat, nil
	case "DOUBLE":
		return event.KindDouble, nil
	case "BOOL":
		return event.KindBool, nil
	case "STRING":
		return event.KindString, nil
	default:
		return 0, errs.New("exprexec.parseKind", errs.AppCreation, fmt.Errorf("unknown cast target type %q", name))
	}
}

type defaultExecutor struct{ args []Executor }

func (d defaultExecutor) Execute(se *event.StreamEvent) (any, error) {
	for _, a := range d.args {
		v, err := a.Execute(se)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}
