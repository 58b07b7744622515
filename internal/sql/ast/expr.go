package ast

import "github.com/eventflux-io/engine/internal/core/event"

// Expr is any scalar expression node appearing in WHERE, HAVING, SELECT
// projections, ON clauses, or pattern filters.
type Expr interface {
	isExpr()
}

// ColumnRef references an attribute, optionally qualified by stream id or alias.
type ColumnRef struct {
	Qualifier string // empty when unqualified
	Column    string
}

func (*ColumnRef) isExpr() {}

// Literal is a constant value with a known type.
type Literal struct {
	Kind  event.ValueKind
	Value any
}

func (*Literal) isExpr() {}

// BinaryOp covers arithmetic (+ - * /), comparison (== != < <= > >=), and
// string concatenation.
type BinaryOp struct {
	Op          string
	Left, Right Expr
}

func (*BinaryOp) isExpr() {}

// LogicalOp covers AND/OR.
type LogicalOp struct {
	Op          string // "AND" | "OR"
	Left, Right Expr
}

func (*LogicalOp) isExpr() {}

// NotOp is unary logical negation.
type NotOp struct {
	Operand Expr
}

func (*NotOp) isExpr() {}

// CallExpr is a function/aggregator call.
type CallExpr struct {
	Name string
	Args []Expr
}

func (*CallExpr) isExpr() {}

// CaseExpr is a CASE WHEN ... THEN ... ELSE ... END expression.
type CaseExpr struct {
	Whens []WhenClause
	Else  Expr // nil when absent
}

func (*CaseExpr) isExpr() {}

// WhenClause is one WHEN cond THEN result arm.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CastExpr is an explicit CAST(expr AS type).
type CastExpr struct {
	Operand Expr
	To      event.ValueKind
}

func (*CastExpr) isExpr() {}
