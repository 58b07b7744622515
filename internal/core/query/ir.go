// Package query holds the Query IR that the SQL translator (§4.E,
// internal/sql/translate) produces: InputStream (single | join |
// state/pattern), a Selector, and an OutputStream action. Window processors
// (§4.F) and the pattern state machine (§4.G) are constructed from this IR,
// never from the raw ast tree.
package query

import (
	"time"

	"github.com/eventflux-io/engine/internal/sql/ast"
)

// InputKind discriminates the three InputStream shapes.
type InputKind int

const (
	InputSingle InputKind = iota
	InputJoin
	InputPattern
)

// WindowIR is the translator's resolved form of a StreamingWindowSpec:
// intervals converted to time.Duration, everything else copied verbatim.
type WindowIR struct {
	Kind           ast.WindowKind
	Size           int
	Duration       time.Duration
	SlideSize      int
	Gap            time.Duration
	TimestampField string
	SortAttribute  string
	SortAscending  bool
}

// SingleInputIR is one stream reference plus its resolved window, if any.
type SingleInputIR struct {
	Stream string
	Alias  string
	Window *WindowIR
}

// JoinInputIR is a normalized two-sided join.
type JoinInputIR struct {
	Left  SingleInputIR
	Right SingleInputIR
	Type  ast.JoinType
	On    ast.Expr
}

// InputStreamIR is the resolved form of ast.InputStream.
type InputStreamIR struct {
	Kind    InputKind
	Single  *SingleInputIR
	Join    *JoinInputIR
	Pattern *ast.PatternExpr
}

// SelectorIR mirrors ast.Selector; kept distinct so later passes can
// attach resolved types without mutating the parsed tree.
type SelectorIR struct {
	Projections []ast.Projection
	GroupBy     []ast.Expr
	Having      ast.Expr
	OrderBy     []ast.OrderTerm
	Limit       *int
	Offset      *int
}

// OutputStreamIR mirrors ast.OutputStream.
type OutputStreamIR struct {
	Stream string
	Action ast.OutputStreamAction
}

// IR is the fully translated query, ready for dataflow construction.
type IR struct {
	Input    InputStreamIR
	Where    ast.Expr
	Selector SelectorIR
	Output   OutputStreamIR
}

// PartitionKeyIR is one resolved `key OF stream` binding.
type PartitionKeyIR struct {
	Key    ast.Expr
	Stream string
}

// PartitionIR is a translated `PARTITION (...) WITH (...)` block: every
// inner query is compiled independently against the same catalog and runs
// once per distinct partition key value at execution time.
type PartitionIR struct {
	Keys    []PartitionKeyIR
	Queries []*IR
}
