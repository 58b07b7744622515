package queryrt

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/exprexec"
	"github.com/eventflux-io/engine/internal/core/pattern"
	"github.com/eventflux-io/engine/internal/core/query"
	"github.com/eventflux-io/engine/internal/core/typesys"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// compilePattern builds a chain of pattern.CountPreStateProcessors, one per
// state element of a PATTERN/SEQUENCE clause, and subscribes one
// junction.Subscriber per participating stream that routes arrivals into
// Arrive (qualifying match) or, in SEQUENCE mode, InvalidateAll (a
// non-matching arrival on a participating stream, breaking contiguity —
// spec.md §4.G's PATTERN-vs-SEQUENCE divergence).
//
// Only a flat chain of plain StateElements (the PatternExpr root itself, or
// every direct child of a SequenceNode) is supported: LogicalNode (AND/OR)
// and AbsentNode (NOT ... FOR) composition remain unwired pending further
// work (see DESIGN.md).
func compilePattern(ir *query.IR, catalog *typesys.SqlCatalog, lookup JunctionLookup, output func(*event.StreamEvent)) (*Query, error) {
	pe := ir.Input.Pattern
	elems, err := flattenPatternElements(pe.Root)
	if err != nil {
		return nil, err
	}

	numSlots := len(elems)
	procs := make([]*pattern.CountPreStateProcessor, numSlots)
	filters := make([]exprexec.Executor, numSlots)
	defs := make([]*event.StreamDefinition, numSlots)
	qualifiers := make([]string, numSlots)

	for i, el := range elems {
		qualifier := qualifierOf(el.Stream, el.Alias)
		def, ok := catalog.StreamDefinition(qualifier)
		if !ok {
			return nil, errs.New("queryrt.compilePattern", errs.AppCreation,
				fmt.Errorf("no stream definition registered for %q", qualifier))
		}
		defs[i] = def
		qualifiers[i] = qualifier

		if el.Filter != nil {
			fe, err := exprexec.Compile(el.Filter, def)
			if err != nil {
				return nil, err
			}
			filters[i] = fe
		}

		min, max := 1, 1
		if el.Quantifier != nil {
			min, max = el.Quantifier.Min, el.Quantifier.Max
		}
		procs[i] = &pattern.CountPreStateProcessor{
			StateID:      pattern.StateID(i),
			Min:          min,
			Max:          max,
			IsStartState: i == 0,
			Every:        i == 0 && el.Every,
			NumSlots:     numSlots,
		}
	}

	pq := &patternQuery{
		defs:       defs,
		qualifiers: qualifiers,
		selector:   ir.Selector,
		output:     output,
	}

	for i, proc := range procs {
		if i == numSlots-1 {
			proc.Forward = pq.emitMatch
		} else {
			next := procs[i+1]
			proc.Forward = func(se *event.StateEvent) { next.Attach(se) }
		}
	}

	contiguity := pattern.ModePattern
	if pe.Mode == ast.ModeSequence {
		contiguity = pattern.ModeSequence
	}

	byStream := make(map[string][]patternBinding)
	for i, el := range elems {
		byStream[el.Stream] = append(byStream[el.Stream], patternBinding{proc: procs[i], filter: filters[i]})
	}

	q := &Query{}
	for stream, bindings := range byStream {
		j, ok := lookup(stream)
		if !ok {
			q.Stop()
			return nil, errs.New("queryrt.compilePattern", errs.AppCreation,
				fmt.Errorf("no junction registered for stream %q", stream))
		}
		sub := &patternSubscriber{
			id:         nextSubscriberID(stream),
			bindings:   bindings,
			contiguity: contiguity,
		}
		j.Subscribe(sub)
		q.unsubs = append(q.unsubs, unsubscription{j: j, id: sub.id})
	}
	return q, nil
}

// flattenPatternElements accepts a bare StateElement or a SequenceNode whose
// direct children are all StateElements; every other shape (LogicalNode,
// AbsentNode, nested SequenceNode) is rejected with a descriptive error
// rather than silently mishandled.
func flattenPatternElements(root ast.PatternNode) ([]*ast.StateElement, error) {
	switch n := root.(type) {
	case *ast.StateElement:
		return []*ast.StateElement{n}, nil
	case *ast.SequenceNode:
		elems := make([]*ast.StateElement, 0, len(n.Elements))
		for _, c := range n.Elements {
			se, ok := c.(*ast.StateElement)
			if !ok {
				return nil, errs.New("queryrt.flattenPatternElements", errs.AppCreation,
					fmt.Errorf("pattern element of type %T is not yet supported by the query runtime", c))
			}
			elems = append(elems, se)
		}
		return elems, nil
	default:
		return nil, errs.New("queryrt.flattenPatternElements", errs.AppCreation,
			fmt.Errorf("pattern root of type %T is not yet supported by the query runtime", root))
	}
}

type patternBinding struct {
	proc   *pattern.CountPreStateProcessor
	filter exprexec.Executor
}

// patternSubscriber is the junction.Subscriber for one stream participating
// in a pattern: each arrival is tested against every state bound to this
// stream. A match advances that state; a non-match in SEQUENCE mode
// invalidates it, breaking any in-flight match at that position.
type patternSubscriber struct {
	id         string
	bindings   []patternBinding
	contiguity pattern.ContiguityMode
}

func (s *patternSubscriber) ID() string { return s.id }

func (s *patternSubscriber) Handle(ev *event.StreamEvent) error {
	for _, b := range s.bindings {
		matched := true
		if b.filter != nil {
			ok, err := exprexec.EvalBool(b.filter, ev)
			if err != nil {
				return err
			}
			matched = ok
		}
		if matched {
			b.proc.Arrive(ev)
		} else if s.contiguity == pattern.ModeSequence {
			b.proc.InvalidateAll()
		}
	}
	return nil
}

// patternQuery holds the per-slot schema/qualifier metadata needed to
// project a completed match's selector columns.
type patternQuery struct {
	defs       []*event.StreamDefinition
	qualifiers []string
	selector   query.SelectorIR
	output     func(*event.StreamEvent)
}

func (q *patternQuery) emitMatch(se *event.StateEvent) {
	vals := make([]any, len(q.selector.Projections))
	for i, p := range q.selector.Projections {
		v, err := q.evalProjection(p.Expr, se)
		if err != nil {
			return
		}
		vals[i] = v
	}
	q.output(&event.StreamEvent{Timestamp: lastBoundTimestamp(se), OutputData: vals, Type: event.Current})
}

func (q *patternQuery) evalProjection(expr ast.Expr, se *event.StateEvent) (any, error) {
	col, ok := expr.(*ast.ColumnRef)
	if !ok {
		return nil, errs.New("queryrt.evalProjection", errs.AppRuntime,
			fmt.Errorf("pattern projections only support plain column references, got %T", expr))
	}
	idx := q.indexOfQualifier(col.Qualifier)
	if idx < 0 {
		return nil, errs.New("queryrt.evalProjection", errs.AppRuntime,
			fmt.Errorf("unknown pattern qualifier %q", col.Qualifier))
	}
	head := se.Slot(idx)
	if head == nil {
		return nil, nil
	}
	tail := head
	for tail.Next != nil {
		tail = tail.Next
	}
	fieldIdx := q.defs[idx].IndexOf(col.Column)
	if fieldIdx < 0 {
		return nil, errs.New("queryrt.evalProjection", errs.AppRuntime,
			fmt.Errorf("unknown column %q on stream %q", col.Column, q.qualifiers[idx]))
	}
	return tail.BeforeWindowData[fieldIdx], nil
}

func (q *patternQuery) indexOfQualifier(qualifier string) int {
	if qualifier == "" {
		if len(q.qualifiers) == 1 {
			return 0
		}
		return -1
	}
	for i, qn := range q.qualifiers {
		if qn == qualifier {
			return i
		}
	}
	return -1
}

func lastBoundTimestamp(se *event.StateEvent) int64 {
	for i := len(se.StreamEvents) - 1; i >= 0; i-- {
		head := se.Slot(i)
		if head == nil {
			continue
		}
		tail := head
		for tail.Next != nil {
			tail = tail.Next
		}
		return tail.Timestamp
	}
	return 0
}
