package translate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/query"
	"github.com/eventflux-io/engine/internal/core/typesys"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

func ordersCatalog() *typesys.SqlCatalog {
	c := typesys.NewSqlCatalog()
	c.AddStream("Orders", &event.StreamDefinition{
		Attributes: []event.Attribute{
			{Name: "symbol", Kind: event.KindString},
			{Name: "volume", Kind: event.KindInt64},
			{Name: "price", Kind: event.KindDouble},
		},
	})
	return c
}

func TestTranslate_WhereMustBeBooleanNamesClause(t *testing.T) {
	stmt := &ast.SelectStatement{
		From:  ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
		Where: &ast.ColumnRef{Column: "volume"}, // numeric, not boolean
		Select: &ast.Selector{
			Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "symbol"}}},
		},
	}
	_, err := Translate(stmt, ordersCatalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHERE")
	assert.Contains(t, err.Error(), "comparison")
}

func TestTranslate_WhereComparisonPasses(t *testing.T) {
	stmt := &ast.SelectStatement{
		From: ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
		Where: &ast.BinaryOp{
			Op:    ">",
			Left:  &ast.ColumnRef{Column: "volume"},
			Right: &ast.Literal{Kind: event.KindInt64, Value: int64(100)},
		},
		Select: &ast.Selector{
			Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "symbol"}}},
		},
	}
	ir, err := Translate(stmt, ordersCatalog())
	require.NoError(t, err)
	assert.Equal(t, query.InputSingle, ir.Input.Kind)
}

func TestTranslate_WindowMappingTumbling(t *testing.T) {
	stmt := &ast.SelectStatement{
		From:   ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
		Window: &ast.StreamingWindowSpec{Kind: ast.WindowTumbling, Duration: ast.IntervalLiteral{Value: 5, Unit: ast.UnitSecond}},
		Select: &ast.Selector{
			Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "symbol"}}},
		},
	}
	ir, err := Translate(stmt, ordersCatalog())
	require.NoError(t, err)
	require.NotNil(t, ir.Input.Single.Window)
	assert.Equal(t, 5*time.Second, ir.Input.Single.Window.Duration)
}

func TestIntervalToDuration_YearMonthApproximations(t *testing.T) {
	d, err := IntervalToDuration(ast.IntervalLiteral{Value: 1, Unit: ast.UnitYear})
	require.NoError(t, err)
	assert.Equal(t, 365*24*time.Hour, d)

	d, err = IntervalToDuration(ast.IntervalLiteral{Value: 1, Unit: ast.UnitMonth})
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)

	d, err = IntervalToDuration(ast.IntervalLiteral{Value: 5, Unit: ast.UnitSecond})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestNormalizeJoin_RequiresOnExceptCross(t *testing.T) {
	_, err := NormalizeJoin(&ast.JoinClause{Type: ast.Inner})
	assert.Error(t, err)

	_, err = NormalizeJoin(&ast.JoinClause{Type: ast.Cross})
	assert.NoError(t, err)

	_, err = NormalizeJoin(&ast.JoinClause{Type: ast.Cross, On: &ast.Literal{Kind: event.KindBool, Value: true}})
	assert.Error(t, err)
}

func TestValidatePattern_EveryRejectedInSequenceMode(t *testing.T) {
	pe := &ast.PatternExpr{
		Mode: ast.ModeSequence,
		Root: &ast.StateElement{Stream: "Orders", Every: true},
	}
	err := ValidatePattern(pe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEQUENCE")
}

func TestValidatePattern_EveryAcceptedAtTopLevelOfSequence(t *testing.T) {
	pe := &ast.PatternExpr{
		Mode: ast.ModePattern,
		Root: &ast.SequenceNode{
			Elements: []ast.PatternNode{
				&ast.StateElement{Stream: "A", Every: true, Quantifier: &ast.CountQuantifier{Min: 1, Max: 1}},
				&ast.StateElement{Stream: "B", Quantifier: &ast.CountQuantifier{Min: 1, Max: 1}},
			},
		},
	}
	err := ValidatePattern(pe)
	assert.NoError(t, err)
}

func TestValidatePattern_EveryNestedRejected(t *testing.T) {
	pe := &ast.PatternExpr{
		Mode: ast.ModePattern,
		Root: &ast.LogicalNode{
			Op:   "AND",
			Left: &ast.StateElement{Stream: "A"},
			Right: &ast.LogicalNode{
				Op:    "OR",
				Left:  &ast.StateElement{Stream: "B", Every: true},
				Right: &ast.StateElement{Stream: "C"},
			},
		},
	}
	err := ValidatePattern(pe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top level")
}

func TestValidatePattern_CountQuantifierRules(t *testing.T) {
	pe := &ast.PatternExpr{
		Mode: ast.ModePattern,
		Root: &ast.StateElement{Stream: "A", Quantifier: &ast.CountQuantifier{Min: 0, Max: 0}},
	}
	err := ValidatePattern(pe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error")
}

func TestValidatePattern_AbsentCannotBeLogicalOperand(t *testing.T) {
	pe := &ast.PatternExpr{
		Mode: ast.ModePattern,
		Root: &ast.LogicalNode{
			Op:   "AND",
			Left: &ast.StateElement{Stream: "A"},
			Right: &ast.AbsentNode{
				Stream: "B",
				For:    ast.IntervalLiteral{Value: 1, Unit: ast.UnitSecond},
			},
		},
	}
	err := ValidatePattern(pe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEQUENCE instead")
}

func TestTranslatePartition_CompilesEachInnerQueryIndependently(t *testing.T) {
	stmt := &ast.PartitionStatement{
		Keys: []ast.PartitionKey{
			{Key: &ast.ColumnRef{Column: "symbol"}, Stream: "Orders"},
		},
		Queries: []ast.SelectStatement{
			{
				From: ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
				Select: &ast.Selector{
					Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "symbol"}}},
				},
			},
			{
				From: ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
				Select: &ast.Selector{
					Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "volume"}}},
				},
			},
		},
	}
	ir, err := TranslatePartition(stmt, ordersCatalog())
	require.NoError(t, err)
	assert.Len(t, ir.Keys, 1)
	assert.Equal(t, "Orders", ir.Keys[0].Stream)
	assert.Len(t, ir.Queries, 2)
}

func TestTranslatePartition_RequiresAtLeastOneKey(t *testing.T) {
	stmt := &ast.PartitionStatement{
		Queries: []ast.SelectStatement{
			{
				From:   ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
				Select: &ast.Selector{Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "symbol"}}}},
			},
		},
	}
	_, err := TranslatePartition(stmt, ordersCatalog())
	assert.Error(t, err)
}

func TestTranslatePartition_AbortsWholePartitionOnInnerQueryError(t *testing.T) {
	stmt := &ast.PartitionStatement{
		Keys: []ast.PartitionKey{
			{Key: &ast.ColumnRef{Column: "symbol"}, Stream: "Orders"},
		},
		Queries: []ast.SelectStatement{
			{
				From:  ast.InputStream{Single: &ast.SingleInputStream{Stream: "Orders"}},
				Where: &ast.ColumnRef{Column: "volume"}, // numeric, not boolean
				Select: &ast.Selector{
					Projections: []ast.Projection{{Expr: &ast.ColumnRef{Column: "symbol"}}},
				},
			},
		},
	}
	_, err := TranslatePartition(stmt, ordersCatalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition query 0")
}

func TestRewriteLegacyWindow(t *testing.T) {
	in := "SELECT * FROM Orders WINDOW('length', 10) WHERE volume > 0"
	out := RewriteLegacyWindow(in)
	assert.Equal(t, "SELECT * FROM Orders WINDOW(length(10)) WHERE volume > 0", out)

	// native form is untouched
	native := "SELECT * FROM Orders WINDOW(length(10))"
	assert.Equal(t, native, RewriteLegacyWindow(native))
}
