package translate

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/query"
	"github.com/eventflux-io/engine/internal/core/typesys"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// Translate converts a parsed SelectStatement into a query.IR, performing
// window mapping, JOIN normalization (type-checking the ON clause), pattern
// validation, and finally type validation of the WHERE and HAVING clauses
// against catalog; projections are not type-checked. A type failure aborts
// compilation even if every earlier stage succeeded.
func Translate(stmt *ast.SelectStatement, catalog *typesys.SqlCatalog) (*query.IR, error) {
	input, err := translateInput(stmt.From, stmt.Window, catalog)
	if err != nil {
		return nil, err
	}

	ir := &query.IR{
		Input: *input,
		Selector: query.SelectorIR{
			Projections: stmt.Select.Projections,
			GroupBy:     stmt.Select.GroupBy,
			Having:      stmt.Select.Having,
			OrderBy:     stmt.Select.OrderBy,
			Limit:       stmt.Select.Limit,
			Offset:      stmt.Select.Offset,
		},
	}
	if stmt.Into != nil {
		ir.Output = query.OutputStreamIR{Stream: stmt.Into.Stream, Action: stmt.Into.Action}
	}

	if stmt.Where != nil {
		t, err := inferExprType(stmt.Where, catalog)
		if err != nil {
			return nil, err
		}
		if err := typesys.ValidateBooleanClause("WHERE", t); err != nil {
			return nil, err
		}
		ir.Where = stmt.Where
	}

	if stmt.Select.Having != nil {
		t, err := inferExprType(stmt.Select.Having, catalog)
		if err != nil {
			return nil, err
		}
		if err := typesys.ValidateBooleanClause("HAVING", t); err != nil {
			return nil, err
		}
	}

	return ir, nil
}

// TranslatePartition compiles every inner query of a PARTITION (...) WITH
// (...) block against the same catalog, independently, per spec.md §6's
// "each inner query runs once per distinct partition key value" semantics.
// A failure in any one query aborts the whole partition, matching Translate's
// own compile-time-abort policy for a single query.
func TranslatePartition(stmt *ast.PartitionStatement, catalog *typesys.SqlCatalog) (*query.PartitionIR, error) {
	if len(stmt.Keys) == 0 {
		return nil, errs.New("translate.TranslatePartition", errs.Configuration,
			fmt.Errorf("PARTITION requires at least one key OF stream binding"))
	}
	keys := make([]query.PartitionKeyIR, len(stmt.Keys))
	for i, k := range stmt.Keys {
		if _, err := inferExprType(k.Key, catalog); err != nil {
			return nil, err
		}
		keys[i] = query.PartitionKeyIR{Key: k.Key, Stream: k.Stream}
	}
	queries := make([]*query.IR, len(stmt.Queries))
	for i := range stmt.Queries {
		ir, err := Translate(&stmt.Queries[i], catalog)
		if err != nil {
			return nil, fmt.Errorf("partition query %d: %w", i, err)
		}
		queries[i] = ir
	}
	return &query.PartitionIR{Keys: keys, Queries: queries}, nil
}

func translateInput(in ast.InputStream, window *ast.StreamingWindowSpec, catalog *typesys.SqlCatalog) (*query.InputStreamIR, error) {
	switch {
	case in.Single != nil:
		w, err := TranslateWindow(window)
		if err != nil {
			return nil, err
		}
		return &query.InputStreamIR{
			Kind: query.InputSingle,
			Single: &query.SingleInputIR{
				Stream: in.Single.Stream,
				Alias:  in.Single.Alias,
				Window: w,
			},
		}, nil

	case in.Join != nil:
		if err := validateWhereClause(in.Join.On, catalog); err != nil {
			return nil, err
		}
		j, err := NormalizeJoin(in.Join)
		if err != nil {
			return nil, err
		}
		return &query.InputStreamIR{Kind: query.InputJoin, Join: j}, nil

	case in.Pattern != nil:
		if err := ValidatePattern(in.Pattern); err != nil {
			return nil, err
		}
		return &query.InputStreamIR{Kind: query.InputPattern, Pattern: in.Pattern}, nil

	default:
		return nil, errs.New("translate.translateInput", errs.Configuration,
			fmt.Errorf("input stream has no single, join, or pattern form"))
	}
}

func validateWhereClause(expr ast.Expr, catalog *typesys.SqlCatalog) error {
	if expr == nil {
		return nil
	}
	t, err := inferExprType(expr, catalog)
	if err != nil {
		return err
	}
	return typesys.ValidateBooleanClause("JOIN ON", t)
}

// inferExprType walks an expression tree computing its result type, using
// catalog for column lookups and typesys.DefaultSignatures for calls.
func inferExprType(e ast.Expr, catalog *typesys.SqlCatalog) (typesys.Type, error) {
	switch expr := e.(type) {
	case *ast.Literal:
		return expr.Kind, nil

	case *ast.ColumnRef:
		return catalog.Resolve(expr.Qualifier, expr.Column)

	case *ast.BinaryOp:
		lt, err := inferExprType(expr.Left, catalog)
		if err != nil {
			return 0, err
		}
		rt, err := inferExprType(expr.Right, catalog)
		if err != nil {
			return 0, err
		}
		if isComparisonOp(expr.Op) {
			if err := typesys.ValidateComparison(expr.Op, lt, rt); err != nil {
				return 0, err
			}
			return typesys.TBool, nil
		}
		return typesys.ArithmeticResult(expr.Op, lt, rt)

	case *ast.LogicalOp:
		lt, err := inferExprType(expr.Left, catalog)
		if err != nil {
			return 0, err
		}
		if err := typesys.ValidateLogicalOperand(expr.Op, lt); err != nil {
			return 0, err
		}
		rt, err := inferExprType(expr.Right, catalog)
		if err != nil {
			return 0, err
		}
		if err := typesys.ValidateLogicalOperand(expr.Op, rt); err != nil {
			return 0, err
		}
		return typesys.TBool, nil

	case *ast.NotOp:
		t, err := inferExprType(expr.Operand, catalog)
		if err != nil {
			return 0, err
		}
		if err := typesys.ValidateLogicalOperand("NOT", t); err != nil {
			return 0, err
		}
		return typesys.TBool, nil

	case *ast.CallExpr:
		argTypes := make([]typesys.Type, len(expr.Args))
		for i, a := range expr.Args {
			t, err := inferExprType(a, catalog)
			if err != nil {
				return 0, err
			}
			argTypes[i] = t
		}
		return typesys.DefaultSignatures.Lookup(expr.Name, argTypes)

	case *ast.CaseExpr:
		whenTypes := make([]typesys.Type, len(expr.Whens))
		for i, w := range expr.Whens {
			ct, err := inferExprType(w.Cond, catalog)
			if err != nil {
				return 0, err
			}
			if err := typesys.ValidateBooleanClause("CASE WHEN", ct); err != nil {
				return 0, err
			}
			rt, err := inferExprType(w.Result, catalog)
			if err != nil {
				return 0, err
			}
			whenTypes[i] = rt
		}
		elseType := typesys.TObject
		if expr.Else != nil {
			t, err := inferExprType(expr.Else, catalog)
			if err != nil {
				return 0, err
			}
			elseType = t
		}
		return typesys.ValidateCase(whenTypes, elseType)

	case *ast.CastExpr:
		from, err := inferExprType(expr.Operand, catalog)
		if err != nil {
			return 0, err
		}
		if err := typesys.ValidateCast("CAST", from, expr.To); err != nil {
			return 0, err
		}
		return expr.To, nil

	default:
		return 0, errs.New("translate.inferExprType", errs.Configuration,
			fmt.Errorf("unhandled expression type %T", e))
	}
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	default:
		return false
	}
}
