package translate

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/query"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// NormalizeJoin validates and converts a parsed JoinClause: plain JOIN
// already arrives as ast.Inner (the external grammar is expected to resolve
// "JOIN" to Inner itself), LEFT/RIGHT/FULL OUTER and CROSS pass through.
// ON is required for every join type except Cross.
func NormalizeJoin(j *ast.JoinClause) (*query.JoinInputIR, error) {
	if j.Type != ast.Cross && j.On == nil {
		return nil, errs.New("translate.NormalizeJoin", errs.Configuration,
			fmt.Errorf("JOIN requires an ON clause"))
	}
	if j.Type == ast.Cross && j.On != nil {
		return nil, errs.New("translate.NormalizeJoin", errs.Configuration,
			fmt.Errorf("CROSS JOIN does not accept an ON clause"))
	}
	return &query.JoinInputIR{
		Left:  query.SingleInputIR{Stream: j.Left.Stream, Alias: j.Left.Alias},
		Right: query.SingleInputIR{Stream: j.Right.Stream, Alias: j.Right.Alias},
		Type:  j.Type,
		On:    j.On,
	}, nil
}
