package translate

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/query"
	"github.com/eventflux-io/engine/internal/sql/ast"
)

// TranslateWindow maps a parsed StreamingWindowSpec onto a WindowIR,
// resolving interval literals to time.Duration along the way.
func TranslateWindow(spec *ast.StreamingWindowSpec) (*query.WindowIR, error) {
	if spec == nil {
		return nil, nil
	}
	w := &query.WindowIR{
		Kind:           spec.Kind,
		Size:           spec.Size,
		SlideSize:      spec.SlideSize,
		TimestampField: spec.TimestampField,
		SortAttribute:  spec.SortAttribute,
		SortAscending:  spec.SortAscending,
	}
	switch spec.Kind {
	case ast.WindowTumbling, ast.WindowTimeBatch, ast.WindowTime, ast.WindowExternalTimeBatch:
		d, err := IntervalToDuration(spec.Duration)
		if err != nil {
			return nil, err
		}
		w.Duration = d
	case ast.WindowExternalTime:
		d, err := IntervalToDuration(spec.Duration)
		if err != nil {
			return nil, err
		}
		w.Duration = d
	case ast.WindowSession:
		g, err := IntervalToDuration(spec.Gap)
		if err != nil {
			return nil, err
		}
		w.Gap = g
	case ast.WindowLength, ast.WindowLengthBatch:
		if spec.Size <= 0 {
			return nil, errs.New("translate.TranslateWindow", errs.Configuration,
				fmt.Errorf("window size must be positive, got %d", spec.Size))
		}
	case ast.WindowSort:
		if spec.Size <= 0 {
			return nil, errs.New("translate.TranslateWindow", errs.Configuration,
				fmt.Errorf("sort window size must be positive, got %d", spec.Size))
		}
		if spec.SortAttribute == "" {
			return nil, errs.New("translate.TranslateWindow", errs.Configuration,
				fmt.Errorf("sort window requires an attribute to sort on"))
		}
	case ast.WindowSliding:
		return nil, errs.New("translate.TranslateWindow", errs.Configuration,
			fmt.Errorf("sliding window is reserved and not yet implemented"))
	default:
		return nil, errs.New("translate.TranslateWindow", errs.Configuration,
			fmt.Errorf("unknown window kind %d", spec.Kind))
	}
	return w, nil
}
