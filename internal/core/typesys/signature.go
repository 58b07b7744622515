package typesys

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// ReturnTypeFn computes a function call's result type from its argument
// types, or a type error.
type ReturnTypeFn func(args []Type) (Type, error)

// Signature describes one callable: an aggregator (§4.F) or a scalar
// function available to the translator (§4.E). Stored in a flat table
// rather than a map so the zero-allocation lookup spec.md §4.D calls for
// is a linear scan over a small, static slice.
type Signature struct {
	Name       string
	MinArgs    int
	ReturnType ReturnTypeFn
}

// SignatureTable is a read-only, order-independent set of signatures.
type SignatureTable []Signature

// Lookup finds name and validates MinArgs before delegating to ReturnType.
func (t SignatureTable) Lookup(name string, args []Type) (Type, error) {
	for _, sig := range t {
		if sig.Name != name {
			continue
		}
		if len(args) < sig.MinArgs {
			return 0, errs.NewType("typesys.Lookup", name,
				fmt.Errorf("%s requires at least %d argument(s), got %d", name, sig.MinArgs, len(args)))
		}
		return sig.ReturnType(args)
	}
	return 0, errs.NewType("typesys.Lookup", name, fmt.Errorf("unknown function %q", name))
}

func sameTypeNumeric(name string) ReturnTypeFn {
	return func(args []Type) (Type, error) {
		if !IsNumeric(args[0]) {
			return 0, errs.NewType("typesys."+name, name,
				fmt.Errorf("%s requires a numeric argument, got %s", name, args[0]))
		}
		return args[0], nil
	}
}

// DefaultSignatures is the built-in aggregator and scalar function table
// (§4.F's sum/avg/count/min/max/distinctCount/stdDev, plus coalesce/cast/
// length used by the translator).
var DefaultSignatures = SignatureTable{
	{Name: "sum", MinArgs: 1, ReturnType: sameTypeNumeric("sum")},
	{Name: "min", MinArgs: 1, ReturnType: sameTypeNumeric("min")},
	{Name: "max", MinArgs: 1, ReturnType: sameTypeNumeric("max")},
	{Name: "avg", MinArgs: 1, ReturnType: func(args []Type) (Type, error) {
		if !IsNumeric(args[0]) {
			return 0, errs.NewType("typesys.avg", "avg",
				fmt.Errorf("avg requires a numeric argument, got %s", args[0]))
		}
		return TDouble, nil
	}},
	{Name: "stdDev", MinArgs: 1, ReturnType: func(args []Type) (Type, error) {
		if !IsNumeric(args[0]) {
			return 0, errs.NewType("typesys.stdDev", "stdDev",
				fmt.Errorf("stdDev requires a numeric argument, got %s", args[0]))
		}
		return TDouble, nil
	}},
	{Name: "count", MinArgs: 0, ReturnType: func(args []Type) (Type, error) {
		return TInt64, nil
	}},
	{Name: "distinctCount", MinArgs: 1, ReturnType: func(args []Type) (Type, error) {
		return TInt64, nil
	}},
	{Name: "coalesce", MinArgs: 1, ReturnType: func(args []Type) (Type, error) {
		result := args[0]
		for _, a := range args[1:] {
			if a == TObject {
				continue
			}
			if result == TObject {
				result = a
				continue
			}
			if result != a {
				return 0, errs.NewType("typesys.coalesce", "coalesce",
					fmt.Errorf("coalesce arguments disagree: %s vs %s", result, a))
			}
		}
		return result, nil
	}},
	{Name: "length", MinArgs: 1, ReturnType: func(args []Type) (Type, error) {
		if args[0] != TString && args[0] != TBytes {
			return 0, errs.NewType("typesys.length", "length",
				fmt.Errorf("length requires a string or bytes argument, got %s", args[0]))
		}
		return TInt64, nil
	}},
}
