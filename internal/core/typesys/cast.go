package typesys

import (
	"fmt"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// castPair identifies a directed (from, to) cast.
type castPair struct {
	from, to Type
}

// permittedCasts enumerates every directed cast the engine allows, beyond
// same-type no-ops and Object/Null passthroughs which are handled in
// CanCast directly.
var permittedCasts = map[castPair]bool{
	// string <-> numeric
	{TString, TInt32}: true, {TString, TInt64}: true,
	{TString, TFloat}: true, {TString, TDouble}: true,
	{TInt32, TString}: true, {TInt64, TString}: true,
	{TFloat, TString}: true, {TDouble, TString}: true,

	// numeric widening/narrowing, all pairs among the four numeric kinds
	{TInt32, TInt64}: true, {TInt64, TInt32}: true,
	{TInt32, TFloat}: true, {TFloat, TInt32}: true,
	{TInt32, TDouble}: true, {TDouble, TInt32}: true,
	{TInt64, TFloat}: true, {TFloat, TInt64}: true,
	{TInt64, TDouble}: true, {TDouble, TInt64}: true,
	{TFloat, TDouble}: true, {TDouble, TFloat}: true,

	// bool -> string
	{TBool, TString}: true,

	// int|long -> bool
	{TInt32, TBool}: true, {TInt64, TBool}: true,
}

// CanCast reports whether a value of type from may be cast to type to.
func CanCast(from, to Type) bool {
	if from == to {
		return true
	}
	if from == TObject || to == TObject {
		return true
	}
	return permittedCasts[castPair{from, to}]
}

// ValidateCast returns a *errs.TypeError if the cast is not permitted.
// Bool -> numeric is explicitly rejected even though int|long -> bool is
// permitted: the conversion is not symmetric.
func ValidateCast(clause string, from, to Type) error {
	if CanCast(from, to) {
		return nil
	}
	return errs.NewType("typesys.ValidateCast", clause,
		fmt.Errorf("cannot cast %s to %s", from, to))
}
