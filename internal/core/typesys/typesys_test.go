package typesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/event"
)

func TestArithmeticResult_HigherPrecedenceWins(t *testing.T) {
	r, err := ArithmeticResult("+", TInt32, TDouble)
	require.NoError(t, err)
	assert.Equal(t, TDouble, r)

	r, err = ArithmeticResult("+", TInt64, TFloat)
	require.NoError(t, err)
	assert.Equal(t, TFloat, r)
}

func TestArithmeticResult_RejectsNonNumeric(t *testing.T) {
	_, err := ArithmeticResult("+", TString, TInt32)
	assert.Error(t, err)
}

func TestCanCast(t *testing.T) {
	assert.True(t, CanCast(TString, TInt32))
	assert.True(t, CanCast(TInt32, TInt64))
	assert.True(t, CanCast(TBool, TString))
	assert.True(t, CanCast(TInt64, TBool))
	assert.False(t, CanCast(TBool, TInt32)) // bool -> numeric explicitly rejected
	assert.True(t, CanCast(TObject, TString))
	assert.True(t, CanCast(TString, TString))
}

func TestValidateBooleanClause_SuggestsComparisonForNumeric(t *testing.T) {
	err := ValidateBooleanClause("WHERE", TInt64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHERE")
	assert.Contains(t, err.Error(), "comparison")
}

func TestValidateComparison_BoolOnlyEqNe(t *testing.T) {
	assert.NoError(t, ValidateComparison("==", TBool, TBool))
	assert.Error(t, ValidateComparison("<", TBool, TBool))
	assert.Error(t, ValidateComparison("==", TBool, TInt32))
}

func TestValidateComparison_StringOnlyWithString(t *testing.T) {
	assert.NoError(t, ValidateComparison("==", TString, TString))
	assert.Error(t, ValidateComparison("==", TString, TInt32))
}

func TestValidateComparison_NumericIntermixes(t *testing.T) {
	assert.NoError(t, ValidateComparison("<", TInt32, TDouble))
}

func TestValidateCase_AgreementModuloObject(t *testing.T) {
	r, err := ValidateCase([]Type{TInt64, TObject}, TInt64)
	require.NoError(t, err)
	assert.Equal(t, TInt64, r)

	_, err = ValidateCase([]Type{TInt64}, TString)
	assert.Error(t, err)
}

func TestSqlCatalog_UnqualifiedSearchAndAmbiguity(t *testing.T) {
	c := NewSqlCatalog()
	c.AddStream("orders", &event.StreamDefinition{
		Attributes: []event.Attribute{{Name: "id", Kind: TInt64}, {Name: "amount", Kind: TDouble}},
	})
	c.AddStream("refunds", &event.StreamDefinition{
		Attributes: []event.Attribute{{Name: "id", Kind: TInt64}, {Name: "reason", Kind: TString}},
	})
	c.AddAlias("o", "orders")

	typ, err := c.Resolve("", "amount")
	require.NoError(t, err)
	assert.Equal(t, TDouble, typ)

	_, err = c.Resolve("", "id")
	assert.Error(t, err) // ambiguous: present in both streams

	typ, err = c.Resolve("o", "amount")
	require.NoError(t, err)
	assert.Equal(t, TDouble, typ)
}

func TestDefaultSignatures_Lookup(t *testing.T) {
	r, err := DefaultSignatures.Lookup("avg", []Type{TInt32})
	require.NoError(t, err)
	assert.Equal(t, TDouble, r)

	r, err = DefaultSignatures.Lookup("count", nil)
	require.NoError(t, err)
	assert.Equal(t, TInt64, r)

	_, err = DefaultSignatures.Lookup("sum", []Type{TString})
	assert.Error(t, err)

	_, err = DefaultSignatures.Lookup("nonexistent", nil)
	assert.Error(t, err)
}
