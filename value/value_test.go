package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddPromotesToTheWiderOperand(t *testing.T) {
	sum, err := Add(Integer(1), Double(2.5))
	require.NoError(t, err)
	require.Equal(t, KindDouble, sum.Kind)
	require.Equal(t, 3.5, sum.F64)
}

func TestAddWithEitherStringOperandConcatenates(t *testing.T) {
	sum, err := Add(Str("n="), Integer(5))
	require.NoError(t, err)
	require.Equal(t, KindString, sum.Kind)
	require.Equal(t, "n= 5 ", sum.Str)
}

func TestIntegerAdditionWrapsOnOverflow(t *testing.T) {
	sum, err := Add(Integer(32767), Integer(1))
	require.NoError(t, err)
	require.Equal(t, KindInteger, sum.Kind)
	require.Equal(t, int16(-32768), sum.I16)
}

func TestDivByZeroIsTheSharedSentinel(t *testing.T) {
	_, err := Div(Integer(1), Integer(0))
	require.True(t, IsDivisionByZero(err))

	_, err = IntDiv(Integer(1), Integer(0))
	require.True(t, IsDivisionByZero(err))

	_, err = Mod(Integer(1), Integer(0))
	require.True(t, IsDivisionByZero(err))
}

func TestDivAlwaysProducesADouble(t *testing.T) {
	q, err := Div(Long(7), Long(2))
	require.NoError(t, err)
	require.Equal(t, KindDouble, q.Kind)
	require.Equal(t, 3.5, q.F64)
}

func TestIntDivTruncatesToLong(t *testing.T) {
	q, err := IntDiv(Long(7), Long(2))
	require.NoError(t, err)
	require.Equal(t, KindLong, q.Kind)
	require.Equal(t, int32(3), q.I32)
}

func TestCompareStringsIsLexicographic(t *testing.T) {
	cmp, err := Compare(Str("abc"), Str("abd"))
	require.NoError(t, err)
	require.Equal(t, -1, cmp)
}

func TestCompareNumericUsesEpsilon(t *testing.T) {
	cmp, err := Compare(Double(1.0), Single(1.0))
	require.NoError(t, err)
	require.Equal(t, 0, cmp)
}

func TestCompareMixedStringAndNumericIsTypeMismatch(t *testing.T) {
	_, err := Compare(Str("1"), Integer(1))
	require.True(t, IsTypeMismatch(err))
}

func TestNegWrapsAtTheIntegerBoundary(t *testing.T) {
	n, err := Neg(Integer(-32768))
	require.NoError(t, err)
	require.Equal(t, int16(-32768), n.I16)
}

func TestBoolUsesLegacyIntegerEncoding(t *testing.T) {
	require.Equal(t, Integer(-1), Bool(true))
	require.Equal(t, Integer(0), Bool(false))
}

func TestTruthyMatchesLegacyRules(t *testing.T) {
	require.True(t, Integer(-1).Truthy())
	require.False(t, Integer(0).Truthy())
	require.True(t, Str("x").Truthy())
	require.False(t, Str("").Truthy())
}

func TestDisplayFormatsNonNegativeNumbersWithLeadingAndTrailingSpace(t *testing.T) {
	require.Equal(t, " 5 ", Integer(5).Display())
	require.Equal(t, "-5 ", Integer(-5).Display())
}

func TestDisplayOfStringIsUnpadded(t *testing.T) {
	require.Equal(t, "hello", Str("hello").Display())
}

func TestDisplayOfRecordJoinsFieldsWithASpace(t *testing.T) {
	r := Record("POINT", []Field{
		{Name: "X", Value: Integer(1)},
		{Name: "Y", Value: Integer(2)},
	})
	require.Equal(t, " 1   2 ", r.Display())
}

func TestBitwiseOperatorsWidenToTheWiderOperand(t *testing.T) {
	r := BitAnd(Integer(6), Long(3))
	require.Equal(t, KindLong, r.Kind)
	require.Equal(t, int32(2), r.I32)
}

func TestIsNumericAndIsStringAreMutuallyExclusive(t *testing.T) {
	require.True(t, Integer(0).IsNumeric())
	require.False(t, Integer(0).IsString())
	require.True(t, Str("").IsString())
	require.False(t, Str("").IsNumeric())
	require.True(t, FixedString(10, "x").IsString())
}
