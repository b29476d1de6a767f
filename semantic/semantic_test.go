package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"basic/lexer"
	"basic/parser"
)

func check(t *testing.T, source string) []error {
	t.Helper()
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	require.NoError(t, err)

	p := parser.New(tokens)
	program, parseErrs := p.Parse()
	require.Empty(t, parseErrs)

	return Analyze(program)
}

func TestCleanProgramsPassUnchallenged(t *testing.T) {
	sources := []string{
		`PRINT "Hello, World!"`,
		`
TOTAL = 0
FOR I = 1 TO 5
TOTAL = TOTAL + I
NEXT I
PRINT TOTAL
`,
		`
DIM A(2, 2)
FOR I = 0 TO 2
FOR J = 0 TO 2
A(I, J) = I * 3 + J
NEXT J
NEXT I
PRINT A(1, 2)
`,
		`PRINT "n=" + STR$(5)`,
		`
DIM A(2 TO 7)
PRINT LBOUND(A)
PRINT UBOUND(A)
`,
	}
	for _, src := range sources {
		errs := check(t, src)
		require.Empty(t, errs, "source: %s", src)
	}
}

func TestAssigningStringToNumericIsTypeMismatch(t *testing.T) {
	errs := check(t, `
X% = "hello"
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "cannot assign")
}

func TestAssigningNumericToStringIsTypeMismatch(t *testing.T) {
	errs := check(t, `
NAME$ = 5
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "cannot assign")
}

func TestNumericPromotionAcrossSuffixesIsAllowed(t *testing.T) {
	errs := check(t, `
A% = 1
B! = 2.5
C# = A% + B!
`)
	require.Empty(t, errs)
}

func TestDefIntPinsDefaultTypeForBareIdentifiers(t *testing.T) {
	errs := check(t, `
DEFINT A-C
A = 1
B$ = "shouldn't matter, explicit suffix wins"
C = A + 1
`)
	require.Empty(t, errs)
}

func TestDefIntDoesNotOverrideExplicitSuffix(t *testing.T) {
	errs := check(t, `
DEFSTR N
N$ = "explicit string suffix still wins"
`)
	require.Empty(t, errs)
}

func TestStringConcatenationOfTwoStringsStaysString(t *testing.T) {
	errs := check(t, `
A$ = "foo"
B$ = "bar"
C$ = A$ + B$
`)
	require.Empty(t, errs)
}

func TestBinaryArithmeticOnStringOperandIsTypeMismatch(t *testing.T) {
	errs := check(t, `
A$ = "foo"
B = A$ - 1
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "requires numeric operands")
}

func TestForLoopBoundMustBeNumeric(t *testing.T) {
	errs := check(t, `
FOR I = "a" TO 5
NEXT I
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "FOR bound must be numeric")
}

func TestFunctionArityMismatchIsRejected(t *testing.T) {
	errs := check(t, `
PRINT DOUBLE(1, 2)
END
FUNCTION DOUBLE(N)
DOUBLE = N * 2
END FUNCTION
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "expects 1 argument")
}

func TestFunctionCorrectArityIsAccepted(t *testing.T) {
	errs := check(t, `
PRINT DOUBLE(21)
END
FUNCTION DOUBLE(N)
DOUBLE = N * 2
END FUNCTION
`)
	require.Empty(t, errs)
}

func TestRecordFieldAccessMustNameARealField(t *testing.T) {
	errs := check(t, `
TYPE POINT
X AS INTEGER
Y AS INTEGER
END TYPE
DIM P AS POINT
PRINT P.Z
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "no field")
}

func TestRecordFieldAccessOfRealFieldIsAccepted(t *testing.T) {
	errs := check(t, `
TYPE POINT
X AS INTEGER
Y AS INTEGER
END TYPE
DIM P AS POINT
PRINT P.X
`)
	require.Empty(t, errs)
}

func TestAnalyzerAbortsOnTheFirstError(t *testing.T) {
	// Two independent type errors; only the first should be reported,
	// per spec's abort-on-first-error propagation policy for this pass.
	errs := check(t, `
X% = "first error"
Y% = "second error, never reached"
`)
	require.Len(t, errs, 1)
}

func TestSelectCaseArmTypeMustMatchSelector(t *testing.T) {
	errs := check(t, `
X$ = "a"
SELECT CASE X$
CASE 1
PRINT "numeric arm on a string selector"
END SELECT
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "incompatible")
}

func TestSwapRequiresCompatibleTypes(t *testing.T) {
	errs := check(t, `
A% = 1
B$ = "x"
SWAP A%, B$
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "SWAP")
}

func TestDimAsUnsignedTypeNamesAreAccepted(t *testing.T) {
	errs := check(t, `
DIM A AS _UNSIGNED INTEGER
DIM B AS _UNSIGNED LONG
DIM C AS _UNSIGNED _INTEGER64
`)
	require.Empty(t, errs)
}
