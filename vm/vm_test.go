package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"basic/compiler"
	"basic/lexer"
	"basic/parser"
)

func TestPrintHelloWorld(t *testing.T) {
	out := run(t, `PRINT "Hello, World!"`, "")
	require.Equal(t, "Hello, World!\n", out)
}

func TestForLoopAccumulates(t *testing.T) {
	out := run(t, `
10 TOTAL = 0
20 FOR I = 1 TO 5
30 TOTAL = TOTAL + I
40 NEXT I
50 PRINT TOTAL
`, "")
	require.Equal(t, " 15 \n", out)
}

func TestNegativeStepForLoop(t *testing.T) {
	out := run(t, `
FOR I = 5 TO 1 STEP -1
PRINT I;
NEXT I
`, "")
	require.Equal(t, " 5  4  3  2  1 ", out)
}

func TestSingleLineIfElse(t *testing.T) {
	out := run(t, `
X = 10
IF X > 5 THEN PRINT "big" ELSE PRINT "small"
`, "")
	require.Equal(t, "big\n", out)
}

func TestDataReadRestore(t *testing.T) {
	out := run(t, `
DATA 1, 2, 3
READ A
READ B
READ C
PRINT A + B + C
RESTORE
READ D
PRINT D
`, "")
	require.Equal(t, " 6 \n 1 \n", out)
}

func TestTwoDimensionalArray(t *testing.T) {
	out := run(t, `
DIM A(2, 2)
FOR I = 0 TO 2
FOR J = 0 TO 2
A(I, J) = I * 3 + J
NEXT J
NEXT I
PRINT A(1, 2)
`, "")
	require.Equal(t, " 5 \n", out)
}

func TestPowerOperatorIsRightAssociative(t *testing.T) {
	// 2 ^ 3 ^ 2 == 2 ^ (3 ^ 2) == 512, not (2 ^ 3) ^ 2 == 64.
	out := run(t, `PRINT 2 ^ 3 ^ 2`, "")
	require.Equal(t, " 512 \n", out)
}

func TestIntegerAdditionWraps(t *testing.T) {
	out := run(t, `
A% = 32767
A% = A% + 1
PRINT A%
`, "")
	require.Equal(t, "-32768 \n", out)
}

func TestStringConcatenationCoercion(t *testing.T) {
	out := run(t, `PRINT "n=" + STR$(5)`, "")
	require.Equal(t, "n= 5 \n", out)
}

func TestSelectCaseMixedArms(t *testing.T) {
	out := run(t, `
FOR X = 1 TO 4
SELECT CASE X
CASE 1
PRINT "one"
CASE 2, 3
PRINT "two-or-three"
CASE ELSE
PRINT "other"
END SELECT
NEXT X
`, "")
	require.Equal(t, "one\ntwo-or-three\ntwo-or-three\nother\n", out)
}

func TestNestedGosubReturn(t *testing.T) {
	out := run(t, `
GOSUB OUTER
PRINT "done"
END
OUTER:
PRINT "outer-start"
GOSUB INNER
PRINT "outer-end"
RETURN
INNER:
PRINT "inner"
RETURN
`, "")
	require.Equal(t, "outer-start\ninner\nouter-end\ndone\n", out)
}

func TestDivisionByZeroRaisesRuntimeError(t *testing.T) {
	var errBuf bytes.Buffer
	v := buildVM(t, `
X = 1 / 0
PRINT "unreachable"
`, &errBuf)
	err := v.Run()
	require.NoError(t, err)
	require.Contains(t, errBuf.String(), "Division by zero")
}

func TestOnErrorGotoHandlesAndResumesNext(t *testing.T) {
	out := run(t, `
ON ERROR GOTO HANDLER
X = 1 / 0
PRINT "after"
END
HANDLER:
PRINT "caught"
RESUME NEXT
`, "")
	require.Equal(t, "caught\nafter\n", out)
}

func TestArraySubscriptOutOfRangeErrors(t *testing.T) {
	var errBuf bytes.Buffer
	v := buildVM(t, `
DIM A(3)
A(10) = 1
`, &errBuf)
	err := v.Run()
	require.NoError(t, err)
	require.Contains(t, errBuf.String(), "Subscript out of range")
}

func TestUserFunctionReturnsValue(t *testing.T) {
	out := run(t, `
PRINT DOUBLE(21)
END
FUNCTION DOUBLE(N)
DOUBLE = N * 2
END FUNCTION
`, "")
	require.Equal(t, " 42 \n", out)
}

func TestExitFunctionUnwindsScopeAndReturnsValue(t *testing.T) {
	out := run(t, `
PRINT FIRSTPOS(5)
END
FUNCTION FIRSTPOS(N)
IF N > 0 THEN
FIRSTPOS = 1
EXIT FUNCTION
END IF
FIRSTPOS = 0
END FUNCTION
`, "")
	require.Equal(t, " 1 \n", out)
}

func TestLboundUbound(t *testing.T) {
	out := run(t, `
DIM A(2 TO 7)
PRINT LBOUND(A)
PRINT UBOUND(A)
`, "")
	require.Equal(t, " 2 \n 7 \n", out)
}

// run compiles and executes source, returning everything written to stdout.
func run(t *testing.T, source, stdin string) string {
	t.Helper()
	var out bytes.Buffer
	v := buildVM(t, source, &out)
	err := v.Run()
	require.NoError(t, err)
	return out.String()
}

func buildVM(t *testing.T, source string, out *bytes.Buffer) *VM {
	t.Helper()
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	require.NoError(t, err)

	p := parser.New(tokens)
	program, parseErrs := p.Parse()
	require.Empty(t, parseErrs)

	image, compileErrs := compiler.Compile(program)
	require.Empty(t, compileErrs)

	v := New(image, DefaultLimits(), out, strings.NewReader(""))
	v.errOut = out
	return v
}
