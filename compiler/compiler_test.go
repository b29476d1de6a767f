package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"basic/bytecode"
	"basic/lexer"
	"basic/parser"
)

// compile lexes, parses, and compiles source, failing the test if lexing or
// parsing errors (those are exercised by their own packages' tests).
func compile(t *testing.T, source string) (*bytecode.Image, []error) {
	t.Helper()
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	require.NoError(t, err)

	p := parser.New(tokens)
	program, parseErrs := p.Parse()
	require.Empty(t, parseErrs)

	return Compile(program)
}

func TestCompilesArithmeticExpression(t *testing.T) {
	image, errs := compile(t, `PRINT 2 + 3 * 4`)
	require.Empty(t, errs)
	dis := bytecode.Disassemble(image.Instructions)
	require.Contains(t, dis, "OpMul")
	require.Contains(t, dis, "OpAdd")
	require.Contains(t, dis, "OpPrint")
	require.Contains(t, dis, "OpEnd")
}

func TestCompilesForLoopWithJumps(t *testing.T) {
	image, errs := compile(t, `
FOR I = 1 TO 5
PRINT I
NEXT I
`)
	require.Empty(t, errs)
	dis := bytecode.Disassemble(image.Instructions)
	require.Contains(t, dis, "OpJumpIfFalse")
	require.Contains(t, dis, "OpJump")
}

func TestCompilesDataPoolInSourceOrder(t *testing.T) {
	image, errs := compile(t, `
DATA 1, 2, 3
READ A
`)
	require.Empty(t, errs)
	require.Len(t, image.DataPool, 3)
	require.Equal(t, 1.0, image.DataPool[0].AsDouble())
	require.Equal(t, 2.0, image.DataPool[1].AsDouble())
	require.Equal(t, 3.0, image.DataPool[2].AsDouble())
}

func TestCompilesProcedureTable(t *testing.T) {
	image, errs := compile(t, `
PRINT DOUBLE(21)
END
FUNCTION DOUBLE(N)
DOUBLE = N * 2
END FUNCTION
`)
	require.Empty(t, errs)
	require.Len(t, image.Procedures, 1)
	require.Equal(t, "DOUBLE", image.Procedures[0].Name)
	require.True(t, image.Procedures[0].IsFunction)
}

func TestGotoUndefinedLabelIsAnError(t *testing.T) {
	_, errs := compile(t, `GOTO NOWHERE`)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "NOWHERE") {
			found = true
		}
	}
	require.True(t, found)
}

func TestExitForOutsideLoopIsAnError(t *testing.T) {
	_, errs := compile(t, `EXIT FOR`)
	require.NotEmpty(t, errs)
}

func TestResyncsPastOneBadStatementAndKeepsCompiling(t *testing.T) {
	// GOTO to an undefined label fails but should not prevent the rest of
	// the program from compiling, per the compiler's resync-and-continue
	// propagation policy (distinct from the semantic analyzer's abort).
	image, errs := compile(t, `
GOTO NOWHERE
PRINT "still compiled"
`)
	require.NotEmpty(t, errs)
	dis := bytecode.Disassemble(image.Instructions)
	require.Contains(t, dis, "OpPrint")
}

func TestOnErrorGotoEmitsHandlerOpcode(t *testing.T) {
	image, errs := compile(t, `
ON ERROR GOTO HANDLER
PRINT "x"
END
HANDLER:
RESUME NEXT
`)
	require.Empty(t, errs)
	dis := bytecode.Disassemble(image.Instructions)
	require.Contains(t, dis, "OpOnErrorGoto")
	require.Contains(t, dis, "OpResumeNext")
}

func TestSwapEmitsBothStores(t *testing.T) {
	image, errs := compile(t, `
A = 1
B = 2
SWAP A, B
`)
	require.Empty(t, errs)
	dis := bytecode.Disassemble(image.Instructions)
	require.Equal(t, 4, strings.Count(dis, "OpStoreVar"))
}

func TestRoundTripsThroughImageEncodeDecode(t *testing.T) {
	image, errs := compile(t, `
DIM A(3)
FOR I = 0 TO 3
A(I) = I * I
NEXT I
PRINT A(2)
`)
	require.Empty(t, errs)

	data := image.Encode()

	decoded, err := bytecode.Decode(data)
	require.NoError(t, err)
	require.Equal(t, image.Instructions, decoded.Instructions)
	require.Equal(t, image.Constants, decoded.Constants)
}
