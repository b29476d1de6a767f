package basic

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"basic/vm"
)

func runSource(t *testing.T, source string) string {
	t.Helper()
	image, errs := Compile(source)
	require.Empty(t, errs)

	var out bytes.Buffer
	v := vm.New(image, vm.DefaultLimits(), &out, strings.NewReader(""))
	require.NoError(t, v.Run())
	return out.String()
}

func TestPipelineRunsHelloWorld(t *testing.T) {
	require.Equal(t, "Hello, World!\n", runSource(t, `PRINT "Hello, World!"`))
}

func TestPipelineRunsForLoopAccumulation(t *testing.T) {
	out := runSource(t, `
10 TOTAL = 0
20 FOR I = 1 TO 5
30 TOTAL = TOTAL + I
40 NEXT I
50 PRINT TOTAL
`)
	require.Equal(t, " 15 \n", out)
}

func TestPipelineRunsUserFunction(t *testing.T) {
	out := runSource(t, `
PRINT DOUBLE(21)
END
FUNCTION DOUBLE(N)
DOUBLE = N * 2
END FUNCTION
`)
	require.Equal(t, " 42 \n", out)
}

func TestPipelineStopsAtSemanticErrorBeforeCompiling(t *testing.T) {
	_, errs := Compile(`
X% = "this is a string, not a number"
`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "cannot assign")
}

func TestPipelineStopsAtParseErrorBeforeSemanticAnalysis(t *testing.T) {
	_, errs := Compile(`
IF X THEN
`)
	require.NotEmpty(t, errs)
}
