package semantic

import "basic/goerr"

// newError builds a positioned semantic error using the shared legacy
// error taxonomy, the same pattern parser.newSyntaxError and
// compiler.newError follow.
func newError(kind goerr.Kind, line int32, column int, format string, args ...any) error {
	return goerr.Newf(kind, line, column, format, args...)
}

// semanticError is the panic payload Analyzer.fail raises to unwind to
// Analyze once the first error is found — the semantic analyzer "aborts on
// the first error" per spec §7's propagation policy, unlike the compiler's
// resynchronize-and-continue.
type semanticError struct{ err error }
