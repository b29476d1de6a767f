package parser

import "basic/goerr"

// newSyntaxError builds a positioned syntax error using the shared legacy
// error taxonomy rather than a parser-private error type.
func newSyntaxError(line int32, column int, format string, args ...any) error {
	return goerr.Newf(goerr.SyntaxErrorKind, line, column, format, args...)
}
