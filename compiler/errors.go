package compiler

import "basic/goerr"

// newError builds a positioned compile-time error using the shared legacy
// error taxonomy, mirroring the parser's own error.go.
func newError(kind goerr.Kind, line int32, format string, args ...any) error {
	return goerr.Newf(kind, line, 0, format, args...)
}
