package vm

import "basic/goerr"

// RuntimeError wraps the shared legacy error taxonomy for a failure raised
// while executing bytecode, keeping the VM's callers able to type-switch on
// a vm-scoped error the way the teacher's tests switch on its RuntimeError.
type RuntimeError struct {
	Err goerr.Error
}

func (e RuntimeError) Error() string { return e.Err.Error() }

func newRuntimeError(kind goerr.Kind, line int32, format string, args ...any) RuntimeError {
	return RuntimeError{Err: goerr.Newf(kind, line, 0, format, args...)}
}

// ErrReturnWithoutGosub, ErrResumeWithoutError, etc. are not sentinel
// values: every raised error carries the faulting line, so each call site
// builds its own RuntimeError via newRuntimeError instead.
