package common

import (
	"golang.org/x/xerrors"
)

var (
	ErrInvalidAddress       = xerrors.New("invalid address")
	ErrInvalidInput         = xerrors.New("invalid input")
	ErrConflict             = xerrors.New("conflict")
	ErrDuplicate            = xerrors.New("duplicate")
	ErrNotAnOwner           = xerrors.New("not an owner")
	ErrUnknownAccount       = xerrors.New("unknown account")
	ErrNotFound             = xerrors.New("not found")
	ErrInvalidTransition    = xerrors.New("invalid transition")
	ErrMessageMismatch      = xerrors.New("message mismatch")
	ErrExecutionFailed      = xerrors.New("execution failed")
	ErrChainUnavailable     = xerrors.New("chain unavailable")
	ErrUnsupportedOperation = xerrors.New("unsupported operation")
)

// ExecutionFailed wraps a chain read or submit error. The result matches both
// ErrExecutionFailed and the cause.
func ExecutionFailed(reason string, cause error) error {
	return &executionError{reason: reason, cause: cause}
}

type executionError struct {
	reason string
	cause  error
}

func (e *executionError) Error() string {
	if e.cause == nil {
		return "execution failed: " + e.reason
	}
	return "execution failed: " + e.reason + ": " + e.cause.Error()
}

func (e *executionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

func (e *executionError) Unwrap() error {
	return e.cause
}
