package errors

import "fmt"

const (
	// ExitCodeConfigError is returned when the run aborts before any log is
	// processed, e.g. a malformed speedup-factor file or unknown platform.
	ExitCodeConfigError = 30
)

// CmdError is a custom error type for command errors, it will contain the error and the exit code
type CmdError struct {
	Cause error
	Code  int
}

func (e *CmdError) Error() string { return e.Cause.Error() }

func NewCmdError(cause error, code int) *CmdError {
	return &CmdError{
		Cause: cause,
		Code:  code,
	}
}

func NewConfigErrorf(format string, args ...any) *CmdError {
	return NewCmdError(fmt.Errorf(format, args...), ExitCodeConfigError)
}
