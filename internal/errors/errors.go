package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrFailedPrecond   = errors.New("failed precondition")
	ErrInternalError   = errors.New("internal error")
)

// DomainError is the error type used across the qualification engine. It
// carries the entity the error belongs to so callers can report which part
// of a run failed without parsing message strings.
type DomainError struct {
	ErrorType  error
	Entity     string
	Message    string
	WrappedErr error
}

func NewError(errType error, entity, message string) *DomainError {
	return &DomainError{
		ErrorType: errType,
		Entity:    entity,
		Message:   message,
	}
}

func InvalidArgument(entity, message string) *DomainError {
	return NewError(ErrInvalidArgument, entity, message)
}

func NotFound(entity, message string) *DomainError {
	return NewError(ErrNotFound, entity, message)
}

func FailedPrecondition(entity, message string) *DomainError {
	return NewError(ErrFailedPrecond, entity, message)
}

func InternalError(entity, message string, wrapped error) *DomainError {
	return &DomainError{
		ErrorType:  ErrInternalError,
		Entity:     entity,
		Message:    message,
		WrappedErr: wrapped,
	}
}

func Wrap(entity, message string, err error) *DomainError {
	var de *DomainError
	errType := ErrInternalError
	if errors.As(err, &de) {
		errType = de.ErrorType
	}
	return &DomainError{
		ErrorType:  errType,
		Entity:     entity,
		Message:    message,
		WrappedErr: err,
	}
}

// AddErrContext keeps the original error type while prefixing entity context.
func AddErrContext(err error, entity, message string) *DomainError {
	return Wrap(entity, message, err)
}

func (d *DomainError) Error() string {
	if d.WrappedErr == nil {
		return fmt.Sprintf("%s for entity %s: %s", d.ErrorType, d.Entity, d.Message)
	}
	return fmt.Sprintf("%s for entity %s: %s: %s", d.ErrorType, d.Entity, d.Message, d.WrappedErr)
}

func (d *DomainError) Unwrap() error {
	if d.WrappedErr != nil {
		return d.WrappedErr
	}
	return d.ErrorType
}

func (d *DomainError) Is(target error) bool {
	return errors.Is(d.ErrorType, target) || errors.Is(d.WrappedErr, target)
}

func IsErrorType(err error, errType error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return errors.Is(de.ErrorType, errType)
	}
	return false
}
