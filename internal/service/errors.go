package service

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
)

// ServiceError wraps a sentinel error with a specific code and message for
// the caller to map onto its own surface.
type ServiceError struct {
	Err     error
	Code    string
	Message string
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

// NewError creates a ServiceError wrapping the given sentinel.
func NewError(sentinel error, code, message string) *ServiceError {
	return &ServiceError{Err: sentinel, Code: code, Message: message}
}

// Convenience constructors, one per taxonomy entry.

func NotFound(code, message string) *ServiceError {
	return NewError(ErrNotFound, code, message)
}

func InvalidState(code, message string) *ServiceError {
	return NewError(ErrInvalidState, code, message)
}

func InvalidArgument(code, message string) *ServiceError {
	return NewError(ErrInvalidArgument, code, message)
}

func Conflict(code, message string) *ServiceError {
	return NewError(ErrConflict, code, message)
}

func Unavailable(code, message string) *ServiceError {
	return NewError(ErrUnavailable, code, message)
}
