package utils

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is against any error returned by the service.
var (
	ErrValidation      = errors.New("validation error")
	ErrSchema          = errors.New("schema error")
	ErrArtifact        = errors.New("artifact error")
	ErrExternalService = errors.New("external service error")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
)

// AppError wraps an operation, error kind, human-facing message, and underlying error.
type AppError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind this error was raised with.
func (e *AppError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// NewAppError constructs an AppError of the given kind.
func NewAppError(kind error, op, msg string, err error) error {
	return &AppError{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for a ErrValidation AppError.
func Validation(op, msg string) error {
	return NewAppError(ErrValidation, op, msg, nil)
}

// Schema is shorthand for a ErrSchema AppError.
func Schema(op, msg string) error {
	return NewAppError(ErrSchema, op, msg, nil)
}

// Artifact is shorthand for a ErrArtifact AppError.
func Artifact(op, msg string, err error) error {
	return NewAppError(ErrArtifact, op, msg, err)
}

// External is shorthand for a ErrExternalService AppError.
func External(op, msg string, err error) error {
	return NewAppError(ErrExternalService, op, msg, err)
}

// NotFound is shorthand for a ErrNotFound AppError.
func NotFound(op, msg string) error {
	return NewAppError(ErrNotFound, op, msg, nil)
}

// KindOf returns the first known kind in err's chain, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrSchema, ErrArtifact, ErrExternalService, ErrNotFound, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
