package registry

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes store errors so callers can distinguish fatal
// configuration problems from conditions that degrade gracefully, without
// inspecting log output.
type ErrorKind int

const (
	// ErrKindFatalConfig indicates a required configuration file is
	// missing, unreadable, or malformed. The store stays uninitialized.
	ErrKindFatalConfig ErrorKind = iota

	// ErrKindRecoverable indicates a degraded condition (missing or
	// malformed optional tier); the affected category resolves empty.
	ErrKindRecoverable

	// ErrKindValidation indicates loaded data violated the register schema.
	ErrKindValidation

	// ErrKindResolve indicates the configuration path could not be resolved.
	ErrKindResolve
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindFatalConfig:
		return "Fatal Configuration Error"
	case ErrKindRecoverable:
		return "Recoverable Configuration Error"
	case ErrKindValidation:
		return "Validation Error"
	case ErrKindResolve:
		return "Path Resolution Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is a store error carrying its classification and the file it
// relates to.
type Error struct {
	Kind ErrorKind // Category of error
	Path string    // Configuration file or directory involved, if any
	Err  error     // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a classified store error.
func newError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// IsFatal reports whether err is a fatal configuration error.
func IsFatal(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrKindFatalConfig
}

// KindOf returns the error kind of err, or ErrKindRecoverable when err is
// not a store error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrKindRecoverable
}

// ErrNoResolver is returned by Reload when the store was created with a
// fixed path and has no version resolver to ask for a new one.
var ErrNoResolver = errors.New("register store has no version resolver")
