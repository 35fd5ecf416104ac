package login

import (
	"context"
	"errors"
)

// ErrorKind classifies a step failure.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"  // an element in a fallback list never resolved
	KindTimeout    ErrorKind = "timeout"    // the next page did not appear in time
	KindValidation ErrorKind = "validation" // bad input or a step called out of order
	KindAutomation ErrorKind = "automation" // the browser itself failed
	KindCanceled   ErrorKind = "canceled"   // the caller gave up
)

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	ErrNotFound   = errors.New("element not found")
	ErrTimeout    = errors.New("page did not load in time")
	ErrValidation = errors.New("invalid input")
	ErrCanceled   = errors.New("login canceled")
)

// Error is returned by every sequencer step. Message is the text shown to users.
type Error struct {
	Err     error
	Kind    ErrorKind
	Step    string
	Message string
}

func (e *Error) Error() string {
	if e.Kind == KindAutomation && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrCanceled:
		return e.Kind == KindCanceled
	}
	return false
}

func newError(kind ErrorKind, step, message string, err error) *Error {
	return &Error{Kind: kind, Step: step, Message: message, Err: err}
}

// wrapContext turns a context error into a canceled step error. Other
// errors become automation errors carrying message.
func wrapContext(step, message string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindCanceled, step, "Login canceled", err)
	}
	return newError(KindAutomation, step, message, err)
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
