package proto

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors for API surfacing.
type ErrorKind int8

const (
	// KindValidation represents malformed client input (empty request,
	// missing mandatory comment). No state mutation occurs.
	KindValidation ErrorKind = iota
	// KindNotFound represents an unknown session id.
	KindNotFound
	// KindInvalidState represents an operation not valid for the session's
	// current stage (deciding on a non-pending session, continuing a
	// finalized one).
	KindInvalidState
	// KindEnrichment represents an external CRM/pricing/compliance failure.
	// The stage halts in place; retry is caller-driven.
	KindEnrichment
	// KindUnknown is the default for unclassified errors.
	KindUnknown
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindEnrichment:
		return "enrichment_failure"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified engine error with a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps an underlying error with a classification.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

// Validationf creates a validation error.
func Validationf(format string, args ...any) *Error {
	return NewError(KindValidation, fmt.Sprintf(format, args...))
}

// NotFoundf creates a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return NewError(KindNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef creates an invalid-state error.
func InvalidStatef(format string, args ...any) *Error {
	return NewError(KindInvalidState, fmt.Sprintf(format, args...))
}

// Enrichmentf creates an enrichment failure wrapping the service error.
func Enrichmentf(err error, format string, args ...any) *Error {
	return WrapError(KindEnrichment, fmt.Sprintf(format, args...), err)
}

// KindOf classifies an arbitrary error. Unclassified errors map to KindUnknown.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// ErrInvalidTransition indicates a stage transition not present in the
// canonical stage map was attempted.
var ErrInvalidTransition = errors.New("invalid stage transition")
