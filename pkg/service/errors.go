package service

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies every failure the service can report.
type ErrorKind int

// The error taxonomy. The zero value is InternalError so that an
// unclassified error is never mistaken for a client fault.
const (
	InternalError ErrorKind = iota
	MalformedRequest
	UnknownOperation
	InvalidInput
	AIServiceFailure
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedRequest:
		return "malformed_request"
	case UnknownOperation:
		return "unknown_operation"
	case InvalidInput:
		return "invalid_input"
	case AIServiceFailure:
		return "ai_service_failure"
	default:
		return "internal_error"
	}
}

// ClientFault reports whether errors of this kind were caused by the caller.
func (k ErrorKind) ClientFault() bool {
	switch k {
	case MalformedRequest, UnknownOperation, InvalidInput:
		return true
	}
	return false
}

// Error is a classified failure. Msg is safe to show to callers; Err holds
// the underlying cause and is only ever logged.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Public messages for the server-side kinds. Causes never reach the caller.
const (
	msgAIServiceFailure = "AI service failed"
	msgInternalError    = "internal server error"
)

// ErrMalformedRequest returns a MalformedRequest error with the given message.
func ErrMalformedRequest(msg string) error {
	return &Error{Kind: MalformedRequest, Msg: msg}
}

// ErrUnknownOperation returns an UnknownOperation error naming key.
func ErrUnknownOperation(key string) error {
	return &Error{Kind: UnknownOperation, Msg: "invalid key: " + key}
}

// ErrInvalidInput returns an InvalidInput error with the given message.
func ErrInvalidInput(msg string) error {
	return &Error{Kind: InvalidInput, Msg: msg}
}

// ErrAIService wraps a failed call to the answering service.
func ErrAIService(cause error) error {
	return &Error{Kind: AIServiceFailure, Msg: msgAIServiceFailure, Err: cause}
}

// ErrInternal wraps an unanticipated failure.
func ErrInternal(cause error) error {
	return &Error{Kind: InternalError, Msg: msgInternalError, Err: cause}
}

// KindOf classifies err. Errors that are not an *Error are InternalError.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// PublicMessage returns the text that may be shown to a caller for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return msgInternalError
}
