package outbound

import (
	"errors"
	"fmt"
)

// Error is a categorized failure from the outbound calling system.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error { return e.Err }

// ErrorKind categorizes errors.
type ErrorKind string

const (
	// ErrConfiguration is a missing or malformed required environment
	// value. Fatal; nothing is dialed.
	ErrConfiguration ErrorKind = "configuration_error"
	// ErrDispatch is a room or SIP-leg creation failure. Reported to the
	// caller, never retried automatically.
	ErrDispatch ErrorKind = "dispatch_error"
	// ErrCallNotAnswered means the SIP leg timed out waiting for pickup.
	ErrCallNotAnswered ErrorKind = "call_not_answered"
	// ErrHangup is a participant-removal failure. Logged only; the call is
	// ending regardless.
	ErrHangup ErrorKind = "hangup_error"
	// ErrClassifier is a failure in the language-model classification layer.
	ErrClassifier ErrorKind = "classifier_error"
	// ErrTelephony is any other platform API failure.
	ErrTelephony ErrorKind = "telephony_error"
)

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: ErrConfiguration, Message: message}
}

// NewDispatchError creates a dispatch error wrapping the cause.
func NewDispatchError(message string, err error) *Error {
	return &Error{Kind: ErrDispatch, Message: message, Err: err}
}

// NewCallNotAnsweredError creates a call-not-answered error.
func NewCallNotAnsweredError(phone string, err error) *Error {
	return &Error{Kind: ErrCallNotAnswered, Message: fmt.Sprintf("call to %s was not answered", phone), Err: err}
}

// NewHangupError creates a hangup error wrapping the cause.
func NewHangupError(message string, err error) *Error {
	return &Error{Kind: ErrHangup, Message: message, Err: err}
}

// NewClassifierError creates a classifier error wrapping the cause.
func NewClassifierError(message string, err error) *Error {
	return &Error{Kind: ErrClassifier, Message: message, Err: err}
}

// NewTelephonyError creates a telephony error wrapping the cause.
func NewTelephonyError(message string, err error) *Error {
	return &Error{Kind: ErrTelephony, Message: message, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
