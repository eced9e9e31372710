package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Timezone conversion errors. Both are recoverable: callers substitute the
// configured default zone or "now" as documented fallbacks.
var (
	ErrInvalidTimezone = New("INVALID_TIMEZONE", http.StatusBadRequest, "unrecognized timezone identifier")
	ErrMalformedInput  = New("MALFORMED_INPUT", http.StatusBadRequest, "malformed date or time input")
)

// Scheduling state machine errors.
var (
	ErrNotSchedulable    = New("NOT_SCHEDULABLE", http.StatusUnprocessableEntity, "quiz cannot be scheduled in its current state")
	ErrAlreadyPublished  = New("ALREADY_PUBLISHED", http.StatusConflict, "quiz is already published")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusUnprocessableEntity, "invalid lifecycle transition")
)

// Attempt validator errors.
var (
	ErrAlreadyCompleted = New("ALREADY_COMPLETED", http.StatusConflict, "enrollment already completed")
	ErrTooManyAttempts  = New("TOO_MANY_ATTEMPTS", http.StatusTooManyRequests, "too many attempts started recently")
	ErrInvalidAttempt   = New("INVALID_ATTEMPT", http.StatusNotFound, "attempt not found for this student and quiz")
	ErrAlreadySubmitted = New("ALREADY_SUBMITTED", http.StatusConflict, "attempt was already submitted")
)

// ErrStoreUnavailable marks a persistence failure. The attempt validator
// treats it as a fail-open signal; the scheduling state machine fails closed.
var ErrStoreUnavailable = New("STORE_UNAVAILABLE", http.StatusServiceUnavailable, "persistent store unavailable")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Is reports whether err carries the given predefined error code.
func Is(err error, target *Error) bool {
	e := FromError(err)
	return e != nil && target != nil && e.Code == target.Code
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
