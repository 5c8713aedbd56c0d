package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable tag carried in every error body.
type ErrorKind string

const (
	// ErrKindInvalidRequest indicates a malformed run request.
	ErrKindInvalidRequest ErrorKind = "invalid_request"

	// ErrKindConfig indicates missing or invalid adapter configuration,
	// detected at adapter construction.
	ErrKindConfig ErrorKind = "config"

	// ErrKindUnknownAdapter indicates the requested agent resolved to no
	// registered adapter. Fatal for the whole run.
	ErrKindUnknownAdapter ErrorKind = "unknown_adapter"

	// ErrKindUnknownSuite indicates a requested suite identifier resolved
	// to no registered suite. Fatal for the whole run.
	ErrKindUnknownSuite ErrorKind = "unknown_suite"

	// Adapter failure kinds, isolated to the owning suite.
	ErrKindTimeout           ErrorKind = "timeout"
	ErrKindAuthFailure       ErrorKind = "auth_failure"
	ErrKindUnreachable       ErrorKind = "unreachable"
	ErrKindMalformedResponse ErrorKind = "malformed_response"

	// ErrKindAggregation indicates zero suites succeeded, leaving no
	// scores to aggregate.
	ErrKindAggregation ErrorKind = "aggregation"
)

// Error is the canonical error type surfaced by the bridge and adapters.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Name is the offending identifier for lookup failures (agent or
	// suite name).
	Name string `json:"name,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %q: %s", e.Kind, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error for errors.Is/As chains.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// HTTPStatusCode maps the error kind to the status the API surface should
// return: 4xx for caller faults, 5xx for system faults.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case ErrKindInvalidRequest:
		return http.StatusBadRequest
	case ErrKindUnknownAdapter, ErrKindUnknownSuite:
		return http.StatusUnprocessableEntity
	case ErrKindTimeout, ErrKindUnreachable, ErrKindAuthFailure,
		ErrKindMalformedResponse, ErrKindAggregation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsAdapterKind reports whether the kind belongs to the per-suite adapter
// failure family that never aborts sibling suites.
func (e *Error) IsAdapterKind() bool {
	switch e.Kind {
	case ErrKindTimeout, ErrKindAuthFailure, ErrKindUnreachable, ErrKindMalformedResponse:
		return true
	}
	return false
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidRequest creates a malformed-request error.
func ErrInvalidRequest(format string, args ...any) *Error {
	return newError(ErrKindInvalidRequest, format, args...)
}

// ErrConfig creates an adapter configuration error.
func ErrConfig(format string, args ...any) *Error {
	return newError(ErrKindConfig, format, args...)
}

// ErrUnknownAdapter creates a lookup failure naming the agent.
func ErrUnknownAdapter(name string) *Error {
	e := newError(ErrKindUnknownAdapter, "no adapter registered for agent")
	e.Name = name
	return e
}

// ErrUnknownSuite creates a lookup failure naming the suite.
func ErrUnknownSuite(name string) *Error {
	e := newError(ErrKindUnknownSuite, "no test suite registered under this identifier")
	e.Name = name
	return e
}

// ErrTimeout creates an adapter timeout error.
func ErrTimeout(format string, args ...any) *Error {
	return newError(ErrKindTimeout, format, args...)
}

// ErrAuthFailure creates an adapter authentication error.
func ErrAuthFailure(format string, args ...any) *Error {
	return newError(ErrKindAuthFailure, format, args...)
}

// ErrUnreachable creates an adapter connectivity error.
func ErrUnreachable(format string, args ...any) *Error {
	return newError(ErrKindUnreachable, format, args...)
}

// ErrMalformedResponse creates an adapter payload error.
func ErrMalformedResponse(format string, args ...any) *Error {
	return newError(ErrKindMalformedResponse, format, args...)
}

// ErrAggregation creates the zero-successful-suites error.
func ErrAggregation(format string, args ...any) *Error {
	return newError(ErrKindAggregation, format, args...)
}

// AsError unwraps err to a *Error, or wraps it as a generic system fault.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return (&Error{Kind: "internal", Message: err.Error()}).WithCause(err)
}
