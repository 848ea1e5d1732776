package server

import (
	"errors"
	"net/http"
)

// HTTPError carries the status, the public message and an optional cause.
// Only Message, ErrorCode and Details reach the client; Err is logged.
type HTTPError struct {
	Err       error
	Message   string
	ErrorCode string // stable machine-readable code, e.g. "invalid_roster"
	Details   any
	Code      int
}

func (e *HTTPError) Error() string { return e.Message }
func (e *HTTPError) Unwrap() error { return e.Err }

// HTTPErrorOption decorates an HTTPError.
type HTTPErrorOption func(*HTTPError)

// WithErrorCode sets the machine-readable code.
func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) { e.ErrorCode = code }
}

// WithDetails attaches structured data, such as per-field messages.
func WithDetails(details any) HTTPErrorOption {
	return func(e *HTTPError) { e.Details = details }
}

// WithError records the internal cause.
func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) { e.Err = err }
}

// NewHTTPError builds an HTTPError. Nothing is written until a handler
// returns it.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func statusError(code int) func(string, ...HTTPErrorOption) *HTTPError {
	return func(message string, opts ...HTTPErrorOption) *HTTPError {
		return NewHTTPError(code, message, opts...)
	}
}

// Constructors for the statuses handlers return.
var (
	ErrBadRequest      = statusError(http.StatusBadRequest)
	ErrNotFound        = statusError(http.StatusNotFound)
	ErrConflict        = statusError(http.StatusConflict)
	ErrRequestTooLarge = statusError(http.StatusRequestEntityTooLarge)
	ErrUnprocessable   = statusError(http.StatusUnprocessableEntity)
	ErrInternal        = statusError(http.StatusInternalServerError)
)

// AsHTTPError returns the first *HTTPError in err's chain, or nil.
func AsHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return nil
}
