package middlewares

import (
	"errors"
	"fmt"
	"time"
)

// PanicError wraps a value recovered from a handler panic.
type PanicError struct {
	Value any
	Stack []byte // nil unless stack capture is on
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// TimeoutError is returned when a handler outlives its deadline.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return "handler exceeded " + e.Duration.String()
}

// IsPanicError reports whether err came from Recover.
func IsPanicError(err error) bool {
	var target *PanicError
	return errors.As(err, &target)
}

// IsTimeoutError reports whether err came from Timeout.
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
