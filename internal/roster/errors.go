package roster

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("roster: unsupported file format")
	ErrEmptyInput        = errors.New("roster: input has no data rows")
	ErrMissingColumn     = errors.New("roster: required column not found")
	ErrRead              = errors.New("roster: cannot read input")
)

// ValidationError reports a structural problem with the input as a whole,
// such as a required column that no header matches.
type ValidationError struct {
	Err     error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("roster: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }
