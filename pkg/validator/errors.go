package validator

import (
	"errors"
	"strings"
)

// ErrValidation is the sentinel matched by every ValidationErrors value.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a single failed rule.
type ValidationError struct {
	TranslationValues map[string]any `json:"-"`
	Field             string         `json:"field"`
	Message           string         `json:"message"`
	TranslationKey    string         `json:"-"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is a collection of failed rules.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e))
	for _, ve := range e {
		parts = append(parts, ve.Error())
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports ErrValidation as matching so callers can use errors.Is.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Has reports whether any error is recorded for field.
func (e ValidationErrors) Has(field string) bool {
	for _, ve := range e {
		if ve.Field == field {
			return true
		}
	}
	return false
}

// Get returns all messages recorded for field.
func (e ValidationErrors) Get(field string) []string {
	var msgs []string
	for _, ve := range e {
		if ve.Field == field {
			msgs = append(msgs, ve.Message)
		}
	}
	return msgs
}

// Fields returns a field → first message map, suitable for JSON responses.
func (e ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, ve := range e {
		if _, ok := out[ve.Field]; !ok {
			out[ve.Field] = ve.Message
		}
	}
	return out
}

// Translate replaces messages in-place using fn. Errors without a
// TranslationKey keep their message.
func (e ValidationErrors) Translate(fn func(key string, values map[string]any) string) {
	if fn == nil {
		return
	}
	for i := range e {
		if e[i].TranslationKey == "" {
			continue
		}
		e[i].Message = fn(e[i].TranslationKey, e[i].TranslationValues)
	}
}

// IsValidationError reports whether err is or wraps ValidationErrors.
func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// ExtractValidationErrors returns the ValidationErrors wrapped in err, or nil.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
