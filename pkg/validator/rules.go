package validator

import (
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"
)

// Rule pairs a check with the error reported when it fails.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply evaluates every rule and returns ValidationErrors for the failing
// ones, or nil when all pass.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, r := range rules {
		if r.Check != nil && !r.Check() {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func newRule(field, message, key string, values map[string]any, check func() bool) Rule {
	if values == nil {
		values = map[string]any{}
	}
	values["field"] = field
	return Rule{
		Check: check,
		Error: ValidationError{
			Field:             field,
			Message:           message,
			TranslationKey:    key,
			TranslationValues: values,
		},
	}
}

// RequiredString fails when value is empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return newRule(field, "is required", "validation.required", nil, func() bool {
		return strings.TrimSpace(value) != ""
	})
}

// MinLenString fails when value has fewer than min runes.
func MinLenString(field, value string, minLen int) Rule {
	return newRule(field, "is too short", "validation.min_length", map[string]any{"min": minLen}, func() bool {
		return utf8.RuneCountInString(value) >= minLen
	})
}

// MaxLenString fails when value has more than max runes.
func MaxLenString(field, value string, maxLen int) Rule {
	return newRule(field, "is too long", "validation.max_length", map[string]any{"max": maxLen}, func() bool {
		return utf8.RuneCountInString(value) <= maxLen
	})
}

// Email fails when value is not a bare address of the form local@domain.tld.
// Empty values pass; combine with RequiredString to forbid them.
func Email(field, value string) Rule {
	return newRule(field, "must be a valid email address", "validation.email", nil, func() bool {
		return value == "" || IsEmail(value)
	})
}

// OneOf fails when value is not one of allowed.
func OneOf(field, value string, allowed ...string) Rule {
	return newRule(field, "must be one of "+strings.Join(allowed, ", "), "validation.one_of",
		map[string]any{"values": allowed}, func() bool {
			return slices.Contains(allowed, value)
		})
}

// PositiveNum fails when value is not greater than zero.
func PositiveNum[T ~int | ~int64 | ~float64](field string, value T) Rule {
	return newRule(field, "must be greater than zero", "validation.positive", nil, func() bool {
		return value > 0
	})
}

// RangeNum fails when value is outside [lo, hi].
func RangeNum[T ~int | ~int64 | ~float64](field string, value, lo, hi T) Rule {
	return newRule(field, "is out of range", "validation.range", map[string]any{"min": lo, "max": hi}, func() bool {
		return value >= lo && value <= hi
	})
}

// Custom fails when check returns false, reporting message under key.
func Custom(field, message, key string, check func() bool) Rule {
	return newRule(field, message, key, nil, check)
}

// IsEmail reports whether s is a single bare address with a dotted domain.
// Display-name forms like "Jane <jane@example.com>" are rejected.
func IsEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>\t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
