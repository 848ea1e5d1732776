package mailer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/certy/pkg/mailer"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	data := map[string]string{
		"name":          "Alice Smith",
		"branch":        "CSE",
		"year_of_study": "3",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no placeholders", in: "Hello there", want: "Hello there"},
		{name: "single field", in: "Dear {name},", want: "Dear Alice Smith,"},
		{name: "several fields", in: "{name} ({branch}, year {year_of_study})", want: "Alice Smith (CSE, year 3)"},
		{name: "unknown field kept", in: "Hi {nickname}", want: "Hi {nickname}"},
		{name: "escaped braces", in: "{{name}} is {name}", want: "{name} is Alice Smith"},
		{name: "unterminated brace", in: "Dear {name", want: "Dear {name"},
		{name: "not a field name", in: "{a b}", want: "{a b}"},
		{name: "empty braces", in: "{}", want: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, mailer.Expand(tt.in, data))
		})
	}
}
