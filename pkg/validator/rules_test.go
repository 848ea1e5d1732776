package validator_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certy/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("all rules pass", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.RequiredString("name", "Jane"),
			validator.Email("email", "jane@example.com"),
			validator.MaxLenString("name", "Jane", 10),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure in order", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.RequiredString("name", "   "),
			validator.Email("email", "not-an-email"),
			validator.OneOf("align", "middle", "left", "center", "right"),
		)
		require.Error(t, err)
		ve := validator.ExtractValidationErrors(err)
		require.Len(t, ve, 3)
		assert.Equal(t, "name", ve[0].Field)
		assert.Equal(t, "email", ve[1].Field)
		assert.Equal(t, "align", ve[2].Field)
		assert.True(t, errors.Is(err, validator.ErrValidation))
	})

	t.Run("wrapped errors are still detected", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("layout: %w", validator.Apply(validator.PositiveNum("size", 0.0)))
		assert.True(t, validator.IsValidationError(err))
		assert.Equal(t, map[string]string{"size": "must be greater than zero"},
			validator.ExtractValidationErrors(err).Fields())
	})

	t.Run("plain errors are not validation errors", func(t *testing.T) {
		t.Parallel()
		err := errors.New("boom")
		assert.False(t, validator.IsValidationError(err))
		assert.Nil(t, validator.ExtractValidationErrors(err))
	})
}

func TestIsEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"jane@example.com", true},
		{"jane.doe+tag@mail.example.org", true},
		{"JANE@EXAMPLE.COM", true},
		{"", false},
		{"jane", false},
		{"jane@", false},
		{"@example.com", false},
		{"jane@example", false},
		{"jane@example.", false},
		{"jane doe@example.com", false},
		{"Jane <jane@example.com>", false},
		{"jane@@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, validator.IsEmail(tt.in))
		})
	}
}

func TestRangeNum(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validator.Apply(validator.RangeNum("workers", 4, 1, 64)))
	assert.Error(t, validator.Apply(validator.RangeNum("workers", 0, 1, 64)))
	assert.Error(t, validator.Apply(validator.RangeNum("workers", 65, 1, 64)))
}
