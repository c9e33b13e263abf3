package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorWrapping(t *testing.T) {
	base := errors.New("disk on fire")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "store", "Create", "write record")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "store", ce.Component)
			assert.Contains(t, err.Error(), "store.Create: write record failed")
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(ErrSubstrateUnavailable))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(errors.New("connection refused")))
	assert.False(t, IsTransient(WrapInvalid(errors.New("x"), "c", "m", "a")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrDataCorrupted))
	assert.True(t, IsFatal(ErrMigrationIncomplete))
	assert.True(t, IsFatal(WrapFatal(errors.New("x"), "c", "m", "a")))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(NewValidationError("users", []FieldError{{Field: "email", Message: "required"}})))
	assert.Equal(t, ErrorInvalid, Classify(NewForeignKeyError("opportunities", "company_id", "companies", "c-1")))
	assert.Equal(t, ErrorFatal, Classify(ErrDataCorrupted))
	assert.Equal(t, ErrorTransient, Classify(errors.New("socket timeout")))
}

func TestValidationError(t *testing.T) {
	ve := NewValidationError("contacts", []FieldError{
		{Field: "email", Message: "is required"},
		{Field: "company_id", Message: "is required"},
	})

	assert.Equal(t, []string{"email", "company_id"}, ve.FieldNames())
	assert.Contains(t, ve.Error(), "contacts")
	assert.Contains(t, ve.Error(), "email: is required")

	wrapped := fmt.Errorf("create: %w", ve)
	got, ok := AsValidation(wrapped)
	require.True(t, ok)
	assert.Len(t, got.Fields, 2)
	assert.True(t, IsInvalid(wrapped))
}

func TestForeignKeyError(t *testing.T) {
	fke := NewForeignKeyError("opportunities", "company_id", "companies", "missing-id")
	assert.Contains(t, fke.Error(), "opportunities.company_id")
	assert.Contains(t, fke.Error(), `"missing-id"`)

	wrapped := fmt.Errorf("create: %w", fke)
	got, ok := AsForeignKey(wrapped)
	require.True(t, ok)
	assert.Equal(t, "companies", got.RefTable)
	assert.True(t, IsInvalid(wrapped))
}

func TestRetryConfigShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()
	assert.True(t, rc.ShouldRetry(ErrSubstrateUnavailable, 0))
	assert.False(t, rc.ShouldRetry(ErrSubstrateUnavailable, rc.MaxRetries))
	assert.False(t, rc.ShouldRetry(nil, 0))
	assert.False(t, rc.ShouldRetry(WrapInvalid(errors.New("x"), "c", "m", "a"), 0))
}
