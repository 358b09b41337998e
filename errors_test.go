package tabula

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "resource",
			err:  NewDatasetNotFoundError("abc"),
			want: "[not_found:DATASET_NOT_FOUND] dataset abc: dataset not found",
		},
		{
			name: "field",
			err:  NewValidationError("name", "name is required"),
			want: "[invalid_input:VALIDATION_FAILED] field 'name': name is required",
		},
		{
			name: "cause",
			err:  NewInternalError("list datasets", errors.New("boom")),
			want: "[internal:INTERNAL_ERROR] list datasets: boom",
		},
		{
			name: "plain",
			err:  NewRateLimitedError(),
			want: "[rate_limited:RATE_LIMITED] too many requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorTypeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), ErrorTypeOf(nil))
	assert.Equal(t, ErrorTypeInternal, ErrorTypeOf(errors.New("plain")))

	wrapped := fmt.Errorf("get dataset: %w", NewDatasetNotFoundError("x"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))

	assert.True(t, IsConflict(NewConflictError("Prices")))
	assert.True(t, IsInvalidInput(NewValidationError("data", "data is required")))
	assert.Equal(t, ErrorTypeUnauthorized, ErrorTypeOf(NewUnauthorizedError("missing token")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewInternalError("create dataset", cause)

	assert.ErrorIs(t, err, cause)
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrorTypeInvalidInput, ErrCodeTypeMismatch, "wrong type").
		WithField("amount").
		WithDetail("expected", "number").
		WithCause(errors.New("got string"))

	assert.Equal(t, "amount", err.Field)
	assert.Equal(t, "number", err.Details["expected"])
	assert.EqualError(t, errors.Unwrap(err), "got string")
}
