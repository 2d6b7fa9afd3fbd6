package gql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func apiError(code, message string) *APIError {
	return &APIError{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}
}

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		sentinel error
	}{
		{"unauthenticated", "UNAUTHENTICATED", ErrUnauthenticated},
		{"authentication error", "AUTHENTICATION_ERROR", ErrUnauthenticated},
		{"authorization", "AUTHORIZATION_ERROR", ErrPermissionDenied},
		{"validation", "VALIDATION_ERROR", ErrValidation},
		{"not found", "NOT_FOUND_ERROR", ErrNotFound},
		{"conflict", "CONFLICT_ERROR", ErrConflict},
		{"internal", "INTERNAL_SERVER_ERROR", ErrServer},
		{"unknown code", "SOMETHING_ELSE", ErrServer},
		{"no code", "", ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apiError(tt.code, "boom")
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestAPIError_Message(t *testing.T) {
	err := apiError("VALIDATION_ERROR", "title too short")
	assert.Contains(t, err.Error(), "title too short")

	withPath := &APIError{Message: "boom", Path: []any{"tasks", 0, "title"}}
	assert.Contains(t, withPath.Error(), "tasks.0.title")
}

func TestIsUnauthenticated(t *testing.T) {
	authFailed := &Response{Errors: []*APIError{
		apiError("VALIDATION_ERROR", "bad input"),
		apiError("UNAUTHENTICATED", "token expired"),
	}}
	assert.True(t, isUnauthenticated(authFailed))

	otherFailure := &Response{Errors: []*APIError{apiError("INTERNAL_SERVER_ERROR", "boom")}}
	assert.False(t, isUnauthenticated(otherFailure))

	clean := &Response{}
	assert.False(t, isUnauthenticated(clean))

	var checkBoth error = apiError("UNAUTHENTICATED", "x")
	assert.False(t, errors.Is(checkBoth, ErrPermissionDenied))
}
