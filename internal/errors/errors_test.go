package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with wrapped error",
			appError: &AppError{
				Type:    ErrorTypeInput,
				Message: "failed to read input",
				Err:     errors.New("file not found"),
			},
			expected: "input: failed to read input: file not found",
		},
		{
			name: "error without wrapped error",
			appError: &AppError{
				Type:    ErrorTypeParsing,
				Message: "invalid JSON syntax",
			},
			expected: "parsing: invalid JSON syntax",
		},
		{
			name:     "error with path",
			appError: NewMalformedDiffError("unknown array op \"*\"", "/items/2"),
			expected: "malformed_diff: unknown array op \"*\" (at /items/2): malformed diff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	appErr := &AppError{
		Type:    ErrorTypeInput,
		Message: "test message",
		Err:     wrappedErr,
	}

	assert.Equal(t, wrappedErr, appErr.Unwrap())
}

func TestAppError_Is(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		target   error
		expected bool
	}{
		{
			name:     "same type",
			appError: NewUnsupportedTypeError("chan int", ""),
			target:   &AppError{Type: ErrorTypeUnsupportedType},
			expected: true,
		},
		{
			name:     "different type",
			appError: NewUnsupportedTypeError("chan int", ""),
			target:   &AppError{Type: ErrorTypeMalformedDiff},
			expected: false,
		},
		{
			name:     "not an AppError",
			appError: &AppError{Type: ErrorTypeInput},
			target:   errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Is(tt.target))
		})
	}
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("patching: %w", NewMalformedDiffError("bad tuple", "/0"))

	assert.True(t, errors.Is(err, ErrMalformedDiff))
	assert.False(t, errors.Is(err, ErrUnsupportedType))
	assert.Equal(t, ErrorTypeMalformedDiff, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestWithPath(t *testing.T) {
	base := NewUnsupportedTypeError("[]uint8", "")
	moved := base.WithPath("/a/b")

	assert.Equal(t, "", base.Path)
	assert.Equal(t, "/a/b", moved.Path)
	assert.Equal(t, base.Type, moved.Type)
}

func TestUserFriendlyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "input error",
			err:      NewInputError("failed to read file", nil),
			expected: "Input error: failed to read file",
		},
		{
			name:     "parsing error",
			err:      NewParsingError("invalid JSON syntax", nil),
			expected: "JSON parsing error: invalid JSON syntax",
		},
		{
			name:     "unsupported type error",
			err:      NewUnsupportedTypeError("value of type chan int", "/x"),
			expected: "Unsupported value (at /x): value of type chan int",
		},
		{
			name:     "malformed diff error",
			err:      NewMalformedDiffError("array diff applied to an object", ""),
			expected: "Malformed diff: array diff applied to an object",
		},
		{
			name:     "depth error",
			err:      NewDepthError(3, "/a/b/c"),
			expected: "Document too deep (at /a/b/c): nesting deeper than 3 levels",
		},
		{
			name:     "config error",
			err:      NewConfigError("failed to parse config file", nil),
			expected: "Configuration error: failed to parse config file",
		},
		{
			name:     "storage error",
			err:      NewStorageError("failed to open store", nil),
			expected: "History store error: failed to open store",
		},
		{
			name:     "output error",
			err:      NewOutputError("failed to write output", nil),
			expected: "Output error: failed to write output",
		},
		{
			name:     "standard error - empty input",
			err:      ErrEmptyInput,
			expected: "Error: The input is empty. Please provide valid JSON data.",
		},
		{
			name:     "standard error - invalid JSON",
			err:      ErrInvalidJSON,
			expected: "Error: The input contains invalid JSON. Please check your JSON syntax.",
		},
		{
			name:     "unknown error",
			err:      errors.New("some unknown error"),
			expected: "Error: some unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UserFriendlyError(tt.err))
		})
	}
}
