package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput       = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON      = errors.New("invalid JSON format")
	ErrInvalidYAML      = errors.New("invalid YAML format")
	ErrMultipleJSON     = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrFileNotFound     = errors.New("file not found")
	ErrFileEmpty        = errors.New("file is empty")
	ErrNoInput          = errors.New("no input provided")
	ErrInvalidFilePath  = errors.New("invalid file path")
	ErrUnsupportedType  = errors.New("unsupported JSON value type")
	ErrMalformedDiff    = errors.New("malformed diff")
	ErrDepthExceeded    = errors.New("maximum nesting depth exceeded")
	ErrDocumentNotFound = errors.New("document not found")
	ErrVersionNotFound  = errors.New("version not found")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput           ErrorType = "input"
	ErrorTypeParsing         ErrorType = "parsing"
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	ErrorTypeMalformedDiff   ErrorType = "malformed_diff"
	ErrorTypeDepth           ErrorType = "depth"
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeStorage         ErrorType = "storage"
	ErrorTypeOutput          ErrorType = "output"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	// Path is the JSON Pointer of the node being processed when the error
	// happened. Empty when the error is not tied to a position in a tree.
	Path string
	Err  error
}

// Error implements error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (at %s)", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	// Check if target is also an *AppError and if the types match
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithPath returns a copy of the error positioned at path
func (e *AppError) WithPath(path string) *AppError {
	cp := *e
	cp.Path = path
	return &cp
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInput,
		Message: message,
		Err:     err,
	}
}

// NewParsingError creates a new error related to JSON or YAML parsing
func NewParsingError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParsing,
		Message: message,
		Err:     err,
	}
}

// NewUnsupportedTypeError creates an error for a value whose kind the differ
// does not model
func NewUnsupportedTypeError(message, path string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnsupportedType,
		Message: message,
		Path:    path,
		Err:     ErrUnsupportedType,
	}
}

// NewMalformedDiffError creates an error for a diff payload that does not
// fit the value it is applied to
func NewMalformedDiffError(message, path string) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedDiff,
		Message: message,
		Path:    path,
		Err:     ErrMalformedDiff,
	}
}

// NewDepthError creates an error for input nested deeper than allowed
func NewDepthError(limit int, path string) *AppError {
	return &AppError{
		Type:    ErrorTypeDepth,
		Message: fmt.Sprintf("nesting deeper than %d levels", limit),
		Path:    path,
		Err:     ErrDepthExceeded,
	}
}

// NewConfigError creates a new error related to configuration loading
func NewConfigError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: message,
		Err:     err,
	}
}

// NewStorageError creates a new error related to the history store
func NewStorageError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeStorage,
		Message: message,
		Err:     err,
	}
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeOutput,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err carries
// no AppError
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		where := ""
		if appErr.Path != "" {
			where = fmt.Sprintf(" (at %s)", appErr.Path)
		}
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeUnsupportedType:
			return fmt.Sprintf("Unsupported value%s: %s", where, appErr.Message)
		case ErrorTypeMalformedDiff:
			return fmt.Sprintf("Malformed diff%s: %s", where, appErr.Message)
		case ErrorTypeDepth:
			return fmt.Sprintf("Document too deep%s: %s", where, appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		case ErrorTypeStorage:
			return fmt.Sprintf("History store error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrMultipleJSON) {
		return "Error: Multiple JSON values found. Please provide a single JSON document."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please pass file paths or pipe JSON data to stdin with '-'."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
