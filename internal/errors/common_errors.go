package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeParsing means the bytes are not a readable spreadsheet. Fatal for the step.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeSchema means a required column is missing. Fatal for the step.
	ErrTypeSchema ErrorType = "SCHEMA"
	// ErrTypeLookupMiss means an optional column or key is missing; the step degrades.
	ErrTypeLookupMiss ErrorType = "LOOKUP_MISS"
	// ErrTypeState means a stage was run before its inputs exist.
	ErrTypeState      ErrorType = "STATE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Recoverable reports whether the pipeline may continue past this error.
func (e *AppError) Recoverable() bool {
	return e.Type == ErrTypeLookupMiss
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewParseError creates a parsing-related error
func NewParseError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewSchemaError reports a missing required column. Suggestions are the
// closest existing headers, if any.
func NewSchemaError(table, column string, suggestions []string) *AppError {
	msg := fmt.Sprintf("%s is missing required column %q", table, column)
	e := NewAppError(ErrTypeSchema, msg, nil).
		WithContext("table", table).
		WithContext("column", column)
	if len(suggestions) > 0 {
		e.WithContext("suggestions", suggestions)
	}
	return e
}

// NewLookupMiss creates a recoverable warning for a skipped lookup
func NewLookupMiss(stage, message string) *AppError {
	return NewAppError(ErrTypeLookupMiss, message, nil).WithContext("stage", stage)
}

// NewStateError reports a stage run out of order
func NewStateError(message string) *AppError {
	return NewAppError(ErrTypeState, message, nil)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsParseError reports whether err carries a parsing failure
func IsParseError(err error) bool { return TypeOf(err) == ErrTypeParsing }

// IsSchemaError reports whether err carries a missing required column
func IsSchemaError(err error) bool { return TypeOf(err) == ErrTypeSchema }

// IsLookupMiss reports whether err is a recoverable lookup miss
func IsLookupMiss(err error) bool { return TypeOf(err) == ErrTypeLookupMiss }

// IsStateError reports whether err is a stage ordering error
func IsStateError(err error) bool { return TypeOf(err) == ErrTypeState }
