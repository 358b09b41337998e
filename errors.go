package tabula

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeRateLimited  ErrorType = "rate_limited"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error is the error type returned across the dataset API.
type Error struct {
	Type     ErrorType      `json:"type"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Resource string         `json:"resource,omitempty"`
	ID       string         `json:"id,omitempty"`
	Field    string         `json:"field,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Cause    error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Resource != "" && e.ID != "" {
		return fmt.Sprintf("[%s:%s] %s %s: %s", e.Type, e.Code, e.Resource, e.ID, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail to an Error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to an Error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithField adds field context to an Error
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeInvalidSchema      = "INVALID_SCHEMA"
	ErrCodeTypeMismatch       = "TYPE_MISMATCH"
	ErrCodeDatasetNotFound    = "DATASET_NOT_FOUND"
	ErrCodeDataPointNotFound  = "DATA_POINT_NOT_FOUND"
	ErrCodeChartNotFound      = "CHART_NOT_FOUND"
	ErrCodeDatasetNameTaken   = "DATASET_NAME_TAKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// NewError creates a new Error
func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an invalid input error for a field
func NewValidationError(field, message string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidInput,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError creates a not found error for a resource
func NewNotFoundError(code, resource, id string) *Error {
	return &Error{
		Type:     ErrorTypeNotFound,
		Code:     code,
		Message:  resource + " not found",
		Resource: resource,
		ID:       id,
	}
}

// NewDatasetNotFoundError creates a dataset not found error
func NewDatasetNotFoundError(id string) *Error {
	return NewNotFoundError(ErrCodeDatasetNotFound, "dataset", id)
}

// NewDataPointNotFoundError creates a data point not found error
func NewDataPointNotFoundError(id string) *Error {
	return NewNotFoundError(ErrCodeDataPointNotFound, "data point", id)
}

// NewConflictError creates a dataset name conflict error
func NewConflictError(name string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeDatasetNameTaken,
		Message: "dataset name already exists",
		Field:   "name",
		Details: map[string]any{"name": name},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *Error {
	return &Error{
		Type:    ErrorTypeUnauthorized,
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError() *Error {
	return &Error{
		Type:    ErrorTypeRateLimited,
		Code:    ErrCodeRateLimited,
		Message: "too many requests",
	}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// ErrorTypeOf returns the category of err. Errors that are not *Error are internal.
func ErrorTypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeNotFound
}

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeConflict
}

// IsInvalidInput reports whether err is an invalid input error
func IsInvalidInput(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeInvalidInput
}
