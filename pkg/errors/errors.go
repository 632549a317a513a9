package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors in the catalog core
type ErrorType string

const (
	// ErrorTypeRemoteUnavailable indicates a transport or network failure talking to the source of truth
	ErrorTypeRemoteUnavailable ErrorType = "REMOTE_UNAVAILABLE"

	// ErrorTypeInvalidQuery indicates the remote rejected the predicates or pagination
	ErrorTypeInvalidQuery ErrorType = "INVALID_QUERY"

	// ErrorTypeNotFound indicates a mutation target was missing
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeSuppressed indicates a failure cooldown is active for the channel
	ErrorTypeSuppressed ErrorType = "SUPPRESSED"

	// ErrorTypeUnauthorized indicates the session identity was rejected
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeValidation indicates a local invariant was violated
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an unexpected internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewRemoteUnavailableError creates a new transport error
func NewRemoteUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeRemoteUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewInvalidQueryError creates a new invalid query error
func NewInvalidQueryError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidQuery,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewSuppressedError creates a new suppressed error for a channel still cooling down
func NewSuppressedError(channel string, retryIn time.Duration) *AppError {
	return &AppError{
		Type:    ErrorTypeSuppressed,
		Message: fmt.Sprintf("%s failed recently; retry in %s", channel, retryIn.Round(time.Millisecond)),
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain holds an AppError of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// UserMessage returns the text shown to the user for err.
// AppErrors contribute their Message only; wrapped transport detail stays in logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
