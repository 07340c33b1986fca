package domain

import (
	"errors"
	"fmt"
)

// Domain Const errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPermissionDenied   = errors.New("notification permission not granted")
	ErrManagerDisabled    = errors.New("notification manager is disabled")
	ErrCancellationFailed = errors.New("notification engine failed to cancel")
	ErrNoPendingPrompt    = errors.New("no authorization prompt is pending")
	ErrProviderError      = errors.New("external provider error")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets callers match any validation failure with errors.Is(err, ErrInvalidInput).
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", e.Errors[0].Error())
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

type ProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

func (e ProviderError) Is(target error) bool {
	return target == ErrProviderError
}

func NewProviderError(statusCode int, message string, retryable bool) ProviderError {
	return ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}
