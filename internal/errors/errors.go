package errors

import (
	"fmt"
)

// ScenariumError is the structured error type for Scenarium.
// It provides rich context for error handling, logging, and user presentation.
type ScenariumError struct {
	// Code is the unique error code (e.g., "ERR_201_PATH_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Parse, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ScenariumError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScenariumError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ScenariumError.
func (e *ScenariumError) Is(target error) bool {
	if t, ok := target.(*ScenariumError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScenariumError) WithDetail(key, value string) *ScenariumError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *ScenariumError) WithSuggestion(suggestion string) *ScenariumError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ScenariumError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *ScenariumError {
	return &ScenariumError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a ScenariumError from an existing error.
// The error's message becomes the ScenariumError message.
func Wrap(code string, err error) *ScenariumError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ScenariumError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *ScenariumError {
	return New(ErrCodePathNotFound, message, cause)
}

// ParseError creates a descriptor-parse error.
func ParseError(message string, cause error) *ScenariumError {
	return New(ErrCodeDescriptorMalformed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ScenariumError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ScenariumError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScenariumError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ScenariumError.
// Returns empty string if not a ScenariumError.
func GetCode(err error) string {
	if se, ok := err.(*ScenariumError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScenariumError.
// Returns empty string if not a ScenariumError.
func GetCategory(err error) Category {
	if se, ok := err.(*ScenariumError); ok {
		return se.Category
	}
	return ""
}
