// Package apperrors defines typed application errors shared across services.
package apperrors

import "fmt"

// ErrNotFound represents a "not found" error
// This should be used when a requested resource doesn't exist
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found
type NotFoundError struct {
	Resource string
	Message  string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Resource != "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return "resource not found"
}

// Is implements the error interface for error comparison
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// NewNotFoundError creates a new NotFoundError with a custom message
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// ErrProvider represents an embedding provider failure
// This should be used when the embedding model call fails or returns unusable output
var ErrProvider = &ProviderError{}

// ProviderError is returned when the embedding provider is unreachable,
// times out, or returns a malformed or empty response. Callers on the write
// path propagate it; the search path catches it and degrades to empty results.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "embedding provider call failed"
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As chains
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)
	return ok
}

// NewProviderError creates a new ProviderError wrapping the given cause
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}
