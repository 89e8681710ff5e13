package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common domain error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	ErrCodeUpstreamFailure   = "UPSTREAM_FAILURE"
	ErrCodeIntegrityDeferred = "DATA_INTEGRITY_DEFERRED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message, details string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidInput,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: fmt.Sprintf("ID: %s", id),
	}
}

// NewNotAuthenticatedError creates a new not authenticated error
func NewNotAuthenticatedError() *DomainError {
	return &DomainError{
		Code:    ErrCodeNotAuthenticated,
		Message: "not authenticated",
	}
}

// NewUpstreamError creates a new upstream failure error for a failed or
// empty billing gateway result
func NewUpstreamError(operation, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUpstreamFailure,
		Message: fmt.Sprintf("billing gateway %s failed", operation),
		Details: reason,
	}
}

// NewIntegrityDeferredError creates an error for an event that references a
// not-yet-known parent resource. These are logged and dropped, never retried
// by this system.
func NewIntegrityDeferredError(resource, id, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeIntegrityDeferred,
		Message: fmt.Sprintf("%s event deferred", resource),
		Details: fmt.Sprintf("ID: %s, reason: %s", id, reason),
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// AsDomainError extracts a domain error from an error chain
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

func hasCode(err error, code string) bool {
	de := AsDomainError(err)
	return de != nil && de.Code == code
}

// IsNotFound reports whether err is a not found domain error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsNotAuthenticated reports whether err is a not authenticated domain error
func IsNotAuthenticated(err error) bool {
	return hasCode(err, ErrCodeNotAuthenticated)
}

// IsUpstreamFailure reports whether err is an upstream failure domain error
func IsUpstreamFailure(err error) bool {
	return hasCode(err, ErrCodeUpstreamFailure)
}
