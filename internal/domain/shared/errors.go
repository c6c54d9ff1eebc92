package shared

import "errors"

// ErrorKind classifies a DomainError for callers that need to decide on retries
// or response codes without matching individual codes.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindConflict     ErrorKind = "conflict"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a domain error for rejected input; never retried
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewNotFoundError creates a domain error for a missing referenced record
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindNotFound}
}

// NewInvalidStateError creates a domain error for an action not allowed in the current state
func NewInvalidStateError(message string) *DomainError {
	return &DomainError{Code: "INVALID_STATE", Message: message, Kind: KindInvalidState}
}

// IsValidation reports whether err is (or wraps) a validation or invalid-state error
func IsValidation(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind == KindValidation || de.Kind == KindInvalidState
}

// IsNotFound reports whether err is (or wraps) a not-found error
func IsNotFound(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind == KindNotFound || de.Code == ErrNotFound.Code
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = &DomainError{Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process", Kind: KindConflict}
	ErrInvalidState        = NewInvalidStateError("Operation not allowed in current state")
)
