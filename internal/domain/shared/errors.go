// Package shared contains common domain types and errors used across the
// hafalan and clustering packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Confirmation required before a destructive operation
	ErrConfirmationRequired = errors.New("confirmation required")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Pipeline errors
	ErrMissingField      = errors.New("missing required field")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrDegenerateCluster = errors.New("degenerate cluster request")

	// Document store errors
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "hafalan", "clustering", "store"
	Op      string // Operation that failed, e.g., "Normalize", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student (santri) errors
var (
	ErrStudentNotFound      = NewDomainError("santri", "Find", ErrNotFound, "santri not found")
	ErrStudentAlreadyExists = NewDomainError("santri", "Create", ErrAlreadyExists, "santri already exists")
	ErrStudentHasRecords    = NewDomainError("santri", "Delete", ErrConfirmationRequired, "santri still has hafalan records")
)

// Record errors
var (
	ErrRecordNotFound  = NewDomainError("hafalan", "Find", ErrNotFound, "record not found")
	ErrSummaryNotFound = NewDomainError("hafalan", "FindSummary", ErrNotFound, "monthly summary not found")
	ErrInvalidPeriod   = NewDomainError("hafalan", "Validate", ErrInvalidInput, "invalid period")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsPipeline checks if the error halts an analysis run without being a fault.
func IsPipeline(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDegenerateCluster)
}

// IsUpstream checks if the error came from the document store.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
