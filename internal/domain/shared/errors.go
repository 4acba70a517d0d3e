// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// State errors
	ErrInvalidOperation = errors.New("invalid operation")

	// Storage errors
	ErrPersistence = errors.New("persistence failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "points", "roster"
	Op      string // Operation that failed, e.g., "Start", "Award"
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

// Session lifecycle errors
var (
	ErrSessionAlreadyActive = NewDomainError("session", "Start", ErrInvalidOperation, "session already active")
	ErrNoParticipants       = NewDomainError("session", "Start", ErrInvalidOperation, "participant set is empty")
	ErrUnknownParticipant   = NewDomainError("session", "Start", ErrInvalidOperation, "participant is not in the roster")
	ErrNoActiveSession      = NewDomainError("session", "End", ErrInvalidOperation, "no active session")
)

// Point award errors
var (
	ErrNegativeAward = NewDomainError("points", "Award", ErrInvalidOperation, "award amount cannot be negative")
)

// Roster errors
var (
	ErrFriendNotFound    = NewDomainError("roster", "Find", ErrNotFound, "friend not found")
	ErrFriendExists      = NewDomainError("roster", "Add", ErrAlreadyExists, "friend already exists")
	ErrFriendNameMissing = NewDomainError("roster", "Add", ErrEmptyValue, "friend display name is required")
)

// PersistenceWarning reports that an operation was applied in memory but
// its state could not be saved. The in-memory state stays authoritative.
type PersistenceWarning struct {
	Key string
	Err error
}

// Error implements the error interface.
func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("persistence warning: save %q: %v", w.Key, w.Err)
}

// Unwrap returns the underlying store error.
func (w *PersistenceWarning) Unwrap() error {
	return w.Err
}

// Is matches ErrPersistence.
func (w *PersistenceWarning) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceWarning wraps a store failure for the given key.
func NewPersistenceWarning(key string, err error) *PersistenceWarning {
	return &PersistenceWarning{Key: key, Err: err}
}

// IsInvalidOperation checks if the error rejects an operation that was not applied.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsPersistenceWarning checks if the error is a non-fatal save failure.
func IsPersistenceWarning(err error) bool {
	var w *PersistenceWarning
	return errors.As(err, &w)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue)
}
