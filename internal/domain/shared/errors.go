// Package shared contains common domain types, errors, events, and value objects
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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors - rejected before any mutation.
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNonPositive     = errors.New("value must be positive")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrUnknownEnum     = errors.New("unknown enumeration value")

	// Conflict errors - unique-constraint violations, surfaced for retry.
	ErrConflict = errors.New("conflict")

	// Consistency errors - derived state disagrees with authoritative state,
	// or the catalog itself is broken. Logged, never silently repaired.
	ErrConsistency = errors.New("consistency violation")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrAlreadyDone     = errors.New("already completed")

	// Storage errors
	ErrTransientStorage = errors.New("transient storage error")
	ErrStorageClosed    = errors.New("storage is closed")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "leaderboard", "lesson"
	Op      string // Operation that failed, e.g., "Append", "Recompute"
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

// Repository-level errors returned by persistence adapters. Domain
// packages carry their own validation sentinels; these exist so the
// application layer can classify storage outcomes without importing
// driver packages.
var (
	ErrEventNotFound          = NewDomainError("progression", "Find", ErrNotFound, "progression event not found")
	ErrProfileNotFound        = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrUserNotFound           = NewDomainError("profile", "Find", ErrNotFound, "user not found")
	ErrAchievementNotFound    = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrUnlockNotFound         = NewDomainError("achievement", "Find", ErrNotFound, "user achievement not found")
	ErrLessonNotFound         = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrLessonProgressNotFound = NewDomainError("lesson", "Find", ErrNotFound, "lesson progress not found")
	ErrSnapshotNotFound       = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard snapshot not found")
	ErrDuplicateName          = NewDomainError("profile", "Create", ErrConflict, "display name already taken")
	ErrDuplicateEvent         = NewDomainError("progression", "Append", ErrConflict, "progression event already recorded")
	ErrUserNotActive          = NewDomainError("profile", "CheckStatus", ErrInvalidState, "user is not active")
)

// External service errors
var (
	ErrTradingUnavailable = NewDomainError("trading", "Request", ErrServiceUnavailable, "trading stats provider is unavailable")
	ErrTradingTimeout     = NewDomainError("trading", "Request", ErrTimeout, "trading stats request timeout")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNonPositive) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrUnknownEnum)
}

// IsConflict checks if the error is a unique-constraint conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// IsConsistency checks if the error is a consistency violation.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrConsistency)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStorage) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
