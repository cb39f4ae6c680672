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

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "mission", "setup"
	Op      string // Operation that failed, e.g., "ApplyXP", "Complete"
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

// Progression domain errors
var (
	ErrProgressNotFound = NewDomainError("progression", "Find", ErrNotFound, "user progress not found")
	ErrInvalidXPDelta   = NewDomainError("progression", "ApplyXP", ErrInvalidInput, "XP delta must be positive")
	ErrInvalidUserID    = NewDomainError("progression", "Validate", ErrInvalidID, "invalid user ID")
)

// Mission domain errors
var (
	ErrUnknownMission       = NewDomainError("mission", "Find", ErrNotFound, "mission is not in the active period set")
	ErrAlreadyCompleted     = NewDomainError("mission", "Complete", ErrAlreadyExists, "mission already completed this period")
	ErrMissionExpired       = NewDomainError("mission", "Complete", ErrExpired, "mission period has already ended")
	ErrProofRequired        = NewDomainError("mission", "Complete", ErrInvalidState, "mission requires proof submission")
	ErrProofNotRequired     = NewDomainError("mission", "SubmitProof", ErrInvalidState, "mission does not take proof")
	ErrEmptyProof           = NewDomainError("mission", "SubmitProof", ErrEmptyValue, "proof text cannot be empty")
	ErrInvalidMissionPeriod = NewDomainError("mission", "Validate", ErrInvalidInput, "invalid mission period")
)

// Setup domain errors
var (
	ErrSetupNotFound     = NewDomainError("setup", "Find", ErrNotFound, "setup profile not found")
	ErrInvalidSetupField = NewDomainError("setup", "Score", ErrInvalidInput, "unparseable setup field")
	ErrUnknownCategory   = NewDomainError("setup", "Score", ErrInvalidInput, "unknown component category")
)

// Achievement domain errors
var (
	ErrAchievementNotFound        = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAchievementAlreadyUnlocked = NewDomainError("achievement", "Unlock", ErrAlreadyProcessed, "achievement already unlocked")
)

// Leaderboard domain errors
var (
	ErrLeaderboardEmpty = NewDomainError("leaderboard", "Read", ErrNotFound, "leaderboard has no entries")
	ErrUserNotRanked    = NewDomainError("leaderboard", "Rank", ErrNotFound, "user not present in leaderboard")
)

// External service errors
var (
	ErrProofVerificationUnavailable = NewDomainError("verifier", "Verify", ErrServiceUnavailable, "proof verifier is unavailable")
	ErrVerifierTimeout              = NewDomainError("verifier", "Verify", ErrTimeout, "proof verifier request timed out")
	ErrVerifierInvalidResponse      = NewDomainError("verifier", "Parse", ErrInvalidFormat, "invalid response from proof verifier")
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
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
// Verifier outages are retryable; a verifier rejection is not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
