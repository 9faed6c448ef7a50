// Package shared contains common domain types, errors, events, and the
// key-value store contract used across all domain packages. This package has
// zero external dependencies.
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
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Storage errors
	ErrKeyNotFound      = errors.New("key not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "referral", "minigame"
	Op      string // Operation that failed, e.g., "Award", "Redeem"
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

// Ledger domain errors
var (
	ErrInvalidAmount = NewDomainError("ledger", "Award", ErrValidation, "point amount must be positive")
)

// Referral domain errors
var (
	ErrCodeNotFound    = NewDomainError("referral", "Redeem", ErrNotFound, "referral code not found")
	ErrCodeExpired     = NewDomainError("referral", "Redeem", ErrExpired, "referral code expired")
	ErrCodeRedeemed    = NewDomainError("referral", "Redeem", ErrAlreadyExists, "referral code already redeemed")
	ErrSelfReferral    = NewDomainError("referral", "Redeem", ErrInvalidInput, "cannot redeem own referral code")
	ErrAlreadyReferred = NewDomainError("referral", "Redeem", ErrAlreadyExists, "user already redeemed a referral code")
)

// Mini-game domain errors
var (
	ErrSessionNotFound = NewDomainError("minigame", "Resolve", ErrNotFound, "game session not found")
	ErrSessionExpired  = NewDomainError("minigame", "Resolve", ErrExpired, "game session expired")
	ErrInvalidGuess    = NewDomainError("minigame", "Resolve", ErrInvalidInput, "guess is not a valid option")
	ErrInvalidCell     = NewDomainError("minigame", "ClickCell", ErrInvalidInput, "cell index out of grid bounds")
)

// Challenge domain errors
var (
	ErrChallengeNotFound = NewDomainError("challenge", "RecordProgress", ErrNotFound, "no challenge assigned for today")
	ErrAlreadyCompleted  = NewDomainError("challenge", "Complete", ErrAlreadyExists, "already completed")
)

// Leaderboard domain errors
var (
	ErrSnapshotNotFound = NewDomainError("leaderboard", "GetTopN", ErrNotFound, "no leaderboard snapshot available")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrKeyNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsExpired checks if the error is an expiry error.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

// IsRetryable checks if the operation can be retried.
// Only backing-store failures are retryable; domain rejections are final.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConcurrentModification)
}
