package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrSuspiciousToken covers every structural or ownership problem
	// with a presented token: missing or malformed claims, type mismatch,
	// failed validation, unknown record, owner mismatch, hash mismatch,
	// expired or revoked record. Always a terminal rejection.
	ErrSuspiciousToken = errors.New("suspicious token")

	// ErrReplayDetected marks a confirmed replay: an already-used refresh
	// token presented outside its grace window.
	ErrReplayDetected = errors.New("token replay detected")

	// ErrTokenNotFound is raised during rotation when the presented token
	// references no persisted record. Distinct from ErrSuspiciousToken so
	// legacy single-use redemptions stay distinguishable.
	ErrTokenNotFound = errors.New("token not found")

	// ErrMissingRealmConfig indicates a deployment problem, not an attack.
	ErrMissingRealmConfig = errors.New("realm configuration missing")

	// ErrUserHasNoRoles indicates a data-integrity problem: a token cannot
	// outlive its user's role assignment.
	ErrUserHasNoRoles = errors.New("user has no roles assigned")

	// Repository-level sentinels.
	ErrNotFound       = errors.New("resource not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateValue = errors.New("duplicate value")
)

// SuspiciousToken wraps ErrSuspiciousToken with the concrete rejection
// reason so logs and alerts can tell the failure modes apart.
func SuspiciousToken(reason string) error {
	return fmt.Errorf("%w: %s", ErrSuspiciousToken, reason)
}

// ReplayError carries the forensic details of a detected replay.
type ReplayError struct {
	TokenFamily     uuid.UUID
	OriginalTokenID uuid.UUID
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("token replay detected: token %s of family %s redeemed after use",
		e.OriginalTokenID, e.TokenFamily)
}

// Is lets errors.Is(err, ErrReplayDetected) match a ReplayError.
func (e *ReplayError) Is(target error) bool {
	return target == ErrReplayDetected
}

// NewReplayError builds a ReplayError for the given family and token.
func NewReplayError(family, originalTokenID uuid.UUID) *ReplayError {
	return &ReplayError{TokenFamily: family, OriginalTokenID: originalTokenID}
}

// IsSecurity reports whether the error is one callers should alert on.
func IsSecurity(err error) bool {
	return errors.Is(err, ErrSuspiciousToken) ||
		errors.Is(err, ErrReplayDetected)
}

// IsNotFound reports whether the error is any of the "does not exist"
// conditions.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsConfiguration reports whether the error indicates a deployment or
// data-integrity problem rather than an attack.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrMissingRealmConfig) ||
		errors.Is(err, ErrUserHasNoRoles)
}
