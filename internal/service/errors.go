package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrForbidden is returned when the caller may not perform the action
	ErrForbidden = errors.New("forbidden")

	// ErrSelfDeletion is a policy error: an admin may not delete their own profile
	ErrSelfDeletion = errors.New("cannot delete your own account")

	// Entity-specific not-found errors wrap ErrNotFound
	ErrBrandNotFound  = fmt.Errorf("brand: %w", ErrNotFound)
	ErrFunnelNotFound = fmt.Errorf("funnel: %w", ErrNotFound)
	ErrStageNotFound  = fmt.Errorf("stage: %w", ErrNotFound)
	ErrLeadNotFound   = fmt.Errorf("lead: %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user: %w", ErrNotFound)

	// ErrSameStage is returned when a lead is moved to the stage it already occupies
	ErrSameStage = errors.New("lead is already in this stage")

	// ErrNoStages is returned when a pipeline has no stages to place a new lead on
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrEmailTaken is returned when a profile with the same email exists
	ErrEmailTaken = errors.New("email already in use")
)

// IsPolicyError reports whether err is a business-policy rejection, as opposed to
// an authorization failure
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrSelfDeletion)
}

// notFound maps gorm's missing-row error to an entity sentinel and wraps anything else
func notFound(err error, sentinel error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}
