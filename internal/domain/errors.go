package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidRange      = fmt.Errorf("%w: check-out must be after check-in", ErrValidation)
	ErrUnavailable       = errors.New("listing is not available for the requested dates")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrDuplicateReview   = errors.New("listing already reviewed by this user")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
)

// Invalid wraps ErrValidation with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionError(from, to BookingStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CheckTransition returns ErrInvalidTransition unless from -> to is allowed.
func CheckTransition(from, to BookingStatus) error {
	if !from.CanTransitionTo(to) {
		return transitionError(from, to)
	}
	return nil
}
