package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat      = errors.New("invalid format")
	ErrValidationFailed   = errors.New("validation failed")
	ErrNotFound           = errors.New("booking not found")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrNotificationFailed = errors.New("notification failed")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError carries a reason the caller can show as is.
type ValidationError struct {
	Reason string
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// TransitionError reports the status a booking was in when a transition was refused.
type TransitionError struct {
	BookingID int64
	Current   BookingStatus
	Target    BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %d is %s, cannot move to %s", e.BookingID, e.Current, e.Target)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Unavailable wraps an I/O failure so callers can match ErrStoreUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
