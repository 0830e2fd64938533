package services

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotAvailable  = errors.New("session not open for registration")
	ErrAlreadyRegistered    = errors.New("already registered for this session")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrNotCancellable       = errors.New("registration can no longer be cancelled")

	ErrNoActiveMembership  = errors.New("no active membership")
	ErrClassTypeNotAllowed = errors.New("membership does not cover this class type")
	ErrPackExhausted       = errors.New("no sessions left on pack")
	ErrMembershipExpired   = errors.New("membership has expired")

	ErrMemberNotFound = errors.New("member not found")
	ErrPlanNotFound   = errors.New("membership plan not found")

	// ErrBookingUnavailable surfaces after transactional retries are
	// exhausted; it carries no business meaning and the caller may try
	// again.
	ErrBookingUnavailable = errors.New("booking temporarily unavailable")
)

// WeeklyLimitError reports a recurring plan's weekly quota being hit,
// carrying the limit so the caller can explain the rejection.
type WeeklyLimitError struct {
	Limit int
}

func (e *WeeklyLimitError) Error() string {
	return fmt.Sprintf("weekly session limit of %d reached", e.Limit)
}
