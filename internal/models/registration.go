package models

import "time"

type RegistrationStatus string

const (
	RegistrationRegistered    RegistrationStatus = "registered"
	RegistrationWaitlisted    RegistrationStatus = "waitlisted"
	RegistrationCancelled     RegistrationStatus = "cancelled"
	RegistrationLateCancelled RegistrationStatus = "late_cancelled"
	RegistrationAttended      RegistrationStatus = "attended"
	RegistrationNoShow        RegistrationStatus = "no_show"
)

// IsTerminal reports whether a registration in this status is done
// moving through the booking lifecycle. Cancelled rows are terminal for
// booking purposes but may be reactivated by a fresh register call for
// the same member and session.
func (s RegistrationStatus) IsTerminal() bool {
	switch s {
	case RegistrationCancelled, RegistrationLateCancelled,
		RegistrationAttended, RegistrationNoShow:
		return true
	default:
		return false
	}
}

// HoldsSeat reports whether the status occupies one unit of session
// capacity. Waitlisted rows hold no seat.
func (s RegistrationStatus) HoldsSeat() bool {
	return s == RegistrationRegistered
}

// CanTransitionTo validates a status change against the registration
// lifecycle: registered and waitlisted rows may move to cancelled,
// late cancellation and attendance marking are only reachable from
// registered, and terminal states never move.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case RegistrationCancelled:
		return s == RegistrationRegistered || s == RegistrationWaitlisted
	case RegistrationLateCancelled:
		return s == RegistrationRegistered
	case RegistrationAttended, RegistrationNoShow:
		return s == RegistrationRegistered
	case RegistrationRegistered:
		// Waitlist promotion.
		return s == RegistrationWaitlisted
	default:
		return false
	}
}

// Registration links a member to a class session. At most one row
// exists per (session, member) pair; a cancelled row is reactivated in
// place when the member registers again.
type Registration struct {
	ID               int64              `json:"id"`
	SessionID        int64              `json:"session_id"`
	MemberID         int64              `json:"member_id"`
	Status           RegistrationStatus `json:"status"`
	WaitlistPosition *int               `json:"waitlist_position,omitempty"`
	PackConsumed     bool               `json:"-"`
	RegisteredAt     time.Time          `json:"registered_at"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	PromotedAt       *time.Time         `json:"promoted_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// RegistrationDetail decorates a registration with the session it
// targets for list endpoints.
type RegistrationDetail struct {
	Registration
	Session *ClassSession `json:"session,omitempty"`
}
