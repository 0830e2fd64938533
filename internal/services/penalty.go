package services

import (
	"time"

	"github.com/saeid-a/StudioBack/internal/models"
)

// CancellationOutcome is the penalty engine's verdict for a single
// cancellation request.
type CancellationOutcome struct {
	TerminalStatus models.RegistrationStatus
	LateCancelled  bool
	RefundPack     bool
}

// EvaluateCancellation applies the late-cancellation policy. Waitlisted
// registrations always cancel cleanly: they hold no seat and consumed
// nothing, so timing is irrelevant. A confirmed seat cancelled inside
// the cutoff window becomes late_cancelled and forfeits any pack
// refund; outside the window the pack session comes back, provided the
// registration consumed one in the first place.
func EvaluateCancellation(
	registration *models.Registration,
	session *models.ClassSession,
	cutoffHours int,
	now time.Time,
) CancellationOutcome {
	if registration.Status == models.RegistrationWaitlisted {
		return CancellationOutcome{TerminalStatus: models.RegistrationCancelled}
	}

	hoursUntilStart := session.StartsAt.Sub(now).Hours()
	if hoursUntilStart < float64(cutoffHours) {
		return CancellationOutcome{
			TerminalStatus: models.RegistrationLateCancelled,
			LateCancelled:  true,
		}
	}

	return CancellationOutcome{
		TerminalStatus: models.RegistrationCancelled,
		RefundPack:     registration.PackConsumed,
	}
}
