package services

import (
	"testing"
	"time"

	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateCancellation(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name         string
		status       models.RegistrationStatus
		packConsumed bool
		startsIn     time.Duration
		cutoffHours  int
		want         CancellationOutcome
	}{
		{
			name:        "outside cutoff cancels cleanly",
			status:      models.RegistrationRegistered,
			startsIn:    48 * time.Hour,
			cutoffHours: 24,
			want:        CancellationOutcome{TerminalStatus: models.RegistrationCancelled},
		},
		{
			name:         "outside cutoff refunds consumed pack session",
			status:       models.RegistrationRegistered,
			packConsumed: true,
			startsIn:     48 * time.Hour,
			cutoffHours:  24,
			want:         CancellationOutcome{TerminalStatus: models.RegistrationCancelled, RefundPack: true},
		},
		{
			name:         "inside cutoff is a late cancel and forfeits the pack session",
			status:       models.RegistrationRegistered,
			packConsumed: true,
			startsIn:     6 * time.Hour,
			cutoffHours:  24,
			want:         CancellationOutcome{TerminalStatus: models.RegistrationLateCancelled, LateCancelled: true},
		},
		{
			name:        "exactly at cutoff is not late",
			status:      models.RegistrationRegistered,
			startsIn:    24 * time.Hour,
			cutoffHours: 24,
			want:        CancellationOutcome{TerminalStatus: models.RegistrationCancelled},
		},
		{
			name:        "zero cutoff never late cancels before start",
			status:      models.RegistrationRegistered,
			startsIn:    time.Minute,
			cutoffHours: 0,
			want:        CancellationOutcome{TerminalStatus: models.RegistrationCancelled},
		},
		{
			name:        "after start with zero cutoff is late",
			status:      models.RegistrationRegistered,
			startsIn:    -time.Minute,
			cutoffHours: 0,
			want:        CancellationOutcome{TerminalStatus: models.RegistrationLateCancelled, LateCancelled: true},
		},
		{
			name:         "waitlisted cancels cleanly inside cutoff",
			status:       models.RegistrationWaitlisted,
			packConsumed: false,
			startsIn:     time.Hour,
			cutoffHours:  24,
			want:         CancellationOutcome{TerminalStatus: models.RegistrationCancelled},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			registration := &models.Registration{
				Status:       tc.status,
				PackConsumed: tc.packConsumed,
			}
			session := &models.ClassSession{StartsAt: now.Add(tc.startsIn)}

			got := EvaluateCancellation(registration, session, tc.cutoffHours, now)
			assert.Equal(t, tc.want, got)
		})
	}
}
