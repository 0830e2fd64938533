package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    RegistrationStatus
		to      RegistrationStatus
		allowed bool
	}{
		{"registered cancels", RegistrationRegistered, RegistrationCancelled, true},
		{"waitlisted cancels", RegistrationWaitlisted, RegistrationCancelled, true},
		{"registered late cancels", RegistrationRegistered, RegistrationLateCancelled, true},
		{"waitlisted cannot late cancel", RegistrationWaitlisted, RegistrationLateCancelled, false},
		{"registered attends", RegistrationRegistered, RegistrationAttended, true},
		{"registered no-shows", RegistrationRegistered, RegistrationNoShow, true},
		{"waitlisted cannot attend", RegistrationWaitlisted, RegistrationAttended, false},
		{"waitlist promotion", RegistrationWaitlisted, RegistrationRegistered, true},
		{"registered cannot re-register", RegistrationRegistered, RegistrationRegistered, false},
		{"cancelled is terminal", RegistrationCancelled, RegistrationRegistered, false},
		{"late cancelled is terminal", RegistrationLateCancelled, RegistrationCancelled, false},
		{"attended is terminal", RegistrationAttended, RegistrationNoShow, false},
		{"no show is terminal", RegistrationNoShow, RegistrationCancelled, false},
		{"registered cannot waitlist", RegistrationRegistered, RegistrationWaitlisted, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestRegistrationStatusTerminal(t *testing.T) {
	assert.False(t, RegistrationRegistered.IsTerminal())
	assert.False(t, RegistrationWaitlisted.IsTerminal())
	assert.True(t, RegistrationCancelled.IsTerminal())
	assert.True(t, RegistrationLateCancelled.IsTerminal())
	assert.True(t, RegistrationAttended.IsTerminal())
	assert.True(t, RegistrationNoShow.IsTerminal())
}

func TestRegistrationStatusHoldsSeat(t *testing.T) {
	assert.True(t, RegistrationRegistered.HoldsSeat())
	assert.False(t, RegistrationWaitlisted.HoldsSeat())
	assert.False(t, RegistrationCancelled.HoldsSeat())
	assert.False(t, RegistrationAttended.HoldsSeat())
}
