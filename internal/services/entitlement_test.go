package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMembershipReader struct {
	detail *models.MembershipDetail
	err    error
}

func (s *stubMembershipReader) GetActiveByMemberIDForUpdate(ctx context.Context, memberID int64) (*models.MembershipDetail, error) {
	return s.detail, s.err
}

type stubWeeklyCounter struct {
	count    int
	err      error
	lastFrom time.Time
	lastTo   time.Time
}

func (s *stubWeeklyCounter) CountActiveInWindow(ctx context.Context, memberID int64, from, to time.Time) (int, error) {
	s.lastFrom = from
	s.lastTo = to
	return s.count, s.err
}

func intPtr(v int) *int { return &v }

func recurringDetail(sessionsPerWeek int) *models.MembershipDetail {
	return &models.MembershipDetail{
		Membership: models.Membership{ID: 1, MemberID: 7, PlanID: 1, Status: models.MembershipActive},
		Plan: models.MembershipPlan{
			ID:              1,
			Type:            models.PlanRecurring,
			SessionsPerWeek: intPtr(sessionsPerWeek),
		},
	}
}

func testSession() *models.ClassSession {
	return &models.ClassSession{
		ID:          42,
		ClassTypeID: 3,
		Status:      models.SessionScheduled,
		StartsAt:    time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC),
		Capacity:    10,
	}
}

func TestEntitlementNoActiveMembership(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	memberships := &stubMembershipReader{err: pgx.ErrNoRows}

	_, err := resolver.Check(context.Background(), memberships, &stubWeeklyCounter{}, 7, testSession(), time.Now())
	assert.ErrorIs(t, err, ErrNoActiveMembership)
}

func TestEntitlementClassTypeNotAllowed(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	detail := recurringDetail(3)
	detail.Plan.AllowedClassTypes = []int64{1, 2}
	memberships := &stubMembershipReader{detail: detail}

	_, err := resolver.Check(context.Background(), memberships, &stubWeeklyCounter{}, 7, testSession(), time.Now())
	assert.ErrorIs(t, err, ErrClassTypeNotAllowed)
}

func TestEntitlementRecurringUnderLimit(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	memberships := &stubMembershipReader{detail: recurringDetail(3)}
	counter := &stubWeeklyCounter{count: 2}

	decision, err := resolver.Check(context.Background(), memberships, counter, 7, testSession(), time.Now())
	require.NoError(t, err)
	assert.False(t, decision.ConsumesPack)
}

func TestEntitlementRecurringAtLimit(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	memberships := &stubMembershipReader{detail: recurringDetail(3)}
	counter := &stubWeeklyCounter{count: 3}

	_, err := resolver.Check(context.Background(), memberships, counter, 7, testSession(), time.Now())

	var weeklyLimit *WeeklyLimitError
	require.True(t, errors.As(err, &weeklyLimit))
	assert.Equal(t, 3, weeklyLimit.Limit)
}

func TestEntitlementRecurringNoLimitConfigured(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	detail := recurringDetail(3)
	detail.Plan.SessionsPerWeek = nil
	memberships := &stubMembershipReader{detail: detail}

	decision, err := resolver.Check(context.Background(), memberships, &stubWeeklyCounter{count: 99}, 7, testSession(), time.Now())
	require.NoError(t, err)
	assert.False(t, decision.ConsumesPack)
}

func TestEntitlementPackWithSessionsLeft(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	detail := &models.MembershipDetail{
		Membership: models.Membership{ID: 2, MemberID: 7, RemainingSessions: intPtr(4)},
		Plan:       models.MembershipPlan{ID: 2, Type: models.PlanPack, SessionCount: intPtr(10)},
	}
	memberships := &stubMembershipReader{detail: detail}

	decision, err := resolver.Check(context.Background(), memberships, &stubWeeklyCounter{}, 7, testSession(), time.Now())
	require.NoError(t, err)
	assert.True(t, decision.ConsumesPack)
}

func TestEntitlementPackExhausted(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	for _, remaining := range []*int{nil, intPtr(0)} {
		detail := &models.MembershipDetail{
			Membership: models.Membership{ID: 2, MemberID: 7, RemainingSessions: remaining},
			Plan:       models.MembershipPlan{ID: 2, Type: models.PlanPack, SessionCount: intPtr(10)},
		}
		memberships := &stubMembershipReader{detail: detail}

		_, err := resolver.Check(context.Background(), memberships, &stubWeeklyCounter{}, 7, testSession(), time.Now())
		assert.ErrorIs(t, err, ErrPackExhausted)
	}
}

func TestEntitlementPrepaid(t *testing.T) {
	resolver := NewEntitlementResolver(nil)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	future := now.AddDate(0, 1, 0)
	detail := &models.MembershipDetail{
		Membership: models.Membership{ID: 3, MemberID: 7, EndsOn: &future},
		Plan:       models.MembershipPlan{ID: 3, Type: models.PlanPrepaid, DurationDays: intPtr(90)},
	}
	memberships := &stubMembershipReader{detail: detail}

	decision, err := resolver.Check(context.Background(), memberships, &stubWeeklyCounter{}, 7, testSession(), now)
	require.NoError(t, err)
	assert.False(t, decision.ConsumesPack)

	past := now.AddDate(0, 0, -1)
	detail.EndsOn = &past
	_, err = resolver.Check(context.Background(), memberships, &stubWeeklyCounter{}, 7, testSession(), now)
	assert.ErrorIs(t, err, ErrMembershipExpired)
}

func TestWeekWindowMondayAnchor(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		wantStart time.Time
	}{
		{
			"midweek",
			time.Date(2026, 9, 2, 15, 30, 0, 0, time.UTC), // Wednesday
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),  // Monday
		},
		{
			"monday midnight is its own week",
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			"sunday belongs to previous monday",
			time.Date(2026, 9, 6, 23, 59, 59, 0, time.UTC),
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to := weekWindow(tc.now, time.UTC)
			assert.Equal(t, tc.wantStart, from)
			assert.Equal(t, tc.wantStart.AddDate(0, 0, 7), to)
		})
	}
}

func TestWeekWindowUsesStudioTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Monday 03:00 UTC is still Sunday evening in New York, so the
	// window anchors to the previous Monday there.
	now := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	from, to := weekWindow(now, loc)

	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, loc), to)
}

func TestEntitlementPassesWeekWindowToCounter(t *testing.T) {
	resolver := NewEntitlementResolver(time.UTC)
	memberships := &stubMembershipReader{detail: recurringDetail(5)}
	counter := &stubWeeklyCounter{count: 0}

	now := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC) // Friday
	_, err := resolver.Check(context.Background(), memberships, counter, 7, testSession(), now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), counter.lastFrom)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), counter.lastTo)
}
