package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/StudioBack/internal/models"
)

type membershipReader interface {
	GetActiveByMemberIDForUpdate(ctx context.Context, memberID int64) (*models.MembershipDetail, error)
}

type weeklyCounter interface {
	CountActiveInWindow(ctx context.Context, memberID int64, from, to time.Time) (int, error)
}

// EntitlementDecision is the outcome of a successful entitlement check:
// the membership it was resolved against and whether a confirmed seat
// must consume one pack session.
type EntitlementDecision struct {
	Membership   *models.MembershipDetail
	ConsumesPack bool
}

// EntitlementResolver decides whether a member's active membership
// permits registering for a session. It performs reads only; the
// booking transaction applies any consumption effect.
type EntitlementResolver struct {
	loc *time.Location
}

// NewEntitlementResolver anchors weekly quota windows to the studio's
// configured timezone.
func NewEntitlementResolver(loc *time.Location) *EntitlementResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &EntitlementResolver{loc: loc}
}

func (e *EntitlementResolver) Check(
	ctx context.Context,
	memberships membershipReader,
	registrations weeklyCounter,
	memberID int64,
	session *models.ClassSession,
	now time.Time,
) (*EntitlementDecision, error) {
	detail, err := memberships.GetActiveByMemberIDForUpdate(ctx, memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveMembership
		}
		return nil, err
	}

	if !detail.Plan.CoversClassType(session.ClassTypeID) {
		return nil, ErrClassTypeNotAllowed
	}

	decision := &EntitlementDecision{Membership: detail}

	switch detail.Plan.Type {
	case models.PlanRecurring:
		if detail.Plan.SessionsPerWeek == nil {
			return decision, nil
		}
		limit := *detail.Plan.SessionsPerWeek
		from, to := weekWindow(now, e.loc)
		count, err := registrations.CountActiveInWindow(ctx, memberID, from, to)
		if err != nil {
			return nil, err
		}
		if count >= limit {
			return nil, &WeeklyLimitError{Limit: limit}
		}
	case models.PlanPack:
		if detail.RemainingSessions == nil || *detail.RemainingSessions <= 0 {
			return nil, ErrPackExhausted
		}
		decision.ConsumesPack = true
	case models.PlanPrepaid:
		if detail.EndsOn != nil && detail.EndsOn.Before(now) {
			return nil, ErrMembershipExpired
		}
	}

	return decision, nil
}

// weekWindow returns the half-open calendar week [Monday 00:00, next
// Monday 00:00) containing t, in the studio timezone.
func weekWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	daysSinceMonday := (int(lt.Weekday()) + 6) % 7
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).
		AddDate(0, 0, -daysSinceMonday)
	return start, start.AddDate(0, 0, 7)
}
