package models

import "time"

type PlanType string

const (
	PlanRecurring PlanType = "recurring"
	PlanPack      PlanType = "pack"
	PlanPrepaid   PlanType = "prepaid"
)

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipPaused    MembershipStatus = "paused"
	MembershipCancelled MembershipStatus = "cancelled"
)

// MembershipPlan holds the static entitlement rules of a plan.
// SessionsPerWeek applies to recurring plans, SessionCount to pack
// plans (the live counter lives on the membership), DurationDays to
// prepaid plans. An empty AllowedClassTypes list covers all class types.
type MembershipPlan struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Type                  PlanType  `json:"type"`
	SessionsPerWeek       *int      `json:"sessions_per_week,omitempty"`
	SessionCount          *int      `json:"session_count,omitempty"`
	DurationDays          *int      `json:"duration_days,omitempty"`
	LateCancelCutoffHours int       `json:"late_cancel_cutoff_hours"`
	AllowedClassTypes     []int64   `json:"allowed_class_types"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// CoversClassType reports whether the plan's allow-list admits the
// given class type. An empty list admits everything.
func (p *MembershipPlan) CoversClassType(classTypeID int64) bool {
	if len(p.AllowedClassTypes) == 0 {
		return true
	}
	for _, id := range p.AllowedClassTypes {
		if id == classTypeID {
			return true
		}
	}
	return false
}

type Membership struct {
	ID                int64            `json:"id"`
	MemberID          int64            `json:"member_id"`
	PlanID            int64            `json:"plan_id"`
	Status            MembershipStatus `json:"status"`
	StartsOn          time.Time        `json:"starts_on"`
	EndsOn            *time.Time       `json:"ends_on,omitempty"`
	RemainingSessions *int             `json:"remaining_sessions,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// MembershipDetail pairs a membership with its plan, the shape the
// entitlement check works on.
type MembershipDetail struct {
	Membership
	Plan MembershipPlan `json:"plan"`
}
