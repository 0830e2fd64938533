package repository

import (
	"context"
	"time"

	"github.com/saeid-a/StudioBack/internal/models"
)

type CreateMembershipInput struct {
	MemberID          int64
	PlanID            int64
	StartsOn          time.Time
	EndsOn            *time.Time
	RemainingSessions *int
}

type MembershipRepository struct {
	db DBTX
}

func NewMembershipRepository(db DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipDetailColumns = `
	m.id, m.member_id, m.plan_id, m.status, m.starts_on, m.ends_on, m.remaining_sessions,
	m.created_at, m.updated_at,
	p.id, p.name, p.type, p.sessions_per_week, p.session_count, p.duration_days,
	p.late_cancel_cutoff_hours, p.allowed_class_types, p.created_at, p.updated_at
`

func scanMembershipDetail(row interface{ Scan(dest ...any) error }) (*models.MembershipDetail, error) {
	var detail models.MembershipDetail
	err := row.Scan(
		&detail.ID,
		&detail.MemberID,
		&detail.PlanID,
		&detail.Status,
		&detail.StartsOn,
		&detail.EndsOn,
		&detail.RemainingSessions,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&detail.Plan.ID,
		&detail.Plan.Name,
		&detail.Plan.Type,
		&detail.Plan.SessionsPerWeek,
		&detail.Plan.SessionCount,
		&detail.Plan.DurationDays,
		&detail.Plan.LateCancelCutoffHours,
		&detail.Plan.AllowedClassTypes,
		&detail.Plan.CreatedAt,
		&detail.Plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetActiveByMemberID returns the member's single active membership
// with its plan, or pgx.ErrNoRows when none exists.
func (r *MembershipRepository) GetActiveByMemberID(
	ctx context.Context,
	memberID int64,
) (*models.MembershipDetail, error) {
	query := `
		SELECT ` + membershipDetailColumns + `
		FROM memberships m
		JOIN membership_plans p ON p.id = m.plan_id
		WHERE m.member_id = $1 AND m.status = 'active'
		ORDER BY m.starts_on DESC
		LIMIT 1
	`
	return scanMembershipDetail(r.db.QueryRow(ctx, query, memberID))
}

// GetActiveByMemberIDForUpdate is the locking variant used inside the
// booking transaction so concurrent pack mutations serialize on the
// membership row.
func (r *MembershipRepository) GetActiveByMemberIDForUpdate(
	ctx context.Context,
	memberID int64,
) (*models.MembershipDetail, error) {
	query := `
		SELECT ` + membershipDetailColumns + `
		FROM memberships m
		JOIN membership_plans p ON p.id = m.plan_id
		WHERE m.member_id = $1 AND m.status = 'active'
		ORDER BY m.starts_on DESC
		LIMIT 1
		FOR UPDATE OF m
	`
	return scanMembershipDetail(r.db.QueryRow(ctx, query, memberID))
}

func (r *MembershipRepository) Create(
	ctx context.Context,
	input CreateMembershipInput,
) (*models.Membership, error) {
	query := `
		INSERT INTO memberships (member_id, plan_id, status, starts_on, ends_on, remaining_sessions)
		VALUES ($1, $2, 'active', $3, $4, $5)
		RETURNING id, member_id, plan_id, status, starts_on, ends_on, remaining_sessions, created_at, updated_at
	`
	var membership models.Membership
	err := r.db.QueryRow(
		ctx,
		query,
		input.MemberID,
		input.PlanID,
		input.StartsOn,
		input.EndsOn,
		input.RemainingSessions,
	).Scan(
		&membership.ID,
		&membership.MemberID,
		&membership.PlanID,
		&membership.Status,
		&membership.StartsOn,
		&membership.EndsOn,
		&membership.RemainingSessions,
		&membership.CreatedAt,
		&membership.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// CancelActiveForMember closes any currently active membership so the
// one-active-membership-per-member invariant holds when a new grant is
// created in the same transaction.
func (r *MembershipRepository) CancelActiveForMember(ctx context.Context, memberID int64) error {
	query := `
		UPDATE memberships
		SET status = 'cancelled', updated_at = NOW()
		WHERE member_id = $1 AND status = 'active'
	`
	_, err := r.db.Exec(ctx, query, memberID)
	return err
}

// DecrementRemaining consumes one pack session. It refuses to go below
// zero; pgx.ErrNoRows signals the pack was already exhausted.
func (r *MembershipRepository) DecrementRemaining(ctx context.Context, membershipID int64) (int, error) {
	query := `
		UPDATE memberships
		SET remaining_sessions = remaining_sessions - 1, updated_at = NOW()
		WHERE id = $1 AND remaining_sessions > 0
		RETURNING remaining_sessions
	`
	var remaining int
	if err := r.db.QueryRow(ctx, query, membershipID).Scan(&remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

// IncrementRemaining returns one pack session after a timely
// cancellation of a consuming registration.
func (r *MembershipRepository) IncrementRemaining(ctx context.Context, membershipID int64) (int, error) {
	query := `
		UPDATE memberships
		SET remaining_sessions = remaining_sessions + 1, updated_at = NOW()
		WHERE id = $1 AND remaining_sessions IS NOT NULL
		RETURNING remaining_sessions
	`
	var remaining int
	if err := r.db.QueryRow(ctx, query, membershipID).Scan(&remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *MembershipRepository) GetPlanByID(ctx context.Context, planID int64) (*models.MembershipPlan, error) {
	query := `
		SELECT id, name, type, sessions_per_week, session_count, duration_days,
		       late_cancel_cutoff_hours, allowed_class_types, created_at, updated_at
		FROM membership_plans
		WHERE id = $1
	`
	var plan models.MembershipPlan
	err := r.db.QueryRow(ctx, query, planID).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Type,
		&plan.SessionsPerWeek,
		&plan.SessionCount,
		&plan.DurationDays,
		&plan.LateCancelCutoffHours,
		&plan.AllowedClassTypes,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *MembershipRepository) ListPlans(ctx context.Context) ([]models.MembershipPlan, error) {
	query := `
		SELECT id, name, type, sessions_per_week, session_count, duration_days,
		       late_cancel_cutoff_hours, allowed_class_types, created_at, updated_at
		FROM membership_plans
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]models.MembershipPlan, 0)
	for rows.Next() {
		var plan models.MembershipPlan
		if err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&plan.Type,
			&plan.SessionsPerWeek,
			&plan.SessionCount,
			&plan.DurationDays,
			&plan.LateCancelCutoffHours,
			&plan.AllowedClassTypes,
			&plan.CreatedAt,
			&plan.UpdatedAt,
		); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}
