package repository

import (
	"context"
	"time"

	"github.com/saeid-a/StudioBack/internal/models"
)

type CreateRegistrationInput struct {
	SessionID        int64
	MemberID         int64
	Status           models.RegistrationStatus
	WaitlistPosition *int
	PackConsumed     bool
}

type RegistrationRepository struct {
	db DBTX
}

func NewRegistrationRepository(db DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `
	id, session_id, member_id, status, waitlist_position, pack_consumed,
	registered_at, cancelled_at, promoted_at, created_at, updated_at
`

func scanRegistration(row interface{ Scan(dest ...any) error }) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(
		&reg.ID,
		&reg.SessionID,
		&reg.MemberID,
		&reg.Status,
		&reg.WaitlistPosition,
		&reg.PackConsumed,
		&reg.RegisteredAt,
		&reg.CancelledAt,
		&reg.PromotedAt,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *RegistrationRepository) Create(
	ctx context.Context,
	input CreateRegistrationInput,
) (*models.Registration, error) {
	query := `
		INSERT INTO registrations (session_id, member_id, status, waitlist_position, pack_consumed, registered_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + registrationColumns + `
	`
	return scanRegistration(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.MemberID,
		input.Status,
		input.WaitlistPosition,
		input.PackConsumed,
	))
}

// Reactivate turns a previously cancelled row into a fresh booking for
// the same member and session, so the pair never accumulates duplicate
// rows.
func (r *RegistrationRepository) Reactivate(
	ctx context.Context,
	registrationID int64,
	status models.RegistrationStatus,
	waitlistPosition *int,
	packConsumed bool,
) (*models.Registration, error) {
	query := `
		UPDATE registrations
		SET status = $2, waitlist_position = $3, pack_consumed = $4,
		    registered_at = NOW(), cancelled_at = NULL, promoted_at = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + registrationColumns + `
	`
	return scanRegistration(r.db.QueryRow(ctx, query, registrationID, status, waitlistPosition, packConsumed))
}

func (r *RegistrationRepository) GetByID(ctx context.Context, registrationID int64) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE id = $1
	`
	return scanRegistration(r.db.QueryRow(ctx, query, registrationID))
}

func (r *RegistrationRepository) GetByIDForUpdate(ctx context.Context, registrationID int64) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE id = $1
		FOR UPDATE
	`
	return scanRegistration(r.db.QueryRow(ctx, query, registrationID))
}

func (r *RegistrationRepository) FindBySessionAndMember(
	ctx context.Context,
	sessionID int64,
	memberID int64,
) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE session_id = $1 AND member_id = $2
	`
	return scanRegistration(r.db.QueryRow(ctx, query, sessionID, memberID))
}

// CountSeatHolders returns the session's occupancy: the number of
// registrations currently holding a confirmed seat.
func (r *RegistrationRepository) CountSeatHolders(ctx context.Context, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM registrations
		WHERE session_id = $1 AND status = 'registered'
	`
	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountActiveInWindow counts the member's non-cancelled,
// non-late-cancelled registrations whose session starts inside
// [from, to). Used for the recurring weekly quota.
func (r *RegistrationRepository) CountActiveInWindow(
	ctx context.Context,
	memberID int64,
	from time.Time,
	to time.Time,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM registrations reg
		JOIN class_sessions s ON s.id = reg.session_id
		WHERE reg.member_id = $1
		  AND reg.status NOT IN ('cancelled', 'late_cancelled')
		  AND s.starts_at >= $2
		  AND s.starts_at < $3
	`
	var count int
	if err := r.db.QueryRow(ctx, query, memberID, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LowestWaitlisted returns the next registration in line for the
// session, or pgx.ErrNoRows when the waitlist is empty.
func (r *RegistrationRepository) LowestWaitlisted(ctx context.Context, sessionID int64) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE session_id = $1 AND status = 'waitlisted'
		ORDER BY waitlist_position ASC
		LIMIT 1
		FOR UPDATE
	`
	return scanRegistration(r.db.QueryRow(ctx, query, sessionID))
}

// MarkCancelled moves a registration to its terminal cancellation
// status, clearing the waitlist position. The current-status guard
// makes the transition a compare-and-set.
func (r *RegistrationRepository) MarkCancelled(
	ctx context.Context,
	registrationID int64,
	currentStatus models.RegistrationStatus,
	terminalStatus models.RegistrationStatus,
) (*models.Registration, error) {
	query := `
		UPDATE registrations
		SET status = $3, waitlist_position = NULL, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + registrationColumns + `
	`
	return scanRegistration(r.db.QueryRow(ctx, query, registrationID, currentStatus, terminalStatus))
}

// ClearPackConsumed resets the consumption flag after the pack session
// has been refunded.
func (r *RegistrationRepository) ClearPackConsumed(ctx context.Context, registrationID int64) error {
	query := `
		UPDATE registrations
		SET pack_consumed = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, registrationID)
	return err
}

// Promote confirms a waitlisted registration into a freed seat.
func (r *RegistrationRepository) Promote(ctx context.Context, registrationID int64) (*models.Registration, error) {
	query := `
		UPDATE registrations
		SET status = 'registered', waitlist_position = NULL, promoted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'waitlisted'
		RETURNING ` + registrationColumns + `
	`
	return scanRegistration(r.db.QueryRow(ctx, query, registrationID))
}

// UpdateAttendanceIfRegistered marks attendance on a confirmed seat.
// Only registered rows are eligible; anything else yields pgx.ErrNoRows.
func (r *RegistrationRepository) UpdateAttendanceIfRegistered(
	ctx context.Context,
	registrationID int64,
	status models.RegistrationStatus,
) (*models.Registration, error) {
	query := `
		UPDATE registrations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'registered'
		RETURNING ` + registrationColumns + `
	`
	return scanRegistration(r.db.QueryRow(ctx, query, registrationID, status))
}

func (r *RegistrationRepository) ListByMember(
	ctx context.Context,
	memberID int64,
) ([]models.RegistrationDetail, error) {
	query := `
		SELECT reg.id, reg.session_id, reg.member_id, reg.status, reg.waitlist_position, reg.pack_consumed,
		       reg.registered_at, reg.cancelled_at, reg.promoted_at, reg.created_at, reg.updated_at,
		       s.id, s.class_type_id, s.coach_id, s.cohort_id, s.starts_at, s.ends_at,
		       s.capacity, s.status, s.waitlist_seq, s.created_at, s.updated_at
		FROM registrations reg
		JOIN class_sessions s ON s.id = reg.session_id
		WHERE reg.member_id = $1
		ORDER BY s.starts_at DESC, reg.id DESC
	`
	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]models.RegistrationDetail, 0)
	for rows.Next() {
		var detail models.RegistrationDetail
		var session models.ClassSession
		if err := rows.Scan(
			&detail.ID,
			&detail.SessionID,
			&detail.MemberID,
			&detail.Status,
			&detail.WaitlistPosition,
			&detail.PackConsumed,
			&detail.RegisteredAt,
			&detail.CancelledAt,
			&detail.PromotedAt,
			&detail.CreatedAt,
			&detail.UpdatedAt,
			&session.ID,
			&session.ClassTypeID,
			&session.CoachID,
			&session.CohortID,
			&session.StartsAt,
			&session.EndsAt,
			&session.Capacity,
			&session.Status,
			&session.WaitlistSeq,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		detail.Session = &session
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func (r *RegistrationRepository) ListBySession(
	ctx context.Context,
	sessionID int64,
) ([]models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE session_id = $1
		ORDER BY status ASC, waitlist_position ASC NULLS FIRST, registered_at ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	registrations := make([]models.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return registrations, nil
}
