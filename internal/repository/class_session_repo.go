package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saeid-a/StudioBack/internal/models"
)

type CreateClassSessionInput struct {
	ClassTypeID int64
	CoachID     int64
	CohortID    *int64
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
}

type ClassSessionListFilter struct {
	ClassTypeID int64
	CoachID     int64
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}

type ClassSessionRepository struct {
	db DBTX
}

func NewClassSessionRepository(db DBTX) *ClassSessionRepository {
	return &ClassSessionRepository{db: db}
}

const classSessionColumns = `
	id, class_type_id, coach_id, cohort_id, starts_at, ends_at, capacity, status, waitlist_seq, created_at, updated_at
`

func scanClassSession(row interface{ Scan(dest ...any) error }) (*models.ClassSession, error) {
	var session models.ClassSession
	err := row.Scan(
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
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ClassSessionRepository) Create(
	ctx context.Context,
	input CreateClassSessionInput,
) (*models.ClassSession, error) {
	query := `
		INSERT INTO class_sessions (class_type_id, coach_id, cohort_id, starts_at, ends_at, capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled')
		RETURNING ` + classSessionColumns + `
	`
	return scanClassSession(r.db.QueryRow(
		ctx,
		query,
		input.ClassTypeID,
		input.CoachID,
		input.CohortID,
		input.StartsAt,
		input.EndsAt,
		input.Capacity,
	))
}

func (r *ClassSessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.ClassSession, error) {
	query := `
		SELECT ` + classSessionColumns + `
		FROM class_sessions
		WHERE id = $1
	`
	return scanClassSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *ClassSessionRepository) GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.ClassSession, error) {
	query := `
		SELECT ` + classSessionColumns + `
		FROM class_sessions
		WHERE id = $1
		FOR UPDATE
	`
	return scanClassSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *ClassSessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + classSessionColumns + `
	`
	return scanClassSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// NextWaitlistPosition bumps the session's monotonic waitlist counter
// and returns the freshly assigned position. Positions strictly
// increase over the session's lifetime and are never handed out twice.
func (r *ClassSessionRepository) NextWaitlistPosition(ctx context.Context, sessionID int64) (int, error) {
	query := `
		UPDATE class_sessions
		SET waitlist_seq = waitlist_seq + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING waitlist_seq
	`
	var position int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&position); err != nil {
		return 0, err
	}
	return position, nil
}

// List returns scheduled sessions with their occupancy figures,
// paginated and ordered by start time.
func (r *ClassSessionRepository) List(
	ctx context.Context,
	filter ClassSessionListFilter,
) ([]models.ClassSessionDetail, int, error) {
	args := []any{}
	whereParts := []string{"s.status = 'scheduled'"}

	if filter.ClassTypeID > 0 {
		args = append(args, filter.ClassTypeID)
		whereParts = append(whereParts, fmt.Sprintf("s.class_type_id = $%d", len(args)))
	}
	if filter.CoachID > 0 {
		args = append(args, filter.CoachID)
		whereParts = append(whereParts, fmt.Sprintf("s.coach_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		whereParts = append(whereParts, fmt.Sprintf("s.starts_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		whereParts = append(whereParts, fmt.Sprintf("s.starts_at < $%d", len(args)))
	}

	where := strings.Join(whereParts, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM class_sessions s WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`
		SELECT s.id, s.class_type_id, s.coach_id, s.cohort_id, s.starts_at, s.ends_at,
		       s.capacity, s.status, s.waitlist_seq, s.created_at, s.updated_at,
		       ct.name,
		       COUNT(*) FILTER (WHERE reg.status = 'registered') AS registered,
		       COUNT(*) FILTER (WHERE reg.status = 'waitlisted') AS waitlisted
		FROM class_sessions s
		JOIN class_types ct ON ct.id = s.class_type_id
		LEFT JOIN registrations reg ON reg.session_id = s.id
		WHERE %s
		GROUP BY s.id, ct.name
		ORDER BY s.starts_at ASC, s.id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	details := make([]models.ClassSessionDetail, 0)
	for rows.Next() {
		var detail models.ClassSessionDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.ClassTypeID,
			&detail.CoachID,
			&detail.CohortID,
			&detail.StartsAt,
			&detail.EndsAt,
			&detail.Capacity,
			&detail.Status,
			&detail.WaitlistSeq,
			&detail.CreatedAt,
			&detail.UpdatedAt,
			&detail.ClassTypeName,
			&detail.Registered,
			&detail.Waitlisted,
		); err != nil {
			return nil, 0, err
		}
		detail.SpotsLeft = detail.Capacity - detail.Registered
		if detail.SpotsLeft < 0 {
			detail.SpotsLeft = 0
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return details, total, nil
}
