package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/repository"
)

type ScheduleSessionInput struct {
	ClassTypeID int64
	CoachID     int64
	CohortID    *int64
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
}

// ScheduleService covers the operator side of the calendar: creating
// and cancelling class sessions and marking attendance. The booking
// core consumes its output but never mutates the schedule itself.
type ScheduleService struct {
	db               *pgxpool.Pool
	sessionRepo      *repository.ClassSessionRepository
	classTypeRepo    *repository.ClassTypeRepository
	registrationRepo *repository.RegistrationRepository
}

func NewScheduleService(
	db *pgxpool.Pool,
	sessionRepo *repository.ClassSessionRepository,
	classTypeRepo *repository.ClassTypeRepository,
	registrationRepo *repository.RegistrationRepository,
) *ScheduleService {
	return &ScheduleService{
		db:               db,
		sessionRepo:      sessionRepo,
		classTypeRepo:    classTypeRepo,
		registrationRepo: registrationRepo,
	}
}

func (s *ScheduleService) CreateSession(
	ctx context.Context,
	actor models.ActorContext,
	input ScheduleSessionInput,
) (*models.ClassSession, error) {
	if !actor.IsOperator() {
		return nil, ErrForbidden
	}
	if input.ClassTypeID <= 0 || input.Capacity <= 0 {
		return nil, ErrInvalidInput
	}
	if !input.EndsAt.After(input.StartsAt) || input.StartsAt.Before(time.Now().UTC()) {
		return nil, ErrInvalidInput
	}

	coachID := input.CoachID
	if actor.Role == models.RoleCoach {
		// Coaches schedule their own sessions only.
		coachID = actor.ID
	}
	if coachID <= 0 {
		return nil, ErrInvalidInput
	}

	if _, err := s.classTypeRepo.GetByID(ctx, input.ClassTypeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidInput
		}
		return nil, err
	}

	return s.sessionRepo.Create(ctx, repository.CreateClassSessionInput{
		ClassTypeID: input.ClassTypeID,
		CoachID:     coachID,
		CohortID:    input.CohortID,
		StartsAt:    input.StartsAt.UTC(),
		EndsAt:      input.EndsAt.UTC(),
		Capacity:    input.Capacity,
	})
}

// CancelSession withdraws a scheduled session. The booking core
// refuses new registrations once the status leaves scheduled; existing
// registrations stay for the operator to resolve member by member.
func (s *ScheduleService) CancelSession(
	ctx context.Context,
	actor models.ActorContext,
	sessionID int64,
) (*models.ClassSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !canManageSession(actor, session) {
		return nil, ErrForbidden
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, models.SessionScheduled, models.SessionCancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

func (s *ScheduleService) ListSessions(
	ctx context.Context,
	filter repository.ClassSessionListFilter,
) ([]models.ClassSessionDetail, int, error) {
	return s.sessionRepo.List(ctx, filter)
}

func (s *ScheduleService) ListClassTypes(ctx context.Context) ([]models.ClassType, error) {
	return s.classTypeRepo.List(ctx)
}

func (s *ScheduleService) GetSession(ctx context.Context, sessionID int64) (*models.ClassSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// SessionRoster lists every registration on a session for its coach or
// an admin.
func (s *ScheduleService) SessionRoster(
	ctx context.Context,
	actor models.ActorContext,
	sessionID int64,
) ([]models.Registration, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !canManageSession(actor, session) {
		return nil, ErrForbidden
	}
	return s.registrationRepo.ListBySession(ctx, sessionID)
}

// MarkAttendance records a post-hoc attendance outcome on a confirmed
// seat. The lifecycle check runs up front; the conditional update then
// guards against the row moving between read and write.
func (s *ScheduleService) MarkAttendance(
	ctx context.Context,
	actor models.ActorContext,
	registrationID int64,
	requestedStatus string,
) (*models.Registration, error) {
	status, err := normalizeAttendanceStatus(requestedStatus)
	if err != nil {
		return nil, err
	}

	registration, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, registration.SessionID)
	if err != nil {
		return nil, err
	}
	if !canManageSession(actor, session) {
		return nil, ErrForbidden
	}
	if !registration.Status.CanTransitionTo(status) {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.registrationRepo.UpdateAttendanceIfRegistered(ctx, registrationID, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

func canManageSession(actor models.ActorContext, session *models.ClassSession) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	if actor.Role == models.RoleCoach {
		return session.CoachID == actor.ID
	}
	return false
}

func normalizeAttendanceStatus(status string) (models.RegistrationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "attended":
		return models.RegistrationAttended, nil
	case "no_show", "no-show", "noshow":
		return models.RegistrationNoShow, nil
	default:
		return "", ErrInvalidStatus
	}
}
