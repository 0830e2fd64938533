package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/repository"
)

type GrantMembershipInput struct {
	MemberID int64
	PlanID   int64
	StartsOn time.Time
}

type memberReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// MembershipService administers membership grants. The booking core
// only ever reads the single active membership and adjusts pack
// counters; creating and replacing grants happens here.
type MembershipService struct {
	db             *pgxpool.Pool
	membershipRepo *repository.MembershipRepository
	userRepo       memberReader
}

func NewMembershipService(
	db *pgxpool.Pool,
	membershipRepo *repository.MembershipRepository,
	userRepo memberReader,
) *MembershipService {
	return &MembershipService{
		db:             db,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
	}
}

// Grant creates a new active membership, closing any prior active one
// in the same transaction so a member never carries two.
func (s *MembershipService) Grant(
	ctx context.Context,
	actor models.ActorContext,
	input GrantMembershipInput,
) (*models.Membership, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if input.MemberID <= 0 || input.PlanID <= 0 {
		return nil, ErrInvalidInput
	}

	member, err := s.userRepo.GetByID(ctx, input.MemberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if member.Role != models.RoleMember {
		return nil, ErrInvalidInput
	}

	plan, err := s.membershipRepo.GetPlanByID(ctx, input.PlanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	startsOn := input.StartsOn
	if startsOn.IsZero() {
		startsOn = time.Now().UTC()
	}

	createInput := repository.CreateMembershipInput{
		MemberID: input.MemberID,
		PlanID:   input.PlanID,
		StartsOn: startsOn,
	}
	switch plan.Type {
	case models.PlanPack:
		if plan.SessionCount == nil {
			return nil, ErrInvalidInput
		}
		remaining := *plan.SessionCount
		createInput.RemainingSessions = &remaining
	case models.PlanPrepaid:
		if plan.DurationDays == nil {
			return nil, ErrInvalidInput
		}
		endsOn := startsOn.AddDate(0, 0, *plan.DurationDays)
		createInput.EndsOn = &endsOn
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMemberships := repository.NewMembershipRepository(tx)
	if err := txMemberships.CancelActiveForMember(ctx, input.MemberID); err != nil {
		return nil, err
	}
	membership, err := txMemberships.Create(ctx, createInput)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *MembershipService) GetCurrent(ctx context.Context, memberID int64) (*models.MembershipDetail, error) {
	detail, err := s.membershipRepo.GetActiveByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveMembership
		}
		return nil, err
	}
	return detail, nil
}

func (s *MembershipService) ListPlans(ctx context.Context) ([]models.MembershipPlan, error) {
	return s.membershipRepo.ListPlans(ctx)
}
