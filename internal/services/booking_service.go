package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/repository"
)

const defaultMaxBookingAttempts = 3

// Notifier receives booking events after the owning transaction has
// committed. Delivery is best effort.
type Notifier interface {
	RegistrationPromoted(memberID int64, registration *models.Registration, session *models.ClassSession)
}

// BookingService owns the register and cancel transactions. All reads
// and writes touching one session's occupancy and waitlist run under a
// per-session advisory lock inside a single transaction, so admission
// decisions and row writes stay consistent across concurrent requests.
type BookingService struct {
	db          *pgxpool.Pool
	resolver    *EntitlementResolver
	notifier    Notifier
	maxAttempts int
	now         func() time.Time
}

func NewBookingService(db *pgxpool.Pool, resolver *EntitlementResolver, notifier Notifier) *BookingService {
	return &BookingService{
		db:          db,
		resolver:    resolver,
		notifier:    notifier,
		maxAttempts: defaultMaxBookingAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type RegisterResult struct {
	Registration *models.Registration `json:"registration"`
	Waitlisted   bool                 `json:"waitlisted"`
}

type CancelResult struct {
	Registration  *models.Registration `json:"registration"`
	LateCancelled bool                 `json:"late_cancelled"`
	Promoted      *models.Registration `json:"-"`
	promotedTo    *models.ClassSession
}

// Register books a member into a session, admitting them to a seat when
// occupancy allows and onto the waitlist otherwise. A previously
// cancelled registration for the same pair is reactivated in place.
func (s *BookingService) Register(
	ctx context.Context,
	actor models.ActorContext,
	memberID int64,
	sessionID int64,
) (*RegisterResult, error) {
	if memberID <= 0 || sessionID <= 0 {
		return nil, ErrInvalidInput
	}
	if actor.ID != memberID && !actor.IsOperator() {
		return nil, ErrForbidden
	}

	var result *RegisterResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		res, err := s.registerTx(ctx, tx, memberID, sessionID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BookingService) registerTx(
	ctx context.Context,
	tx pgx.Tx,
	memberID int64,
	sessionID int64,
) (*RegisterResult, error) {
	txSessions := repository.NewClassSessionRepository(tx)
	txRegistrations := repository.NewRegistrationRepository(tx)
	txMemberships := repository.NewMembershipRepository(tx)
	now := s.now()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", sessionID); err != nil {
		return nil, err
	}

	session, err := txSessions.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != models.SessionScheduled || !session.StartsAt.After(now) {
		return nil, ErrSessionNotAvailable
	}

	existing, err := txRegistrations.FindBySessionAndMember(ctx, sessionID, memberID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil && existing.Status != models.RegistrationCancelled {
		return nil, ErrAlreadyRegistered
	}

	decision, err := s.resolver.Check(ctx, txMemberships, txRegistrations, memberID, session, now)
	if err != nil {
		return nil, err
	}

	occupancy, err := txRegistrations.CountSeatHolders(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	status := models.RegistrationRegistered
	var position *int
	consumesPack := false
	if occupancy >= session.Capacity {
		status = models.RegistrationWaitlisted
		pos, err := txSessions.NextWaitlistPosition(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		position = &pos
	} else {
		consumesPack = decision.ConsumesPack
	}

	var registration *models.Registration
	if existing != nil {
		registration, err = txRegistrations.Reactivate(ctx, existing.ID, status, position, consumesPack)
	} else {
		registration, err = txRegistrations.Create(ctx, repository.CreateRegistrationInput{
			SessionID:        sessionID,
			MemberID:         memberID,
			Status:           status,
			WaitlistPosition: position,
			PackConsumed:     consumesPack,
		})
	}
	if err != nil {
		return nil, err
	}

	if consumesPack {
		if _, err := txMemberships.DecrementRemaining(ctx, decision.Membership.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrPackExhausted
			}
			return nil, err
		}
	}

	return &RegisterResult{
		Registration: registration,
		Waitlisted:   status == models.RegistrationWaitlisted,
	}, nil
}

// Cancel moves a registration to its terminal cancellation status,
// refunds a consumed pack session when the cancellation is timely, and,
// while the session is still scheduled, promotes the next waitlisted
// member into the freed seat. The promotion happens inside the same
// transaction so a concurrent register call cannot slip into the freed
// seat first.
func (s *BookingService) Cancel(
	ctx context.Context,
	actor models.ActorContext,
	registrationID int64,
) (*CancelResult, error) {
	if registrationID <= 0 {
		return nil, ErrInvalidInput
	}

	var result *CancelResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		res, err := s.cancelTx(ctx, tx, actor, registrationID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Promoted != nil && s.notifier != nil {
		s.notifier.RegistrationPromoted(result.Promoted.MemberID, result.Promoted, result.promotedTo)
	}
	return result, nil
}

func (s *BookingService) cancelTx(
	ctx context.Context,
	tx pgx.Tx,
	actor models.ActorContext,
	registrationID int64,
) (*CancelResult, error) {
	txSessions := repository.NewClassSessionRepository(tx)
	txRegistrations := repository.NewRegistrationRepository(tx)
	txMemberships := repository.NewMembershipRepository(tx)
	now := s.now()

	registration, err := txRegistrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	if registration.MemberID != actor.ID && !actor.IsOperator() {
		return nil, ErrForbidden
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", registration.SessionID); err != nil {
		return nil, err
	}

	// Reload under the session lock; the row may have moved while we
	// waited.
	registration, err = txRegistrations.GetByIDForUpdate(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if registration.Status.IsTerminal() {
		return nil, ErrNotCancellable
	}

	session, err := txSessions.GetByIDForUpdate(ctx, registration.SessionID)
	if err != nil {
		return nil, err
	}

	cutoffHours := 0
	membership, err := txMemberships.GetActiveByMemberIDForUpdate(ctx, registration.MemberID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		membership = nil
	}
	if membership != nil {
		cutoffHours = membership.Plan.LateCancelCutoffHours
	}

	outcome := EvaluateCancellation(registration, session, cutoffHours, now)
	if !registration.Status.CanTransitionTo(outcome.TerminalStatus) {
		return nil, ErrNotCancellable
	}
	heldSeat := registration.Status.HoldsSeat()

	updated, err := txRegistrations.MarkCancelled(ctx, registrationID, registration.Status, outcome.TerminalStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotCancellable
		}
		return nil, err
	}

	if outcome.RefundPack && membership != nil && membership.Plan.Type == models.PlanPack {
		if _, err := txMemberships.IncrementRemaining(ctx, membership.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err := txRegistrations.ClearPackConsumed(ctx, registrationID); err != nil {
			return nil, err
		}
	}

	result := &CancelResult{
		Registration:  updated,
		LateCancelled: outcome.LateCancelled,
	}

	// A freed seat on a withdrawn session is not worth filling; the
	// waitlisted rows stay put for the operator to resolve.
	if heldSeat && session.Status == models.SessionScheduled {
		next, err := txRegistrations.LowestWaitlisted(ctx, registration.SessionID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, err
			}
			return result, nil
		}
		if !next.Status.CanTransitionTo(models.RegistrationRegistered) {
			return nil, ErrInvalidStateTransition
		}
		promoted, err := txRegistrations.Promote(ctx, next.ID)
		if err != nil {
			return nil, err
		}
		result.Promoted = promoted
		result.promotedTo = session
	}

	return result, nil
}

// inTx runs fn inside a transaction, retrying the whole unit a bounded
// number of times on serialization failures and deadlocks. Business
// rejections are never retried.
func (s *BookingService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= s.maxAttempts {
			return ErrBookingUnavailable
		}
	}
}

func (s *BookingService) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
