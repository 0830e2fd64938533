package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestBookingFillsCapacityThenWaitlists(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 2, 3)

	var waitlistPositions []int
	for i, memberID := range fx.memberIDs {
		result, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
		if err != nil {
			t.Fatalf("Register member %d: %v", memberID, err)
		}
		if i < 2 {
			if result.Waitlisted {
				t.Fatalf("member %d should hold a seat, got waitlisted", memberID)
			}
		} else {
			if !result.Waitlisted || result.Registration.WaitlistPosition == nil {
				t.Fatalf("member %d should be waitlisted with a position, got %+v", memberID, result.Registration)
			}
			waitlistPositions = append(waitlistPositions, *result.Registration.WaitlistPosition)
		}
	}

	for i := 1; i < len(waitlistPositions); i++ {
		if waitlistPositions[i] <= waitlistPositions[i-1] {
			t.Fatalf("waitlist positions not strictly increasing: %v", waitlistPositions)
		}
	}

	registrations := repository.NewRegistrationRepository(pool)
	seated, err := registrations.CountSeatHolders(ctx, fx.sessionID)
	if err != nil {
		t.Fatalf("CountSeatHolders: %v", err)
	}
	if seated != 2 {
		t.Fatalf("expected 2 seat holders, got %d", seated)
	}
}

func TestBookingRejectsDuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 5, 1)
	memberID := fx.memberIDs[0]

	if _, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID); err != ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestBookingCancelPromotesLowestWaitlisted(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 1, 3)

	seatHolder := fx.memberIDs[0]
	firstWaitlisted := fx.memberIDs[1]

	var seatHolderRegID int64
	for _, memberID := range fx.memberIDs {
		result, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
		if err != nil {
			t.Fatalf("Register member %d: %v", memberID, err)
		}
		if memberID == seatHolder {
			seatHolderRegID = result.Registration.ID
		}
	}

	result, err := service.Cancel(ctx, fx.actor(seatHolder), seatHolderRegID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if result.Promoted == nil {
		t.Fatal("expected a waitlist promotion")
	}
	if result.Promoted.MemberID != firstWaitlisted {
		t.Fatalf("expected member %d promoted, got %d", firstWaitlisted, result.Promoted.MemberID)
	}
	if result.Promoted.Status != models.RegistrationRegistered || result.Promoted.WaitlistPosition != nil {
		t.Fatalf("promoted row not normalized: %+v", result.Promoted)
	}

	registrations := repository.NewRegistrationRepository(pool)
	seated, err := registrations.CountSeatHolders(ctx, fx.sessionID)
	if err != nil {
		t.Fatalf("CountSeatHolders: %v", err)
	}
	if seated != 1 {
		t.Fatalf("expected capacity to stay full at 1, got %d", seated)
	}
}

func TestBookingReactivatesCancelledRegistration(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 5, 1)
	memberID := fx.memberIDs[0]

	first, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := service.Cancel(ctx, fx.actor(memberID), first.Registration.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	second, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
	if err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	if second.Registration.ID != first.Registration.ID {
		t.Fatalf("expected reactivation of row %d, got new row %d", first.Registration.ID, second.Registration.ID)
	}
	if second.Registration.Status != models.RegistrationRegistered {
		t.Fatalf("expected registered after reactivation, got %s", second.Registration.Status)
	}
}

func TestBookingPackConsumptionAndRefund(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 5, 1)
	memberID := fx.memberIDs[0]
	fx.grantPackMembership(t, ctx, memberID, 2, 24)

	result, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if remaining := fx.remainingSessions(t, ctx, memberID); remaining != 1 {
		t.Fatalf("expected 1 session left after booking, got %d", remaining)
	}

	// Session starts well outside the 24h cutoff, so the cancellation
	// is timely and the pack session comes back.
	if _, err := service.Cancel(ctx, fx.actor(memberID), result.Registration.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if remaining := fx.remainingSessions(t, ctx, memberID); remaining != 2 {
		t.Fatalf("expected refund back to 2 sessions, got %d", remaining)
	}
}

func TestBookingLateCancelForfeitsPackSession(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixtureStartingIn(t, ctx, pool, 5, 1, 2*time.Hour)
	memberID := fx.memberIDs[0]
	fx.grantPackMembership(t, ctx, memberID, 2, 24)

	result, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, err := service.Cancel(ctx, fx.actor(memberID), result.Registration.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancel.LateCancelled {
		t.Fatal("expected a late cancellation inside the cutoff")
	}
	if cancel.Registration.Status != models.RegistrationLateCancelled {
		t.Fatalf("expected late_cancelled status, got %s", cancel.Registration.Status)
	}
	if remaining := fx.remainingSessions(t, ctx, memberID); remaining != 1 {
		t.Fatalf("expected forfeited pack session to stay consumed, got %d remaining", remaining)
	}
}

func TestBookingWaitlistedSeatConsumesNoPackSession(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 1, 2)
	seatHolder := fx.memberIDs[0]
	waitlisted := fx.memberIDs[1]
	fx.grantPackMembership(t, ctx, waitlisted, 3, 24)

	if _, err := service.Register(ctx, fx.actor(seatHolder), seatHolder, fx.sessionID); err != nil {
		t.Fatalf("Register seat holder: %v", err)
	}
	result, err := service.Register(ctx, fx.actor(waitlisted), waitlisted, fx.sessionID)
	if err != nil {
		t.Fatalf("Register waitlisted: %v", err)
	}
	if !result.Waitlisted {
		t.Fatal("expected second member to be waitlisted")
	}
	if remaining := fx.remainingSessions(t, ctx, waitlisted); remaining != 3 {
		t.Fatalf("waitlisted booking should not consume a pack session, got %d remaining", remaining)
	}
}

func TestBookingConcurrentRegistrationsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)

	const capacity = 2
	const members = 8
	fx := newBookingFixture(t, ctx, pool, capacity, members)

	var wg sync.WaitGroup
	results := make([]*RegisterResult, members)
	errs := make([]error, members)
	for i, memberID := range fx.memberIDs {
		wg.Add(1)
		go func(i int, memberID int64) {
			defer wg.Done()
			results[i], errs[i] = service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
		}(i, memberID)
	}
	wg.Wait()

	seated := 0
	positions := make(map[int]bool)
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Register member %d: %v", fx.memberIDs[i], errs[i])
		}
		if !results[i].Waitlisted {
			seated++
			continue
		}
		pos := results[i].Registration.WaitlistPosition
		if pos == nil {
			t.Fatalf("waitlisted member %d has no position", fx.memberIDs[i])
		}
		if positions[*pos] {
			t.Fatalf("waitlist position %d handed out twice", *pos)
		}
		positions[*pos] = true
	}
	if seated != capacity {
		t.Fatalf("expected exactly %d seats under contention, got %d", capacity, seated)
	}
	if len(positions) != members-capacity {
		t.Fatalf("expected %d waitlisted members, got %d", members-capacity, len(positions))
	}

	registrations := repository.NewRegistrationRepository(pool)
	count, err := registrations.CountSeatHolders(ctx, fx.sessionID)
	if err != nil {
		t.Fatalf("CountSeatHolders: %v", err)
	}
	if count > capacity {
		t.Fatalf("capacity exceeded: %d seat holders for capacity %d", count, capacity)
	}
}

func TestBookingCancelOnWithdrawnSessionSkipsPromotion(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 1, 2)

	seatHolder := fx.memberIDs[0]
	waitlisted := fx.memberIDs[1]

	seat, err := service.Register(ctx, fx.actor(seatHolder), seatHolder, fx.sessionID)
	if err != nil {
		t.Fatalf("Register seat holder: %v", err)
	}
	waiting, err := service.Register(ctx, fx.actor(waitlisted), waitlisted, fx.sessionID)
	if err != nil {
		t.Fatalf("Register waitlisted: %v", err)
	}

	sessions := repository.NewClassSessionRepository(pool)
	if _, err := sessions.UpdateStatusIfCurrent(ctx, fx.sessionID, models.SessionScheduled, models.SessionCancelled); err != nil {
		t.Fatalf("withdraw session: %v", err)
	}

	result, err := service.Cancel(ctx, fx.actor(seatHolder), seat.Registration.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if result.Promoted != nil {
		t.Fatalf("expected no promotion into a withdrawn session, got %+v", result.Promoted)
	}

	registrations := repository.NewRegistrationRepository(pool)
	still, err := registrations.GetByID(ctx, waiting.Registration.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if still.Status != models.RegistrationWaitlisted {
		t.Fatalf("expected waitlisted member to stay put, got %s", still.Status)
	}
}

func TestAttendanceRequiresConfirmedSeat(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewBookingService(pool, NewEntitlementResolver(time.UTC), nil)
	fx := newBookingFixture(t, ctx, pool, 5, 1)
	memberID := fx.memberIDs[0]

	result, err := service.Register(ctx, fx.actor(memberID), memberID, fx.sessionID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := service.Cancel(ctx, fx.actor(memberID), result.Registration.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	schedule := NewScheduleService(
		pool,
		repository.NewClassSessionRepository(pool),
		repository.NewClassTypeRepository(pool),
		repository.NewRegistrationRepository(pool),
	)
	coach := models.ActorContext{ID: fx.coachID, Role: models.RoleCoach}
	if _, err := schedule.MarkAttendance(ctx, coach, result.Registration.ID, "attended"); err != ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition for a cancelled row, got %v", err)
	}
}

type bookingFixture struct {
	pool       *pgxpool.Pool
	sessionID  int64
	memberIDs  []int64
	coachID    int64
	planIDs    []int64
	cleanupIDs []int64
}

func newBookingFixture(t *testing.T, ctx context.Context, pool *pgxpool.Pool, capacity, members int) *bookingFixture {
	return newBookingFixtureStartingIn(t, ctx, pool, capacity, members, 72*time.Hour)
}

func newBookingFixtureStartingIn(
	t *testing.T,
	ctx context.Context,
	pool *pgxpool.Pool,
	capacity, members int,
	startsIn time.Duration,
) *bookingFixture {
	t.Helper()

	fx := &bookingFixture{pool: pool}
	fx.coachID = fx.createUser(t, ctx, models.RoleCoach)
	for i := 0; i < members; i++ {
		memberID := fx.createUser(t, ctx, models.RoleMember)
		fx.memberIDs = append(fx.memberIDs, memberID)
		fx.grantRecurringMembership(t, ctx, memberID, 100, 24)
	}

	var classTypeID int64
	if err := pool.QueryRow(ctx,
		"INSERT INTO class_types (name, description) VALUES ($1, '') RETURNING id",
		fmt.Sprintf("booking-test-%d", time.Now().UnixNano()),
	).Scan(&classTypeID); err != nil {
		t.Fatalf("create class type: %v", err)
	}

	startsAt := time.Now().UTC().Add(startsIn)
	session, err := repository.NewClassSessionRepository(pool).Create(ctx, repository.CreateClassSessionInput{
		ClassTypeID: classTypeID,
		CoachID:     fx.coachID,
		StartsAt:    startsAt,
		EndsAt:      startsAt.Add(time.Hour),
		Capacity:    capacity,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	fx.sessionID = session.ID

	t.Cleanup(func() {
		ids := append([]int64{}, fx.memberIDs...)
		ids = append(ids, fx.coachID)
		if _, err := pool.Exec(ctx, "DELETE FROM registrations WHERE session_id = $1", fx.sessionID); err != nil {
			t.Fatalf("cleanup registrations: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM class_sessions WHERE id = $1", fx.sessionID); err != nil {
			t.Fatalf("cleanup session: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM memberships WHERE member_id = ANY($1)", ids); err != nil {
			t.Fatalf("cleanup memberships: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM membership_plans WHERE id = ANY($1)", fx.planIDs); err != nil {
			t.Fatalf("cleanup plans: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM class_types WHERE id = $1", classTypeID); err != nil {
			t.Fatalf("cleanup class type: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", ids); err != nil {
			t.Fatalf("cleanup users: %v", err)
		}
	})

	return fx
}

func (fx *bookingFixture) actor(memberID int64) models.ActorContext {
	return models.ActorContext{ID: memberID, Role: models.RoleMember}
}

func (fx *bookingFixture) createUser(t *testing.T, ctx context.Context, role string) int64 {
	t.Helper()

	user := &models.User{
		Email:        fmt.Sprintf("booking-test-%s-%d@example.com", role, time.Now().UnixNano()),
		PasswordHash: "test-hash",
		Role:         role,
	}
	if err := repository.NewUserRepository(fx.pool).CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return user.ID
}

func (fx *bookingFixture) grantRecurringMembership(t *testing.T, ctx context.Context, memberID int64, perWeek, cutoffHours int) {
	t.Helper()

	var planID int64
	if err := fx.pool.QueryRow(ctx,
		`INSERT INTO membership_plans (name, type, sessions_per_week, late_cancel_cutoff_hours)
		 VALUES ($1, 'recurring', $2, $3) RETURNING id`,
		fmt.Sprintf("recurring-test-%d-%d", memberID, time.Now().UnixNano()), perWeek, cutoffHours,
	).Scan(&planID); err != nil {
		t.Fatalf("create recurring plan: %v", err)
	}
	fx.planIDs = append(fx.planIDs, planID)

	if _, err := fx.pool.Exec(ctx,
		"INSERT INTO memberships (member_id, plan_id, status, starts_on) VALUES ($1, $2, 'active', NOW())",
		memberID, planID,
	); err != nil {
		t.Fatalf("create recurring membership: %v", err)
	}
}

func (fx *bookingFixture) grantPackMembership(t *testing.T, ctx context.Context, memberID int64, sessions, cutoffHours int) {
	t.Helper()

	// Replace the fixture's default recurring membership so the pack
	// plan is the single active one.
	if _, err := fx.pool.Exec(ctx,
		"UPDATE memberships SET status = 'cancelled', updated_at = NOW() WHERE member_id = $1 AND status = 'active'",
		memberID,
	); err != nil {
		t.Fatalf("cancel prior membership: %v", err)
	}

	var planID int64
	if err := fx.pool.QueryRow(ctx,
		`INSERT INTO membership_plans (name, type, session_count, late_cancel_cutoff_hours)
		 VALUES ($1, 'pack', $2, $3) RETURNING id`,
		fmt.Sprintf("pack-test-%d-%d", memberID, time.Now().UnixNano()), sessions, cutoffHours,
	).Scan(&planID); err != nil {
		t.Fatalf("create pack plan: %v", err)
	}
	fx.planIDs = append(fx.planIDs, planID)

	if _, err := fx.pool.Exec(ctx,
		"INSERT INTO memberships (member_id, plan_id, status, starts_on, remaining_sessions) VALUES ($1, $2, 'active', NOW(), $3)",
		memberID, planID, sessions,
	); err != nil {
		t.Fatalf("create pack membership: %v", err)
	}
}

func (fx *bookingFixture) remainingSessions(t *testing.T, ctx context.Context, memberID int64) int {
	t.Helper()

	var remaining int
	if err := fx.pool.QueryRow(ctx,
		"SELECT remaining_sessions FROM memberships WHERE member_id = $1 AND status = 'active'",
		memberID,
	).Scan(&remaining); err != nil {
		t.Fatalf("read remaining_sessions: %v", err)
	}
	return remaining
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}
