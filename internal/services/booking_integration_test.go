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
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/config"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/payment"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestBookingFlowClaimsSlotAndOpensPayment(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	provider := &fakeProvider{name: "testpay"}
	service := newIntegrationBookingService(pool, provider)

	menteeID := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 100)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, menteeID, mentorID) })

	slot := createTestSlot(t, ctx, pool, mentorID, time.Now().UTC().Add(48*time.Hour), time.Hour)

	detail, err := service.BookSession(ctx, menteeID, BookSessionInput{
		MentorID:   mentorID,
		TimeSlotID: slot.ID,
		Provider:   "testpay",
	})
	if err != nil {
		t.Fatalf("BookSession: %v", err)
	}

	if detail.Status != models.SessionStatusBooked {
		t.Fatalf("expected booked session, got %q", detail.Status)
	}
	if detail.Payment == nil || detail.Payment.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %+v", detail.Payment)
	}
	if detail.Payment.Amount != 100 {
		t.Fatalf("expected amount 100 for a one-hour slot at rate 100, got %.2f", detail.Payment.Amount)
	}
	if detail.Payment.IntentID == nil || *detail.Payment.IntentID == "" {
		t.Fatalf("expected the provider intent to be stored, got %+v", detail.Payment)
	}
	if provider.lastIntent.OrderID == "" {
		t.Fatal("expected the provider to receive an order reference")
	}

	claimed, err := repository.NewTimeSlotRepository(pool).GetByID(ctx, slot.ID)
	if err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if !claimed.IsBooked || claimed.SessionID == nil || *claimed.SessionID != detail.ID {
		t.Fatalf("expected slot claimed by session %d, got %+v", detail.ID, claimed)
	}
}

func TestBookingRejectsClaimedSlot(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationBookingService(pool, &fakeProvider{name: "testpay"})

	firstMentee := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	secondMentee := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 80)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, firstMentee, secondMentee, mentorID) })

	slot := createTestSlot(t, ctx, pool, mentorID, time.Now().UTC().Add(72*time.Hour), time.Hour)

	if _, err := service.BookSession(ctx, firstMentee, BookSessionInput{
		MentorID:   mentorID,
		TimeSlotID: slot.ID,
		Provider:   "testpay",
	}); err != nil {
		t.Fatalf("first BookSession: %v", err)
	}

	_, err := service.BookSession(ctx, secondMentee, BookSessionInput{
		MentorID:   mentorID,
		TimeSlotID: slot.ID,
		Provider:   "testpay",
	})
	if err != ErrSlotUnavailable {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestBookingRollsBackOnProviderFailure(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	provider := &fakeProvider{
		name:      "testpay",
		intentErr: fmt.Errorf("gateway exploded"),
	}
	service := newIntegrationBookingService(pool, provider)

	menteeID := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 60)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, menteeID, mentorID) })

	slot := createTestSlot(t, ctx, pool, mentorID, time.Now().UTC().Add(24*time.Hour), time.Hour)

	if _, err := service.BookSession(ctx, menteeID, BookSessionInput{
		MentorID:   mentorID,
		TimeSlotID: slot.ID,
		Provider:   "testpay",
	}); err == nil {
		t.Fatal("expected booking to fail when the provider fails")
	}

	reloaded, err := repository.NewTimeSlotRepository(pool).GetByID(ctx, slot.ID)
	if err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if reloaded.IsBooked {
		t.Fatal("slot must be free again after the rollback")
	}

	sessions, err := repository.NewSessionRepository(pool).List(ctx, repository.SessionListFilter{
		ActorID: menteeID,
		Role:    models.RoleMentee,
	})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no session rows after rollback, got %d", len(sessions))
	}
}

func TestPayoutLifecycleReservesAndRestoresBalance(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	balanceRepo := repository.NewBalanceRepository(pool)
	service := NewBalanceService(pool, balanceRepo, repository.NewPaymentRepository(pool), noopNotifier{}, zerolog.Nop())

	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 50)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, mentorID) })

	if err := balanceRepo.AddPending(ctx, mentorID, 200); err != nil {
		t.Fatalf("AddPending: %v", err)
	}
	if err := balanceRepo.ReleasePending(ctx, mentorID, 200); err != nil {
		t.Fatalf("ReleasePending: %v", err)
	}

	if _, err := service.RequestPayout(ctx, mentorID, 500); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	payout, err := service.RequestPayout(ctx, mentorID, 150)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if payout.Status != models.PayoutStatusRequested {
		t.Fatalf("expected requested payout, got %q", payout.Status)
	}

	balance, err := service.GetBalance(ctx, mentorID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableBalance != 50 {
		t.Fatalf("expected 50 available after reservation, got %.2f", balance.AvailableBalance)
	}

	if _, err := service.AdvancePayout(ctx, mentorID, payout.ID, models.PayoutStatusCompleted); err != ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition for requested -> completed, got %v", err)
	}

	cancelled, err := service.AdvancePayout(ctx, mentorID, payout.ID, models.PayoutStatusCancelled)
	if err != nil {
		t.Fatalf("AdvancePayout cancel: %v", err)
	}
	if cancelled.Status != models.PayoutStatusCancelled {
		t.Fatalf("expected cancelled payout, got %q", cancelled.Status)
	}

	balance, err = service.GetBalance(ctx, mentorID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableBalance != 200 {
		t.Fatalf("expected reservation restored to 200, got %.2f", balance.AvailableBalance)
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, int64, string, string, string, *string) {}

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

func newIntegrationBookingService(pool *pgxpool.Pool, provider payment.Provider) *BookingService {
	return NewBookingService(
		pool,
		&config.Config{PlatformCommissionRate: 0.15},
		payment.NewRegistry(provider),
		repository.NewUserRepository(pool),
		repository.NewMentorProfileRepository(pool),
		repository.NewSessionRepository(pool),
		repository.NewPaymentRepository(pool),
		repository.NewTimeSlotRepository(pool),
		zerolog.Nop(),
	)
}

func createTestAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role string, hourlyRate float64) int64 {
	t.Helper()

	userRepo := repository.NewUserRepository(pool)
	user := &models.User{
		Email:        fmt.Sprintf("booking-test-%s-%d@example.com", role, time.Now().UnixNano()),
		PasswordHash: "test-hash",
		Role:         role,
	}
	if err := userRepo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	if role != models.RoleMentor {
		return user.ID
	}

	profileRepo := repository.NewMentorProfileRepository(pool)
	if err := profileRepo.CreateEmpty(ctx, user.ID); err != nil {
		t.Fatalf("CreateEmpty mentor profile: %v", err)
	}
	bio := "Test bio"
	if _, err := profileRepo.UpdateOnboarding(ctx, user.ID, repository.MentorOnboardingInput{
		FullName:   "Test Mentor",
		Bio:        &bio,
		Skills:     []string{"go"},
		HourlyRate: hourlyRate,
	}); err != nil {
		t.Fatalf("UpdateOnboarding mentor profile: %v", err)
	}
	return user.ID
}

func createTestSlot(t *testing.T, ctx context.Context, pool *pgxpool.Pool, mentorID int64, startAt time.Time, length time.Duration) *models.TimeSlot {
	t.Helper()

	slot, err := repository.NewTimeSlotRepository(pool).Create(ctx, mentorID, startAt, startAt.Add(length))
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot
}

func cleanupTestUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userIDs ...int64) {
	t.Helper()

	if len(userIDs) == 0 {
		return
	}

	statements := []string{
		"DELETE FROM balance_releases WHERE payment_id IN (SELECT id FROM payments WHERE mentee_id = ANY($1) OR mentor_id = ANY($1))",
		"DELETE FROM payments WHERE mentee_id = ANY($1) OR mentor_id = ANY($1)",
		"DELETE FROM session_disputes WHERE mentee_id = ANY($1)",
		"DELETE FROM cancel_records WHERE actor_id = ANY($1)",
		"DELETE FROM reschedule_records WHERE actor_id = ANY($1)",
		"DELETE FROM sessions WHERE mentee_id = ANY($1) OR mentor_id = ANY($1)",
		"DELETE FROM time_slots WHERE mentor_id = ANY($1)",
		"DELETE FROM payouts WHERE mentor_id = ANY($1)",
		"DELETE FROM mentor_balances WHERE mentor_id = ANY($1)",
		"DELETE FROM notifications WHERE user_id = ANY($1)",
		"DELETE FROM users WHERE id = ANY($1)",
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt, userIDs); err != nil {
			t.Fatalf("cleanup (%s): %v", stmt, err)
		}
	}
}
