package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/config"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/jobs"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/payment"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/video"
)

type stubProvisioner struct {
	createErr error
	created   []video.CreateMeetingInput
	deleted   []string
}

func (p *stubProvisioner) CreateMeeting(_ context.Context, input video.CreateMeetingInput) (*video.Meeting, error) {
	p.created = append(p.created, input)
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &video.Meeting{
		ID:       fmt.Sprintf("mtg-%d", input.SessionID),
		JoinURL:  "https://meetings.example.com/join",
		Password: "pw",
	}, nil
}

func (p *stubProvisioner) UpdateMeeting(context.Context, int64, string, time.Time, int) error {
	return nil
}

func (p *stubProvisioner) DeleteMeeting(_ context.Context, _ int64, meetingID string) error {
	p.deleted = append(p.deleted, meetingID)
	return nil
}

type stubQueue struct {
	enqueued []string
}

func (q *stubQueue) Enqueue(jobType string, _ any, _ time.Duration) (jobs.Handle, error) {
	q.enqueued = append(q.enqueued, jobType)
	return jobs.Handle(fmt.Sprintf("h-%d", len(q.enqueued))), nil
}

func (q *stubQueue) Cancel(jobs.Handle) {}

func newIntegrationLifecycleService(
	pool *pgxpool.Pool,
	provider payment.Provider,
	provisioner *stubProvisioner,
) *LifecycleService {
	cfg := &config.Config{
		PlatformCommissionRate: 0.15,
		PaymentReleaseHold:     72 * time.Hour,
		RefundTiers: []config.RefundTier{
			{HoursBefore: 24, RefundPercent: 100},
			{HoursBefore: 12, RefundPercent: 75},
			{HoursBefore: 2, RefundPercent: 50},
			{HoursBefore: 0, RefundPercent: 25},
		},
	}
	return NewLifecycleService(
		pool, cfg, payment.NewRegistry(provider),
		repository.NewSessionRepository(pool),
		repository.NewPaymentRepository(pool),
		repository.NewTimeSlotRepository(pool),
		repository.NewRecordRepository(pool),
		repository.NewBalanceRepository(pool),
		repository.NewDisputeRepository(pool),
		provisioner, &stubQueue{}, noopReminders{}, noopNotifier{},
		zerolog.Nop(),
	)
}

// bookCapturedSession books through the real booking flow and returns the
// session detail together with the capture callback the provider would
// deliver for it.
func bookCapturedSession(
	t *testing.T,
	ctx context.Context,
	pool *pgxpool.Pool,
	provider *fakeProvider,
	menteeID, mentorID int64,
	start time.Time,
) *models.SessionDetail {
	t.Helper()

	slot := createTestSlot(t, ctx, pool, mentorID, start, time.Hour)
	detail, err := newIntegrationBookingService(pool, provider).BookSession(ctx, menteeID, BookSessionInput{
		MentorID:   mentorID,
		TimeSlotID: slot.ID,
		Provider:   provider.name,
	})
	if err != nil {
		t.Fatalf("BookSession: %v", err)
	}

	provider.callbackResult = &payment.CallbackResult{
		Success:       true,
		Status:        payment.StatusCaptured,
		IntentID:      *detail.Payment.IntentID,
		TransactionID: fmt.Sprintf("txn-%d", detail.ID),
	}
	return detail
}

func TestCaptureCallbackReplayAppliesOnce(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	provider := &fakeProvider{name: "testpay"}
	provisioner := &stubProvisioner{}
	lifecycle := newIntegrationLifecycleService(pool, provider, provisioner)

	menteeID := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 100)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, menteeID, mentorID) })

	detail := bookCapturedSession(t, ctx, pool, provider, menteeID, mentorID, time.Now().UTC().Add(48*time.Hour))

	for delivery := 1; delivery <= 2; delivery++ {
		if _, err := lifecycle.HandlePaymentCallback(ctx, "testpay", nil, ""); err != nil {
			t.Fatalf("delivery %d: HandlePaymentCallback: %v", delivery, err)
		}
	}

	paymentRow, err := repository.NewPaymentRepository(pool).GetBySessionID(ctx, detail.ID)
	if err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if paymentRow.Status != models.PaymentStatusCaptured {
		t.Fatalf("expected captured payment, got %q", paymentRow.Status)
	}

	session, err := repository.NewSessionRepository(pool).GetByID(ctx, detail.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.Status != models.SessionStatusMeetingProvisioned {
		t.Fatalf("expected provisioned session, got %q", session.Status)
	}
	if session.MeetingID == nil || *session.MeetingID == "" {
		t.Fatal("expected a meeting attached to the session")
	}

	if len(provisioner.created) != 1 {
		t.Fatalf("expected exactly one provisioned meeting, got %d", len(provisioner.created))
	}

	balance, err := repository.NewBalanceRepository(pool).GetByMentorID(ctx, mentorID)
	if err != nil {
		t.Fatalf("reload balance: %v", err)
	}
	if want := paymentRow.MentorShare(); balance.PendingBalance != want {
		t.Fatalf("expected pending balance %.2f credited once, got %.2f", want, balance.PendingBalance)
	}
}

func TestProvisioningFailureLeavesPaymentCaptured(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	provider := &fakeProvider{name: "testpay"}
	provisioner := &stubProvisioner{createErr: fmt.Errorf("meeting api is down")}
	lifecycle := newIntegrationLifecycleService(pool, provider, provisioner)

	menteeID := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 90)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, menteeID, mentorID) })

	detail := bookCapturedSession(t, ctx, pool, provider, menteeID, mentorID, time.Now().UTC().Add(48*time.Hour))

	if _, err := lifecycle.HandlePaymentCallback(ctx, "testpay", nil, ""); err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}

	paymentRow, err := repository.NewPaymentRepository(pool).GetBySessionID(ctx, detail.ID)
	if err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if paymentRow.Status != models.PaymentStatusCaptured {
		t.Fatalf("payment must stay captured after a provisioning failure, got %q", paymentRow.Status)
	}

	session, err := repository.NewSessionRepository(pool).GetByID(ctx, detail.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.Status != models.SessionStatusConfirmed {
		t.Fatalf("expected confirmed session awaiting a meeting, got %q", session.Status)
	}
	if session.MeetingID != nil {
		t.Fatalf("expected no meeting on the session, got %v", *session.MeetingID)
	}
}

func TestCancelReleasesSlotAndRecordsOnce(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	provider := &fakeProvider{name: "testpay"}
	provisioner := &stubProvisioner{}
	lifecycle := newIntegrationLifecycleService(pool, provider, provisioner)

	menteeID := createTestAccount(t, ctx, pool, models.RoleMentee, 0)
	mentorID := createTestAccount(t, ctx, pool, models.RoleMentor, 100)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, menteeID, mentorID) })

	detail := bookCapturedSession(t, ctx, pool, provider, menteeID, mentorID, time.Now().UTC().Add(48*time.Hour))
	if _, err := lifecycle.HandlePaymentCallback(ctx, "testpay", nil, ""); err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}

	reason := "schedule conflict"
	outcome, err := lifecycle.Cancel(ctx, menteeID, models.RoleMentee, detail.ID, &reason)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome.Session.Status != models.SessionStatusCancelled {
		t.Fatalf("expected cancelled session, got %q", outcome.Session.Status)
	}
	if outcome.RefundPercent != 100 {
		t.Fatalf("expected full refund 48h out, got %.0f%%", outcome.RefundPercent)
	}

	slot, err := repository.NewTimeSlotRepository(pool).GetByID(ctx, *detail.TimeSlotID)
	if err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if slot.IsBooked || slot.SessionID != nil {
		t.Fatalf("expected the slot released, got %+v", slot)
	}

	records, err := repository.NewRecordRepository(pool).ListCancelsBySession(ctx, detail.ID)
	if err != nil {
		t.Fatalf("list cancel records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one cancel record, got %d", len(records))
	}
	if records[0].RefundPercent != 100 || records[0].Reason == nil || *records[0].Reason != reason {
		t.Fatalf("unexpected cancel record: %+v", records[0])
	}

	if len(provider.refunds) != 1 {
		t.Fatalf("expected one provider refund, got %d", len(provider.refunds))
	}
	if len(provisioner.deleted) != 1 {
		t.Fatalf("expected the provisioned meeting torn down, got %d deletions", len(provisioner.deleted))
	}

	paymentRow, err := repository.NewPaymentRepository(pool).GetBySessionID(ctx, detail.ID)
	if err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if paymentRow.Status != models.PaymentStatusRefunded {
		t.Fatalf("expected refunded payment, got %q", paymentRow.Status)
	}

	balance, err := repository.NewBalanceRepository(pool).GetByMentorID(ctx, mentorID)
	if err != nil {
		t.Fatalf("reload balance: %v", err)
	}
	if balance.PendingBalance != 0 {
		t.Fatalf("expected the pending share backed out, got %.2f", balance.PendingBalance)
	}

	if _, err := lifecycle.Cancel(ctx, menteeID, models.RoleMentee, detail.ID, &reason); err != ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition on a second cancel, got %v", err)
	}
}
