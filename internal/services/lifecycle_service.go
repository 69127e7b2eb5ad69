package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/config"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/jobs"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/metrics"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/payment"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/video"
)

// JobTranscribeSession asks the transcript worker for an immediate attempt
// on one session, ahead of the periodic sweep.
const JobTranscribeSession = "session.transcribe"

type videoProvisioner interface {
	CreateMeeting(ctx context.Context, input video.CreateMeetingInput) (*video.Meeting, error)
	UpdateMeeting(ctx context.Context, sessionID int64, meetingID string, startTime time.Time, durationMinutes int) error
	DeleteMeeting(ctx context.Context, sessionID int64, meetingID string) error
}

// LifecycleService owns every session state transition after booking:
// payment confirmation, meeting provisioning, start/complete, cancellation
// with tiered refunds, reschedules and disputes.
type LifecycleService struct {
	db          *pgxpool.Pool
	cfg         *config.Config
	providers   *payment.Registry
	sessionRepo *repository.SessionRepository
	paymentRepo *repository.PaymentRepository
	slotRepo    *repository.TimeSlotRepository
	recordRepo  *repository.RecordRepository
	balanceRepo *repository.BalanceRepository
	disputeRepo *repository.DisputeRepository
	video       videoProvisioner
	queue       jobs.Queue
	reminders   reminderScheduler
	notifier    Notifier
	logger      zerolog.Logger
	now         func() time.Time
}

func NewLifecycleService(
	db *pgxpool.Pool,
	cfg *config.Config,
	providers *payment.Registry,
	sessionRepo *repository.SessionRepository,
	paymentRepo *repository.PaymentRepository,
	slotRepo *repository.TimeSlotRepository,
	recordRepo *repository.RecordRepository,
	balanceRepo *repository.BalanceRepository,
	disputeRepo *repository.DisputeRepository,
	videoClient videoProvisioner,
	queue jobs.Queue,
	reminders reminderScheduler,
	notifier Notifier,
	logger zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		db:          db,
		cfg:         cfg,
		providers:   providers,
		sessionRepo: sessionRepo,
		paymentRepo: paymentRepo,
		slotRepo:    slotRepo,
		recordRepo:  recordRepo,
		balanceRepo: balanceRepo,
		disputeRepo: disputeRepo,
		video:       videoClient,
		queue:       queue,
		reminders:   reminders,
		notifier:    notifier,
		logger:      logger.With().Str("component", "lifecycle_service").Logger(),
		now:         time.Now,
	}
}

// HandlePaymentCallback verifies and applies one provider notification.
// Replays of an already-applied event return cleanly so the provider stops
// redelivering.
func (s *LifecycleService) HandlePaymentCallback(
	ctx context.Context,
	providerName string,
	payload []byte,
	signature string,
) (*payment.CallbackResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	result, err := provider.HandleCallback(ctx, payload, signature)
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues(providerName, "rejected").Inc()
		return nil, err
	}

	switch result.Status {
	case payment.StatusCaptured:
		err = s.applyCapture(ctx, provider.Name(), result)
	case payment.StatusFailed:
		err = s.applyPaymentTerminal(ctx, result.IntentID, models.PaymentStatusFailed)
	case payment.StatusCanceled:
		err = s.applyPaymentTerminal(ctx, result.IntentID, models.PaymentStatusCanceled)
	default:
		s.logger.Info().
			Str("provider", providerName).
			Str("intent_id", result.IntentID).
			Str("status", string(result.Status)).
			Msg("ignoring non-terminal payment callback")
	}
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues(providerName, "failed").Inc()
		return nil, err
	}
	metrics.PaymentCallbacks.WithLabelValues(providerName, "applied").Inc()
	return result, nil
}

// applyCapture durably records the capture and confirmation first, then
// provisions the meeting. A provisioning failure is logged and counted but
// never rolls the captured payment back.
func (s *LifecycleService) applyCapture(ctx context.Context, providerName string, result *payment.CallbackResult) error {
	const op = "lifecycle.apply_capture"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSessionRepo := repository.NewSessionRepository(tx)
	txBalanceRepo := repository.NewBalanceRepository(tx)

	paymentRow, err := txPaymentRepo.GetByIntentID(ctx, result.IntentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.New(faults.KindBusinessRule, op, fmt.Sprintf("no payment matches intent %q", result.IntentID))
		}
		return err
	}

	session, err := txSessionRepo.GetByIDForUpdate(ctx, paymentRow.SessionID)
	if err != nil {
		return err
	}

	// Replay: the earlier delivery already captured and confirmed.
	if paymentRow.Status == models.PaymentStatusCaptured && session.Status != models.SessionStatusBooked {
		return nil
	}

	releaseAt := s.now().UTC().Add(s.cfg.PaymentReleaseHold)
	captured, err := txPaymentRepo.CaptureIfPending(ctx, paymentRow.ID, result.TransactionID, releaseAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.New(faults.KindBusinessRule, op,
				fmt.Sprintf("payment %d is %s, not pending", paymentRow.ID, paymentRow.Status))
		}
		return err
	}

	if _, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx, session.ID, models.SessionStatusBooked, models.SessionStatusConfirmed,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.New(faults.KindBusinessRule, op,
				fmt.Sprintf("session %d is %s, not booked", session.ID, session.Status))
		}
		return err
	}

	if err := txBalanceRepo.AddPending(ctx, captured.MentorID, captured.MentorShare()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	metrics.PaymentsCaptured.WithLabelValues(providerName).Inc()
	s.logger.Info().
		Int64("session_id", session.ID).
		Int64("payment_id", captured.ID).
		Str("provider", providerName).
		Msg("payment captured, session confirmed")

	s.reminders.Schedule(session.ID, session.MenteeID, session.MentorID, session.ScheduledStart)
	s.notifier.Notify(ctx, session.MenteeID, "session_confirmed", "Session confirmed",
		"Your payment was received and the session is confirmed.", nil)
	s.notifier.Notify(ctx, session.MentorID, "session_confirmed", "Session booked",
		"A mentee booked and paid for a session with you.", nil)

	s.provisionMeeting(ctx, session)
	return nil
}

func (s *LifecycleService) provisionMeeting(ctx context.Context, session *models.Session) {
	duration := int(session.ScheduledEnd.Sub(session.ScheduledStart).Minutes())
	meeting, err := s.video.CreateMeeting(ctx, video.CreateMeetingInput{
		SessionID:       session.ID,
		Topic:           fmt.Sprintf("Mentorship session #%d", session.ID),
		StartTime:       session.ScheduledStart,
		DurationMinutes: duration,
	})
	if err != nil {
		metrics.MeetingProvisionFailures.Inc()
		s.logger.Error().Err(err).Int64("session_id", session.ID).
			Msg("meeting provisioning failed; session stays confirmed")
		return
	}

	updated, err := s.sessionRepo.SetMeeting(ctx, session.ID, meeting.ID, meeting.JoinURL, meeting.Password)
	if err != nil {
		metrics.MeetingProvisionFailures.Inc()
		s.logger.Error().Err(err).Int64("session_id", session.ID).Str("meeting_id", meeting.ID).
			Msg("could not attach provisioned meeting to session")
		return
	}

	joinURL := meeting.JoinURL
	s.notifier.Notify(ctx, updated.MenteeID, "meeting_ready", "Meeting link ready",
		"Your session meeting link is available.", &joinURL)
	s.notifier.Notify(ctx, updated.MentorID, "meeting_ready", "Meeting link ready",
		"The meeting link for your session is available.", &joinURL)
}

func (s *LifecycleService) applyPaymentTerminal(ctx context.Context, intentID, nextStatus string) error {
	paymentRow, err := s.paymentRepo.GetByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.New(faults.KindBusinessRule, "lifecycle.payment_terminal",
				fmt.Sprintf("no payment matches intent %q", intentID))
		}
		return err
	}
	if paymentRow.Status == nextStatus {
		return nil
	}

	if _, err := s.paymentRepo.UpdateStatusIfCurrent(ctx, paymentRow.ID, models.PaymentStatusPending, nextStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced with capture or an earlier terminal delivery.
			return nil
		}
		return err
	}
	s.notifier.Notify(ctx, paymentRow.MenteeID, "payment_"+nextStatus, "Payment "+nextStatus,
		"Your session payment did not complete.", nil)
	return nil
}

// HandleRecordingReady records the recording artifact on the owning session
// and queues an immediate transcription attempt.
func (s *LifecycleService) HandleRecordingReady(
	ctx context.Context,
	meetingID, recordingURL string,
	availableAt time.Time,
) error {
	session, err := s.sessionRepo.GetByMeetingID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.New(faults.KindNotFound, "lifecycle.recording_ready",
				fmt.Sprintf("no session owns meeting %q", meetingID))
		}
		return err
	}
	if session.RecordingProcessed {
		return nil
	}

	if _, err := s.sessionRepo.MarkRecordingProcessed(ctx, session.ID, recordingURL, availableAt); err != nil {
		return err
	}
	s.logger.Info().Int64("session_id", session.ID).Str("meeting_id", meetingID).Msg("recording processed")

	if _, err := s.queue.Enqueue(JobTranscribeSession, map[string]int64{"session_id": session.ID}, 0); err != nil {
		s.logger.Error().Err(err).Int64("session_id", session.ID).
			Msg("could not queue transcription attempt; periodic sweep will pick it up")
	}
	return nil
}

func (s *LifecycleService) StartSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID, models.SessionStatusMeetingProvisioned, models.SessionStatusInProgress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

func (s *LifecycleService) CompleteSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleMentor || session.MentorID != actorID {
		return nil, ErrForbidden
	}
	if session.ScheduledEnd.After(s.now().UTC()) {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID, models.SessionStatusInProgress, models.SessionStatusCompleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	s.notifier.Notify(ctx, updated.MenteeID, "session_completed", "Session completed",
		"Your mentorship session is complete.", nil)
	return updated, nil
}

var cancellableStatuses = map[string]bool{
	models.SessionStatusBooked:             true,
	models.SessionStatusConfirmed:          true,
	models.SessionStatusMeetingProvisioned: true,
}

type CancelOutcome struct {
	Session       *models.Session `json:"session"`
	RefundPercent float64         `json:"refund_percent"`
	RefundAmount  float64         `json:"refund_amount"`
}

// Cancel tears a session down: the slot release, the cancellation record
// and the status flip commit together, then the provider refund runs. A
// refund the provider rejects leaves the payment captured for follow-up.
func (s *LifecycleService) Cancel(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	reason *string,
) (*CancelOutcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSlotRepo := repository.NewTimeSlotRepository(tx)
	txRecordRepo := repository.NewRecordRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	if !cancellableStatuses[session.Status] {
		return nil, ErrInvalidStateTransition
	}

	hoursBefore := session.ScheduledStart.Sub(s.now().UTC()).Hours()
	if hoursBefore < 0 {
		hoursBefore = 0
	}

	paymentRow, err := txPaymentRepo.GetBySessionIDForUpdate(ctx, sessionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	refundPercent := 0.0
	refundAmount := 0.0
	if paymentRow != nil && paymentRow.Status == models.PaymentStatusCaptured {
		refundPercent = s.cfg.RefundPercentFor(hoursBefore)
		refundAmount = paymentRow.Amount * refundPercent / 100
	}

	updated, err := txSessionRepo.UpdateStatusIfCurrent(ctx, sessionID, session.Status, models.SessionStatusCancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	if err := txSlotRepo.ReleaseBySession(ctx, sessionID); err != nil {
		return nil, err
	}

	refundStatus := models.RefundStatusCompleted
	if refundAmount > 0 {
		refundStatus = models.RefundStatusRequested
	}
	if err := txRecordRepo.InsertCancelRecord(ctx, &models.CancelRecord{
		SessionID:     sessionID,
		ActorID:       actorID,
		ActorRole:     role,
		Reason:        reason,
		HoursBefore:   hoursBefore,
		RefundPercent: refundPercent,
		RefundAmount:  refundAmount,
		RefundStatus:  refundStatus,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.SessionsCancelled.WithLabelValues(role).Inc()
	s.reminders.Cancel(sessionID)

	s.finishCancellation(ctx, updated, paymentRow, refundAmount)

	counterpartID := updated.MentorID
	if role == models.RoleMentor {
		counterpartID = updated.MenteeID
	}
	s.notifier.Notify(ctx, counterpartID, "session_cancelled", "Session cancelled",
		"Your upcoming session was cancelled.", nil)

	return &CancelOutcome{Session: updated, RefundPercent: refundPercent, RefundAmount: refundAmount}, nil
}

// finishCancellation handles the provider-side cleanup that must not hold
// the cancellation transaction open: intent cancel or refund, meeting
// teardown. All best effort with logging.
func (s *LifecycleService) finishCancellation(
	ctx context.Context,
	session *models.Session,
	paymentRow *models.Payment,
	refundAmount float64,
) {
	if session.MeetingID != nil {
		if err := s.video.DeleteMeeting(ctx, session.ID, *session.MeetingID); err != nil {
			s.logger.Error().Err(err).Int64("session_id", session.ID).Msg("meeting teardown failed")
		}
	}
	if paymentRow == nil || paymentRow.IntentID == nil {
		return
	}

	provider, err := s.providers.Get(paymentRow.Provider)
	if err != nil {
		s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).Msg("cancellation cleanup has no provider")
		return
	}

	switch {
	case paymentRow.Status == models.PaymentStatusPending:
		if err := provider.CancelIntent(ctx, *paymentRow.IntentID); err != nil {
			s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).Msg("intent cancel failed")
			return
		}
		if _, err := s.paymentRepo.UpdateStatusIfCurrent(
			ctx, paymentRow.ID, models.PaymentStatusPending, models.PaymentStatusCanceled,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).Msg("mark payment canceled failed")
		}

	case refundAmount > 0:
		input := payment.RefundInput{
			IntentID: *paymentRow.IntentID,
			Amount:   refundAmount,
			Reason:   "session cancelled",
		}
		if paymentRow.TransactionID != nil {
			input.TransactionID = *paymentRow.TransactionID
		}
		if _, err := provider.Refund(ctx, input); err != nil {
			metrics.RefundFailures.Inc()
			s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).
				Float64("refund_amount", refundAmount).Msg("provider refund failed; payment stays captured")
			return
		}
		if _, err := s.paymentRepo.MarkRefunded(ctx, paymentRow.ID, refundAmount, models.RefundStatusCompleted); err != nil {
			s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).Msg("mark payment refunded failed")
			return
		}
		// The mentor's pending share was added at capture and must come
		// back out now that the money went back to the mentee.
		if err := s.balanceRepo.DeductPending(ctx, paymentRow.MentorID, paymentRow.MentorShare()); err != nil {
			s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).Msg("deduct pending balance failed")
		}
	}
}

// Reschedule moves a session to another open slot of the same mentor. The
// old slot release, the new claim and the audit record commit together.
func (s *LifecycleService) Reschedule(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	newSlotID int64,
	reason *string,
) (*models.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txSlotRepo := repository.NewTimeSlotRepository(tx)
	txRecordRepo := repository.NewRecordRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	if !cancellableStatuses[session.Status] {
		return nil, ErrInvalidStateTransition
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", session.MentorID); err != nil {
		return nil, err
	}

	slot, err := txSlotRepo.GetByID(ctx, newSlotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	if slot.MentorID != session.MentorID || slot.IsBooked || !slot.StartAt.After(s.now().UTC()) {
		return nil, ErrSlotUnavailable
	}

	if err := txSlotRepo.ReleaseBySession(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := txSlotRepo.ClaimForSession(ctx, slot.ID, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	oldStart := session.ScheduledStart
	updated, err := txSessionRepo.Reschedule(ctx, sessionID, slot.ID, slot.StartAt.UTC(), slot.EndAt.UTC())
	if err != nil {
		return nil, err
	}

	if err := txRecordRepo.InsertRescheduleRecord(ctx, &models.RescheduleRecord{
		SessionID: sessionID,
		ActorID:   actorID,
		ActorRole: role,
		OldStart:  oldStart,
		NewStart:  slot.StartAt.UTC(),
		Reason:    reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if updated.MeetingID != nil {
		duration := int(updated.ScheduledEnd.Sub(updated.ScheduledStart).Minutes())
		if err := s.video.UpdateMeeting(ctx, sessionID, *updated.MeetingID, updated.ScheduledStart, duration); err != nil {
			s.logger.Error().Err(err).Int64("session_id", sessionID).Msg("meeting reschedule failed")
		}
	}

	s.reminders.Cancel(sessionID)
	s.reminders.Schedule(sessionID, updated.MenteeID, updated.MentorID, updated.ScheduledStart)

	counterpartID := updated.MentorID
	if role == models.RoleMentor {
		counterpartID = updated.MenteeID
	}
	s.notifier.Notify(ctx, counterpartID, "session_rescheduled", "Session rescheduled",
		"Your session was moved to a new time.", nil)

	return updated, nil
}

// OpenDispute flags a completed session. The unique index on session_id
// makes a second dispute a conflict.
func (s *LifecycleService) OpenDispute(
	ctx context.Context,
	menteeID, sessionID int64,
	reason string,
) (*models.SessionDispute, error) {
	if reason == "" {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txDisputeRepo := repository.NewDisputeRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MenteeID != menteeID {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionStatusCompleted {
		return nil, ErrInvalidStateTransition
	}

	dispute, err := txDisputeRepo.Create(ctx, sessionID, menteeID, reason)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if _, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID, models.SessionStatusCompleted, models.SessionStatusDisputed,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, session.MentorID, "dispute_opened", "Dispute opened",
		"A mentee opened a dispute on a completed session.", nil)
	return dispute, nil
}

// ResolveDispute lets the mentor settle a dispute, optionally conceding a
// refund out of their pending share.
func (s *LifecycleService) ResolveDispute(
	ctx context.Context,
	mentorID, sessionID int64,
	accepted bool,
	refundAmount *float64,
	resolution string,
) (*models.SessionDispute, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MentorID != mentorID {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionStatusDisputed {
		return nil, ErrInvalidStateTransition
	}

	dispute, err := s.disputeRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	nextStatus := models.DisputeStatusRejected
	if accepted {
		nextStatus = models.DisputeStatusResolved
	}
	resolved, err := s.disputeRepo.Resolve(ctx, dispute.ID, nextStatus, refundAmount, resolution)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	if _, err := s.sessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID, models.SessionStatusDisputed, models.SessionStatusCompleted,
	); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if accepted && refundAmount != nil && *refundAmount > 0 {
		paymentRow, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
		if err == nil && paymentRow.Status == models.PaymentStatusCaptured && paymentRow.IntentID != nil {
			provider, perr := s.providers.Get(paymentRow.Provider)
			if perr == nil {
				input := payment.RefundInput{IntentID: *paymentRow.IntentID, Amount: *refundAmount, Reason: "dispute resolved"}
				if paymentRow.TransactionID != nil {
					input.TransactionID = *paymentRow.TransactionID
				}
				if _, rerr := provider.Refund(ctx, input); rerr != nil {
					metrics.RefundFailures.Inc()
					s.logger.Error().Err(rerr).Int64("session_id", sessionID).Msg("dispute refund failed")
				} else {
					if _, merr := s.paymentRepo.MarkRefunded(ctx, paymentRow.ID, *refundAmount, models.RefundStatusCompleted); merr != nil {
						s.logger.Error().Err(merr).Int64("payment_id", paymentRow.ID).Msg("mark dispute refund failed")
					}
					if berr := s.balanceRepo.DeductPending(ctx, mentorID, *refundAmount*(1-paymentRow.CommissionRate)); berr != nil {
						s.logger.Error().Err(berr).Int64("payment_id", paymentRow.ID).Msg("deduct dispute refund failed")
					}
				}
			}
		}
	}

	s.notifier.Notify(ctx, session.MenteeID, "dispute_resolved", "Dispute resolved",
		"The mentor responded to your dispute.", nil)
	return resolved, nil
}
