package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/config"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/payment"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidInput           = errors.New("invalid input")
	ErrMentorNotFound         = errors.New("mentor not found")
	ErrSlotUnavailable        = errors.New("time slot unavailable")
)

type mentorProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.MentorProfile, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type reminderScheduler interface {
	Schedule(sessionID, menteeID, mentorID int64, start time.Time)
	Cancel(sessionID int64)
}

type BookingService struct {
	db          *pgxpool.Pool
	cfg         *config.Config
	providers   *payment.Registry
	userRepo    userReader
	profileRepo mentorProfileReader
	sessionRepo *repository.SessionRepository
	paymentRepo *repository.PaymentRepository
	slotRepo    *repository.TimeSlotRepository
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewBookingService(
	db *pgxpool.Pool,
	cfg *config.Config,
	providers *payment.Registry,
	userRepo userReader,
	profileRepo mentorProfileReader,
	sessionRepo *repository.SessionRepository,
	paymentRepo *repository.PaymentRepository,
	slotRepo *repository.TimeSlotRepository,
	logger zerolog.Logger,
) *BookingService {
	return &BookingService{
		db:          db,
		cfg:         cfg,
		providers:   providers,
		userRepo:    userRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		paymentRepo: paymentRepo,
		slotRepo:    slotRepo,
		validate:    validator.New(),
		logger:      logger.With().Str("component", "booking_service").Logger(),
	}
}

type BookSessionInput struct {
	MentorID   int64  `json:"mentor_id" validate:"required,gt=0"`
	TimeSlotID int64  `json:"time_slot_id" validate:"required,gt=0"`
	Provider   string `json:"provider" validate:"required"`
}

// BookSession claims the slot, opens the session and payment rows, and
// creates the provider intent, all in one transaction. A provider failure
// rolls the whole booking back; nothing half-booked survives.
func (s *BookingService) BookSession(
	ctx context.Context,
	menteeID int64,
	input BookSessionInput,
) (*models.SessionDetail, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, ErrInvalidInput
	}
	if menteeID == input.MentorID {
		return nil, ErrInvalidInput
	}
	provider, err := s.providers.Get(input.Provider)
	if err != nil {
		return nil, ErrInvalidInput
	}

	mentee, err := s.userRepo.GetByID(ctx, menteeID)
	if err != nil {
		return nil, err
	}

	mentor, err := s.userRepo.GetByID(ctx, input.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	if mentor.Role != models.RoleMentor {
		return nil, ErrInvalidInput
	}

	profile, err := s.profileRepo.GetByUserID(ctx, input.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	if !profile.OnboardingComplete || profile.HourlyRate == nil || *profile.HourlyRate <= 0 {
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
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSlotRepo := repository.NewTimeSlotRepository(tx)

	// Serializes all bookings against one mentor; pairs with the slot CAS.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", input.MentorID); err != nil {
		return nil, err
	}

	slot, err := txSlotRepo.GetByID(ctx, input.TimeSlotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	if slot.MentorID != input.MentorID || slot.IsBooked {
		return nil, ErrSlotUnavailable
	}
	if !slot.StartAt.After(time.Now().UTC()) {
		return nil, ErrSlotUnavailable
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		MenteeID:       menteeID,
		MentorID:       input.MentorID,
		TimeSlotID:     slot.ID,
		ScheduledStart: slot.StartAt.UTC(),
		ScheduledEnd:   slot.EndAt.UTC(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := txSlotRepo.ClaimForSession(ctx, slot.ID, session.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	amount := *profile.HourlyRate * slot.EndAt.Sub(slot.StartAt).Hours()
	currency := "USD"
	if provider.Name() == payment.ProviderMidtrans {
		currency = "IDR"
	}

	paymentRow, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID:      session.ID,
		MenteeID:       menteeID,
		MentorID:       input.MentorID,
		Provider:       provider.Name(),
		Amount:         amount,
		Currency:       currency,
		CommissionRate: s.cfg.PlatformCommissionRate,
	})
	if err != nil {
		return nil, err
	}

	intent, err := provider.CreateIntent(ctx, payment.CreateIntentInput{
		OrderID:       fmt.Sprintf("CR-%d", paymentRow.ID),
		Amount:        amount,
		Currency:      currency,
		Description:   fmt.Sprintf("Mentorship session with %s", profile.FullName),
		CustomerEmail: mentee.Email,
	})
	if err != nil {
		return nil, err
	}

	paymentRow, err = txPaymentRepo.SetIntent(ctx, paymentRow.ID, intent.IntentID, intent.ClientSecret)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("session_id", session.ID).
		Int64("mentee_id", menteeID).
		Int64("mentor_id", input.MentorID).
		Str("provider", provider.Name()).
		Msg("session booked")

	return &models.SessionDetail{Session: *session, Payment: paymentRow}, nil
}

func (s *BookingService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.SessionDetail, error) {
	filter.ActorID = actorID
	filter.Role = role

	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		detail := models.SessionDetail{Session: session}
		paymentRow, err := s.paymentRepo.GetBySessionID(ctx, session.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			detail.Payment = paymentRow
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *BookingService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	detail := &models.SessionDetail{Session: *session}
	paymentRow, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		detail.Payment = paymentRow
	}
	return detail, nil
}

func (s *BookingService) ListOpenSlots(ctx context.Context, mentorID int64) ([]models.TimeSlot, error) {
	return s.slotRepo.ListOpenByMentor(ctx, mentorID)
}

func (s *BookingService) CreateSlot(
	ctx context.Context,
	mentorID int64,
	startAt, endAt time.Time,
) (*models.TimeSlot, error) {
	if !endAt.After(startAt) || !startAt.After(time.Now().UTC()) {
		return nil, ErrInvalidInput
	}
	return s.slotRepo.Create(ctx, mentorID, startAt.UTC(), endAt.UTC())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	if role == models.RoleMentee {
		return session.MenteeID == actorID
	}
	if role == models.RoleMentor {
		return session.MentorID == actorID
	}
	return false
}
