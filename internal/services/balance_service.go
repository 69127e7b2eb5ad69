package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/metrics"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPayoutNotFound      = errors.New("payout not found")
)

// BalanceService owns mentor earnings: the funds-hold maturity sweep and
// the payout request lifecycle.
type BalanceService struct {
	db          *pgxpool.Pool
	balanceRepo *repository.BalanceRepository
	paymentRepo *repository.PaymentRepository
	notifier    Notifier
	logger      zerolog.Logger
}

func NewBalanceService(
	db *pgxpool.Pool,
	balanceRepo *repository.BalanceRepository,
	paymentRepo *repository.PaymentRepository,
	notifier Notifier,
	logger zerolog.Logger,
) *BalanceService {
	return &BalanceService{
		db:          db,
		balanceRepo: balanceRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
		logger:      logger.With().Str("component", "balance_service").Logger(),
	}
}

func (s *BalanceService) GetBalance(ctx context.Context, mentorID int64) (*models.MentorBalance, error) {
	balance, err := s.balanceRepo.GetByMentorID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.MentorBalance{MentorID: mentorID}, nil
		}
		return nil, err
	}
	return balance, nil
}

// ReleaseMatured moves mentor shares of matured captured payments from
// pending to available. The balance_releases marker row makes each payment
// release exactly once no matter how often the sweep runs.
func (s *BalanceService) ReleaseMatured(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	matured, err := s.paymentRepo.ListMaturedCaptured(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, paymentRow := range matured {
		if err := s.releaseOne(ctx, &paymentRow); err != nil {
			s.logger.Error().Err(err).Int64("payment_id", paymentRow.ID).Msg("balance release failed")
			continue
		}
		released++
	}
	return released, nil
}

func (s *BalanceService) releaseOne(ctx context.Context, paymentRow *models.Payment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txBalanceRepo := repository.NewBalanceRepository(tx)

	applied, err := txPaymentRepo.RecordBalanceRelease(ctx, paymentRow.ID)
	if err != nil {
		return err
	}
	if !applied {
		// A concurrent sweep already released this payment.
		return nil
	}

	if err := txBalanceRepo.ReleasePending(ctx, paymentRow.MentorID, paymentRow.MentorShare()); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	metrics.BalanceReleases.Inc()
	s.logger.Info().
		Int64("payment_id", paymentRow.ID).
		Int64("mentor_id", paymentRow.MentorID).
		Float64("amount", paymentRow.MentorShare()).
		Msg("mentor share released")
	return nil
}

// RequestPayout reserves the amount from the available balance and opens a
// payout in requested state.
func (s *BalanceService) RequestPayout(ctx context.Context, mentorID int64, amount float64) (*models.Payout, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}

	payout, err := s.balanceRepo.CreatePayout(ctx, mentorID, amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	s.logger.Info().Int64("payout_id", payout.ID).Int64("mentor_id", mentorID).
		Float64("amount", amount).Msg("payout requested")
	return payout, nil
}

var payoutTransitions = map[string]map[string]bool{
	models.PayoutStatusRequested: {
		models.PayoutStatusProcessing: true,
		models.PayoutStatusCancelled:  true,
	},
	models.PayoutStatusProcessing: {
		models.PayoutStatusCompleted: true,
		models.PayoutStatusFailed:    true,
	},
}

// AdvancePayout walks the payout state machine. Failed and cancelled
// payouts return the reserved amount to the available balance.
func (s *BalanceService) AdvancePayout(ctx context.Context, mentorID, payoutID int64, nextStatus string) (*models.Payout, error) {
	payout, err := s.balanceRepo.GetPayout(ctx, payoutID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	if payout.MentorID != mentorID {
		return nil, ErrForbidden
	}
	if !payoutTransitions[payout.Status][nextStatus] {
		return nil, ErrInvalidStateTransition
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBalanceRepo := repository.NewBalanceRepository(tx)
	updated, err := txBalanceRepo.UpdatePayoutStatusIfCurrent(ctx, payoutID, payout.Status, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	if nextStatus == models.PayoutStatusFailed || nextStatus == models.PayoutStatusCancelled {
		if err := txBalanceRepo.RefundReserved(ctx, mentorID, payout.Amount); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if nextStatus == models.PayoutStatusCompleted {
		s.notifier.Notify(ctx, mentorID, "payout_completed", "Payout completed",
			"Your payout was sent.", nil)
	}
	return updated, nil
}
