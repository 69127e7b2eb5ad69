package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

const paymentColumns = `
	id, session_id, mentee_id, mentor_id, provider,
	intent_id, client_secret, transaction_id,
	amount, currency, commission_rate, status,
	refund_amount, refund_status, refunded_at,
	release_at, captured_at, created_at, updated_at
`

type CreatePaymentInput struct {
	SessionID      int64
	MenteeID       int64
	MentorID       int64
	Provider       string
	Amount         float64
	Currency       string
	CommissionRate float64
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.SessionID,
		&p.MenteeID,
		&p.MentorID,
		&p.Provider,
		&p.IntentID,
		&p.ClientSecret,
		&p.TransactionID,
		&p.Amount,
		&p.Currency,
		&p.CommissionRate,
		&p.Status,
		&p.RefundAmount,
		&p.RefundStatus,
		&p.RefundedAt,
		&p.ReleaseAt,
		&p.CapturedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := `
		INSERT INTO payments (session_id, mentee_id, mentor_id, provider, amount, currency, commission_rate, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.MenteeID,
		input.MentorID,
		input.Provider,
		input.Amount,
		input.Currency,
		input.CommissionRate,
	))
}

func (r *PaymentRepository) SetIntent(ctx context.Context, paymentID int64, intentID, clientSecret string) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET intent_id = $2, client_secret = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, intentID, clientSecret))
}

func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1 ORDER BY id DESC LIMIT 1`
	return scanPayment(r.db.QueryRow(ctx, query, sessionID))
}

func (r *PaymentRepository) GetBySessionIDForUpdate(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1 ORDER BY id DESC LIMIT 1 FOR UPDATE`
	return scanPayment(r.db.QueryRow(ctx, query, sessionID))
}

func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE intent_id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, intentID))
}

// CaptureIfPending is the compare-and-swap that makes capture idempotent: a
// replayed confirmation finds status already captured and matches no row.
func (r *PaymentRepository) CaptureIfPending(
	ctx context.Context,
	paymentID int64,
	transactionID string,
	releaseAt time.Time,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'captured', transaction_id = $2, captured_at = NOW(), release_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, transactionID, releaseAt))
}

func (r *PaymentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	paymentID int64,
	currentStatus string,
	nextStatus string,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, currentStatus, nextStatus))
}

// MarkRefunded is the only path out of captured. Refunded payments are
// immutable afterwards.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, paymentID int64, refundAmount float64, refundStatus string) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'refunded', refund_amount = $2, refund_status = $3, refunded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'captured'
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, refundAmount, refundStatus))
}

// ListMaturedCaptured returns captured payments whose funds hold has passed
// and that have not yet been released to the mentor balance.
func (r *PaymentRepository) ListMaturedCaptured(ctx context.Context, limit int) ([]models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'captured' AND release_at IS NOT NULL AND release_at <= NOW()
		  AND NOT EXISTS (
			SELECT 1 FROM balance_releases br WHERE br.payment_id = payments.id
		  )
		ORDER BY release_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// RecordBalanceRelease marks a matured payment as applied to the mentor
// balance so the maturity sweep is idempotent.
func (r *PaymentRepository) RecordBalanceRelease(ctx context.Context, paymentID int64) (bool, error) {
	query := `
		INSERT INTO balance_releases (payment_id)
		VALUES ($1)
		ON CONFLICT (payment_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, paymentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
