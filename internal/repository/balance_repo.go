package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

type BalanceRepository struct {
	db DBTX
}

func NewBalanceRepository(db DBTX) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) GetByMentorID(ctx context.Context, mentorID int64) (*models.MentorBalance, error) {
	query := `
		SELECT mentor_id, available_balance, pending_balance, total_earnings, updated_at
		FROM mentor_balances
		WHERE mentor_id = $1
	`
	var balance models.MentorBalance
	err := r.db.QueryRow(ctx, query, mentorID).Scan(
		&balance.MentorID,
		&balance.AvailableBalance,
		&balance.PendingBalance,
		&balance.TotalEarnings,
		&balance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// AddPending credits a freshly captured payment to the mentor's pending
// balance, creating the singleton row on first use.
func (r *BalanceRepository) AddPending(ctx context.Context, mentorID int64, amount float64) error {
	query := `
		INSERT INTO mentor_balances (mentor_id, pending_balance, total_earnings)
		VALUES ($1, $2, $2)
		ON CONFLICT (mentor_id) DO UPDATE
		SET pending_balance = mentor_balances.pending_balance + $2,
		    total_earnings = mentor_balances.total_earnings + $2,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, mentorID, amount)
	return err
}

// ReleasePending moves a matured amount from pending to available.
func (r *BalanceRepository) ReleasePending(ctx context.Context, mentorID int64, amount float64) error {
	query := `
		UPDATE mentor_balances
		SET pending_balance = pending_balance - $2,
		    available_balance = available_balance + $2,
		    updated_at = NOW()
		WHERE mentor_id = $1
	`
	_, err := r.db.Exec(ctx, query, mentorID, amount)
	return err
}

// DeductPending backs a refunded payment out of the pending balance.
func (r *BalanceRepository) DeductPending(ctx context.Context, mentorID int64, amount float64) error {
	query := `
		UPDATE mentor_balances
		SET pending_balance = pending_balance - $2,
		    total_earnings = total_earnings - $2,
		    updated_at = NOW()
		WHERE mentor_id = $1
	`
	_, err := r.db.Exec(ctx, query, mentorID, amount)
	return err
}

// RefundReserved returns a reserved payout amount to the available
// balance after the payout fails or is cancelled.
func (r *BalanceRepository) RefundReserved(ctx context.Context, mentorID int64, amount float64) error {
	query := `
		UPDATE mentor_balances
		SET available_balance = available_balance + $2,
		    updated_at = NOW()
		WHERE mentor_id = $1
	`
	_, err := r.db.Exec(ctx, query, mentorID, amount)
	return err
}

const payoutColumns = `id, mentor_id, amount, status, created_at, updated_at`

func scanPayout(row pgx.Row) (*models.Payout, error) {
	var payout models.Payout
	err := row.Scan(
		&payout.ID,
		&payout.MentorID,
		&payout.Amount,
		&payout.Status,
		&payout.CreatedAt,
		&payout.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// CreatePayout reserves the amount out of the available balance and opens a
// payout in requested state; the WHERE guard rejects overdraws.
func (r *BalanceRepository) CreatePayout(ctx context.Context, mentorID int64, amount float64) (*models.Payout, error) {
	reserve := `
		UPDATE mentor_balances
		SET available_balance = available_balance - $2, updated_at = NOW()
		WHERE mentor_id = $1 AND available_balance >= $2
		RETURNING mentor_id
	`
	var id int64
	if err := r.db.QueryRow(ctx, reserve, mentorID, amount).Scan(&id); err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO payouts (mentor_id, amount, status)
		VALUES ($1, $2, 'requested')
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(ctx, insert, mentorID, amount))
}

func (r *BalanceRepository) GetPayout(ctx context.Context, payoutID int64) (*models.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`
	return scanPayout(r.db.QueryRow(ctx, query, payoutID))
}

func (r *BalanceRepository) UpdatePayoutStatusIfCurrent(
	ctx context.Context,
	payoutID int64,
	currentStatus string,
	nextStatus string,
) (*models.Payout, error) {
	query := `
		UPDATE payouts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(ctx, query, payoutID, currentStatus, nextStatus))
}
