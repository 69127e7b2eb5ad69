package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

const disputeColumns = `id, session_id, mentee_id, reason, status, refund_amount, resolution, created_at, resolved_at`

type DisputeRepository struct {
	db DBTX
}

func NewDisputeRepository(db DBTX) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func scanDispute(row pgx.Row) (*models.SessionDispute, error) {
	var dispute models.SessionDispute
	err := row.Scan(
		&dispute.ID,
		&dispute.SessionID,
		&dispute.MenteeID,
		&dispute.Reason,
		&dispute.Status,
		&dispute.RefundAmount,
		&dispute.Resolution,
		&dispute.CreatedAt,
		&dispute.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// Create relies on the unique index on session_id to enforce one dispute
// per session; a duplicate surfaces as a pg unique violation.
func (r *DisputeRepository) Create(ctx context.Context, sessionID, menteeID int64, reason string) (*models.SessionDispute, error) {
	query := `
		INSERT INTO session_disputes (session_id, mentee_id, reason, status)
		VALUES ($1, $2, $3, 'open')
		RETURNING ` + disputeColumns
	return scanDispute(r.db.QueryRow(ctx, query, sessionID, menteeID, reason))
}

func (r *DisputeRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.SessionDispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM session_disputes WHERE session_id = $1`
	return scanDispute(r.db.QueryRow(ctx, query, sessionID))
}

func (r *DisputeRepository) Resolve(
	ctx context.Context,
	disputeID int64,
	nextStatus string,
	refundAmount *float64,
	resolution string,
) (*models.SessionDispute, error) {
	query := `
		UPDATE session_disputes
		SET status = $2, refund_amount = $3, resolution = $4, resolved_at = NOW()
		WHERE id = $1 AND status IN ('open', 'under_review')
		RETURNING ` + disputeColumns
	return scanDispute(r.db.QueryRow(ctx, query, disputeID, nextStatus, refundAmount, resolution))
}
