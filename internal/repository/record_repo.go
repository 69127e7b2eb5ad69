package repository

import (
	"context"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

// RecordRepository writes the append-only cancel/reschedule audit rows.
// There are deliberately no update methods.
type RecordRepository struct {
	db DBTX
}

func NewRecordRepository(db DBTX) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) InsertCancelRecord(ctx context.Context, record *models.CancelRecord) error {
	query := `
		INSERT INTO cancel_records (session_id, actor_id, actor_role, reason, hours_before, refund_percent, refund_amount, refund_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return r.db.QueryRow(
		ctx,
		query,
		record.SessionID,
		record.ActorID,
		record.ActorRole,
		record.Reason,
		record.HoursBefore,
		record.RefundPercent,
		record.RefundAmount,
		record.RefundStatus,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *RecordRepository) InsertRescheduleRecord(ctx context.Context, record *models.RescheduleRecord) error {
	query := `
		INSERT INTO reschedule_records (session_id, actor_id, actor_role, old_start, new_start, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRow(
		ctx,
		query,
		record.SessionID,
		record.ActorID,
		record.ActorRole,
		record.OldStart,
		record.NewStart,
		record.Reason,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *RecordRepository) ListCancelsBySession(ctx context.Context, sessionID int64) ([]models.CancelRecord, error) {
	query := `
		SELECT id, session_id, actor_id, actor_role, reason, hours_before, refund_percent, refund_amount, refund_status, created_at
		FROM cancel_records
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.CancelRecord, 0)
	for rows.Next() {
		var record models.CancelRecord
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.ActorID,
			&record.ActorRole,
			&record.Reason,
			&record.HoursBefore,
			&record.RefundPercent,
			&record.RefundAmount,
			&record.RefundStatus,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
