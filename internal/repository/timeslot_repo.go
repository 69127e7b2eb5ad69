package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

const timeSlotColumns = `id, mentor_id, start_at, end_at, is_booked, session_id, created_at`

type TimeSlotRepository struct {
	db DBTX
}

func NewTimeSlotRepository(db DBTX) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

func scanTimeSlot(row pgx.Row) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	err := row.Scan(
		&slot.ID,
		&slot.MentorID,
		&slot.StartAt,
		&slot.EndAt,
		&slot.IsBooked,
		&slot.SessionID,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *TimeSlotRepository) Create(ctx context.Context, mentorID int64, startAt, endAt time.Time) (*models.TimeSlot, error) {
	query := `
		INSERT INTO time_slots (mentor_id, start_at, end_at)
		VALUES ($1, $2, $3)
		RETURNING ` + timeSlotColumns
	return scanTimeSlot(r.db.QueryRow(ctx, query, mentorID, startAt, endAt))
}

func (r *TimeSlotRepository) GetByID(ctx context.Context, slotID int64) (*models.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + ` FROM time_slots WHERE id = $1`
	return scanTimeSlot(r.db.QueryRow(ctx, query, slotID))
}

// ClaimForSession flips is_booked only when the slot is still free, so two
// concurrent bookings cannot share a slot.
func (r *TimeSlotRepository) ClaimForSession(ctx context.Context, slotID, sessionID int64) (*models.TimeSlot, error) {
	query := `
		UPDATE time_slots
		SET is_booked = TRUE, session_id = $2
		WHERE id = $1 AND is_booked = FALSE
		RETURNING ` + timeSlotColumns
	return scanTimeSlot(r.db.QueryRow(ctx, query, slotID, sessionID))
}

// ReleaseBySession clears the booked flag; runs in the same transaction as
// the session cancellation so both apply or neither does.
func (r *TimeSlotRepository) ReleaseBySession(ctx context.Context, sessionID int64) error {
	query := `
		UPDATE time_slots
		SET is_booked = FALSE, session_id = NULL
		WHERE session_id = $1
	`
	_, err := r.db.Exec(ctx, query, sessionID)
	return err
}

func (r *TimeSlotRepository) ListOpenByMentor(ctx context.Context, mentorID int64) ([]models.TimeSlot, error) {
	query := `
		SELECT ` + timeSlotColumns + `
		FROM time_slots
		WHERE mentor_id = $1 AND is_booked = FALSE AND start_at > NOW()
		ORDER BY start_at ASC
	`
	rows, err := r.db.Query(ctx, query, mentorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.TimeSlot, 0)
	for rows.Next() {
		slot, err := scanTimeSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}
