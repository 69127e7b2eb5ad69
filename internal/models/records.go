package models

import "time"

// CancelRecord is the append-only audit row for a cancellation. Never
// mutated after insert.
type CancelRecord struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	ActorID       int64     `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	Reason        *string   `json:"reason"`
	HoursBefore   float64   `json:"hours_before"`
	RefundPercent float64   `json:"refund_percent"`
	RefundAmount  float64   `json:"refund_amount"`
	RefundStatus  string    `json:"refund_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// RescheduleRecord is the append-only audit row for a reschedule request.
type RescheduleRecord struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	ActorID   int64     `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	OldStart  time.Time `json:"old_start"`
	NewStart  time.Time `json:"new_start"`
	Reason    *string   `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
