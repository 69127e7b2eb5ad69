package models

import "time"

// MentorBalance aggregates a mentor's earnings. Pending amounts move to
// available once the owning payment passes its release date.
type MentorBalance struct {
	MentorID         int64     `json:"mentor_id"`
	AvailableBalance float64   `json:"available_balance"`
	PendingBalance   float64   `json:"pending_balance"`
	TotalEarnings    float64   `json:"total_earnings"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const (
	PayoutStatusRequested  = "requested"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
	PayoutStatusCancelled  = "cancelled"
)

type Payout struct {
	ID        int64     `json:"id"`
	MentorID  int64     `json:"mentor_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
