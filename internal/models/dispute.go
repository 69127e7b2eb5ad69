package models

import "time"

const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
	DisputeStatusRejected    = "rejected"
)

// SessionDispute is raised by a mentee against a completed session. At most
// one dispute per session, enforced by a unique index.
type SessionDispute struct {
	ID           int64      `json:"id"`
	SessionID    int64      `json:"session_id"`
	MenteeID     int64      `json:"mentee_id"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	RefundAmount *float64   `json:"refund_amount"`
	Resolution   *string    `json:"resolution"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}
