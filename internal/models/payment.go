package models

import "time"

const (
	PaymentStatusPending  = "pending"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
	PaymentStatusCanceled = "canceled"
	PaymentStatusRefunded = "refunded"
)

const (
	RefundStatusRequested = "requested"
	RefundStatusCompleted = "completed"
	RefundStatusFailed    = "failed"
)

type Payment struct {
	ID        int64  `json:"id"`
	SessionID int64  `json:"session_id"`
	MenteeID  int64  `json:"mentee_id"`
	MentorID  int64  `json:"mentor_id"`
	Provider  string `json:"provider"`

	IntentID     *string `json:"intent_id"`
	ClientSecret *string `json:"-"`
	// TransactionID is the downstream capture/settlement id reported by the
	// provider. Required by the regional gateway before a refund.
	TransactionID *string `json:"transaction_id"`

	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	CommissionRate float64 `json:"commission_rate"`
	Status         string  `json:"status"`

	RefundAmount *float64   `json:"refund_amount"`
	RefundStatus *string    `json:"refund_status"`
	RefundedAt   *time.Time `json:"refunded_at"`

	// ReleaseAt is the funds-hold maturity: captured amounts become part of
	// the mentor's available balance once this passes.
	ReleaseAt  *time.Time `json:"release_at"`
	CapturedAt *time.Time `json:"captured_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MentorShare is the part of the captured amount owed to the mentor after
// platform commission.
func (p *Payment) MentorShare() float64 {
	return p.Amount * (1 - p.CommissionRate)
}
