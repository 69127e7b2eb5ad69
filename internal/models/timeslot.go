package models

import "time"

// TimeSlot is a mentor-owned bookable interval. A booked slot references
// exactly one non-cancelled session; releasing the session clears the flag.
type TimeSlot struct {
	ID        int64     `json:"id"`
	MentorID  int64     `json:"mentor_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	IsBooked  bool      `json:"is_booked"`
	SessionID *int64    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}
