package models

import "time"

// Session status values. A session is never hard-deleted; it only moves
// between these states.
const (
	SessionStatusBooked             = "booked"
	SessionStatusConfirmed          = "confirmed"
	SessionStatusMeetingProvisioned = "meeting_provisioned"
	SessionStatusInProgress         = "in_progress"
	SessionStatusCompleted          = "completed"
	SessionStatusCancelled          = "cancelled"
	SessionStatusDisputed           = "disputed"
)

type Session struct {
	ID             int64     `json:"id"`
	MenteeID       int64     `json:"mentee_id"`
	MentorID       int64     `json:"mentor_id"`
	TimeSlotID     *int64    `json:"time_slot_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Status         string    `json:"status"`

	MeetingID       *string `json:"meeting_id"`
	JoinURL         *string `json:"join_url"`
	MeetingPassword *string `json:"-"`

	RecordingProcessed   bool       `json:"recording_processed"`
	RecordingURL         *string    `json:"recording_url"`
	RecordingAvailableAt *time.Time `json:"recording_available_at"`

	Transcript                  *string    `json:"transcript,omitempty"`
	TranscriptProcessed         bool       `json:"transcript_processed"`
	TranscriptRetrievalAttempts int        `json:"transcript_retrieval_attempts"`
	LastTranscriptAttemptAt     *time.Time `json:"last_transcript_attempt_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionDetail struct {
	Session
	Payment *Payment `json:"payment,omitempty"`
}
