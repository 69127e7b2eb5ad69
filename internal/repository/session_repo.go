package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

const sessionColumns = `
	id, mentee_id, mentor_id, time_slot_id, scheduled_start, scheduled_end, status,
	meeting_id, join_url, meeting_password,
	recording_processed, recording_url, recording_available_at,
	transcript, transcript_processed, transcript_retrieval_attempts, last_transcript_attempt_at,
	created_at, updated_at
`

type CreateSessionInput struct {
	MenteeID       int64
	MentorID       int64
	TimeSlotID     int64
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID,
		&s.MenteeID,
		&s.MentorID,
		&s.TimeSlotID,
		&s.ScheduledStart,
		&s.ScheduledEnd,
		&s.Status,
		&s.MeetingID,
		&s.JoinURL,
		&s.MeetingPassword,
		&s.RecordingProcessed,
		&s.RecordingURL,
		&s.RecordingAvailableAt,
		&s.Transcript,
		&s.TranscriptProcessed,
		&s.TranscriptRetrievalAttempts,
		&s.LastTranscriptAttemptAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	query := `
		INSERT INTO sessions (mentee_id, mentor_id, time_slot_id, scheduled_start, scheduled_end, status)
		VALUES ($1, $2, $3, $4, $5, 'booked')
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.MenteeID,
		input.MentorID,
		input.TimeSlotID,
		input.ScheduledStart,
		input.ScheduledEnd,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByMeetingID(ctx context.Context, meetingID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE meeting_id = $1`
	return scanSession(r.db.QueryRow(ctx, query, meetingID))
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.Session, error) {
	actorColumn := "mentee_id"
	if filter.Role == models.RoleMentor {
		actorColumn = "mentor_id"
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + actorColumn + ` = $1`
	args := []any{filter.ActorID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $2`
	}
	switch filter.Timeframe {
	case "upcoming":
		query += ` AND scheduled_end > NOW()`
	case "past":
		query += ` AND scheduled_end <= NOW()`
	}
	query += ` ORDER BY scheduled_start ASC, id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus string,
	nextStatus string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// SetMeeting records the provisioned meeting identifiers and moves the
// session to meeting_provisioned in one statement.
func (r *SessionRepository) SetMeeting(
	ctx context.Context,
	sessionID int64,
	meetingID, joinURL, password string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET meeting_id = $2, join_url = $3, meeting_password = $4,
		    status = 'meeting_provisioned', updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, meetingID, joinURL, password))
}

// Reschedule moves the session onto a new slot, keeping its status.
func (r *SessionRepository) Reschedule(
	ctx context.Context,
	sessionID, slotID int64,
	start, end time.Time,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET time_slot_id = $2, scheduled_start = $3, scheduled_end = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, slotID, start, end))
}

func (r *SessionRepository) MarkRecordingProcessed(
	ctx context.Context,
	sessionID int64,
	recordingURL string,
	availableAt time.Time,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET recording_processed = TRUE, recording_url = $2, recording_available_at = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, recordingURL, availableAt))
}

// SetRecordingURL swaps the stored recording reference, used once the
// provider-side file has been copied into the archive.
func (r *SessionRepository) SetRecordingURL(ctx context.Context, sessionID int64, recordingURL string) error {
	query := `
		UPDATE sessions
		SET recording_url = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, sessionID, recordingURL)
	return err
}

// IncrementTranscriptAttempt bumps the attempt counter and timestamp. Runs
// before the transcription call so a crashed attempt still counts.
func (r *SessionRepository) IncrementTranscriptAttempt(ctx context.Context, sessionID int64) (int, error) {
	query := `
		UPDATE sessions
		SET transcript_retrieval_attempts = transcript_retrieval_attempts + 1,
		    last_transcript_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING transcript_retrieval_attempts
	`
	var attempts int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

// MarkTranscribed stores the transcript. The recording_processed guard keeps
// the transcript-after-recording invariant in the database as well.
func (r *SessionRepository) MarkTranscribed(ctx context.Context, sessionID int64, transcript string) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET transcript = $2, transcript_processed = TRUE, updated_at = NOW()
		WHERE id = $1 AND recording_processed = TRUE
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, transcript))
}

// ListTranscriptCandidates selects sessions stuck between recording-processed
// and transcript-processed that are due another attempt.
func (r *SessionRepository) ListTranscriptCandidates(
	ctx context.Context,
	interval time.Duration,
	attemptCeiling int,
	limit int,
) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE recording_processed = TRUE
		  AND transcript_processed = FALSE
		  AND recording_url IS NOT NULL
		  AND transcript_retrieval_attempts < $1
		  AND (last_transcript_attempt_at IS NULL OR last_transcript_attempt_at <= NOW() - $2::interval)
		ORDER BY recording_available_at ASC NULLS LAST, id ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, attemptCeiling, interval.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}
