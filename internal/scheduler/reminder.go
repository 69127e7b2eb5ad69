package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/jobs"
)

const JobSessionReminder = "session.reminder"

type notifier interface {
	Notify(ctx context.Context, userID int64, notifType, title, message string, actionURL *string)
}

type reminderPayload struct {
	SessionID int64     `json:"session_id"`
	MenteeID  int64     `json:"mentee_id"`
	MentorID  int64     `json:"mentor_id"`
	Start     time.Time `json:"start"`
}

// ReminderScheduler queues one reminder per confirmed session, fired a
// configured lead time before the scheduled start.
type ReminderScheduler struct {
	queue    jobs.Queue
	notifier notifier
	lead     time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	handles map[int64]jobs.Handle
}

func NewReminderScheduler(queue jobs.Queue, n notifier, lead time.Duration, logger zerolog.Logger) *ReminderScheduler {
	if lead <= 0 {
		lead = 15 * time.Minute
	}
	return &ReminderScheduler{
		queue:    queue,
		notifier: n,
		lead:     lead,
		logger:   logger.With().Str("component", "reminder_scheduler").Logger(),
		now:      time.Now,
		handles:  make(map[int64]jobs.Handle),
	}
}

// Schedule replaces any reminder already queued for the session. A start
// too close for the lead time is skipped with a log line, not queued late.
func (r *ReminderScheduler) Schedule(sessionID, menteeID, mentorID int64, start time.Time) {
	delay := start.Add(-r.lead).Sub(r.now().UTC())
	if delay <= 0 {
		r.logger.Info().
			Int64("session_id", sessionID).
			Time("start", start).
			Msg("session starts within the reminder lead time, skipping reminder")
		return
	}

	r.Cancel(sessionID)

	handle, err := r.queue.Enqueue(JobSessionReminder, reminderPayload{
		SessionID: sessionID,
		MenteeID:  menteeID,
		MentorID:  mentorID,
		Start:     start,
	}, delay)
	if err != nil {
		r.logger.Error().Err(err).Int64("session_id", sessionID).Msg("queue reminder")
		return
	}

	r.mu.Lock()
	r.handles[sessionID] = handle
	r.mu.Unlock()
}

// Cancel drops the queued reminder if one exists. Cancelling after the
// reminder fired is a no-op.
func (r *ReminderScheduler) Cancel(sessionID int64) {
	r.mu.Lock()
	handle, ok := r.handles[sessionID]
	if ok {
		delete(r.handles, sessionID)
	}
	r.mu.Unlock()
	if ok {
		r.queue.Cancel(handle)
	}
}

// HandleReminderJob runs when a reminder fires: both participants get a
// notification naming the start time.
func (r *ReminderScheduler) HandleReminderJob(ctx context.Context, payload []byte) error {
	var body reminderPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.handles, body.SessionID)
	r.mu.Unlock()

	message := fmt.Sprintf("Your mentorship session starts at %s.", body.Start.UTC().Format(time.RFC1123))
	r.notifier.Notify(ctx, body.MenteeID, "session_reminder", "Session starting soon", message, nil)
	r.notifier.Notify(ctx, body.MentorID, "session_reminder", "Session starting soon", message, nil)
	return nil
}
