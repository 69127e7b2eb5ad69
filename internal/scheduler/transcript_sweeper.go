package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/jobs"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/metrics"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
)

// JobTranscriptReady notifies both parties once a transcript lands.
const JobTranscriptReady = "session.transcript_ready"

type TranscriptReadyPayload struct {
	SessionID int64 `json:"session_id"`
	MenteeID  int64 `json:"mentee_id"`
	MentorID  int64 `json:"mentor_id"`
}

func DecodeTranscriptReady(payload []byte) (*TranscriptReadyPayload, error) {
	var body TranscriptReadyPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

type transcriber interface {
	TranscribeFromURL(ctx context.Context, recordingURL string) (string, error)
}

type recordingArchive interface {
	Holds(fileURL string) bool
	UploadRecording(ctx context.Context, content io.Reader, objectName string) (string, error)
	GetSignedURL(ctx context.Context, fileURL string) (string, error)
}

type recordingDownloader interface {
	DownloadFile(ctx context.Context, downloadURL string) (io.ReadCloser, error)
}

// TranscriptSweeper periodically reconciles sessions whose recording is
// processed but whose transcript is not. Attempts are counted durably
// before the provider call, so a crash mid-attempt still consumes one of
// the bounded retries.
type TranscriptSweeper struct {
	sessionRepo *repository.SessionRepository
	transcriber transcriber
	storage     recordingArchive
	downloader  recordingDownloader
	queue       jobs.Queue
	interval    time.Duration
	ceiling     int
	batchSize   int
	logger      zerolog.Logger
}

func NewTranscriptSweeper(
	sessionRepo *repository.SessionRepository,
	tr transcriber,
	storage recordingArchive,
	downloader recordingDownloader,
	queue jobs.Queue,
	interval time.Duration,
	ceiling int,
	logger zerolog.Logger,
) *TranscriptSweeper {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if ceiling <= 0 {
		ceiling = 48
	}
	return &TranscriptSweeper{
		sessionRepo: sessionRepo,
		transcriber: tr,
		storage:     storage,
		downloader:  downloader,
		queue:       queue,
		interval:    interval,
		ceiling:     ceiling,
		batchSize:   50,
		logger:      logger.With().Str("component", "transcript_sweeper").Logger(),
	}
}

// Run ticks until the context is cancelled. Cancellation is checked
// between sessions, never mid-attempt.
func (s *TranscriptSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("transcript sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *TranscriptSweeper) sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.TranscriptSweepDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := s.sessionRepo.ListTranscriptCandidates(ctx, s.interval, s.ceiling, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("list transcript candidates")
		return
	}

	for i := range candidates {
		if ctx.Err() != nil {
			return
		}
		s.attempt(ctx, &candidates[i])
	}
}

// HandleTranscribeJob is the queue entry point for an immediate attempt,
// used right after a recording lands. It applies the same eligibility
// rules as the periodic sweep.
func (s *TranscriptSweeper) HandleTranscribeJob(ctx context.Context, payload []byte) error {
	var body struct {
		SessionID int64 `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}

	session, err := s.sessionRepo.GetByID(ctx, body.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if !s.eligible(session) {
		return nil
	}
	s.attempt(ctx, session)
	return nil
}

func (s *TranscriptSweeper) eligible(session *models.Session) bool {
	return session.RecordingProcessed &&
		!session.TranscriptProcessed &&
		session.RecordingURL != nil &&
		session.TranscriptRetrievalAttempts < s.ceiling
}

func (s *TranscriptSweeper) attempt(ctx context.Context, session *models.Session) {
	attempts, err := s.sessionRepo.IncrementTranscriptAttempt(ctx, session.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("session_id", session.ID).Msg("count transcript attempt")
		return
	}

	transcript, err := s.fetchTranscript(ctx, session)
	switch {
	case err != nil:
		metrics.TranscriptAttempts.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).
			Int64("session_id", session.ID).
			Int("attempts", attempts).
			Msg("transcript attempt failed")
	case transcript == "":
		metrics.TranscriptAttempts.WithLabelValues("empty").Inc()
		s.logger.Info().
			Int64("session_id", session.ID).
			Int("attempts", attempts).
			Msg("transcript not available yet")
	default:
		if _, err := s.sessionRepo.MarkTranscribed(ctx, session.ID, transcript); err != nil {
			metrics.TranscriptAttempts.WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).Int64("session_id", session.ID).Msg("store transcript")
			return
		}
		metrics.TranscriptAttempts.WithLabelValues("succeeded").Inc()
		s.logger.Info().Int64("session_id", session.ID).Int("attempts", attempts).Msg("transcript stored")
		if _, err := s.queue.Enqueue(JobTranscriptReady, TranscriptReadyPayload{
			SessionID: session.ID,
			MenteeID:  session.MenteeID,
			MentorID:  session.MentorID,
		}, 0); err != nil {
			s.logger.Error().Err(err).Int64("session_id", session.ID).Msg("queue transcript-ready job")
		}
		return
	}

	if attempts >= s.ceiling {
		// Terminal: the candidate query will never select this session again.
		s.logger.Warn().
			Int64("session_id", session.ID).
			Int("attempts", attempts).
			Msg("transcript retrieval abandoned after final attempt")
	}
}

// fetchTranscript archives the recording on first touch, then transcribes
// from a short-lived archive link. Without an archive configured the
// provider URL goes to the transcriber directly.
func (s *TranscriptSweeper) fetchTranscript(ctx context.Context, session *models.Session) (string, error) {
	recordingURL := *session.RecordingURL
	if s.storage == nil {
		return s.transcriber.TranscribeFromURL(ctx, recordingURL)
	}

	if !s.storage.Holds(recordingURL) {
		archivedURL, err := s.archive(ctx, session.ID, recordingURL)
		if err != nil {
			return "", err
		}
		recordingURL = archivedURL
	}

	signedURL, err := s.storage.GetSignedURL(ctx, recordingURL)
	if err != nil {
		return "", err
	}
	return s.transcriber.TranscribeFromURL(ctx, signedURL)
}

func (s *TranscriptSweeper) archive(ctx context.Context, sessionID int64, downloadURL string) (string, error) {
	content, err := s.downloader.DownloadFile(ctx, downloadURL)
	if err != nil {
		return "", err
	}
	defer content.Close()

	objectName := fmt.Sprintf("session-%d.mp4", sessionID)
	archivedURL, err := s.storage.UploadRecording(ctx, content, objectName)
	if err != nil {
		return "", err
	}
	if err := s.sessionRepo.SetRecordingURL(ctx, sessionID, archivedURL); err != nil {
		return "", err
	}
	s.logger.Info().Int64("session_id", sessionID).Msg("recording archived")
	return archivedURL, nil
}
