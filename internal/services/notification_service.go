package services

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
	notifyws "github.com/Mohamed-Adel17/CareerRouteBack/internal/websocket"
)

// Notifier delivers a notification to one user: a persisted row plus a
// best-effort push to any open sockets.
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, title, message string, actionURL *string)
}

type notificationPusher interface {
	Push(envelope *notifyws.Envelope)
}

type NotificationService struct {
	repo   *repository.NotificationRepository
	hub    notificationPusher
	logger zerolog.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, hub notificationPusher, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		hub:    hub,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

// Notify never fails the caller: a session transition must not be undone
// because a notification could not be written or pushed.
func (s *NotificationService) Notify(ctx context.Context, userID int64, notifType, title, message string, actionURL *string) {
	n := &models.Notification{
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("type", notifType).Msg("persist notification")
	}

	if s.hub == nil {
		return
	}
	envelope := &notifyws.Envelope{
		UserID:  strconv.FormatInt(userID, 10),
		Type:    notifType,
		Title:   title,
		Message: message,
	}
	if actionURL != nil {
		envelope.ActionURL = *actionURL
	}
	s.hub.Push(envelope)
}

func (s *NotificationService) List(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}
