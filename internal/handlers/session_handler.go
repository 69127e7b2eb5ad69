package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/services"
)

type bookingApplicationService interface {
	BookSession(ctx context.Context, menteeID int64, input services.BookSessionInput) (*models.SessionDetail, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error)
	GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.SessionDetail, error)
	ListOpenSlots(ctx context.Context, mentorID int64) ([]models.TimeSlot, error)
	CreateSlot(ctx context.Context, mentorID int64, startAt, endAt time.Time) (*models.TimeSlot, error)
}

type lifecycleApplicationService interface {
	StartSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error)
	CompleteSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error)
	Cancel(ctx context.Context, actorID int64, role string, sessionID int64, reason *string) (*services.CancelOutcome, error)
	Reschedule(ctx context.Context, actorID int64, role string, sessionID int64, newSlotID int64, reason *string) (*models.Session, error)
	OpenDispute(ctx context.Context, menteeID, sessionID int64, reason string) (*models.SessionDispute, error)
	ResolveDispute(ctx context.Context, mentorID, sessionID int64, accepted bool, refundAmount *float64, resolution string) (*models.SessionDispute, error)
}

type SessionHandler struct {
	booking   bookingApplicationService
	lifecycle lifecycleApplicationService
}

func NewSessionHandler(booking *services.BookingService, lifecycle *services.LifecycleService) *SessionHandler {
	return &SessionHandler{booking: booking, lifecycle: lifecycle}
}

type bookSessionRequest struct {
	MentorID   int64  `json:"mentor_id"`
	TimeSlotID int64  `json:"time_slot_id"`
	Provider   string `json:"provider"`
}

func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	detail, err := h.booking.BookSession(c.Context(), userID, services.BookSessionInput{
		MentorID:   req.MentorID,
		TimeSlotID: req.TimeSlotID,
		Provider:   req.Provider,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	userID, role, ok := sessionActor(c)
	if !ok {
		return nil
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	sessions, err := h.booking.ListSessions(c.Context(), userID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	userID, role, ok := sessionActor(c)
	if !ok {
		return nil
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.booking.GetSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	userID, role, ok := sessionActor(c)
	if !ok {
		return nil
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.lifecycle.StartSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CompleteSession(c *fiber.Ctx) error {
	userID, role, ok := sessionActor(c)
	if !ok {
		return nil
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.lifecycle.CompleteSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

type cancelSessionRequest struct {
	Reason *string `json:"reason"`
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	userID, role, ok := sessionActor(c)
	if !ok {
		return nil
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req cancelSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	outcome, err := h.lifecycle.Cancel(c.Context(), userID, role, sessionID, req.Reason)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{
		"session":        outcome.Session,
		"refund_percent": outcome.RefundPercent,
		"refund_amount":  outcome.RefundAmount,
	})
}

type rescheduleSessionRequest struct {
	TimeSlotID int64   `json:"time_slot_id"`
	Reason     *string `json:"reason"`
}

func (h *SessionHandler) RescheduleSession(c *fiber.Ctx) error {
	userID, role, ok := sessionActor(c)
	if !ok {
		return nil
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req rescheduleSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.TimeSlotID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "time_slot_id must be greater than 0"})
	}

	session, err := h.lifecycle.Reschedule(c.Context(), userID, role, sessionID, req.TimeSlotID, req.Reason)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

func (h *SessionHandler) OpenDispute(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req disputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	dispute, err := h.lifecycle.OpenDispute(c.Context(), userID, sessionID, strings.TrimSpace(req.Reason))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"dispute": dispute})
}

type resolveDisputeRequest struct {
	Accepted     bool     `json:"accepted"`
	RefundAmount *float64 `json:"refund_amount"`
	Resolution   string   `json:"resolution"`
}

func (h *SessionHandler) ResolveDispute(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req resolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	dispute, err := h.lifecycle.ResolveDispute(c.Context(), userID, sessionID, req.Accepted, req.RefundAmount, strings.TrimSpace(req.Resolution))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"dispute": dispute})
}

type createSlotRequest struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

func (h *SessionHandler) CreateSlot(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_at must be a valid RFC3339 timestamp"})
	}
	endAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_at must be a valid RFC3339 timestamp"})
	}

	slot, err := h.booking.CreateSlot(c.Context(), userID, startAt, endAt)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"slot": slot})
}

func (h *SessionHandler) ListSlots(c *fiber.Ctx) error {
	mentorID, err := strconv.ParseInt(c.Params("mentorId"), 10, 64)
	if err != nil || mentorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	slots, err := h.booking.ListOpenSlots(c.Context(), mentorID)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"slots": slots})
}

// sessionActor resolves the authenticated participant. On failure the
// error response is already written and ok is false.
func sessionActor(c *fiber.Ctx) (int64, string, bool) {
	role, roleOK := c.Locals("role").(string)
	if !roleOK || (role != models.RoleMentee && role != models.RoleMentor) {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		return 0, "", false
	}
	userID, err := actorID(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		return 0, "", false
	}
	return userID, role, true
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conflict"})
	case errors.Is(err, services.ErrSlotUnavailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Time slot is not available"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrMentorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentor not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case faults.KindOf(err) == faults.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case faults.KindOf(err) == faults.KindUnavailable, faults.KindOf(err) == faults.KindProvider:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment provider is unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
