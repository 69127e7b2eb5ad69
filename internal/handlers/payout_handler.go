package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/services"
)

type balanceApplicationService interface {
	GetBalance(ctx context.Context, mentorID int64) (*models.MentorBalance, error)
	RequestPayout(ctx context.Context, mentorID int64, amount float64) (*models.Payout, error)
	AdvancePayout(ctx context.Context, mentorID, payoutID int64, nextStatus string) (*models.Payout, error)
}

type PayoutHandler struct {
	service balanceApplicationService
}

func NewPayoutHandler(service *services.BalanceService) *PayoutHandler {
	return &PayoutHandler{service: service}
}

func (h *PayoutHandler) GetBalance(c *fiber.Ctx) error {
	mentorID, ok := mentorActor(c)
	if !ok {
		return nil
	}

	balance, err := h.service.GetBalance(c.Context(), mentorID)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

type requestPayoutRequest struct {
	Amount float64 `json:"amount"`
}

func (h *PayoutHandler) RequestPayout(c *fiber.Ctx) error {
	mentorID, ok := mentorActor(c)
	if !ok {
		return nil
	}

	var req requestPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	payout, err := h.service.RequestPayout(c.Context(), mentorID, req.Amount)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payout": payout})
}

type advancePayoutRequest struct {
	Status string `json:"status"`
}

func (h *PayoutHandler) AdvancePayout(c *fiber.Ctx) error {
	mentorID, ok := mentorActor(c)
	if !ok {
		return nil
	}
	payoutID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout id"})
	}

	var req advancePayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	nextStatus := strings.TrimSpace(strings.ToLower(req.Status))

	payout, err := h.service.AdvancePayout(c.Context(), mentorID, payoutID, nextStatus)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"payout": payout})
}

func mentorActor(c *fiber.Ctx) (int64, bool) {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentor {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		return 0, false
	}
	mentorID, err := actorID(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		return 0, false
	}
	return mentorID, true
}

func mapPayoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be greater than 0"})
	case errors.Is(err, services.ErrInsufficientBalance):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Insufficient available balance"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPayoutNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payout not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process payout request"})
	}
}
