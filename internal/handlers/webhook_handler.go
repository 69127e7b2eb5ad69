package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/payment"
)

type webhookLifecycle interface {
	HandlePaymentCallback(ctx context.Context, providerName string, payload []byte, signature string) (*payment.CallbackResult, error)
	HandleRecordingReady(ctx context.Context, meetingID, recordingURL string, availableAt time.Time) error
}

type WebhookHandler struct {
	lifecycle webhookLifecycle
	logger    zerolog.Logger
}

func NewWebhookHandler(lifecycle webhookLifecycle, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		logger:    logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// PaymentCallback ingests one provider notification. The raw body goes to
// the provider untouched so signature checks see exactly what was signed.
func (h *WebhookHandler) PaymentCallback(c *fiber.Ctx) error {
	providerName := c.Params("provider")

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		signature = c.Get("X-Callback-Signature")
	}

	result, err := h.lifecycle.HandlePaymentCallback(c.Context(), providerName, c.Body(), signature)
	if err != nil {
		switch faults.KindOf(err) {
		case faults.KindAuthentication:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
		case faults.KindValidation:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed callback payload"})
		case faults.KindBusinessRule:
			// Acknowledged but not applied; a 2xx stops the provider from
			// redelivering an event this system can never apply.
			h.logger.Warn().Err(err).Str("provider", providerName).Msg("payment callback not applicable")
			return c.JSON(fiber.Map{"status": "ignored"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process callback"})
		}
	}

	return c.JSON(fiber.Map{"status": "ok", "intent_status": result.Status})
}

type recordingWebhookRequest struct {
	Event   string `json:"event"`
	Payload struct {
		Object struct {
			ID             int64 `json:"id"`
			RecordingFiles []struct {
				FileType    string `json:"file_type"`
				DownloadURL string `json:"download_url"`
			} `json:"recording_files"`
		} `json:"object"`
	} `json:"payload"`
}

func (h *WebhookHandler) RecordingCompleted(c *fiber.Ctx) error {
	var req recordingWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Event != "recording.completed" {
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	if req.Payload.Object.ID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing meeting id"})
	}

	recordingURL := ""
	for _, file := range req.Payload.Object.RecordingFiles {
		if file.FileType == "MP4" {
			recordingURL = file.DownloadURL
			break
		}
	}
	if recordingURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No video recording in event"})
	}

	meetingID := strconv.FormatInt(req.Payload.Object.ID, 10)
	if err := h.lifecycle.HandleRecordingReady(c.Context(), meetingID, recordingURL, time.Now().UTC()); err != nil {
		if faults.KindOf(err) == faults.KindNotFound {
			h.logger.Warn().Str("meeting_id", meetingID).Msg("recording event for unknown meeting")
			return c.JSON(fiber.Map{"status": "ignored"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process recording event"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
