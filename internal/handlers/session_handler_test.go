package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/services"
)

type stubBookingService struct {
	bookResult    *models.SessionDetail
	bookErr       error
	listResult    []models.SessionDetail
	getResult     *models.SessionDetail
	getErr        error
	slotsResult   []models.TimeSlot
	slotResult    *models.TimeSlot
	slotErr       error
	lastActorID   int64
	lastRole      string
	lastSessionID int64
	lastBookInput services.BookSessionInput
	lastFilter    repository.SessionListFilter
}

func (s *stubBookingService) BookSession(_ context.Context, menteeID int64, input services.BookSessionInput) (*models.SessionDetail, error) {
	s.lastActorID = menteeID
	s.lastBookInput = input
	return s.bookResult, s.bookErr
}

func (s *stubBookingService) ListSessions(_ context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastFilter = filter
	return s.listResult, nil
}

func (s *stubBookingService) GetSession(_ context.Context, actorID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubBookingService) ListOpenSlots(_ context.Context, mentorID int64) ([]models.TimeSlot, error) {
	s.lastActorID = mentorID
	return s.slotsResult, nil
}

func (s *stubBookingService) CreateSlot(_ context.Context, mentorID int64, _, _ time.Time) (*models.TimeSlot, error) {
	s.lastActorID = mentorID
	return s.slotResult, s.slotErr
}

type stubLifecycleService struct {
	startResult   *models.Session
	startErr      error
	cancelResult  *services.CancelOutcome
	cancelErr     error
	disputeResult *models.SessionDispute
	disputeErr    error
	lastActorID   int64
	lastRole      string
	lastSessionID int64
	lastReason    *string
	lastSlotID    int64
}

func (s *stubLifecycleService) StartSession(_ context.Context, actorID int64, role string, sessionID int64) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.startResult, s.startErr
}

func (s *stubLifecycleService) CompleteSession(_ context.Context, actorID int64, role string, sessionID int64) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.startResult, s.startErr
}

func (s *stubLifecycleService) Cancel(_ context.Context, actorID int64, role string, sessionID int64, reason *string) (*services.CancelOutcome, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastReason = reason
	return s.cancelResult, s.cancelErr
}

func (s *stubLifecycleService) Reschedule(_ context.Context, actorID int64, role string, sessionID, newSlotID int64, reason *string) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastSlotID = newSlotID
	s.lastReason = reason
	return s.startResult, s.startErr
}

func (s *stubLifecycleService) OpenDispute(_ context.Context, menteeID, sessionID int64, reason string) (*models.SessionDispute, error) {
	s.lastActorID = menteeID
	s.lastSessionID = sessionID
	return s.disputeResult, s.disputeErr
}

func (s *stubLifecycleService) ResolveDispute(_ context.Context, mentorID, sessionID int64, _ bool, _ *float64, _ string) (*models.SessionDispute, error) {
	s.lastActorID = mentorID
	s.lastSessionID = sessionID
	return s.disputeResult, s.disputeErr
}

func newSessionTestApp(handler *SessionHandler, role, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/v1/sessions/book", handler.BookSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/start", handler.StartSession)
	app.Post("/api/v1/sessions/:id/cancel", handler.CancelSession)
	app.Post("/api/v1/sessions/:id/reschedule", handler.RescheduleSession)
	app.Post("/api/v1/sessions/:id/dispute", handler.OpenDispute)
	return app
}

func TestBookSessionReturnsCreatedSession(t *testing.T) {
	booking := &stubBookingService{
		bookResult: &models.SessionDetail{
			Session: models.Session{ID: 91, MenteeID: 42, MentorID: 7, Status: "booked"},
			Payment: &models.Payment{ID: 3, Status: "pending", Provider: "stripe"},
		},
	}
	handler := &SessionHandler{booking: booking, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentee", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"mentor_id": 7,
		"time_slot_id": 15,
		"provider": "stripe"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if booking.lastActorID != 42 {
		t.Fatalf("expected actor id 42, got %d", booking.lastActorID)
	}
	if booking.lastBookInput.MentorID != 7 || booking.lastBookInput.TimeSlotID != 15 {
		t.Fatalf("unexpected booking input %+v", booking.lastBookInput)
	}
	if booking.lastBookInput.Provider != "stripe" {
		t.Fatalf("expected provider stripe, got %s", booking.lastBookInput.Provider)
	}
}

func TestBookSessionForbiddenForMentors(t *testing.T) {
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{"mentor_id": 7, "time_slot_id": 1, "provider": "stripe"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionMapsSlotConflict(t *testing.T) {
	booking := &stubBookingService{bookErr: services.ErrSlotUnavailable}
	handler := &SessionHandler{booking: booking, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentee", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{"mentor_id": 7, "time_slot_id": 1, "provider": "stripe"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for claimed slot, got %d", resp.StatusCode)
	}
}

func TestListSessionsValidatesTimeframe(t *testing.T) {
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentee", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=yesterday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListSessionsPassesFilter(t *testing.T) {
	booking := &stubBookingService{}
	handler := &SessionHandler{booking: booking, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentor", "7")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=upcoming&status=confirmed", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if booking.lastRole != "mentor" || booking.lastActorID != 7 {
		t.Fatalf("unexpected actor %d role %s", booking.lastActorID, booking.lastRole)
	}
	if booking.lastFilter.Timeframe != "upcoming" || booking.lastFilter.Status != "confirmed" {
		t.Fatalf("unexpected filter %+v", booking.lastFilter)
	}
}

func TestStartSessionMapsStateTransitionError(t *testing.T) {
	lifecycle := &stubLifecycleService{startErr: services.ErrInvalidStateTransition}
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "mentor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if lifecycle.lastSessionID != 5 {
		t.Fatalf("expected session id 5, got %d", lifecycle.lastSessionID)
	}
}

func TestCancelSessionReturnsRefundOutcome(t *testing.T) {
	lifecycle := &stubLifecycleService{
		cancelResult: &services.CancelOutcome{
			Session:       &models.Session{ID: 5, Status: "cancelled"},
			RefundPercent: 75,
			RefundAmount:  37.5,
		},
	}
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "mentee", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/cancel", strings.NewReader(`{"reason": "schedule conflict"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		RefundPercent float64 `json:"refund_percent"`
		RefundAmount  float64 `json:"refund_amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.RefundPercent != 75 || body.RefundAmount != 37.5 {
		t.Fatalf("unexpected refund outcome %+v", body)
	}
	if lifecycle.lastReason == nil || *lifecycle.lastReason != "schedule conflict" {
		t.Fatalf("expected reason to reach the service, got %v", lifecycle.lastReason)
	}
}

func TestRescheduleRequiresSlotID(t *testing.T) {
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentee", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/reschedule", strings.NewReader(`{"time_slot_id": 0}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestOpenDisputeMenteeOnly(t *testing.T) {
	lifecycle := &stubLifecycleService{
		disputeResult: &models.SessionDispute{ID: 1, SessionID: 5, Status: "open"},
	}
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: lifecycle}

	menteeApp := newSessionTestApp(handler, "mentee", "42")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/dispute", strings.NewReader(`{"reason": "mentor never joined"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := menteeApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	mentorApp := newSessionTestApp(handler, "mentor", "7")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/dispute", strings.NewReader(`{"reason": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = mentorApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for mentor, got %d", resp.StatusCode)
	}
}

func TestGetSessionRejectsBadID(t *testing.T) {
	handler := &SessionHandler{booking: &stubBookingService{}, lifecycle: &stubLifecycleService{}}
	app := newSessionTestApp(handler, "mentee", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/zero", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
