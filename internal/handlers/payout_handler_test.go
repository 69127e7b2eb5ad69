package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/services"
)

type stubBalanceService struct {
	balance      *models.MentorBalance
	payout       *models.Payout
	requestErr   error
	advanceErr   error
	lastMentorID int64
	lastAmount   float64
	lastPayoutID int64
	lastStatus   string
}

func (s *stubBalanceService) GetBalance(_ context.Context, mentorID int64) (*models.MentorBalance, error) {
	s.lastMentorID = mentorID
	return s.balance, nil
}

func (s *stubBalanceService) RequestPayout(_ context.Context, mentorID int64, amount float64) (*models.Payout, error) {
	s.lastMentorID = mentorID
	s.lastAmount = amount
	return s.payout, s.requestErr
}

func (s *stubBalanceService) AdvancePayout(_ context.Context, mentorID, payoutID int64, nextStatus string) (*models.Payout, error) {
	s.lastMentorID = mentorID
	s.lastPayoutID = payoutID
	s.lastStatus = nextStatus
	return s.payout, s.advanceErr
}

func newPayoutTestApp(service *stubBalanceService, role, userID string) *fiber.App {
	handler := &PayoutHandler{service: service}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/api/v1/payouts/balance", handler.GetBalance)
	app.Post("/api/v1/payouts", handler.RequestPayout)
	app.Put("/api/v1/payouts/:id/status", handler.AdvancePayout)
	return app
}

func TestGetBalanceMentorOnly(t *testing.T) {
	service := &stubBalanceService{balance: &models.MentorBalance{MentorID: 7, AvailableBalance: 120}}

	app := newPayoutTestApp(service, "mentor", "7")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payouts/balance", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastMentorID != 7 {
		t.Fatalf("expected mentor 7, got %d", service.lastMentorID)
	}

	menteeApp := newPayoutTestApp(service, "mentee", "42")
	resp, err = menteeApp.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payouts/balance", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for mentee, got %d", resp.StatusCode)
	}
}

func TestRequestPayoutCreated(t *testing.T) {
	service := &stubBalanceService{
		payout: &models.Payout{ID: 3, MentorID: 7, Amount: 80, Status: "requested"},
	}
	app := newPayoutTestApp(service, "mentor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount": 80}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastAmount != 80 {
		t.Fatalf("expected amount 80, got %v", service.lastAmount)
	}
}

func TestRequestPayoutInsufficientBalance(t *testing.T) {
	service := &stubBalanceService{requestErr: services.ErrInsufficientBalance}
	app := newPayoutTestApp(service, "mentor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount": 9999}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestAdvancePayoutNormalizesStatus(t *testing.T) {
	service := &stubBalanceService{
		payout: &models.Payout{ID: 3, MentorID: 7, Status: "processing"},
	}
	app := newPayoutTestApp(service, "mentor", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/payouts/3/status", strings.NewReader(`{"status": " Processing "}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastPayoutID != 3 || service.lastStatus != "processing" {
		t.Fatalf("unexpected advance call: id=%d status=%q", service.lastPayoutID, service.lastStatus)
	}
}

func TestAdvancePayoutInvalidTransition(t *testing.T) {
	service := &stubBalanceService{advanceErr: services.ErrInvalidStateTransition}
	app := newPayoutTestApp(service, "mentor", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/payouts/3/status", strings.NewReader(`{"status": "completed"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
