package payment

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

const ProviderMidtrans = "midtrans"

// MidtransProvider drives the regional gateway. Transactions are keyed by
// the merchant order id, which doubles as the intent id.
type MidtransProvider struct {
	snap      snap.Client
	core      coreapi.Client
	serverKey string
	// allowUnsigned relaxes the callback hash check when no signature is
	// present at all. Sandbox-only narrowing of the security model.
	allowUnsigned bool
	logger        zerolog.Logger
}

func NewMidtransProvider(serverKey string, production, allowUnsigned bool, logger zerolog.Logger) *MidtransProvider {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
		// Never accept unsigned callbacks against the production gateway.
		allowUnsigned = false
	}

	p := &MidtransProvider{
		serverKey:     serverKey,
		allowUnsigned: allowUnsigned,
		logger:        logger.With().Str("component", "midtrans_provider").Logger(),
	}
	p.snap.New(serverKey, env)
	p.core.New(serverKey, env)
	return p
}

func (p *MidtransProvider) Name() string {
	return ProviderMidtrans
}

func (p *MidtransProvider) ready(op string) error {
	if p.serverKey == "" {
		return faults.New(faults.KindConfiguration, op, "midtrans server key is not configured")
	}
	return nil
}

func (p *MidtransProvider) CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error) {
	const op = "midtrans.create_intent"
	if err := validateCharge(op, input.Amount, input.Currency); err != nil {
		return nil, err
	}
	if err := p.ready(op); err != nil {
		return nil, err
	}
	if input.OrderID == "" {
		return nil, faults.New(faults.KindValidation, op, "order id is required")
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  input.OrderID,
			GrossAmt: int64(input.Amount),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: input.CustomerName,
			Email: input.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    input.OrderID,
				Price: int64(input.Amount),
				Qty:   1,
				Name:  truncate(input.Description, 50),
			},
		},
	}

	resp, snapErr := p.snap.CreateTransaction(req)
	if snapErr != nil {
		return nil, p.mapError(op, snapErr)
	}
	return &Intent{IntentID: input.OrderID, ClientSecret: resp.Token}, nil
}

func (p *MidtransProvider) CancelIntent(ctx context.Context, intentID string) error {
	const op = "midtrans.cancel_intent"
	if err := p.ready(op); err != nil {
		return err
	}
	if _, cancelErr := p.core.CancelTransaction(intentID); cancelErr != nil {
		return p.mapError(op, cancelErr)
	}
	return nil
}

// Refund requires the downstream transaction id; without it the gateway
// cannot locate the settlement, so absence is a validation failure here
// rather than a provider round trip.
func (p *MidtransProvider) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	const op = "midtrans.refund"
	if input.TransactionID == "" {
		return nil, faults.New(faults.KindValidation, op, "refund requires the settlement transaction id")
	}
	if input.Amount <= 0 {
		return nil, faults.New(faults.KindValidation, op, "amount must be greater than zero")
	}
	if err := p.ready(op); err != nil {
		return nil, err
	}

	req := &coreapi.RefundReq{
		Amount: int64(input.Amount),
		Reason: input.Reason,
	}
	resp, refundErr := p.core.RefundTransaction(input.IntentID, req)
	if refundErr != nil {
		return nil, p.mapError(op, refundErr)
	}

	refunded, _ := strconv.ParseFloat(resp.RefundAmount, 64)
	if refunded == 0 {
		refunded = input.Amount
	}
	return &RefundResult{TransactionID: resp.TransactionID, RefundedAmount: refunded}, nil
}

func (p *MidtransProvider) GetStatus(ctx context.Context, intentID string) (Status, error) {
	const op = "midtrans.get_status"
	if err := p.ready(op); err != nil {
		return StatusUnknown, err
	}
	resp, checkErr := p.core.CheckTransaction(intentID)
	if checkErr != nil {
		return StatusUnknown, p.mapError(op, checkErr)
	}
	return mapMidtransStatus(resp.TransactionStatus, resp.FraudStatus), nil
}

type midtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
	Currency          string `json:"currency"`
}

// HandleCallback verifies the ordered-field SHA-512 hash the gateway signs
// its notifications with: hex(sha512(order_id + status_code + gross_amount +
// server_key)).
func (p *MidtransProvider) HandleCallback(ctx context.Context, payload []byte, signature string) (*CallbackResult, error) {
	const op = "midtrans.handle_callback"
	if err := p.ready(op); err != nil {
		return nil, err
	}

	var note midtransNotification
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, faults.Wrap(faults.KindValidation, op, "malformed notification payload", err)
	}
	if note.OrderID == "" || note.StatusCode == "" {
		return nil, faults.New(faults.KindValidation, op, "notification is missing order_id or status_code")
	}

	provided := note.SignatureKey
	if provided == "" {
		provided = signature
	}
	switch {
	case provided == "" && p.allowUnsigned:
		p.logger.Warn().
			Str("order_id", note.OrderID).
			Msg("accepting UNSIGNED payment callback; sandbox bypass is enabled")
	case provided == "":
		return nil, faults.New(faults.KindAuthentication, op, "notification carries no signature")
	default:
		expected := p.signatureFor(note.OrderID, note.StatusCode, note.GrossAmount)
		if !strings.EqualFold(provided, expected) {
			return nil, faults.New(faults.KindAuthentication, op, "notification signature mismatch")
		}
	}

	amount, _ := strconv.ParseFloat(note.GrossAmount, 64)
	status := mapMidtransStatus(note.TransactionStatus, note.FraudStatus)

	return &CallbackResult{
		Success:       status == StatusCaptured,
		IntentID:      note.OrderID,
		TransactionID: note.TransactionID,
		OrderID:       note.OrderID,
		Status:        status,
		Amount:        amount,
		Currency:      defaultString(note.Currency, "IDR"),
		ErrorMessage:  errorMessageFor(status, note.StatusMessage),
	}, nil
}

func (p *MidtransProvider) signatureFor(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + p.serverKey))
	return hex.EncodeToString(sum[:])
}

func (p *MidtransProvider) mapError(op string, err *midtrans.Error) error {
	switch {
	case err.StatusCode == 401:
		return faults.Wrap(faults.KindAuthentication, op, "midtrans authentication failed", err)
	case err.StatusCode == 404:
		return faults.Wrap(faults.KindNotFound, op, "midtrans transaction not found", err)
	case err.StatusCode == 400 || err.StatusCode == 412:
		return faults.Wrap(faults.KindValidation, op, "midtrans rejected the request", err)
	case err.StatusCode == 429 || err.StatusCode >= 500:
		return faults.Wrap(faults.KindUnavailable, op, "midtrans temporarily unavailable", err)
	default:
		return faults.Wrap(faults.KindProvider, op, "midtrans request failed", err)
	}
}

func mapMidtransStatus(transactionStatus, fraudStatus string) Status {
	switch transactionStatus {
	case "capture":
		if fraudStatus != "" && fraudStatus != "accept" {
			return StatusPending
		}
		return StatusCaptured
	case "settlement":
		return StatusCaptured
	case "pending":
		return StatusPending
	case "deny", "failure":
		return StatusFailed
	case "cancel", "expire":
		return StatusCanceled
	case "refund", "partial_refund", "chargeback":
		return StatusRefunded
	default:
		return StatusUnknown
	}
}

func errorMessageFor(status Status, statusMessage string) string {
	if status == StatusFailed {
		return statusMessage
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
