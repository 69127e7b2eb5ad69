package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

const ProviderStripe = "stripe"

// StripeProvider drives the card-network gateway through the official SDK.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        zerolog.Logger
}

func NewStripeProvider(secretKey, webhookSecret string, logger zerolog.Logger) *StripeProvider {
	p := &StripeProvider{
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("component", "stripe_provider").Logger(),
	}
	if secretKey != "" {
		p.api = &client.API{}
		p.api.Init(secretKey, nil)
	}
	return p
}

func (p *StripeProvider) Name() string {
	return ProviderStripe
}

func (p *StripeProvider) ready(op string) error {
	if p.api == nil {
		return faults.New(faults.KindConfiguration, op, "stripe secret key is not configured")
	}
	return nil
}

func (p *StripeProvider) CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error) {
	const op = "stripe.create_intent"
	if err := validateCharge(op, input.Amount, input.Currency); err != nil {
		return nil, err
	}
	if err := p.ready(op); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(input.Amount)),
		Currency:    stripe.String(strings.ToLower(input.Currency)),
		Description: stripe.String(input.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", input.OrderID)
	if input.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(input.CustomerEmail)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, p.mapError(op, err)
	}
	return &Intent{IntentID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProvider) CancelIntent(ctx context.Context, intentID string) error {
	const op = "stripe.cancel_intent"
	if err := p.ready(op); err != nil {
		return err
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := p.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return p.mapError(op, err)
	}
	return nil
}

func (p *StripeProvider) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	const op = "stripe.refund"
	if err := validateCharge(op, input.Amount, "usd"); err != nil {
		return nil, err
	}
	if err := p.ready(op); err != nil {
		return nil, err
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(input.IntentID),
		Amount:        stripe.Int64(toMinorUnits(input.Amount)),
	}
	params.Context = ctx

	refund, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, p.mapError(op, err)
	}
	return &RefundResult{
		TransactionID:  refund.ID,
		RefundedAmount: fromMinorUnits(refund.Amount),
	}, nil
}

func (p *StripeProvider) GetStatus(ctx context.Context, intentID string) (Status, error) {
	const op = "stripe.get_status"
	if err := p.ready(op); err != nil {
		return StatusUnknown, err
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return StatusUnknown, p.mapError(op, err)
	}
	return mapStripeIntentStatus(pi.Status), nil
}

// HandleCallback verifies the signed-event header with the SDK and
// normalizes the payment_intent events this system reacts to.
func (p *StripeProvider) HandleCallback(ctx context.Context, payload []byte, signature string) (*CallbackResult, error) {
	const op = "stripe.handle_callback"
	if p.webhookSecret == "" {
		return nil, faults.New(faults.KindConfiguration, op, "stripe webhook secret is not configured")
	}
	if signature == "" {
		return nil, faults.New(faults.KindAuthentication, op, "missing webhook signature header")
	}

	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return nil, faults.Wrap(faults.KindAuthentication, op, "webhook signature verification failed", err)
		}
		return nil, faults.Wrap(faults.KindValidation, op, "malformed webhook payload", err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		p.logger.Debug().Str("event_type", string(event.Type)).Msg("ignoring unhandled stripe event")
		return &CallbackResult{Status: StatusUnknown}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, faults.Wrap(faults.KindValidation, op, "malformed payment_intent object", err)
	}

	result := &CallbackResult{
		IntentID: pi.ID,
		OrderID:  pi.Metadata["order_id"],
		Amount:   fromMinorUnits(pi.Amount),
		Currency: strings.ToUpper(string(pi.Currency)),
	}
	if pi.LatestCharge != nil {
		result.TransactionID = pi.LatestCharge.ID
	}

	switch event.Type {
	case "payment_intent.succeeded":
		result.Success = true
		result.Status = StatusCaptured
	case "payment_intent.payment_failed":
		result.Status = StatusFailed
		if pi.LastPaymentError != nil {
			result.ErrorMessage = pi.LastPaymentError.Msg
		}
	case "payment_intent.canceled":
		result.Status = StatusCanceled
	}
	return result, nil
}

func (p *StripeProvider) mapError(op string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return faults.Wrap(faults.KindProvider, op, "stripe request failed", err)
	}

	if stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500 {
		return faults.Wrap(faults.KindUnavailable, op, "stripe temporarily unavailable", err)
	}
	switch stripeErr.Type {
	case stripe.ErrorType("authentication_error"):
		return faults.Wrap(faults.KindAuthentication, op, "stripe authentication failed", err)
	case stripe.ErrorTypeInvalidRequest:
		if stripeErr.HTTPStatusCode == 404 {
			return faults.Wrap(faults.KindNotFound, op, "stripe resource not found", err)
		}
		return faults.Wrap(faults.KindValidation, op, "stripe rejected the request", err)
	case stripe.ErrorTypeCard:
		return faults.Wrap(faults.KindValidation, op, "card was declined", err)
	default:
		return faults.Wrap(faults.KindProvider, op, "stripe request failed", err)
	}
}

func mapStripeIntentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusPending
	default:
		return StatusUnknown
	}
}

func toMinorUnits(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

func fromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
