package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

// Status is the provider-neutral view of an intent's lifecycle.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusPending  Status = "pending"
	StatusCaptured Status = "captured"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
	StatusRefunded Status = "refunded"
)

type CreateIntentInput struct {
	// OrderID is this system's unique reference for the payment; providers
	// that key transactions by merchant reference use it as the intent id.
	OrderID       string
	Amount        float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	Description   string
}

type Intent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

type RefundInput struct {
	IntentID string
	Amount   float64
	// TransactionID is the downstream settlement id. The regional gateway
	// refuses refunds without it.
	TransactionID string
	Reason        string
}

type RefundResult struct {
	TransactionID  string
	RefundedAmount float64
}

// CallbackResult is the normalized outcome of a verified provider callback.
type CallbackResult struct {
	Success       bool
	IntentID      string
	TransactionID string
	OrderID       string
	Status        Status
	Amount        float64
	Currency      string
	ErrorMessage  string
}

// Provider is the capability interface every payment gateway implements.
// Adding a gateway means adding one implementation, not touching callers.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
	GetStatus(ctx context.Context, intentID string) (Status, error)
	HandleCallback(ctx context.Context, payload []byte, signature string) (*CallbackResult, error)
}

// Registry selects a provider by its name discriminator.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, faults.New(faults.KindValidation, "payment.registry", fmt.Sprintf("unknown payment provider %q", name))
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// validateCharge runs before any network call: a zero or negative amount is
// a rejected input, not a provider call.
func validateCharge(op string, amount float64, currency string) error {
	if amount <= 0 {
		return faults.New(faults.KindValidation, op, "amount must be greater than zero")
	}
	if len(strings.TrimSpace(currency)) != 3 {
		return faults.New(faults.KindValidation, op, fmt.Sprintf("invalid currency %q", currency))
	}
	return nil
}
