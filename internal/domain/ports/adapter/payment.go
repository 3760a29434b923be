package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain/model"
)

// CreatePaymentRequest is what we ask the hosted provider to open a checkout for.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	RedirectURL string
	WebhookURL  string
	Method      string
	Metadata    map[string]string
}

// GatewayPayment is the provider's view of one payment.
type GatewayPayment struct {
	ID          string
	Status      model.PaymentStatus // mapped onto our lifecycle
	RawStatus   string              // provider wording, for logs
	CheckoutURL string
	Method      string
	Amount      decimal.Decimal
	Currency    string
	PaidAt      *time.Time
}

// PaymentGateway is the hex port for the hosted payment provider.
// Implementations do not cache: every call hits the provider.
type PaymentGateway interface {
	Name() string

	// CreatePayment opens a remote payment and returns its id and checkout URL.
	// Errors wrap domain.ErrGateway; callers must not assume partial success.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*GatewayPayment, error)
	// GetPayment returns the provider's current status. Unknown ids fail with domain.ErrGateway.
	GetPayment(ctx context.Context, externalID string) (*GatewayPayment, error)
}
