package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // created at the gateway; awaiting the customer
	PaymentStatusPaid     PaymentStatus = "paid"     // gateway confirmed the money arrived
	PaymentStatusFailed   PaymentStatus = "failed"   // declined or errored at the gateway
	PaymentStatusExpired  PaymentStatus = "expired"  // customer never completed checkout
	PaymentStatusCanceled PaymentStatus = "canceled" // customer or merchant cancelled
)

// ParsePaymentStatus returns the status for s, or false when s is not a known status.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCanceled:
		return st, true
	}
	return "", false
}

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a stored status may be replaced by next.
// Pending moves anywhere; a terminal state only ever moves to paid.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return false
	}
	if s == PaymentStatusPending {
		return true
	}
	return next == PaymentStatusPaid && s != PaymentStatusPaid
}

// MinTopupAmount is the smallest accepted top-up, in currency units.
var MinTopupAmount = decimal.NewFromInt(1)

// PaymentRecord mirrors one payment attempt at the external gateway.
type PaymentRecord struct {
	ID                string // ULID, time-sortable
	UserID            string
	CustomerEmail     string // identity snapshot used by admin listing/search and receipts
	CustomerName      string
	Amount            decimal.Decimal
	Currency          string
	PlanName          string
	CreditsPurchased  int64
	PaymentMethod     string
	ExternalPaymentID string
	Status            PaymentStatus
	CreditsAdded      int64 // 0 or CreditsPurchased, never anything else
	RedirectURL       string
	WebhookURL        string
	CheckoutURL       string
	Description       string
	Metadata          map[string]interface{}
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPaymentRecord validates a top-up request and returns a pending record without an external id.
func NewPaymentRecord(userID string, amount decimal.Decimal, planName string, creditsPurchased int64, method string) (*PaymentRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidArgument)
	}
	if amount.LessThan(MinTopupAmount) {
		return nil, fmt.Errorf("%w: amount must be at least %s", domain.ErrInvalidArgument, MinTopupAmount.String())
	}
	if strings.TrimSpace(planName) == "" {
		return nil, fmt.Errorf("%w: planName is required", domain.ErrInvalidArgument)
	}
	if creditsPurchased <= 0 {
		return nil, fmt.Errorf("%w: creditsPurchased must be positive", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("%w: paymentMethod is required", domain.ErrInvalidArgument)
	}
	now := time.Now()
	return &PaymentRecord{
		ID:               NewPaymentID(now),
		UserID:           userID,
		Amount:           amount.Round(2),
		PlanName:         strings.TrimSpace(planName),
		CreditsPurchased: creditsPurchased,
		PaymentMethod:    strings.TrimSpace(method),
		Status:           PaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewPaymentID returns a lexicographically sortable identifier for a payment record.
func NewPaymentID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NeedsCredit reports whether the record should have credits applied once the gateway says paid.
func (p *PaymentRecord) NeedsCredit(remote PaymentStatus) bool {
	return remote == PaymentStatusPaid && p.CreditsAdded == 0
}

// PaymentFilter drives the admin listing.
type PaymentFilter struct {
	Status PaymentStatus // empty means any
	Search string        // matched against plan name, external id, user id, email and name
	Limit  int
	Offset int
}

func (f *PaymentFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
}

// TopupReceipt carries what the receipt email needs.
type TopupReceipt struct {
	PaymentID    string
	Email        string
	Name         string
	PlanName     string
	Amount       decimal.Decimal
	Currency     string
	CreditsAdded int64
	CreditsNow   int64
	CompletedAt  time.Time
}
