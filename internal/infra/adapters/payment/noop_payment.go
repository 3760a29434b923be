package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests.
// Payments start pending; SetStatus simulates the customer finishing checkout.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	payments map[string]*adapter.GatewayPayment
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		payments: make(map[string]*adapter.GatewayPayment),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("tr_noop%d", g.seq)
}

func (g *NoopPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	p := &adapter.GatewayPayment{
		ID:          id,
		Status:      model.PaymentStatusPending,
		RawStatus:   "open",
		CheckoutURL: "https://example.test/checkout/" + id,
		Method:      req.Method,
		Amount:      req.Amount,
		Currency:    req.Currency,
	}
	g.payments[id] = p
	cp := *p
	return &cp, nil
}

func (g *NoopPaymentGateway) GetPayment(ctx context.Context, externalID string) (*adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: noop: payment %s not found", domain.ErrGateway, externalID)
	}
	cp := *p
	return &cp, nil
}

// SetStatus changes the remote status of a payment created earlier.
func (g *NoopPaymentGateway) SetStatus(externalID string, status model.PaymentStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[externalID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.RawStatus = string(status)
	if status == model.PaymentStatusPaid {
		now := time.Now()
		p.PaidAt = &now
	}
	return nil
}
