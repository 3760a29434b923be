package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*MollieGateway)(nil)

const defaultMollieBaseURL = "https://api.mollie.com/v2"

// MollieGateway implements adapter.PaymentGateway against the Mollie Payments API v2.
type MollieGateway struct {
	client *resty.Client
}

// NewMollieGateway builds a client authenticated with the given API key.
func NewMollieGateway(apiKey, baseURL string, timeout time.Duration) (*MollieGateway, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mollie api key empty")
	}
	if baseURL == "" {
		baseURL = defaultMollieBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid mollie base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &MollieGateway{client: c}, nil
}

func (m *MollieGateway) Name() string { return "mollie" }

type mollieAmount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type mollieCreateBody struct {
	Amount      mollieAmount      `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Method      string            `json:"method,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type molliePayment struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Method string       `json:"method"`
	Amount mollieAmount `json:"amount"`
	PaidAt *time.Time   `json:"paidAt"`
	Links  struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

type mollieError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// CreatePayment opens a hosted checkout and returns the payment with its checkout link.
func (m *MollieGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error) {
	ctx, span := otel.Tracer("mollie-gateway").Start(ctx, "mollie.CreatePayment", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if req.Amount.LessThanOrEqual(decimal.Zero) || req.Currency == "" {
		return nil, fmt.Errorf("%w: amount and currency are required", domain.ErrInvalidArgument)
	}
	body := mollieCreateBody{
		Amount:      mollieAmount{Currency: req.Currency, Value: req.Amount.StringFixed(2)},
		Description: req.Description,
		RedirectURL: req.RedirectURL,
		WebhookURL:  req.WebhookURL,
		Method:      req.Method,
		Metadata:    req.Metadata,
	}
	span.SetAttributes(
		attribute.String("payment.amount", body.Amount.Value),
		attribute.String("payment.currency", body.Amount.Currency),
		attribute.String("payment.method", req.Method),
	)

	var out molliePayment
	var apiErr mollieError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/payments")
	if err := m.check(resp, err, &apiErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment failed")
		return nil, err
	}
	if out.ID == "" || out.Links.Checkout.Href == "" {
		err := fmt.Errorf("%w: mollie returned no payment id or checkout url", domain.ErrGateway)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.external_id", out.ID))
	return toGatewayPayment(out), nil
}

// GetPayment fetches the authoritative status of a payment.
func (m *MollieGateway) GetPayment(ctx context.Context, externalID string) (*adapter.GatewayPayment, error) {
	ctx, span := otel.Tracer("mollie-gateway").Start(ctx, "mollie.GetPayment", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("payment.external_id", externalID))

	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: payment id is required", domain.ErrInvalidArgument)
	}
	var out molliePayment
	var apiErr mollieError
	resp, err := m.client.R().
		SetContext(ctx).
		SetPathParam("id", externalID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/payments/{id}")
	if err := m.check(resp, err, &apiErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get payment failed")
		return nil, err
	}
	p := toGatewayPayment(out)
	span.SetAttributes(attribute.String("payment.status", p.RawStatus))
	return p, nil
}

func (m *MollieGateway) check(resp *resty.Response, err error, apiErr *mollieError) error {
	if err != nil {
		return fmt.Errorf("%w: mollie: %v", domain.ErrGateway, err)
	}
	if resp.IsError() {
		msg := apiErr.Detail
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("%w: mollie http %d: %s", domain.ErrGateway, resp.StatusCode(), msg)
	}
	return nil
}

func toGatewayPayment(p molliePayment) *adapter.GatewayPayment {
	amount, _ := decimal.NewFromString(p.Amount.Value)
	return &adapter.GatewayPayment{
		ID:          p.ID,
		Status:      MapMollieStatus(p.Status),
		RawStatus:   p.Status,
		CheckoutURL: p.Links.Checkout.Href,
		Method:      p.Method,
		Amount:      amount,
		Currency:    p.Amount.Currency,
		PaidAt:      p.PaidAt,
	}
}

// MapMollieStatus folds Mollie's wording onto our lifecycle. Anything unknown stays pending
// so the reconciler keeps polling it.
func MapMollieStatus(s string) model.PaymentStatus {
	switch strings.ToLower(s) {
	case "paid":
		return model.PaymentStatusPaid
	case "failed":
		return model.PaymentStatusFailed
	case "expired":
		return model.PaymentStatusExpired
	case "canceled", "cancelled":
		return model.PaymentStatusCanceled
	default: // open, pending, authorized
		return model.PaymentStatusPending
	}
}
