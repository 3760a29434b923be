package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/infra/metrics"
	"psychic-credits/internal/infra/redis"
	"psychic-credits/internal/usecase"
)

// decimal.Decimal accepts both "10.00" and 10.00 on the wire.
type topupRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	PlanName         string          `json:"planName" validate:"required,max=100"`
	CreditsPurchased int64           `json:"creditsPurchased" validate:"required,gt=0"`
	PaymentMethod    string          `json:"paymentMethod" validate:"omitempty,max=50"`
	Description      string          `json:"description" validate:"omitempty,max=255"`
}

func (s *Server) handleTopup(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req topupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Amount.LessThan(model.MinTopupAmount) {
		s.fail(w, r, invalid("amount must be at least "+model.MinTopupAmount.String()))
		return
	}

	if s.limiter != nil && s.opts.TopupsPerMinute > 0 {
		ok, err := s.limiter.Allow(r.Context(), redis.UserActionKey(actor.UserID, "topup"), s.opts.TopupsPerMinute, time.Minute)
		if err != nil {
			// fail open
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			s.fail(w, r, domain.ErrRateLimited)
			return
		}
	}

	rec, err := s.payments.Topup(r.Context(), usecase.TopupInput{
		Actor:            actor,
		Amount:           req.Amount,
		PlanName:         req.PlanName,
		CreditsPurchased: req.CreditsPurchased,
		PaymentMethod:    req.PaymentMethod,
		Description:      req.Description,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"paymentUrl": rec.CheckoutURL,
		"paymentId":  rec.ExternalPaymentID,
		"recordId":   rec.ID,
	})
}

// webhookID reads the gateway's payment id from a form post (Mollie's default) or a JSON body.
func webhookID(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10)).Decode(&body); err != nil {
			return "", invalid("invalid JSON body")
		}
		return strings.TrimSpace(body.ID), nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		return "", invalid("invalid form body")
	}
	return strings.TrimSpace(r.PostForm.Get("id")), nil
}

// handleWebhook answers 200 only when reconciliation finished, so the gateway redelivers otherwise.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := webhookID(r)
	if err == nil && id == "" {
		err = invalid("id is required")
	}
	if err != nil {
		s.webhookDone(start, "fail", "missing_id")
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	res, err := s.payments.Reconcile(ctx, id, usecase.SourceWebhook)
	switch {
	case err == nil:
		reason := "unchanged"
		if res.Credited {
			reason = "credited"
		} else if res.StatusChanged {
			reason = "status_changed"
		}
		s.webhookDone(start, "ok", reason)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	case errors.Is(err, domain.ErrNotFound):
		s.webhookDone(start, "fail", "not_found")
		writeJSON(w, http.StatusNotFound, errorBody("payment not found"))
	default:
		s.webhookDone(start, "fail", reasonOf(err))
		logging.With(ctx, s.log).Error().Err(err).
			Str("external_id", logging.Redact(id, s.opts.Dev)).
			Msg("webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("processing failed"))
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrLockBusy):
		return "busy"
	case errors.Is(err, domain.ErrGateway):
		return "gateway"
	case domain.IsStorage(err):
		return "storage"
	default:
		return "unknown"
	}
}

func (s *Server) webhookDone(start time.Time, result, reason string) {
	metrics.WebhookRequests.WithLabelValues(result, reason).Inc()
	metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func paymentView(p *model.PaymentRecord) map[string]any {
	v := map[string]any{
		"id":               p.ID,
		"userId":           p.UserID,
		"customerEmail":    p.CustomerEmail,
		"customerName":     p.CustomerName,
		"amount":           p.Amount.StringFixed(2),
		"currency":         p.Currency,
		"planName":         p.PlanName,
		"creditsPurchased": p.CreditsPurchased,
		"creditsAdded":     p.CreditsAdded,
		"paymentMethod":    p.PaymentMethod,
		"paymentId":        p.ExternalPaymentID,
		"status":           p.Status,
		"description":      p.Description,
		"createdAt":        p.CreatedAt,
		"updatedAt":        p.UpdatedAt,
	}
	if p.PaidAt != nil {
		v["paidAt"] = p.PaidAt
	}
	return v
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "paymentId"))
	if id == "" {
		s.fail(w, r, invalid("paymentId is required"))
		return
	}
	p, err := s.payments.Status(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"paymentId":        p.ExternalPaymentID,
		"status":           p.Status,
		"amount":           p.Amount.StringFixed(2),
		"currency":         p.Currency,
		"creditsPurchased": p.CreditsPurchased,
		"creditsAdded":     p.CreditsAdded,
		"paidAt":           p.PaidAt,
	})
}

var returnPage = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Success{{else}}Status{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}Payment successful{{else}}Payment {{.Status}}{{end}}</h2>
  <p>{{.Msg}}</p>
</div>
</body>
</html>`))

// handleReturn is where the checkout sends the customer back. It reconciles once so the
// page reflects the outcome even when the webhook has not arrived yet.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("paymentId"))
	if id == "" {
		s.renderReturn(w, http.StatusBadRequest, "unknown", "missing paymentId")
		return
	}
	p, err := s.payments.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.renderReturn(w, http.StatusNotFound, "unknown", "payment not found")
			return
		}
		s.renderReturn(w, http.StatusInternalServerError, "unknown", "could not load payment")
		return
	}
	if !p.Status.IsTerminal() {
		if res, err := s.payments.Reconcile(r.Context(), p.ExternalPaymentID, usecase.SourceReturn); err == nil {
			p = res.Payment
		} else {
			logging.With(r.Context(), s.log).Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile on return failed")
		}
	}

	switch p.Status {
	case model.PaymentStatusPaid:
		s.renderReturn(w, http.StatusOK, string(p.Status), "Your credits have been added to your wallet.")
	case model.PaymentStatusPending:
		s.renderReturn(w, http.StatusOK, string(p.Status), "We are still waiting for the payment provider. Your credits will appear shortly.")
	default:
		s.renderReturn(w, http.StatusOK, string(p.Status), "No credits were added.")
	}
}

func (s *Server) renderReturn(w http.ResponseWriter, code int, status, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = returnPage.Execute(w, struct {
		OK     bool
		Status string
		Msg    string
	}{
		OK:     status == string(model.PaymentStatusPaid),
		Status: status,
		Msg:    msg,
	})
}
