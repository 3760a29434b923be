package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/usecase"
)

const testSecret = "test-secret"
const testAdminKey = "admin-key-123"

type stubPayments struct {
	topup     func(ctx context.Context, in usecase.TopupInput) (*model.PaymentRecord, error)
	reconcile func(ctx context.Context, externalID, source string) (*usecase.ReconcileResult, error)
	status    func(ctx context.Context, actor usecase.Actor, externalID string) (*model.PaymentRecord, error)
	list      func(ctx context.Context, f model.PaymentFilter) ([]*model.PaymentRecord, int, error)
	get       func(ctx context.Context, id string) (*model.PaymentRecord, error)
	del       func(ctx context.Context, id string) error

	topupCalls int
	sources    []string
}

func (s *stubPayments) Topup(ctx context.Context, in usecase.TopupInput) (*model.PaymentRecord, error) {
	s.topupCalls++
	return s.topup(ctx, in)
}

func (s *stubPayments) Reconcile(ctx context.Context, externalID, source string) (*usecase.ReconcileResult, error) {
	s.sources = append(s.sources, source)
	return s.reconcile(ctx, externalID, source)
}

func (s *stubPayments) Status(ctx context.Context, actor usecase.Actor, externalID string) (*model.PaymentRecord, error) {
	return s.status(ctx, actor, externalID)
}

func (s *stubPayments) ReconcileStale(context.Context, time.Duration, int) (int, error) {
	return 0, nil
}

func (s *stubPayments) List(ctx context.Context, f model.PaymentFilter) ([]*model.PaymentRecord, int, error) {
	return s.list(ctx, f)
}

func (s *stubPayments) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return s.get(ctx, id)
}

func (s *stubPayments) Delete(ctx context.Context, id string) error {
	return s.del(ctx, id)
}

type stubWallets struct {
	balance func(ctx context.Context, userID string) (*model.Wallet, error)
	credit  func(ctx context.Context, userID string, credits int64, ref string) (*model.Wallet, error)
	deduct  func(ctx context.Context, userID string, credits int64, ref string) (*model.Wallet, error)
	txs     func(ctx context.Context, userID string, limit, offset int) ([]*model.WalletTransaction, error)
}

func (s *stubWallets) Balance(ctx context.Context, userID string) (*model.Wallet, error) {
	return s.balance(ctx, userID)
}

func (s *stubWallets) Credit(ctx context.Context, userID string, credits int64, ref string) (*model.Wallet, error) {
	return s.credit(ctx, userID, credits, ref)
}

func (s *stubWallets) Deduct(ctx context.Context, userID string, credits int64, ref string) (*model.Wallet, error) {
	return s.deduct(ctx, userID, credits, ref)
}

func (s *stubWallets) Transactions(ctx context.Context, userID string, limit, offset int) ([]*model.WalletTransaction, error) {
	return s.txs(ctx, userID, limit, offset)
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, p *stubPayments, w *stubWallets, lim Limiter, health map[string]Pinger) (http.Handler, *Authenticator) {
	t.Helper()
	if p == nil {
		p = &stubPayments{}
	}
	if w == nil {
		w = &stubWallets{}
	}
	auth := NewAuthenticator(testSecret, testAdminKey)
	logger := zerolog.New(io.Discard)
	s := NewServer(p, w, auth, lim, health, Options{TopupsPerMinute: 5}, &logger)
	return s.Router(), auth
}

func tokenFor(t *testing.T, auth *Authenticator, actor usecase.Actor) string {
	t.Helper()
	tok, err := auth.Issue(actor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func doRequest(h http.Handler, method, path, token, contentType, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
