package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/adapter"
	"psychic-credits/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Payments ----

// memPaymentRepo keeps the conditional-write semantics of the Postgres repository.
type memPaymentRepo struct {
	mu        sync.Mutex
	byID      map[string]*model.PaymentRecord
	createErr error
	markHook  func() // runs before MarkCreditsAdded takes the lock
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byID: map[string]*model.PaymentRecord{}}
}

func (m *memPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.ExternalPaymentID == p.ExternalPaymentID {
			return domain.ErrDuplicatePayment
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.ExternalPaymentID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) List(ctx context.Context, tx repository.Tx, f model.PaymentFilter) ([]*model.PaymentRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.PaymentRecord
	for _, p := range m.byID {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.PlanName+" "+p.CustomerEmail+" "+p.ExternalPaymentID), strings.ToLower(f.Search)) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if f.Offset >= total {
		return []*model.PaymentRecord{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPaymentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || !p.Status.CanTransitionTo(next) {
		return false, nil
	}
	p.Status = next
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	return true, nil
}

func (m *memPaymentRepo) MarkCreditsAdded(ctx context.Context, tx repository.Tx, id string, credits int64) (bool, error) {
	if m.markHook != nil {
		m.markHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.CreditsAdded != 0 || p.CreditsPurchased != credits {
		return false, nil
	}
	p.CreditsAdded = credits
	return true, nil
}

func (m *memPaymentRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memPaymentRepo) snapshot() map[string]model.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.PaymentRecord, len(m.byID))
	for k, v := range m.byID {
		out[k] = *v
	}
	return out
}

func (m *memPaymentRepo) restore(s map[string]model.PaymentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*model.PaymentRecord, len(s))
	for k, v := range s {
		cp := v
		m.byID[k] = &cp
	}
}

// ---- Wallets ----

type memWalletRepo struct {
	mu           sync.Mutex
	byUser       map[string]*model.Wallet
	ledger       []*model.WalletTransaction
	incrementErr error
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{byUser: map[string]*model.Wallet{}}
}

func (m *memWalletRepo) GetOrCreate(ctx context.Context, tx repository.Tx, w *model.Wallet) (*model.Wallet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byUser[w.UserID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *w
	m.byUser[w.UserID] = &cp
	out := cp
	return &out, true, nil
}

func (m *memWalletRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWalletRepo) Increment(ctx context.Context, tx repository.Tx, userID string, credits int64, kind model.WalletTxType, reference string) (*model.Wallet, error) {
	if m.incrementErr != nil {
		return nil, m.incrementErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byUser[userID]
	if !ok {
		w = &model.Wallet{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now()}
		m.byUser[userID] = w
	}
	now := time.Now()
	w.Credits += credits
	w.Balance = w.Balance.Add(decimal.NewFromInt(credits))
	w.LastTopup = &now
	m.ledger = append(m.ledger, &model.WalletTransaction{WalletID: w.ID, UserID: userID, Type: kind, Credits: credits, CreditsAfter: w.Credits, Reference: reference})
	cp := *w
	return &cp, nil
}

func (m *memWalletRepo) Decrement(ctx context.Context, tx repository.Tx, userID string, credits int64, reference string) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if w.Credits < credits {
		return nil, domain.ErrInsufficientCredits
	}
	w.Credits -= credits
	m.ledger = append(m.ledger, &model.WalletTransaction{WalletID: w.ID, UserID: userID, Type: model.WalletTxDeduct, Credits: -credits, CreditsAfter: w.Credits, Reference: reference})
	cp := *w
	return &cp, nil
}

func (m *memWalletRepo) AddTransaction(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.ledger = append(m.ledger, &cp)
	return nil
}

func (m *memWalletRepo) ListTransactions(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WalletTransaction
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].UserID == userID {
			out = append(out, m.ledger[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memWalletRepo) credits(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.byUser[userID]; ok {
		return w.Credits
	}
	return 0
}

func (m *memWalletRepo) snapshot() (map[string]model.Wallet, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Wallet, len(m.byUser))
	for k, v := range m.byUser {
		out[k] = *v
	}
	return out, len(m.ledger)
}

func (m *memWalletRepo) restore(s map[string]model.Wallet, ledgerLen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser = make(map[string]*model.Wallet, len(s))
	for k, v := range s {
		cp := v
		m.byUser[k] = &cp
	}
	m.ledger = m.ledger[:ledgerLen]
}

// ---- Transactions ----

// memTxManager serialises transactions and restores both repos when fn fails,
// which is close enough to row locks plus rollback for these tests.
type memTxManager struct {
	mu       sync.Mutex
	payments *memPaymentRepo
	wallets  *memWalletRepo
	commits  int
}

var _ repository.TransactionManager = (*memTxManager)(nil)

func (m *memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		ps     map[string]model.PaymentRecord
		ws     map[string]model.Wallet
		ledger int
	)
	if m.payments != nil {
		ps = m.payments.snapshot()
	}
	if m.wallets != nil {
		ws, ledger = m.wallets.snapshot()
	}
	if err := fn(ctx, nil); err != nil {
		if m.payments != nil {
			m.payments.restore(ps)
		}
		if m.wallets != nil {
			m.wallets.restore(ws, ledger)
		}
		return err
	}
	m.commits++
	return nil
}

// passthroughTx runs fn without any isolation, so only the conditional writes protect us.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// ---- Gateway ----

type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	payments    map[string]*adapter.GatewayPayment
	createErr   error
	getErr      error
	createCalls int
	getCalls    int
	lastCreate  adapter.CreatePaymentRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*adapter.GatewayPayment{}}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastCreate = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("tr_fake%d", g.seq)
	p := &adapter.GatewayPayment{ID: id, Status: model.PaymentStatusPending, RawStatus: "open", CheckoutURL: "https://pay.example/" + id}
	g.payments[id] = p
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, externalID string) (*adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	p, ok := g.payments[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment", domain.ErrGateway)
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) setStatus(id string, st model.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id].Status = st
	g.payments[id].RawStatus = string(st)
}

// ---- Locker ----

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
	err  error
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]string{}} }

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	if _, busy := l.held[key]; busy {
		return "", domain.ErrLockBusy
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- Notifications ----

type captureNotifier struct {
	mu     sync.Mutex
	events []int64
	err    error
}

func (c *captureNotifier) PublishBalance(ctx context.Context, userID string, credits int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, credits)
	return c.err
}

func (c *captureNotifier) published() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.events...)
}

type captureMailer struct {
	mu       sync.Mutex
	receipts []model.TopupReceipt
}

func (c *captureMailer) SendTopupReceipt(ctx context.Context, r model.TopupReceipt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts = append(c.receipts, r)
	return nil
}

type rejectingSubmitter struct{ calls int }

func (r *rejectingSubmitter) Submit(task func(ctx context.Context) error) error {
	r.calls++
	return fmt.Errorf("queue full")
}
