package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/adapter"
	"psychic-credits/internal/domain/ports/repository"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Reconcile sources, used for logs and metrics.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceSweep   = "sweep"
	SourceReturn  = "return"
)

type PaymentUseCase interface {
	// Topup opens a hosted checkout and stores a pending record pointing at it.
	Topup(ctx context.Context, in TopupInput) (*model.PaymentRecord, error)
	// Reconcile pulls the authoritative status from the gateway and applies credits at most once.
	Reconcile(ctx context.Context, externalID, source string) (*ReconcileResult, error)
	// Status is Reconcile for the payment owner (or an admin). When another reconciliation
	// holds the payment it returns the stored record instead of waiting.
	Status(ctx context.Context, actor Actor, externalID string) (*model.PaymentRecord, error)
	// ReconcileStale sweeps pending records older than olderThan. Returns how many were processed.
	ReconcileStale(ctx context.Context, olderThan time.Duration, batch int) (int, error)

	List(ctx context.Context, f model.PaymentFilter) ([]*model.PaymentRecord, int, error)
	Get(ctx context.Context, id string) (*model.PaymentRecord, error)
	Delete(ctx context.Context, id string) error
}

type TopupInput struct {
	Actor            Actor
	Amount           decimal.Decimal
	PlanName         string
	CreditsPurchased int64
	PaymentMethod    string
	Description      string
}

type ReconcileResult struct {
	Payment       *model.PaymentRecord
	StatusChanged bool
	Credited      bool
	Wallet        *model.Wallet // set when Credited
}

// PaymentConfig carries the settings the payment flows need from config.
type PaymentConfig struct {
	Currency      string
	DefaultMethod string // used when the client leaves paymentMethod empty
	RedirectURL   string // absolute; the payment id is appended as a query parameter
	WebhookURL    string // absolute
	LockTTL       time.Duration
}

type paymentUC struct {
	payments repository.PaymentRepository
	wallets  repository.WalletRepository
	gateway  adapter.PaymentGateway
	locker   adapter.Locker // optional
	tm       repository.TransactionManager
	events   *EventPublisher
	cfg      PaymentConfig
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	wallets repository.WalletRepository,
	gateway adapter.PaymentGateway,
	locker adapter.Locker,
	tm repository.TransactionManager,
	events *EventPublisher,
	cfg PaymentConfig,
	logger *zerolog.Logger,
) *paymentUC {
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &paymentUC{
		payments: payments,
		wallets:  wallets,
		gateway:  gateway,
		locker:   locker,
		tm:       tm,
		events:   events,
		cfg:      cfg,
		log:      logging.OrNop(logger),
	}
}

func (u *paymentUC) Topup(ctx context.Context, in TopupInput) (*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Topup")()

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = u.cfg.DefaultMethod
	}
	// validation happens before the gateway is touched
	rec, err := model.NewPaymentRecord(in.Actor.UserID, in.Amount, in.PlanName, in.CreditsPurchased, method)
	if err != nil {
		return nil, err
	}
	rec.Currency = u.cfg.Currency
	rec.CustomerEmail = in.Actor.Email
	rec.CustomerName = in.Actor.Name
	rec.Description = strings.TrimSpace(in.Description)
	if rec.Description == "" {
		rec.Description = fmt.Sprintf("%s: %d credits", rec.PlanName, rec.CreditsPurchased)
	}
	rec.RedirectURL = withQuery(u.cfg.RedirectURL, "paymentId", rec.ID)
	rec.WebhookURL = u.cfg.WebhookURL
	rec.Metadata = map[string]interface{}{
		"paymentId":        rec.ID,
		"userId":           rec.UserID,
		"planName":         rec.PlanName,
		"creditsPurchased": rec.CreditsPurchased,
	}

	remote, err := u.gateway.CreatePayment(ctx, adapter.CreatePaymentRequest{
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Description: rec.Description,
		RedirectURL: rec.RedirectURL,
		WebhookURL:  rec.WebhookURL,
		Method:      rec.PaymentMethod,
		Metadata: map[string]string{
			"paymentId": rec.ID,
			"userId":    rec.UserID,
		},
	})
	metrics.IncGatewayCall(u.gateway.Name(), "create", err)
	if err != nil {
		return nil, asGatewayErr(err)
	}
	rec.ExternalPaymentID = remote.ID
	rec.CheckoutURL = remote.CheckoutURL

	log := logging.With(logging.WithPaymentID(ctx, rec.ID), u.log)
	if err := u.payments.Create(ctx, nil, rec); err != nil {
		// the remote payment exists but we have no record of it; it will expire unpaid
		log.Error().Err(err).Str("external_id", remote.ID).Msg("failed to store payment record")
		return nil, err
	}
	metrics.IncPayment("created")
	log.Info().
		Str("external_id", remote.ID).
		Str("amount", rec.Amount.StringFixed(2)).
		Int64("credits", rec.CreditsPurchased).
		Msg("top-up initiated")
	return rec, nil
}

func (u *paymentUC) Reconcile(ctx context.Context, externalID, source string) (*ReconcileResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()
	ctx, span := otel.Tracer("payment-usecase").Start(ctx, "PaymentUC.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("payment.external_id", externalID), attribute.String("reconcile.source", source))

	start := time.Now()
	res, err := u.reconcile(ctx, externalID)
	outcome := "unchanged"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
	case res.Credited:
		outcome = "credited"
	case res.StatusChanged:
		outcome = "updated"
	}
	metrics.ObserveReconcile(source, outcome, time.Since(start))
	return res, err
}

func (u *paymentUC) reconcile(ctx context.Context, externalID string) (*ReconcileResult, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: payment id is required", domain.ErrInvalidArgument)
	}
	log := logging.With(ctx, u.log).With().Str("external_id", externalID).Logger()

	if u.locker != nil {
		key := "lock:payment:" + externalID
		token, err := u.locker.TryLock(ctx, key, u.cfg.LockTTL)
		switch {
		case err == nil:
			defer func() {
				if err := u.locker.Unlock(context.Background(), key, token); err != nil {
					log.Warn().Err(err).Msg("failed to release payment lock")
				}
			}()
		case errors.Is(err, domain.ErrLockBusy):
			return nil, err
		default:
			// the lock only narrows contention; storage writes stay conditional
			log.Warn().Err(err).Msg("payment lock unavailable, continuing without it")
		}
	}

	// unknown ids never reach the gateway
	if _, err := u.payments.FindByExternalID(ctx, nil, externalID); err != nil {
		return nil, err
	}

	remote, err := u.gateway.GetPayment(ctx, externalID)
	metrics.IncGatewayCall(u.gateway.Name(), "get", err)
	if err != nil {
		return nil, asGatewayErr(err)
	}

	var res *ReconcileResult
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		rec, err := u.payments.FindByExternalID(ctx, tx, externalID)
		if err != nil {
			return err
		}
		res = &ReconcileResult{Payment: rec}

		if rec.Status.CanTransitionTo(remote.Status) {
			var paidAt *time.Time
			if remote.Status == model.PaymentStatusPaid {
				paidAt = remote.PaidAt
				if paidAt == nil {
					now := time.Now()
					paidAt = &now
				}
			}
			changed, err := u.payments.TransitionStatus(ctx, tx, rec.ID, remote.Status, paidAt)
			if err != nil {
				return err
			}
			if changed {
				rec.Status = remote.Status
				if paidAt != nil {
					rec.PaidAt = paidAt
				}
				res.StatusChanged = true
			}
		}

		if !rec.NeedsCredit(remote.Status) {
			return nil
		}
		applied, err := u.payments.MarkCreditsAdded(ctx, tx, rec.ID, rec.CreditsPurchased)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		w, err := u.wallets.Increment(ctx, tx, rec.UserID, rec.CreditsPurchased, model.WalletTxTopup, rec.ExternalPaymentID)
		if err != nil {
			// returning rolls back credits_added together with the status change
			return fmt.Errorf("credit wallet: %w", err)
		}
		rec.CreditsAdded = rec.CreditsPurchased
		res.Credited = true
		res.Wallet = w
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("remote_status", remote.RawStatus).Msg("reconciliation failed")
		return nil, err
	}

	rec := res.Payment
	if res.StatusChanged {
		metrics.IncPayment(string(rec.Status))
		log.Info().Str("status", string(rec.Status)).Msg("payment status updated")
	}
	if res.Credited {
		metrics.AddPaymentRevenue(rec.Currency, rec.Amount)
		metrics.AddCreditsApplied(rec.CreditsPurchased)
		metrics.IncWalletOp(string(model.WalletTxTopup), "ok")
		log.Info().
			Str("user_id", rec.UserID).
			Int64("credits", rec.CreditsPurchased).
			Int64("credits_after", res.Wallet.Credits).
			Msg("credits applied")

		u.events.BalanceChanged(rec.UserID, res.Wallet.Credits)
		u.events.TopupCompleted(model.TopupReceipt{
			PaymentID:    rec.ID,
			Email:        rec.CustomerEmail,
			Name:         rec.CustomerName,
			PlanName:     rec.PlanName,
			Amount:       rec.Amount,
			Currency:     rec.Currency,
			CreditsAdded: rec.CreditsAdded,
			CreditsNow:   res.Wallet.Credits,
			CompletedAt:  time.Now(),
		})
	}
	return res, nil
}

func (u *paymentUC) Status(ctx context.Context, actor Actor, externalID string) (*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Status")()

	stored, err := u.payments.FindByExternalID(ctx, nil, externalID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(stored.UserID) {
		return nil, domain.ErrForbidden
	}
	res, err := u.Reconcile(ctx, externalID, SourcePoll)
	if errors.Is(err, domain.ErrLockBusy) {
		// someone else is reconciling right now; report what we have
		return u.payments.FindByExternalID(ctx, nil, externalID)
	}
	if err != nil {
		return nil, err
	}
	return res.Payment, nil
}

func (u *paymentUC) ReconcileStale(ctx context.Context, olderThan time.Duration, batch int) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ReconcileStale")()

	pending, err := u.payments.ListPendingOlderThan(ctx, nil, time.Now().Add(-olderThan), batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if p.ExternalPaymentID == "" {
			continue
		}
		if _, err := u.Reconcile(ctx, p.ExternalPaymentID, SourceSweep); err != nil {
			if !errors.Is(err, domain.ErrLockBusy) {
				u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("stale reconcile failed")
			}
			continue
		}
		n++
	}
	return n, nil
}

func (u *paymentUC) List(ctx context.Context, f model.PaymentFilter) ([]*model.PaymentRecord, int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.List")()
	if f.Status != "" {
		if _, ok := model.ParsePaymentStatus(string(f.Status)); !ok {
			return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, f.Status)
		}
	}
	f.Normalize()
	return u.payments.List(ctx, nil, f)
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return u.payments.FindByID(ctx, nil, id)
}

func (u *paymentUC) Delete(ctx context.Context, id string) error {
	if err := u.payments.Delete(ctx, nil, id); err != nil {
		return err
	}
	logging.With(ctx, u.log).Info().Str("payment_id", id).Msg("payment record deleted")
	return nil
}

func asGatewayErr(err error) error {
	if errors.Is(err, domain.ErrGateway) || errors.Is(err, domain.ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGateway, err)
}

func withQuery(base, key, value string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
