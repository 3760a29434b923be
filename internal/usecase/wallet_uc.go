package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/repository"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/infra/metrics"
)

// Compile-time check
var _ WalletUseCase = (*walletUC)(nil)

// WalletUseCase covers reads and direct mutations of a user's credits.
type WalletUseCase interface {
	// Balance returns the caller's wallet, creating it (with the signup bonus) on first access.
	Balance(ctx context.Context, userID string) (*model.Wallet, error)
	// Credit adds credits outside of a payment. Admin only.
	Credit(ctx context.Context, userID string, credits int64, reference string) (*model.Wallet, error)
	// Deduct fails with domain.ErrInsufficientCredits and leaves the wallet untouched
	// when the balance is too low.
	Deduct(ctx context.Context, userID string, credits int64, reference string) (*model.Wallet, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]*model.WalletTransaction, error)
}

type walletUC struct {
	wallets     repository.WalletRepository
	tm          repository.TransactionManager
	events      *EventPublisher
	signupBonus int64
	log         *zerolog.Logger
}

func NewWalletUseCase(wallets repository.WalletRepository, tm repository.TransactionManager, events *EventPublisher, signupBonus int64, logger *zerolog.Logger) *walletUC {
	return &walletUC{
		wallets:     wallets,
		tm:          tm,
		events:      events,
		signupBonus: signupBonus,
		log:         logging.OrNop(logger),
	}
}

func (u *walletUC) Balance(ctx context.Context, userID string) (*model.Wallet, error) {
	defer logging.TraceDuration(u.log, "WalletUC.Balance")()

	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	w, err := u.wallets.FindByUserID(ctx, nil, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var created bool
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fresh, err := model.NewWallet(userID, u.signupBonus)
		if err != nil {
			return err
		}
		w, created, err = u.wallets.GetOrCreate(ctx, tx, fresh)
		if err != nil {
			return err
		}
		if created && u.signupBonus > 0 {
			return u.wallets.AddTransaction(ctx, tx, &model.WalletTransaction{
				WalletID:     w.ID,
				UserID:       userID,
				Type:         model.WalletTxSignupBonus,
				Credits:      u.signupBonus,
				CreditsAfter: w.Credits,
				Reference:    "signup",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		logging.With(ctx, u.log).Info().Int64("credits", w.Credits).Msg("wallet created")
		if u.signupBonus > 0 {
			metrics.IncWalletOp(string(model.WalletTxSignupBonus), "ok")
			u.events.BalanceChanged(userID, w.Credits)
		}
	}
	return w, nil
}

func (u *walletUC) Credit(ctx context.Context, userID string, credits int64, reference string) (*model.Wallet, error) {
	defer logging.TraceDuration(u.log, "WalletUC.Credit")()

	if userID == "" || credits <= 0 {
		return nil, fmt.Errorf("%w: userId and a positive credits value are required", domain.ErrInvalidArgument)
	}
	var w *model.Wallet
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		w, err = u.wallets.Increment(ctx, tx, userID, credits, model.WalletTxAdminCredit, reference)
		return err
	})
	if err != nil {
		metrics.IncWalletOp(string(model.WalletTxAdminCredit), "error")
		return nil, err
	}
	metrics.IncWalletOp(string(model.WalletTxAdminCredit), "ok")
	logging.With(ctx, u.log).Info().Str("target_user", userID).Int64("credits", credits).Int64("credits_after", w.Credits).Msg("credits added by admin")
	u.events.BalanceChanged(userID, w.Credits)
	return w, nil
}

func (u *walletUC) Deduct(ctx context.Context, userID string, credits int64, reference string) (*model.Wallet, error) {
	defer logging.TraceDuration(u.log, "WalletUC.Deduct")()

	if userID == "" || credits <= 0 {
		return nil, fmt.Errorf("%w: userId and a positive credits value are required", domain.ErrInvalidArgument)
	}
	var w *model.Wallet
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		w, err = u.wallets.Decrement(ctx, tx, userID, credits, reference)
		return err
	})
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrInsufficientCredits) {
			result = "insufficient"
		}
		metrics.IncWalletOp(string(model.WalletTxDeduct), result)
		return nil, err
	}
	metrics.IncWalletOp(string(model.WalletTxDeduct), "ok")
	u.events.BalanceChanged(userID, w.Credits)
	return w, nil
}

func (u *walletUC) Transactions(ctx context.Context, userID string, limit, offset int) ([]*model.WalletTransaction, error) {
	defer logging.TraceDuration(u.log, "WalletUC.Transactions")()
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return u.wallets.ListTransactions(ctx, nil, userID, limit, offset)
}
