package repository

import (
	"context"

	"psychic-credits/internal/domain/model"
)

// -----------------------------
// Wallets
// -----------------------------

type WalletRepository interface {
	// GetOrCreate returns the user's wallet, inserting w when none exists yet.
	// The boolean is true when the wallet was created by this call.
	GetOrCreate(ctx context.Context, tx Tx, w *model.Wallet) (*model.Wallet, bool, error)
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Wallet, error)
	// Increment adds credits to both balance and credits, stamps last_topup and records a ledger row.
	// A missing wallet is created on the fly.
	Increment(ctx context.Context, tx Tx, userID string, credits int64, kind model.WalletTxType, reference string) (*model.Wallet, error)
	// Decrement subtracts credits only when the wallet can afford them; otherwise ErrInsufficientCredits.
	Decrement(ctx context.Context, tx Tx, userID string, credits int64, reference string) (*model.Wallet, error)
	AddTransaction(ctx context.Context, tx Tx, t *model.WalletTransaction) error
	ListTransactions(ctx context.Context, tx Tx, userID string, limit, offset int) ([]*model.WalletTransaction, error)
}
