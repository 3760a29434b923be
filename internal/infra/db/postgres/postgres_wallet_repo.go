package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*walletRepo)(nil)

type walletRepo struct{ pool *pgxpool.Pool }

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

const walletColumns = `id, user_id, balance::text, credits, last_topup, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWallet(row rowScanner) (*model.Wallet, error) {
	w := &model.Wallet{}
	var balance string
	if err := row.Scan(&w.ID, &w.UserID, &balance, &w.Credits, &w.LastTopup, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q: %v", domain.ErrReadDatabaseRow, balance, err)
	}
	w.Balance = d
	return w, nil
}

func (r *walletRepo) GetOrCreate(ctx context.Context, tx repository.Tx, w *model.Wallet) (*model.Wallet, bool, error) {
	if w == nil || w.UserID == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO wallets (id, user_id, balance, credits, last_topup, created_at, updated_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
ON CONFLICT (user_id) DO NOTHING
RETURNING ` + walletColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, w.ID, w.UserID, w.Balance.String(), w.Credits, w.LastTopup, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	created, err := scanWallet(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	// someone else owns the row already
	existing, err := r.FindByUserID(ctx, tx, w.UserID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *walletRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Wallet, error) {
	q := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanWallet(row)
}

// Increment is a single upsert so the row update itself is atomic; pass a live tx to keep
// the ledger row in the same unit of work.
func (r *walletRepo) Increment(ctx context.Context, tx repository.Tx, userID string, credits int64, kind model.WalletTxType, reference string) (*model.Wallet, error) {
	if userID == "" || credits <= 0 || !kind.IsCredit() {
		return nil, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO wallets (id, user_id, balance, credits, last_topup, created_at, updated_at)
VALUES ($1, $2, $3::numeric, $4, NOW(), NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET
  balance = wallets.balance + EXCLUDED.balance,
  credits = wallets.credits + EXCLUDED.credits,
  last_topup = EXCLUDED.last_topup,
  updated_at = NOW()
RETURNING ` + walletColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, uuid.NewString(), userID, decimal.NewFromInt(credits).String(), credits)
	if err != nil {
		return nil, err
	}
	w, err := scanWallet(row)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := r.AddTransaction(ctx, tx, &model.WalletTransaction{
		WalletID:     w.ID,
		UserID:       userID,
		Type:         kind,
		Credits:      credits,
		CreditsAfter: w.Credits,
		Reference:    reference,
	}); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *walletRepo) Decrement(ctx context.Context, tx repository.Tx, userID string, credits int64, reference string) (*model.Wallet, error) {
	if userID == "" || credits <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	const q = `
UPDATE wallets SET credits = credits - $2, updated_at = NOW()
 WHERE user_id = $1 AND credits >= $2
RETURNING ` + walletColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, userID, credits)
	if err != nil {
		return nil, err
	}
	w, err := scanWallet(row)
	if errors.Is(err, domain.ErrNotFound) {
		// either no wallet at all, or not enough credits
		if _, ferr := r.FindByUserID(ctx, tx, userID); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrInsufficientCredits
	}
	if err != nil {
		return nil, err
	}
	if err := r.AddTransaction(ctx, tx, &model.WalletTransaction{
		WalletID:     w.ID,
		UserID:       userID,
		Type:         model.WalletTxDeduct,
		Credits:      -credits,
		CreditsAfter: w.Credits,
		Reference:    reference,
	}); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *walletRepo) AddTransaction(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) error {
	const q = `
INSERT INTO wallet_transactions (wallet_id, user_id, type, credits, credits_after, reference, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;`
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	row, err := pickRow(ctx, r.pool, tx, q, t.WalletID, t.UserID, string(t.Type), t.Credits, t.CreditsAfter, t.Reference, t.CreatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&t.ID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *walletRepo) ListTransactions(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
SELECT id, wallet_id, user_id, type, credits, credits_after, reference, created_at
  FROM wallet_transactions
 WHERE user_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]*model.WalletTransaction, 0)
	for rows.Next() {
		t := &model.WalletTransaction{}
		var kind string
		if err := rows.Scan(&t.ID, &t.WalletID, &t.UserID, &kind, &t.Credits, &t.CreditsAfter, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		t.Type = model.WalletTxType(kind)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
