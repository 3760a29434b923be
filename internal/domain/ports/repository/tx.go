package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function within a database transaction, passing the
// underlying transaction handle to the callback.
//
// Repository methods accept the handle as `tx` and, when it is a live transaction,
// use it for every statement (and take row locks where they read-then-write).
// A nil handle means "no transaction": repositories fall back to the pool.
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
// p, err := payments.FindByExternalID(ctx, tx, id)
// ...
// return wallets.Increment(ctx, tx, ...)
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
