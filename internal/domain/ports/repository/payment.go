package repository

import (
	"context"
	"time"

	"psychic-credits/internal/domain/model"
)

// -----------------------------
// Payment records
// -----------------------------

type PaymentRepository interface {
	// Create inserts a new record. A second record with the same external id fails with ErrDuplicatePayment.
	Create(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	// FindByExternalID locks the row when called inside a transaction.
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.PaymentRecord, error)
	List(ctx context.Context, tx Tx, f model.PaymentFilter) ([]*model.PaymentRecord, int, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)

	// TransitionStatus moves the record to next only when the stored status allows it
	// (pending -> anything, terminal -> paid). Returns false when nothing changed.
	TransitionStatus(ctx context.Context, tx Tx, id string, next model.PaymentStatus, paidAt *time.Time) (bool, error)
	// MarkCreditsAdded sets credits_added=credits only where it is still 0. Returns false when
	// another delivery already applied the credits.
	MarkCreditsAdded(ctx context.Context, tx Tx, id string, credits int64) (bool, error)

	Delete(ctx context.Context, tx Tx, id string) error
}
