package adapter

import (
	"context"

	"psychic-credits/internal/domain/model"
)

// BalanceNotifier pushes the new credit count to the user's real-time channel.
// Delivery is best effort.
type BalanceNotifier interface {
	PublishBalance(ctx context.Context, userID string, credits int64) error
}

// ReceiptMailer sends a transactional email after a top-up has been credited.
type ReceiptMailer interface {
	SendTopupReceipt(ctx context.Context, r model.TopupReceipt) error
}
