package redis

import (
	"context"
	"encoding/json"
	"time"

	"psychic-credits/internal/domain/ports/adapter"
)

var _ adapter.BalanceNotifier = (*BalancePublisher)(nil)

// BalancePublisher pushes the new credit balance to wallet:<userId> so connected
// clients can refresh without polling.
type BalancePublisher struct {
	client RedisClient
	now    func() time.Time
}

func NewBalancePublisher(client RedisClient) *BalancePublisher {
	return &BalancePublisher{client: client, now: time.Now}
}

type balanceMessage struct {
	UserID    string    `json:"userId"`
	Credits   int64     `json:"credits"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func WalletChannel(userID string) string { return "wallet:" + userID }

func (p *BalancePublisher) PublishBalance(ctx context.Context, userID string, credits int64) error {
	b, err := json.Marshal(balanceMessage{UserID: userID, Credits: credits, UpdatedAt: p.now().UTC()})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, WalletChannel(userID), b)
}
