package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/adapter"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/infra/metrics"
)

// TaskSubmitter queues background work. worker.Pool satisfies it.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

const eventTimeout = 10 * time.Second

// EventPublisher fans out side effects that must only happen after a commit.
// Nothing it does can fail the mutation that triggered it.
type EventPublisher struct {
	tasks   TaskSubmitter
	balance adapter.BalanceNotifier
	mailer  adapter.ReceiptMailer
	log     *zerolog.Logger
}

// NewEventPublisher wires the notifier components. Any of balance and mailer may be nil.
// With a nil submitter the work runs inline, which is what tests want.
func NewEventPublisher(tasks TaskSubmitter, balance adapter.BalanceNotifier, mailer adapter.ReceiptMailer, logger *zerolog.Logger) *EventPublisher {
	l := logging.OrNop(logger).With().Str("component", "EventPublisher").Logger()
	return &EventPublisher{tasks: tasks, balance: balance, mailer: mailer, log: &l}
}

// BalanceChanged pushes the new credit count to the owner's channel.
func (e *EventPublisher) BalanceChanged(userID string, credits int64) {
	if e == nil || e.balance == nil {
		return
	}
	e.dispatch("balance", func(ctx context.Context) error {
		return e.balance.PublishBalance(ctx, userID, credits)
	})
}

// TopupCompleted emails a receipt when the payment carries a customer address.
func (e *EventPublisher) TopupCompleted(r model.TopupReceipt) {
	if e == nil || e.mailer == nil || r.Email == "" {
		return
	}
	e.dispatch("receipt", func(ctx context.Context) error {
		return e.mailer.SendTopupReceipt(ctx, r)
	})
}

func (e *EventPublisher) dispatch(channel string, fn func(ctx context.Context) error) {
	task := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, eventTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metrics.IncNotification(channel, "error")
			e.log.Warn().Err(err).Str("channel", channel).Msg("notification failed")
			return nil
		}
		metrics.IncNotification(channel, "sent")
		return nil
	}
	if e.tasks == nil {
		_ = task(context.Background())
		return
	}
	if err := e.tasks.Submit(task); err != nil {
		metrics.IncNotification(channel, "dropped")
		e.log.Warn().Err(err).Str("channel", channel).Msg("notification dropped")
	}
}
