package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"psychic-credits/internal/infra/logging"
)

// staleSweeper is the slice of usecase.PaymentUseCase the reconciler needs.
type staleSweeper interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration, batch int) (int, error)
}

// PaymentReconciler periodically re-checks pending payments that never got a webhook.
// This covers lost deliveries and crashes between checkout and notification.
type PaymentReconciler struct {
	uc         staleSweeper
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc staleSweeper, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logging.OrNop(logger).With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	n, err := w.uc.ReconcileStale(ctx, w.staleAfter, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("stale payment sweep failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payments reconciled")
	}
}
