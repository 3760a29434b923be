package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls int32
	err   error
}

func (c *countingSweeper) ReconcileStale(ctx context.Context, olderThan time.Duration, batch int) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	if olderThan != 5*time.Minute || batch != 10 {
		return 0, errors.New("unexpected arguments")
	}
	return 1, c.err
}

func TestPaymentReconciler_RunsUntilCancelled(t *testing.T) {
	sw := &countingSweeper{}
	r := NewPaymentReconciler(sw, 5*time.Millisecond, 5*time.Minute, 10, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if atomic.LoadInt32(&sw.calls) == 0 {
		t.Fatal("expected at least one sweep")
	}
}

func TestPaymentReconciler_SurvivesErrors(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	r := NewPaymentReconciler(sw, time.Millisecond, 5*time.Minute, 10, nil)
	r.tick(context.Background())
	r.tick(context.Background())
	if sw.calls != 2 {
		t.Fatalf("expected two sweeps, got %d", sw.calls)
	}
}

func TestNewPaymentReconciler_Defaults(t *testing.T) {
	r := NewPaymentReconciler(&countingSweeper{}, 0, 0, 0, nil)
	if r.interval != time.Minute || r.staleAfter != 10*time.Minute || r.batch != 200 {
		t.Fatalf("unexpected defaults: %v %v %d", r.interval, r.staleAfter, r.batch)
	}
}
