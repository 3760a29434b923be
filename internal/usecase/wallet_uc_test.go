package usecase

import (
	"context"
	"errors"
	"testing"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
)

func newWalletUCForTest(bonus int64) (*walletUC, *memWalletRepo, *captureNotifier) {
	wallets := newMemWalletRepo()
	notifier := &captureNotifier{}
	tm := &memTxManager{wallets: wallets}
	uc := NewWalletUseCase(wallets, tm, NewEventPublisher(nil, notifier, nil, nil), bonus, newTestLogger())
	return uc, wallets, notifier
}

func TestWalletUseCase_Balance(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the wallet lazily with zero credits", func(t *testing.T) {
		uc, _, notifier := newWalletUCForTest(0)
		w, err := uc.Balance(ctx, "user-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if w.Credits != 0 || w.LastTopup != nil {
			t.Errorf("unexpected fresh wallet: %+v", w)
		}
		if len(notifier.published()) != 0 {
			t.Error("creating an empty wallet is not a balance change")
		}
		again, _ := uc.Balance(ctx, "user-1")
		if again.ID != w.ID {
			t.Error("second call must return the same wallet")
		}
	})

	t.Run("seeds the signup bonus and records it", func(t *testing.T) {
		uc, wallets, notifier := newWalletUCForTest(5)
		w, err := uc.Balance(ctx, "user-2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if w.Credits != 5 {
			t.Fatalf("expected bonus credits, got %d", w.Credits)
		}
		txs, _ := wallets.ListTransactions(ctx, nil, "user-2", 10, 0)
		if len(txs) != 1 || txs[0].Type != model.WalletTxSignupBonus {
			t.Errorf("expected a signup ledger row, got %+v", txs)
		}
		if pub := notifier.published(); len(pub) != 1 || pub[0] != 5 {
			t.Errorf("expected bonus push, got %v", pub)
		}
	})

	t.Run("requires a user", func(t *testing.T) {
		uc, _, _ := newWalletUCForTest(0)
		if _, err := uc.Balance(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWalletUseCase_Deduct(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses to overdraw and leaves the balance intact", func(t *testing.T) {
		uc, wallets, notifier := newWalletUCForTest(0)
		if _, err := uc.Credit(ctx, "user-1", 3, "seed"); err != nil {
			t.Fatalf("Credit: %v", err)
		}
		_, err := uc.Deduct(ctx, "user-1", 5, "reading")
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
		if got := wallets.credits("user-1"); got != 3 {
			t.Fatalf("expected wallet to stay at 3, got %d", got)
		}
		if len(notifier.published()) != 1 {
			t.Errorf("a failed deduct must not notify, got %v", notifier.published())
		}
	})

	t.Run("deducts and notifies", func(t *testing.T) {
		uc, _, notifier := newWalletUCForTest(0)
		_, _ = uc.Credit(ctx, "user-1", 10, "seed")
		w, err := uc.Deduct(ctx, "user-1", 4, "reading")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if w.Credits != 6 {
			t.Errorf("expected 6 credits, got %d", w.Credits)
		}
		if pub := notifier.published(); pub[len(pub)-1] != 6 {
			t.Errorf("expected last push to be 6, got %v", pub)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		uc, _, _ := newWalletUCForTest(0)
		for _, n := range []int64{0, -1} {
			if _, err := uc.Deduct(ctx, "user-1", n, ""); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("deduct %d: expected ErrInvalidArgument, got %v", n, err)
			}
			if _, err := uc.Credit(ctx, "user-1", n, ""); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("credit %d: expected ErrInvalidArgument, got %v", n, err)
			}
		}
	})

	t.Run("missing wallet is not found", func(t *testing.T) {
		uc, _, _ := newWalletUCForTest(0)
		if _, err := uc.Deduct(ctx, "ghost", 1, ""); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestWalletUseCase_Transactions(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newWalletUCForTest(0)
	_, _ = uc.Credit(ctx, "user-1", 10, "admin")
	_, _ = uc.Deduct(ctx, "user-1", 2, "reading")

	txs, err := uc.Transactions(ctx, "user-1", 0, -3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 2 || txs[0].Type != model.WalletTxDeduct || txs[0].Credits != -2 {
		t.Fatalf("expected newest first with signed credits, got %+v", txs)
	}
}

func TestEventPublisher_DropsWhenQueueIsFull(t *testing.T) {
	sub := &rejectingSubmitter{}
	notifier := &captureNotifier{}
	e := NewEventPublisher(sub, notifier, nil, nil)

	e.BalanceChanged("user-1", 10)
	if sub.calls != 1 {
		t.Fatalf("expected one submit, got %d", sub.calls)
	}
	if len(notifier.published()) != 0 {
		t.Error("rejected task must not run")
	}

	var nilPublisher *EventPublisher
	nilPublisher.BalanceChanged("user-1", 1) // must not panic
}
