//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
)

func TestNewPaymentRecord(t *testing.T) {
	t.Run("should create a pending record", func(t *testing.T) {
		p, err := NewPaymentRecord("user-1", decimal.RequireFromString("10.00"), "Starter", 50, "card")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.ID == "" {
			t.Error("expected an id to be generated")
		}
		if p.Status != PaymentStatusPending {
			t.Errorf("expected status pending, got %s", p.Status)
		}
		if p.CreditsAdded != 0 {
			t.Errorf("expected creditsAdded 0, got %d", p.CreditsAdded)
		}
		if !p.Amount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("expected amount 10, got %s", p.Amount)
		}
	})

	cases := []struct {
		name    string
		user    string
		amount  string
		plan    string
		credits int64
		method  string
	}{
		{"amount below one", "user-1", "0.99", "Starter", 50, "card"},
		{"zero amount", "user-1", "0", "Starter", 50, "card"},
		{"negative amount", "user-1", "-5", "Starter", 50, "card"},
		{"missing plan", "user-1", "10", "  ", 50, "card"},
		{"missing method", "user-1", "10", "Starter", 50, ""},
		{"zero credits", "user-1", "10", "Starter", 0, "card"},
		{"missing user", "", "10", "Starter", 50, "card"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPaymentRecord(tc.user, decimal.RequireFromString(tc.amount), tc.plan, tc.credits, tc.method)
			if p != nil {
				t.Errorf("expected nil record, got %+v", p)
			}
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusExpired, true},
		{PaymentStatusPending, PaymentStatusCanceled, true},
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusFailed, false},
		{PaymentStatusPaid, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusPaid, true},
		{PaymentStatusExpired, PaymentStatusPaid, true},
		{PaymentStatusCanceled, PaymentStatusExpired, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if st, ok := ParsePaymentStatus(" PAID "); !ok || st != PaymentStatusPaid {
		t.Errorf("expected paid, got %q ok=%v", st, ok)
	}
	if _, ok := ParsePaymentStatus("open"); ok {
		t.Error("expected open to be rejected")
	}
}

func TestPaymentRecord_NeedsCredit(t *testing.T) {
	p := &PaymentRecord{CreditsPurchased: 50}
	if !p.NeedsCredit(PaymentStatusPaid) {
		t.Error("expected a fresh paid record to need credit")
	}
	if p.NeedsCredit(PaymentStatusFailed) {
		t.Error("expected a failed record not to need credit")
	}
	p.CreditsAdded = 50
	if p.NeedsCredit(PaymentStatusPaid) {
		t.Error("expected an already credited record not to need credit")
	}
}

func TestNewPaymentID_SortsByTime(t *testing.T) {
	earlier := NewPaymentID(time.Now().Add(-time.Minute))
	later := NewPaymentID(time.Now())
	if earlier >= later {
		t.Errorf("expected %s < %s", earlier, later)
	}
}

func TestPaymentFilter_Normalize(t *testing.T) {
	f := PaymentFilter{Limit: 0, Offset: -3, Search: "  starter "}
	f.Normalize()
	if f.Limit != 50 || f.Offset != 0 || f.Search != "starter" {
		t.Errorf("unexpected normalized filter: %+v", f)
	}
}

func TestNewWallet(t *testing.T) {
	w, err := NewWallet("user-1", 5)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if w.Credits != 5 || !w.Balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected signup bonus of 5, got credits=%d balance=%s", w.Credits, w.Balance)
	}
	if !w.CanAfford(5) || w.CanAfford(6) {
		t.Error("CanAfford returned the wrong answer")
	}
	if _, err := NewWallet("", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty user, got %v", err)
	}
}
