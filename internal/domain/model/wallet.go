package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
)

// Wallet holds a user's spendable credits. There is at most one wallet per user.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal // cumulative cash-equivalent of everything ever credited
	Credits   int64           // usable units
	LastTopup *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWallet builds an unsaved wallet seeded with an optional signup bonus.
func NewWallet(userID string, signupBonus int64) (*Wallet, error) {
	if userID == "" || signupBonus < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   decimal.NewFromInt(signupBonus),
		Credits:   signupBonus,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (w *Wallet) CanAfford(credits int64) bool { return w != nil && w.Credits >= credits }

type WalletTxType string

const (
	WalletTxTopup       WalletTxType = "topup"
	WalletTxDeduct      WalletTxType = "deduct"
	WalletTxAdminCredit WalletTxType = "admin_credit"
	WalletTxSignupBonus WalletTxType = "signup_bonus"
)

// IsCredit reports whether the movement adds credits to the wallet.
func (t WalletTxType) IsCredit() bool { return t != WalletTxDeduct }

// WalletTransaction is the audit row written next to every wallet mutation.
type WalletTransaction struct {
	ID           int64
	WalletID     string
	UserID       string
	Type         WalletTxType
	Credits      int64 // signed: negative for deductions
	CreditsAfter int64
	Reference    string
	CreatedAt    time.Time
}
