package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents the administrative state of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
)

// Wallet holds one student's balance in minor currency units. The balance
// is owned exclusively by the Ledger Engine and is only ever mutated
// together with an appended Transaction, inside one atomic unit.
type Wallet struct {
	ID                 uuid.UUID    `json:"id"`
	StudentID          string       `json:"student_id"`
	Balance            int64        `json:"balance"`
	Currency           string       `json:"currency"`
	Status             WalletStatus `json:"status"`
	LastTransactionRef *string      `json:"last_transaction_ref,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewWallet builds a zero-balance active wallet, as auto-created on a
// student's first deposit.
func NewWallet(studentID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		StudentID: studentID,
		Balance:   0,
		Currency:  currency,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if the wallet accepts debits.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// CanDebit reports whether amount can be taken from the wallet.
func (w *Wallet) CanDebit(amount int64) bool {
	return w.Balance >= amount
}
