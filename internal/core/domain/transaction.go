package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement against a wallet.
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypeFeeDeduction TransactionType = "fee_deduction"
	// TransactionTypeAdjustment is reserved for reconciliation corrections.
	// Adjustments document a signed delta for the audit trail and are
	// excluded from the balance recompute formula.
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// TransactionStatus represents the lifecycle state of a transaction.
// completed, failed and voided are terminal.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	// TransactionStatusVoided marks a duplicate neutralized by
	// reconciliation. Only the Reconciliation Engine moves a transaction
	// here, and always alongside a corrective adjustment entry.
	TransactionStatusVoided TransactionStatus = "voided"
)

// TransactionSource is the channel that produced a transaction.
type TransactionSource string

const (
	TransactionSourceWebhook  TransactionSource = "webhook"
	TransactionSourceCallback TransactionSource = "callback"
	TransactionSourceSystem   TransactionSource = "system"
)

// TransactionMetadata carries the fee context and audit fields, stored as JSONB.
type TransactionMetadata struct {
	AcademicYear  string `json:"academic_year,omitempty"`
	Semester      string `json:"semester,omitempty"`
	PaymentPeriod string `json:"payment_period,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	Description   string `json:"description,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Channel       string `json:"channel,omitempty"`
}

// Transaction is an immutable ledger entry. Reference is the external
// idempotency key and is globally unique across all transactions; the
// storage layer enforces it with a unique index.
type Transaction struct {
	ID        uuid.UUID           `json:"id"`
	StudentID string              `json:"student_id"`
	Type      TransactionType     `json:"type"`
	Amount    int64               `json:"amount"` // Minor currency units. Signed for adjustments only.
	Status    TransactionStatus   `json:"status"`
	Reference string              `json:"reference"`
	Source    TransactionSource   `json:"source"`
	Metadata  TransactionMetadata `json:"metadata"`
	CreatedAt time.Time           `json:"created_at"`
}

var (
	ErrMissingStudentID  = errors.New("transaction requires a student id")
	ErrMissingReference  = errors.New("transaction requires a reference")
	ErrNonPositiveAmount = errors.New("transaction amount must be positive")
)

// Validate checks the required-field invariants at construction time.
func (t *Transaction) Validate() error {
	if t.StudentID == "" {
		return ErrMissingStudentID
	}
	if t.Reference == "" {
		return ErrMissingReference
	}
	if t.Type != TransactionTypeAdjustment && t.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusVoided
}

// CountsTowardBalance reports whether this entry participates in the
// wallet balance recompute: completed deposits, withdrawals and fee
// deductions do; pending, failed, voided and adjustment entries do not.
func (t *Transaction) CountsTowardBalance() bool {
	return t.Status == TransactionStatusCompleted && t.Type != TransactionTypeAdjustment
}

// SignedAmount returns the balance effect of this transaction:
// positive for deposits, negative for withdrawals and fee deductions,
// the stored signed delta for adjustments.
func (t *Transaction) SignedAmount() int64 {
	switch t.Type {
	case TransactionTypeDeposit:
		return t.Amount
	case TransactionTypeWithdrawal, TransactionTypeFeeDeduction:
		return -t.Amount
	default:
		return t.Amount
	}
}
