package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FeeProjectionSource identifies wallet-funded fee payments in the
// external fee-reporting store.
const FeeProjectionSource = "wallet"

// FeeProjection mirrors one completed fee deduction into the fee-reporting
// store. Reference carries the ledger transaction's reference and is
// unique in the projection store, giving the synchronizer its own
// idempotency check independent of the ledger's.
type FeeProjection struct {
	ID           uuid.UUID `json:"id"`
	StudentID    string    `json:"student_id"`
	Amount       int64     `json:"amount"`
	Reference    string    `json:"reference"`
	Description  string    `json:"description"`
	PaymentDate  time.Time `json:"payment_date"`
	AcademicYear string    `json:"academic_year"`
	Semester     string    `json:"semester"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

var ErrNotProjectable = errors.New("only completed fee deductions are projected")

// NewFeeProjection builds a projection record from a completed fee
// deduction transaction.
func NewFeeProjection(t *Transaction) (*FeeProjection, error) {
	if t.Type != TransactionTypeFeeDeduction || t.Status != TransactionStatusCompleted {
		return nil, ErrNotProjectable
	}
	return &FeeProjection{
		ID:           uuid.New(),
		StudentID:    t.StudentID,
		Amount:       t.Amount,
		Reference:    t.Reference,
		Description:  t.Metadata.Description,
		PaymentDate:  t.CreatedAt,
		AcademicYear: t.Metadata.AcademicYear,
		Semester:     t.Metadata.Semester,
		Source:       FeeProjectionSource,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
