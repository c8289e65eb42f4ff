package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status WalletStatus
		want   bool
	}{
		{"active", WalletStatusActive, true},
		{"suspended", WalletStatusSuspended, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Wallet{Status: tt.status}
			assert.Equal(t, tt.want, w.IsActive())
		})
	}
}

func TestNewWallet(t *testing.T) {
	w := NewWallet("STU-001", "GHS")

	assert.Equal(t, "STU-001", w.StudentID)
	assert.Equal(t, int64(0), w.Balance)
	assert.Equal(t, "GHS", w.Currency)
	assert.Equal(t, WalletStatusActive, w.Status)
	assert.NotEqual(t, w.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestWallet_CanDebit(t *testing.T) {
	w := &Wallet{Balance: 5000}

	assert.True(t, w.CanDebit(5000))
	assert.True(t, w.CanDebit(1))
	assert.False(t, w.CanDebit(5001))
}

func TestTransaction_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TransactionStatus
		want   bool
	}{
		{"pending", TransactionStatusPending, false},
		{"completed", TransactionStatusCompleted, true},
		{"failed", TransactionStatusFailed, true},
		{"voided", TransactionStatusVoided, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Status: tt.status}
			assert.Equal(t, tt.want, tx.IsTerminal())
		})
	}
}

func TestTransaction_SignedAmount(t *testing.T) {
	tests := []struct {
		name   string
		txType TransactionType
		amount int64
		want   int64
	}{
		{"deposit credits", TransactionTypeDeposit, 5000, 5000},
		{"withdrawal debits", TransactionTypeWithdrawal, 3000, -3000},
		{"fee deduction debits", TransactionTypeFeeDeduction, 2000, -2000},
		{"adjustment keeps stored sign", TransactionTypeAdjustment, -1000, -1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Type: tt.txType, Amount: tt.amount}
			assert.Equal(t, tt.want, tx.SignedAmount())
		})
	}
}

func TestTransaction_CountsTowardBalance(t *testing.T) {
	tests := []struct {
		name   string
		txType TransactionType
		status TransactionStatus
		want   bool
	}{
		{"completed deposit", TransactionTypeDeposit, TransactionStatusCompleted, true},
		{"completed fee deduction", TransactionTypeFeeDeduction, TransactionStatusCompleted, true},
		{"failed deposit", TransactionTypeDeposit, TransactionStatusFailed, false},
		{"voided deposit", TransactionTypeDeposit, TransactionStatusVoided, false},
		{"pending withdrawal", TransactionTypeWithdrawal, TransactionStatusPending, false},
		{"completed adjustment", TransactionTypeAdjustment, TransactionStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Type: tt.txType, Status: tt.status}
			assert.Equal(t, tt.want, tx.CountsTowardBalance())
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	valid := &Transaction{StudentID: "STU-001", Reference: "REF1", Type: TransactionTypeDeposit, Amount: 5000}
	assert.NoError(t, valid.Validate())

	noStudent := &Transaction{Reference: "REF1", Type: TransactionTypeDeposit, Amount: 5000}
	assert.ErrorIs(t, noStudent.Validate(), ErrMissingStudentID)

	noRef := &Transaction{StudentID: "STU-001", Type: TransactionTypeDeposit, Amount: 5000}
	assert.ErrorIs(t, noRef.Validate(), ErrMissingReference)

	zeroAmount := &Transaction{StudentID: "STU-001", Reference: "REF1", Type: TransactionTypeDeposit, Amount: 0}
	assert.ErrorIs(t, zeroAmount.Validate(), ErrNonPositiveAmount)

	// Adjustments carry signed deltas and may be negative.
	negAdj := &Transaction{StudentID: "STU-001", Reference: "ADJ1", Type: TransactionTypeAdjustment, Amount: -1000}
	assert.NoError(t, negAdj.Validate())
}

func TestPaymentEvent_Validate(t *testing.T) {
	base := PaymentEvent{
		Reference:     "REF1",
		StudentID:     "STU-001",
		Amount:        5000,
		GatewayStatus: GatewayStatusSuccess,
		Channel:       ChannelWebhook,
		Purpose:       PurposeWalletDeposit,
	}
	assert.NoError(t, base.Validate())

	zero := base
	zero.Amount = 0
	assert.ErrorIs(t, zero.Validate(), ErrEventInvalidAmount)

	negative := base
	negative.Amount = -100
	assert.ErrorIs(t, negative.Validate(), ErrEventInvalidAmount)

	noRef := base
	noRef.Reference = ""
	assert.ErrorIs(t, noRef.Validate(), ErrEventMissingReference)

	noStudent := base
	noStudent.StudentID = ""
	assert.ErrorIs(t, noStudent.Validate(), ErrEventMissingStudentID)

	badPurpose := base
	badPurpose.Purpose = "tuition"
	assert.ErrorIs(t, badPurpose.Validate(), ErrEventUnknownPurpose)
}

func TestPaymentEvent_TransactionType(t *testing.T) {
	tests := []struct {
		purpose PaymentPurpose
		want    TransactionType
	}{
		{PurposeWalletDeposit, TransactionTypeDeposit},
		{PurposeFeePayment, TransactionTypeFeeDeduction},
		{PurposeWalletWithdrawal, TransactionTypeWithdrawal},
	}

	for _, tt := range tests {
		e := &PaymentEvent{Purpose: tt.purpose}
		assert.Equal(t, tt.want, e.TransactionType())
	}
}

func TestNewFeeProjection(t *testing.T) {
	tx := &Transaction{
		StudentID: "STU-001",
		Type:      TransactionTypeFeeDeduction,
		Amount:    2000,
		Status:    TransactionStatusCompleted,
		Reference: "FEE1",
		Metadata: TransactionMetadata{
			AcademicYear: "2025/2026",
			Semester:     "1",
			Description:  "Tuition installment",
		},
	}

	p, err := NewFeeProjection(tx)
	require.NoError(t, err)
	assert.Equal(t, "STU-001", p.StudentID)
	assert.Equal(t, int64(2000), p.Amount)
	assert.Equal(t, "FEE1", p.Reference)
	assert.Equal(t, "2025/2026", p.AcademicYear)
	assert.Equal(t, "1", p.Semester)
	assert.Equal(t, "Tuition installment", p.Description)
	assert.Equal(t, FeeProjectionSource, p.Source)
}

func TestNewFeeProjection_RejectsNonFee(t *testing.T) {
	deposit := &Transaction{Type: TransactionTypeDeposit, Status: TransactionStatusCompleted}
	_, err := NewFeeProjection(deposit)
	assert.ErrorIs(t, err, ErrNotProjectable)

	pendingFee := &Transaction{Type: TransactionTypeFeeDeduction, Status: TransactionStatusPending}
	_, err = NewFeeProjection(pendingFee)
	assert.ErrorIs(t, err, ErrNotProjectable)
}
