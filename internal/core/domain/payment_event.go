package domain

import (
	"encoding/json"
	"errors"
)

// PaymentChannel is the path by which a payment confirmation arrives.
type PaymentChannel string

const (
	ChannelWebhook  PaymentChannel = "webhook"
	ChannelCallback PaymentChannel = "callback"
)

// GatewayStatus is the gateway's verdict on a payment attempt.
type GatewayStatus string

const (
	GatewayStatusSuccess GatewayStatus = "success"
	GatewayStatusFailed  GatewayStatus = "failed"
)

// PaymentPurpose is the declared intent of a gateway event, routed to a
// transaction type by the Ledger Engine.
type PaymentPurpose string

const (
	PurposeWalletDeposit    PaymentPurpose = "wallet_deposit"
	PurposeFeePayment       PaymentPurpose = "fee_payment"
	PurposeWalletWithdrawal PaymentPurpose = "wallet_withdrawal"
)

// PaymentEvent is the normalized, transient form of an inbound gateway
// confirmation. Both channels produce the same shape; the Idempotency
// Guard makes applying it safe regardless of how many times it arrives.
type PaymentEvent struct {
	Reference     string              `json:"reference"`
	StudentID     string              `json:"student_id"`
	Amount        int64               `json:"amount"` // Minor units.
	Currency      string              `json:"currency"`
	GatewayStatus GatewayStatus       `json:"gateway_status"`
	Channel       PaymentChannel      `json:"channel"`
	Purpose       PaymentPurpose      `json:"purpose"`
	Metadata      TransactionMetadata `json:"metadata"`
	Raw           json.RawMessage     `json:"-"`
}

var (
	ErrEventMissingReference = errors.New("payment event requires a reference")
	ErrEventMissingStudentID = errors.New("payment event requires a student id")
	ErrEventInvalidAmount    = errors.New("payment event amount must be positive")
	ErrEventUnknownPurpose   = errors.New("payment event has an unknown purpose")
)

// Validate checks required fields before the event may reach the
// Idempotency Guard. Amount validation happens here so malformed input
// never consumes an idempotency slot.
func (e *PaymentEvent) Validate() error {
	if e.Amount <= 0 {
		return ErrEventInvalidAmount
	}
	if e.Reference == "" {
		return ErrEventMissingReference
	}
	if e.StudentID == "" {
		return ErrEventMissingStudentID
	}
	switch e.Purpose {
	case PurposeWalletDeposit, PurposeFeePayment, PurposeWalletWithdrawal:
		return nil
	default:
		return ErrEventUnknownPurpose
	}
}

// TransactionType maps the declared purpose to the ledger transaction type.
func (e *PaymentEvent) TransactionType() TransactionType {
	switch e.Purpose {
	case PurposeFeePayment:
		return TransactionTypeFeeDeduction
	case PurposeWalletWithdrawal:
		return TransactionTypeWithdrawal
	default:
		return TransactionTypeDeposit
	}
}
