package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
)

// Webhook event types the gateway emits for money movement.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

// ErrUnknownEvent marks webhook event types outside the money-movement
// set. Handlers acknowledge these with 200 and drop them, so the gateway
// does not retry events we will never act on.
var ErrUnknownEvent = errors.New("unhandled gateway event type")

// webhookEnvelope is the gateway's outer webhook JSON shape.
type webhookEnvelope struct {
	Event string      `json:"event"`
	Data  webhookData `json:"data"`
}

type webhookData struct {
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Metadata  webhookMetadata `json:"metadata"`
}

type webhookMetadata struct {
	StudentID     string `json:"student_id"`
	Purpose       string `json:"purpose"`
	AcademicYear  string `json:"academic_year"`
	Semester      string `json:"semester"`
	PaymentPeriod string `json:"payment_period"`
}

// ParseWebhookEvent normalizes a raw webhook body into a PaymentEvent.
// Transfer events are always withdrawals; charge events route on the
// purpose declared in metadata, defaulting to a wallet deposit.
func ParseWebhookEvent(body []byte) (*domain.PaymentEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding webhook body: %w", err)
	}

	var status domain.GatewayStatus
	var purpose domain.PaymentPurpose

	switch env.Event {
	case EventChargeSuccess:
		status = domain.GatewayStatusSuccess
		purpose = chargePurpose(env.Data.Metadata.Purpose)
	case EventChargeFailed:
		status = domain.GatewayStatusFailed
		purpose = chargePurpose(env.Data.Metadata.Purpose)
	case EventTransferSuccess:
		status = domain.GatewayStatusSuccess
		purpose = domain.PurposeWalletWithdrawal
	case EventTransferFailed:
		status = domain.GatewayStatusFailed
		purpose = domain.PurposeWalletWithdrawal
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}

	return &domain.PaymentEvent{
		Reference:     env.Data.Reference,
		StudentID:     env.Data.Metadata.StudentID,
		Amount:        env.Data.Amount,
		Currency:      env.Data.Currency,
		GatewayStatus: status,
		Channel:       domain.ChannelWebhook,
		Purpose:       purpose,
		Metadata: domain.TransactionMetadata{
			AcademicYear:  env.Data.Metadata.AcademicYear,
			Semester:      env.Data.Metadata.Semester,
			PaymentPeriod: env.Data.Metadata.PaymentPeriod,
			Purpose:       string(purpose),
			Channel:       string(domain.ChannelWebhook),
		},
		Raw: json.RawMessage(body),
	}, nil
}

func chargePurpose(declared string) domain.PaymentPurpose {
	if declared == string(domain.PurposeFeePayment) {
		return domain.PurposeFeePayment
	}
	return domain.PurposeWalletDeposit
}

// EventFromCharge builds a callback-channel PaymentEvent from the
// gateway's verified charge record.
func EventFromCharge(charge *ports.GatewayCharge) *domain.PaymentEvent {
	md := charge.Metadata
	md.Purpose = string(charge.Purpose)
	md.Channel = string(domain.ChannelCallback)
	return &domain.PaymentEvent{
		Reference:     charge.Reference,
		StudentID:     charge.StudentID,
		Amount:        charge.Amount,
		Currency:      charge.Currency,
		GatewayStatus: charge.Status,
		Channel:       domain.ChannelCallback,
		Purpose:       charge.Purpose,
		Metadata:      md,
	}
}
