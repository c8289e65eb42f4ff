package gateway

import (
	"testing"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent_ChargeSuccess_Deposit(t *testing.T) {
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "DEP-abc-123",
			"amount": 50000,
			"currency": "GHS",
			"status": "success",
			"metadata": {
				"student_id": "STU-2024-001",
				"purpose": "wallet_deposit"
			}
		}
	}`)

	event, err := ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "DEP-abc-123", event.Reference)
	assert.Equal(t, "STU-2024-001", event.StudentID)
	assert.Equal(t, int64(50000), event.Amount)
	assert.Equal(t, domain.GatewayStatusSuccess, event.GatewayStatus)
	assert.Equal(t, domain.ChannelWebhook, event.Channel)
	assert.Equal(t, domain.PurposeWalletDeposit, event.Purpose)
	assert.NoError(t, event.Validate())
}

func TestParseWebhookEvent_ChargeSuccess_FeePayment(t *testing.T) {
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "FEE-abc-123",
			"amount": 150000,
			"currency": "GHS",
			"status": "success",
			"metadata": {
				"student_id": "STU-2024-001",
				"purpose": "fee_payment",
				"academic_year": "2024/2025",
				"semester": "1",
				"payment_period": "2024-09"
			}
		}
	}`)

	event, err := ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, domain.PurposeFeePayment, event.Purpose)
	assert.Equal(t, domain.TransactionTypeFeeDeduction, event.TransactionType())
	assert.Equal(t, "2024/2025", event.Metadata.AcademicYear)
	assert.Equal(t, "1", event.Metadata.Semester)
	assert.Equal(t, "2024-09", event.Metadata.PaymentPeriod)
}

func TestParseWebhookEvent_ChargeFailed(t *testing.T) {
	body := []byte(`{
		"event": "charge.failed",
		"data": {
			"reference": "DEP-failed-001",
			"amount": 20000,
			"status": "failed",
			"metadata": {"student_id": "STU-2024-002", "purpose": "wallet_deposit"}
		}
	}`)

	event, err := ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayStatusFailed, event.GatewayStatus)
}

func TestParseWebhookEvent_TransferEventsAreWithdrawals(t *testing.T) {
	for _, tc := range []struct {
		event  string
		status domain.GatewayStatus
	}{
		{"transfer.success", domain.GatewayStatusSuccess},
		{"transfer.failed", domain.GatewayStatusFailed},
	} {
		body := []byte(`{
			"event": "` + tc.event + `",
			"data": {
				"reference": "WDR-abc-001",
				"amount": 30000,
				"status": "` + string(tc.status) + `",
				"metadata": {"student_id": "STU-2024-003"}
			}
		}`)

		event, err := ParseWebhookEvent(body)
		require.NoError(t, err, tc.event)
		assert.Equal(t, domain.PurposeWalletWithdrawal, event.Purpose, tc.event)
		assert.Equal(t, tc.status, event.GatewayStatus, tc.event)
		assert.Equal(t, domain.TransactionTypeWithdrawal, event.TransactionType(), tc.event)
	}
}

func TestParseWebhookEvent_UnknownEvent(t *testing.T) {
	body := []byte(`{"event": "subscription.create", "data": {"reference": "SUB-001"}}`)

	event, err := ParseWebhookEvent(body)
	assert.Nil(t, event)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestParseWebhookEvent_MalformedBody(t *testing.T) {
	_, err := ParseWebhookEvent([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestEventFromCharge(t *testing.T) {
	charge := &ports.GatewayCharge{
		Reference: "FEE-cb-001",
		Amount:    150000,
		Currency:  "GHS",
		Status:    domain.GatewayStatusSuccess,
		StudentID: "STU-2024-001",
		Purpose:   domain.PurposeFeePayment,
		Metadata:  domain.TransactionMetadata{AcademicYear: "2024/2025"},
	}

	event := EventFromCharge(charge)
	assert.Equal(t, domain.ChannelCallback, event.Channel)
	assert.Equal(t, "FEE-cb-001", event.Reference)
	assert.Equal(t, string(domain.PurposeFeePayment), event.Metadata.Purpose)
	assert.Equal(t, string(domain.ChannelCallback), event.Metadata.Channel)
	assert.NoError(t, event.Validate())
}
