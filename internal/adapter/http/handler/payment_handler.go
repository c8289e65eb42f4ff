package handler

import (
	"errors"
	"io"

	"student-wallet-service/internal/adapter/gateway"
	"student-wallet-service/internal/adapter/http/dto"
	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/pkg/apperror"
	"student-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PaymentHandler handles gateway intake and checkout initialization.
type PaymentHandler struct {
	ledgerSvc  ports.LedgerService
	gatewaySvc ports.GatewayClient
	verifier   *gateway.SignatureVerifier
	log        zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ledgerSvc ports.LedgerService, gatewaySvc ports.GatewayClient, verifier *gateway.SignatureVerifier, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		ledgerSvc:  ledgerSvc,
		gatewaySvc: gatewaySvc,
		verifier:   verifier,
		log:        log,
	}
}

// HandleWebhook handles POST /api/v1/payments/webhook.
// The signature is checked against the raw body before any decoding; a
// bad or missing signature is rejected without touching the ledger.
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" || !h.verifier.Verify(body, signature) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook signature rejected")
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownEvent) {
			// Acknowledge so the gateway stops retrying an event type we
			// will never act on.
			h.log.Info().Err(err).Msg("ignoring gateway event")
			response.OK(c, gin.H{"ignored": true})
			return
		}
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.ledgerSvc.Apply(c.Request.Context(), *event)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toApplyResultResponse(result))
}

// HandleCallback handles GET /api/v1/payments/callback.
// Redirect parameters are never trusted: the reference is confirmed with
// the gateway server-side before anything reaches the ledger. A verify
// timeout maps to 504 with retryable set, and leaves no ledger state.
func (h *PaymentHandler) HandleCallback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		response.Error(c, apperror.Validation("reference query parameter is required"))
		return
	}

	charge, err := h.gatewaySvc.VerifyTransaction(c.Request.Context(), reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	event := gateway.EventFromCharge(charge)
	result, err := h.ledgerSvc.Apply(c.Request.Context(), *event)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toApplyResultResponse(result))
}

// InitializeDeposit handles POST /api/v1/payments/initialize.
func (h *PaymentHandler) InitializeDeposit(c *gin.Context) {
	var req dto.InitializeDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	purpose := domain.PurposeWalletDeposit
	if req.Purpose == string(domain.PurposeFeePayment) {
		purpose = domain.PurposeFeePayment
	}
	currency := req.Currency
	if currency == "" {
		currency = "GHS"
	}

	resp, err := h.gatewaySvc.InitializeTransaction(c.Request.Context(), ports.InitializeRequest{
		StudentID: req.StudentID,
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  currency,
		Purpose:   purpose,
		Metadata: domain.TransactionMetadata{
			AcademicYear:  req.AcademicYear,
			Semester:      req.Semester,
			PaymentPeriod: req.PaymentPeriod,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.InitializeDepositResponse{
		Reference:        resp.Reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
	})
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:            t.ID.String(),
		StudentID:     t.StudentID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Status:        string(t.Status),
		Reference:     t.Reference,
		Source:        string(t.Source),
		AcademicYear:  t.Metadata.AcademicYear,
		Semester:      t.Metadata.Semester,
		PaymentPeriod: t.Metadata.PaymentPeriod,
		Description:   t.Metadata.Description,
		Reason:        t.Metadata.Reason,
		CreatedAt:     t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// toApplyResultResponse converts an apply outcome to DTO.
func toApplyResultResponse(r *ports.ApplyResult) dto.ApplyResultResponse {
	return dto.ApplyResultResponse{
		Transaction:   toTransactionResponse(r.Transaction),
		WalletBalance: r.WalletBalance,
		Replayed:      r.Replayed,
	}
}
