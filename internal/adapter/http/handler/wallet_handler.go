package handler

import (
	"strconv"

	"student-wallet-service/internal/adapter/http/dto"
	"student-wallet-service/internal/adapter/http/middleware"
	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/pkg/apperror"
	"student-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WalletHandler handles wallet reads and internal fee charges.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
	log       zerolog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, log zerolog.Logger) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc, log: log}
}

// GetWallet handles GET /api/v1/wallets/:studentId.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	studentID := c.Param("studentId")

	wallet, err := h.ledgerSvc.GetWallet(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// ListTransactions handles GET /api/v1/wallets/:studentId/transactions.
// Supports status, type, page and page_size query parameters.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	params := ports.TransactionListParams{
		StudentID: c.Param("studentId"),
	}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	if p := c.Query("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			response.Error(c, apperror.Validation("page must be a positive integer"))
			return
		}
		params.Page = page
	}
	if ps := c.Query("page_size"); ps != "" {
		pageSize, err := strconv.Atoi(ps)
		if err != nil || pageSize < 1 || pageSize > 100 {
			response.Error(c, apperror.Validation("page_size must be between 1 and 100"))
			return
		}
		params.PageSize = pageSize
	}

	transactions, total, err := h.ledgerSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(transactions))
	for i := range transactions {
		items = append(items, toTransactionResponse(&transactions[i]))
	}

	page := params.Page
	if page == 0 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize == 0 {
		pageSize = 20
	}

	response.OK(c, dto.TransactionListResponse{
		Transactions: items,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	})
}

// ChargeFee handles POST /api/v1/wallets/:studentId/charges. Only
// authenticated internal services reach this route; the subject of the
// service token is logged for audit.
func (h *WalletHandler) ChargeFee(c *gin.Context) {
	studentID := c.Param("studentId")

	var req dto.FeeChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	caller, _ := c.Get(middleware.CtxServiceName)
	h.log.Info().
		Str("student_id", studentID).
		Int64("amount", req.Amount).
		Interface("caller", caller).
		Msg("fee charge requested")

	result, err := h.ledgerSvc.ChargeFee(c.Request.Context(), ports.FeeChargeRequest{
		StudentID:     studentID,
		Amount:        req.Amount,
		Description:   req.Description,
		AcademicYear:  req.AcademicYear,
		Semester:      req.Semester,
		PaymentPeriod: req.PaymentPeriod,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toApplyResultResponse(result))
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		StudentID:          w.StudentID,
		Balance:            w.Balance,
		Currency:           w.Currency,
		Status:             string(w.Status),
		LastTransactionRef: w.LastTransactionRef,
		UpdatedAt:          w.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
