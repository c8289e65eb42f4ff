package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Payment & Ledger (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_001", "Amount must be a positive integer in minor units", http.StatusBadRequest)
}

func ErrWalletNotFound(studentID string) *AppError {
	return New("PAY_002", fmt.Sprintf("No wallet found for student %s", studentID), http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New("PAY_003", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrWalletSuspended() *AppError {
	return New("PAY_004", "Wallet is suspended", http.StatusForbidden)
}

func ErrTransactionNotFound(reference string) *AppError {
	return New("PAY_005", fmt.Sprintf("No transaction found for reference %s", reference), http.StatusNotFound)
}

// ---- Gateway intake (GWY) ----

func ErrInvalidSignature() *AppError {
	return New("GWY_001", "Webhook signature verification failed", http.StatusUnauthorized)
}

func ErrGatewayConfirmationTimeout(err error) *AppError {
	e := Wrap("GWY_002", "Gateway confirmation timed out", http.StatusGatewayTimeout, err)
	e.Retryable = true
	return e
}

func ErrGatewayVerificationFailed(err error) *AppError {
	return Wrap("GWY_003", "Gateway could not confirm the transaction", http.StatusBadGateway, err)
}

// ---- Security (SEC) ----

func ErrInvalidServiceToken() *AppError {
	return New("SEC_001", "Invalid or expired service token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
