package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"student-wallet-service/config"
	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.GatewayClient against the gateway's REST API.
// Every call is bounded by the configured verification timeout; a
// deadline surfaces as the retryable confirmation-timeout error.
type Client struct {
	baseURL       string
	secretKey     string
	callbackURL   string
	verifyTimeout time.Duration
	httpClient    HTTPClient
	log           zerolog.Logger
}

// NewClient creates a gateway API client.
func NewClient(cfg config.GatewayConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.VerifyTimeout}
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		callbackURL:   cfg.CallbackURL,
		verifyTimeout: cfg.VerifyTimeout,
		httpClient:    httpClient,
		log:           log,
	}
}

// verifyResponse is the gateway's transaction verification payload.
type verifyResponse struct {
	Status bool   `json:"status"`
	Data   struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		Metadata  struct {
			StudentID     string `json:"student_id"`
			Purpose       string `json:"purpose"`
			AcademicYear  string `json:"academic_year"`
			Semester      string `json:"semester"`
			PaymentPeriod string `json:"payment_period"`
		} `json:"metadata"`
	} `json:"data"`
}

// VerifyTransaction fetches the gateway's authoritative record for a
// reference. Callback handling depends on this call: redirect parameters
// are never trusted on their own.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*ports.GatewayCharge, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("building verify request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			c.log.Warn().Str("reference", reference).Msg("gateway verification timed out")
			return nil, apperror.ErrGatewayConfirmationTimeout(err)
		}
		return nil, apperror.ErrGatewayVerificationFailed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("reading verify response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("verify returned status %d", resp.StatusCode))
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("decoding verify response: %w", err))
	}
	if !vr.Status {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("gateway rejected reference %s", reference))
	}

	status := domain.GatewayStatusFailed
	if vr.Data.Status == "success" {
		status = domain.GatewayStatusSuccess
	}

	return &ports.GatewayCharge{
		Reference: vr.Data.Reference,
		Amount:    vr.Data.Amount,
		Currency:  vr.Data.Currency,
		Status:    status,
		StudentID: vr.Data.Metadata.StudentID,
		Purpose:   chargePurpose(vr.Data.Metadata.Purpose),
		Metadata: domain.TransactionMetadata{
			AcademicYear:  vr.Data.Metadata.AcademicYear,
			Semester:      vr.Data.Metadata.Semester,
			PaymentPeriod: vr.Data.Metadata.PaymentPeriod,
		},
	}, nil
}

// initializeResponse is the gateway's checkout session payload.
type initializeResponse struct {
	Status bool   `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializeTransaction opens a checkout session at the gateway. The
// reference is generated here so the ledger knows it before the gateway
// ever confirms anything.
func (c *Client) InitializeTransaction(ctx context.Context, r ports.InitializeRequest) (*ports.InitializeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	reference := fmt.Sprintf("DEP-%s", uuid.New().String())
	payload := map[string]any{
		"email":        r.Email,
		"amount":       r.Amount,
		"currency":     r.Currency,
		"reference":    reference,
		"callback_url": c.callbackURL,
		"metadata": map[string]any{
			"student_id":     r.StudentID,
			"purpose":        string(r.Purpose),
			"academic_year":  r.Metadata.AcademicYear,
			"semester":       r.Metadata.Semester,
			"payment_period": r.Metadata.PaymentPeriod,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encoding initialize request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("building initialize request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, apperror.ErrGatewayConfirmationTimeout(err)
		}
		return nil, apperror.ErrGatewayVerificationFailed(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("reading initialize response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("initialize returned status %d", resp.StatusCode))
	}

	var ir initializeResponse
	if err := json.Unmarshal(respBody, &ir); err != nil {
		return nil, apperror.ErrGatewayVerificationFailed(fmt.Errorf("decoding initialize response: %w", err))
	}
	if !ir.Status {
		return nil, apperror.ErrGatewayVerificationFailed(errors.New("gateway declined to initialize transaction"))
	}

	// The gateway may echo our reference back or assign its own.
	if ir.Data.Reference != "" {
		reference = ir.Data.Reference
	}

	return &ports.InitializeResponse{
		Reference:        reference,
		AuthorizationURL: ir.Data.AuthorizationURL,
		AccessCode:       ir.Data.AccessCode,
	}, nil
}
