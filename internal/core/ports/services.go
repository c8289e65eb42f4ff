package ports

import (
	"context"
	"time"

	"student-wallet-service/internal/core/domain"
)

// ResultCache is a best-effort replay cache keyed by reference. It sits in
// front of the database guard as a fast path; losing it (or any error from
// it) never weakens correctness, because the unique index remains the
// authority on which writer was first.
type ResultCache interface {
	Get(ctx context.Context, reference string) ([]byte, error) // Returns cached result JSON or nil.
	Set(ctx context.Context, reference string, value []byte, ttl time.Duration) error
}

// GatewayCharge is the gateway's authoritative record of one payment
// attempt, fetched server-side during callback confirmation.
type GatewayCharge struct {
	Reference string
	Amount    int64
	Currency  string
	Status    domain.GatewayStatus
	StudentID string
	Purpose   domain.PaymentPurpose
	Metadata  domain.TransactionMetadata
}

// InitializeRequest asks the gateway to open a checkout session.
type InitializeRequest struct {
	StudentID string
	Email     string
	Amount    int64
	Currency  string
	Purpose   domain.PaymentPurpose
	Metadata  domain.TransactionMetadata
}

// InitializeResponse carries the checkout handle back to the client.
type InitializeResponse struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// GatewayClient talks to the payment gateway's REST API. Calls are bounded
// by the configured verification timeout; a deadline maps to the retryable
// GatewayConfirmationTimeout error and leaves no ledger state behind.
type GatewayClient interface {
	VerifyTransaction(ctx context.Context, reference string) (*GatewayCharge, error)
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
}

// --- Service Ports (Business Logic) ---

// ApplyResult is the outcome of applying a payment event: the ledger entry
// and the wallet balance after it. Replayed is true when the reference had
// already been applied and this call was an idempotent no-op.
type ApplyResult struct {
	Transaction   *domain.Transaction `json:"transaction"`
	WalletBalance int64               `json:"wallet_balance"`
	Replayed      bool                `json:"replayed"`
}

// FeeChargeRequest debits a wallet for an institutional fee from inside
// the institution (no gateway involved).
type FeeChargeRequest struct {
	StudentID     string
	Amount        int64
	Description   string
	AcademicYear  string
	Semester      string
	PaymentPeriod string
}

// LedgerService is the Ledger Engine: the only component that mutates
// wallet balances, always together with an appended transaction.
type LedgerService interface {
	Apply(ctx context.Context, event domain.PaymentEvent) (*ApplyResult, error)
	ChargeFee(ctx context.Context, req FeeChargeRequest) (*ApplyResult, error)
	GetWallet(ctx context.Context, studentID string) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// WalletReconciliation describes what reconciliation found (and fixed)
// for one wallet.
type WalletReconciliation struct {
	StudentID        string   `json:"student_id"`
	PreviousBalance  int64    `json:"previous_balance"`
	ExpectedBalance  int64    `json:"expected_balance"`
	Drift            int64    `json:"drift"`
	DuplicatesVoided []string `json:"duplicates_voided,omitempty"`
	Corrected        bool     `json:"corrected"`
}

// ReconciliationReport aggregates a full pass for audit review. Anomalies
// holds only wallets that required correction.
type ReconciliationReport struct {
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	WalletsChecked int                    `json:"wallets_checked"`
	Anomalies      []WalletReconciliation `json:"anomalies"`
}

// ReconciliationService is the Reconciliation Engine. It heals drift and
// duplicate damage rather than failing on it; errors are reserved for
// infrastructure problems.
type ReconciliationService interface {
	ReconcileWallet(ctx context.Context, studentID string) (*WalletReconciliation, error)
	ReconcileAll(ctx context.Context) (*ReconciliationReport, error)
}

// FeeSyncReport summarizes one synchronizer run.
type FeeSyncReport struct {
	Scanned  int `json:"scanned"`
	Mirrored int `json:"mirrored"`
	Skipped  int `json:"skipped"`
}

// FeeProjectionService mirrors completed fee deductions into the
// fee-reporting store, exactly once per reference.
type FeeProjectionService interface {
	SyncCompleted(ctx context.Context) (*FeeSyncReport, error)
}
