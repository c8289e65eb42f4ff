package ports

import (
	"context"

	"student-wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside a transaction block so balance
// read-modify-write happens under a pessimistic row lock.
type WalletRepository interface {
	// CreateIfAbsent inserts the wallet unless one already exists for the
	// student. Used for auto-creation on first deposit; safe to race.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByStudentID(ctx context.Context, studentID string) (*domain.Wallet, error)
	GetByStudentIDForUpdate(ctx context.Context, tx pgx.Tx, studentID string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64, lastTransactionRef string) error
	ListStudentIDs(ctx context.Context) ([]string, error)
}

// TransactionRepository defines persistence operations for the ledger.
type TransactionRepository interface {
	// CreateIfAbsent is the Idempotency Guard: an insert-if-absent on the
	// globally unique reference. Returns true when this caller won the
	// slot, false when a transaction with the reference already exists.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) (bool, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// ListHistory returns a wallet's full ledger ordered by creation time,
	// read inside tx so reconciliation sees a stable view under the
	// wallet row lock.
	ListHistory(ctx context.Context, tx pgx.Tx, studentID string) ([]domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	// ListUnprojectedFeeDeductions returns completed fee deductions that
	// have no record in the fee-projection store yet.
	ListUnprojectedFeeDeductions(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	StudentID string
	Status    *domain.TransactionStatus
	Type      *domain.TransactionType
	Page      int
	PageSize  int
}

// FeeProjectionRepository defines persistence for the external
// fee-reporting store. Its unique reference constraint gives the
// Fee-Projection Synchronizer an idempotency check of its own.
type FeeProjectionRepository interface {
	CreateIfAbsent(ctx context.Context, projection *domain.FeeProjection) (bool, error)
	GetByReference(ctx context.Context, reference string) (*domain.FeeProjection, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
