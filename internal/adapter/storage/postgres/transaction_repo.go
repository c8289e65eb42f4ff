package postgres

import (
	"context"
	"errors"
	"fmt"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, student_id, type, amount, status, reference, source, metadata, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// CreateIfAbsent appends a ledger entry unless the reference is already
// taken. The unique index on reference arbitrates concurrent writers:
// exactly one caller sees true, everyone else false.
func (r *TransactionRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, t *domain.Transaction) (bool, error) {
	query := `INSERT INTO transactions (id, student_id, type, amount, status, reference, source, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reference) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		t.ID, t.StudentID, t.Type, t.Amount, t.Status,
		t.Reference, t.Source, t.Metadata, t.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByReference fetches a transaction by its unique reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, reference))
}

// ListHistory returns a wallet's full ledger ordered by creation time,
// read inside tx so callers holding the wallet row lock see a view no
// concurrent apply can change under them.
func (r *TransactionRepo) ListHistory(ctx context.Context, tx pgx.Tx, studentID string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE student_id = $1 ORDER BY created_at, id`

	rows, err := tx.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// List returns a filtered, paginated slice of the ledger together with
// the total count matching the filter.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	where := ` WHERE student_id = $1`
	args := []any{params.StudentID}
	argIdx := 2

	if params.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, *params.Type)
		argIdx++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// UpdateStatus changes a single transaction's status. Used by
// reconciliation to void duplicates; the row itself is never deleted.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// ListUnprojectedFeeDeductions returns completed fee deductions that have
// no mirror row in the fee-projection store yet, oldest first.
func (r *TransactionRepo) ListUnprojectedFeeDeductions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `SELECT t.id, t.student_id, t.type, t.amount, t.status, t.reference, t.source, t.metadata, t.created_at
		FROM transactions t
		LEFT JOIN fee_projections fp ON fp.reference = t.reference
		WHERE t.type = $1 AND t.status = $2 AND fp.reference IS NULL
		ORDER BY t.created_at, t.id
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.TransactionTypeFeeDeduction, domain.TransactionStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprojected fee deductions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.StudentID, &t.Type, &t.Amount, &t.Status,
		&t.Reference, &t.Source, &t.Metadata, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.StudentID, &t.Type, &t.Amount, &t.Status,
			&t.Reference, &t.Source, &t.Metadata, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}
