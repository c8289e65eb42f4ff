package postgres

import (
	"context"
	"errors"
	"fmt"

	"student-wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// CreateIfAbsent inserts a wallet unless one exists for the student.
// Concurrent first deposits race here; the unique index on student_id
// makes the insert a no-op for every caller but the first.
func (r *WalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, student_id, balance, currency, status, last_transaction_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id) DO NOTHING`

	_, err := tx.Exec(ctx, query,
		w.ID, w.StudentID, w.Balance, w.Currency, w.Status,
		w.LastTransactionRef, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByStudentID fetches a wallet without locking.
func (r *WalletRepo) GetByStudentID(ctx context.Context, studentID string) (*domain.Wallet, error) {
	query := `SELECT id, student_id, balance, currency, status, last_transaction_ref, created_at, updated_at
		FROM wallets WHERE student_id = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, studentID))
}

// GetByStudentIDForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction; every balance mutation in the
// system goes through this lock, including reconciliation corrections.
func (r *WalletRepo) GetByStudentIDForUpdate(ctx context.Context, tx pgx.Tx, studentID string) (*domain.Wallet, error) {
	query := `SELECT id, student_id, balance, currency, status, last_transaction_ref, created_at, updated_at
		FROM wallets WHERE student_id = $1 FOR UPDATE`

	return scanWallet(tx.QueryRow(ctx, query, studentID))
}

// UpdateBalance sets a wallet's balance and last applied reference within
// a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64, lastTransactionRef string) error {
	query := `UPDATE wallets SET balance = $1, last_transaction_ref = $2, updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, balance, lastTransactionRef, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// ListStudentIDs returns every student holding a wallet, for global
// reconciliation passes.
func (r *WalletRepo) ListStudentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT student_id FROM wallets ORDER BY student_id`)
	if err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student ids: %w", err)
	}
	return ids, nil
}

// scanWallet is a helper to scan a single row into a Wallet.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.StudentID, &w.Balance, &w.Currency, &w.Status,
		&w.LastTransactionRef, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
