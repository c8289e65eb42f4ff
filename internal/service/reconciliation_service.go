package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/internal/metrics"
	"student-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TaskPool fans work out to background workers.
type TaskPool interface {
	Submit(f func())
}

// ReconciliationServiceImpl implements ports.ReconciliationService.
// It recomputes each wallet's balance from its ledger, voids duplicate
// entries and heals drift, all under the same row lock the Ledger Engine
// uses so live traffic and reconciliation serialize cleanly.
type ReconciliationServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	pool       TaskPool
	log        zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	pool TaskPool,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		pool:       pool,
		log:        log,
	}
}

// ReconcileWallet audits one wallet and heals what it finds. Running it
// twice in a row is a no-op the second time: voided entries stay voided,
// adjustments are excluded from the recompute, and zero drift means no
// correction.
func (s *ReconciliationServiceImpl) ReconcileWallet(ctx context.Context, studentID string) (*ports.WalletReconciliation, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByStudentIDForUpdate(ctx, dbTx, studentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(studentID)
	}

	history, err := s.txRepo.ListHistory(ctx, dbTx, studentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list history: %w", err))
	}

	// Pass 1: duplicate detection. The unique index makes new duplicates
	// impossible, but data imported before the guard existed can carry
	// several completed entries for one reference. Keep the earliest,
	// void the rest.
	voided, err := s.voidDuplicates(ctx, dbTx, history)
	if err != nil {
		return nil, err
	}

	// Pass 2: recompute the balance from surviving counting entries.
	var expected int64
	for i := range history {
		if history[i].CountsTowardBalance() {
			expected += history[i].SignedAmount()
		}
	}
	clamped := false
	if expected < 0 {
		// Can happen when a voided duplicate deposit was already spent.
		// The wallet floor is zero; the shortfall is recorded below.
		clamped = true
		expected = 0
	}

	drift := expected - wallet.Balance
	result := &ports.WalletReconciliation{
		StudentID:        studentID,
		PreviousBalance:  wallet.Balance,
		ExpectedBalance:  expected,
		Drift:            drift,
		DuplicatesVoided: voided,
	}

	if drift == 0 && len(voided) == 0 {
		// Healthy wallet, nothing to write.
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		return result, nil
	}

	// Document the correction as an adjustment entry. Adjustments are
	// excluded from the recompute, so repeated passes stay at this fixed
	// point instead of compounding.
	reason := fmt.Sprintf("reconciliation: drift %+d", drift)
	if len(voided) > 0 {
		reason += "; voided " + strings.Join(voided, ",")
	}
	if clamped {
		reason += "; negative recompute clamped to 0"
	}
	adj := &domain.Transaction{
		ID:        uuid.New(),
		StudentID: studentID,
		Type:      domain.TransactionTypeAdjustment,
		Amount:    drift,
		Status:    domain.TransactionStatusCompleted,
		Reference: fmt.Sprintf("SYSADJ-%s", uuid.New().String()),
		Source:    domain.TransactionSourceSystem,
		Metadata:  domain.TransactionMetadata{Reason: reason},
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := s.txRepo.CreateIfAbsent(ctx, dbTx, adj)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append adjustment: %w", err))
	}
	if !inserted {
		return nil, apperror.InternalError(fmt.Errorf("generated reference collision: %s", adj.Reference))
	}

	if drift != 0 {
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, expected, adj.Reference); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("heal balance: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	result.Corrected = true
	metrics.ReconciliationCorrections.Inc()
	s.log.Warn().
		Str("student_id", studentID).
		Int64("previous_balance", result.PreviousBalance).
		Int64("expected_balance", expected).
		Int64("drift", drift).
		Strs("duplicates_voided", voided).
		Msg("wallet reconciled")

	return result, nil
}

// voidDuplicates finds counting entries sharing a reference, keeps the
// earliest and voids the rest, mutating history in place so the recompute
// sees the corrected view.
func (s *ReconciliationServiceImpl) voidDuplicates(ctx context.Context, dbTx pgx.Tx, history []domain.Transaction) ([]string, error) {
	seen := make(map[string]bool, len(history))
	var voided []string
	for i := range history {
		t := &history[i]
		if !t.CountsTowardBalance() {
			continue
		}
		if !seen[t.Reference] {
			seen[t.Reference] = true
			continue
		}
		if err := s.txRepo.UpdateStatus(ctx, dbTx, t.ID, domain.TransactionStatusVoided); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("void duplicate %s: %w", t.ID, err))
		}
		t.Status = domain.TransactionStatusVoided
		voided = append(voided, t.Reference)
		metrics.DuplicatesVoided.Inc()
	}
	return voided, nil
}

// ReconcileAll runs a full pass over every wallet, fanned out across the
// worker pool. Individual wallet failures are logged and skipped so one
// bad wallet cannot abort the audit.
func (s *ReconciliationServiceImpl) ReconcileAll(ctx context.Context) (*ports.ReconciliationReport, error) {
	studentIDs, err := s.walletRepo.ListStudentIDs(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}

	report := &ports.ReconciliationReport{
		StartedAt:      time.Now().UTC(),
		WalletsChecked: len(studentIDs),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, studentID := range studentIDs {
		studentID := studentID
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			rec, err := s.ReconcileWallet(ctx, studentID)
			if err != nil {
				s.log.Error().Err(err).Str("student_id", studentID).Msg("wallet reconciliation failed")
				return
			}
			if rec.Corrected {
				mu.Lock()
				report.Anomalies = append(report.Anomalies, *rec)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	sort.Slice(report.Anomalies, func(i, j int) bool {
		return report.Anomalies[i].StudentID < report.Anomalies[j].StudentID
	})
	report.FinishedAt = time.Now().UTC()

	s.log.Info().
		Int("wallets_checked", report.WalletsChecked).
		Int("anomalies", len(report.Anomalies)).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("reconciliation pass complete")

	return report, nil
}
