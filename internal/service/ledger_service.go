package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/internal/metrics"
	"student-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const resultTTL = 24 * time.Hour

// defaultCurrency is used when the gateway omits one.
const defaultCurrency = "GHS"

// LedgerServiceImpl implements ports.LedgerService. It is the only
// component that mutates wallet balances, and it always does so in the
// same atomic unit as appending the ledger entry.
type LedgerServiceImpl struct {
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	resultCache ports.ResultCache
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	resultCache ports.ResultCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		resultCache: resultCache,
		transactor:  transactor,
		log:         log,
	}
}

// Apply runs a normalized payment event through the Idempotency Guard and,
// if this is its first arrival, mutates the wallet. Both webhook and
// callback deliveries of the same reference converge here; the second and
// later arrivals replay the committed outcome without side effects.
func (s *LedgerServiceImpl) Apply(ctx context.Context, event domain.PaymentEvent) (*ports.ApplyResult, error) {
	// Validation happens before the guard so malformed input never
	// consumes an idempotency slot.
	if err := event.Validate(); err != nil {
		metrics.PaymentEventsTotal.WithLabelValues(string(event.Channel), "rejected").Inc()
		if errors.Is(err, domain.ErrEventInvalidAmount) {
			return nil, apperror.ErrInvalidAmount()
		}
		return nil, apperror.Validation(err.Error())
	}

	// Layer 1: Redis replay check (best-effort)
	cached, err := s.resultCache.Get(ctx, event.Reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", event.Reference).Msg("redis replay check failed, falling through to DB")
	}
	if cached != nil {
		result, err := s.unmarshalCachedResult(cached)
		if err == nil {
			metrics.PaymentEventsTotal.WithLabelValues(string(event.Channel), "replayed").Inc()
			metrics.DuplicateReplays.Inc()
			return result, nil
		}
		s.log.Warn().Err(err).Str("reference", event.Reference).Msg("discarding corrupt cached result")
	}

	// Layer 2: the database guard, under the wallet row lock.
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txnType := event.TransactionType()
	currency := event.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	// Lock & get wallet. Deposits auto-create; debits require an
	// existing wallet.
	wallet, err := s.walletRepo.GetByStudentIDForUpdate(ctx, dbTx, event.StudentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		if txnType != domain.TransactionTypeDeposit {
			metrics.PaymentEventsTotal.WithLabelValues(string(event.Channel), "rejected").Inc()
			return nil, apperror.ErrWalletNotFound(event.StudentID)
		}
		if err := s.walletRepo.CreateIfAbsent(ctx, dbTx, domain.NewWallet(event.StudentID, currency)); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
		wallet, err = s.walletRepo.GetByStudentIDForUpdate(ctx, dbTx, event.StudentID)
		if err != nil || wallet == nil {
			return nil, apperror.InternalError(fmt.Errorf("relock created wallet: %w", err))
		}
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:        uuid.New(),
		StudentID: event.StudentID,
		Type:      txnType,
		Amount:    event.Amount,
		Status:    domain.TransactionStatusCompleted,
		Reference: event.Reference,
		Source:    domain.TransactionSource(event.Channel),
		Metadata:  event.Metadata,
		CreatedAt: now,
	}
	if event.GatewayStatus != domain.GatewayStatusSuccess {
		txn.Status = domain.TransactionStatusFailed
		txn.Metadata.Reason = "gateway reported failure"
	}

	// Business rules for successful debits. Rejections still append a
	// failed entry so the attempt is auditable; the reference is consumed
	// either way.
	var businessErr *apperror.AppError
	if txn.Status == domain.TransactionStatusCompleted && txnType != domain.TransactionTypeDeposit {
		switch {
		case !wallet.IsActive():
			txn.Status = domain.TransactionStatusFailed
			txn.Metadata.Reason = "wallet suspended"
			businessErr = apperror.ErrWalletSuspended()
		case !wallet.CanDebit(event.Amount):
			txn.Status = domain.TransactionStatusFailed
			txn.Metadata.Reason = "insufficient funds"
			businessErr = apperror.ErrInsufficientFunds()
		}
	}

	inserted, err := s.txRepo.CreateIfAbsent(ctx, dbTx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("guard insert: %w", err))
	}
	if !inserted {
		// Lost the reference race, or the event already arrived via the
		// other channel. Release the lock and replay committed state.
		dbTx.Rollback(ctx) //nolint:errcheck
		return s.replayCommitted(ctx, event)
	}

	if txn.CountsTowardBalance() {
		newBalance := wallet.Balance + txn.SignedAmount()
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance, txn.Reference); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
		wallet.Balance = newBalance
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	result := &ports.ApplyResult{
		Transaction:   txn,
		WalletBalance: wallet.Balance,
		Replayed:      false,
	}
	s.cacheResult(ctx, event.Reference, result)

	if businessErr != nil {
		metrics.PaymentEventsTotal.WithLabelValues(string(event.Channel), "rejected").Inc()
		s.log.Warn().
			Str("reference", txn.Reference).
			Str("student_id", txn.StudentID).
			Str("reason", txn.Metadata.Reason).
			Msg("payment event recorded as failed")
		return nil, businessErr
	}

	metrics.PaymentEventsTotal.WithLabelValues(string(event.Channel), "applied").Inc()
	s.log.Info().
		Str("reference", txn.Reference).
		Str("student_id", txn.StudentID).
		Str("type", string(txn.Type)).
		Str("status", string(txn.Status)).
		Int64("amount", txn.Amount).
		Int64("balance", wallet.Balance).
		Msg("payment event applied")

	return result, nil
}

// replayCommitted answers a duplicate with the committed outcome of the
// first arrival, reading outside any transaction.
func (s *LedgerServiceImpl) replayCommitted(ctx context.Context, event domain.PaymentEvent) (*ports.ApplyResult, error) {
	txn, err := s.txRepo.GetByReference(ctx, event.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load committed transaction: %w", err))
	}
	if txn == nil {
		// The winning writer has not committed yet; the caller should retry.
		return nil, apperror.InternalError(fmt.Errorf("reference %s claimed but not visible", event.Reference))
	}

	var balance int64
	if wallet, err := s.walletRepo.GetByStudentID(ctx, txn.StudentID); err == nil && wallet != nil {
		balance = wallet.Balance
	}

	result := &ports.ApplyResult{
		Transaction:   txn,
		WalletBalance: balance,
		Replayed:      true,
	}
	s.cacheResult(ctx, event.Reference, result)

	metrics.PaymentEventsTotal.WithLabelValues(string(event.Channel), "replayed").Inc()
	metrics.DuplicateReplays.Inc()
	s.log.Info().
		Str("reference", event.Reference).
		Str("channel", string(event.Channel)).
		Msg("duplicate payment event replayed")

	return result, nil
}

// ChargeFee debits a wallet for an institutional fee. No gateway is
// involved; the reference is generated here and the entry goes straight
// through the same guard and lock as gateway events.
func (s *LedgerServiceImpl) ChargeFee(ctx context.Context, req ports.FeeChargeRequest) (*ports.ApplyResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.StudentID == "" {
		return nil, apperror.Validation("student_id is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByStudentIDForUpdate(ctx, dbTx, req.StudentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(req.StudentID)
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:        uuid.New(),
		StudentID: req.StudentID,
		Type:      domain.TransactionTypeFeeDeduction,
		Amount:    req.Amount,
		Status:    domain.TransactionStatusCompleted,
		Reference: fmt.Sprintf("FEE-%s", uuid.New().String()),
		Source:    domain.TransactionSourceSystem,
		Metadata: domain.TransactionMetadata{
			AcademicYear:  req.AcademicYear,
			Semester:      req.Semester,
			PaymentPeriod: req.PaymentPeriod,
			Purpose:       string(domain.PurposeFeePayment),
			Description:   req.Description,
		},
		CreatedAt: now,
	}

	var businessErr *apperror.AppError
	switch {
	case !wallet.IsActive():
		txn.Status = domain.TransactionStatusFailed
		txn.Metadata.Reason = "wallet suspended"
		businessErr = apperror.ErrWalletSuspended()
	case !wallet.CanDebit(req.Amount):
		txn.Status = domain.TransactionStatusFailed
		txn.Metadata.Reason = "insufficient funds"
		businessErr = apperror.ErrInsufficientFunds()
	}

	inserted, err := s.txRepo.CreateIfAbsent(ctx, dbTx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("guard insert: %w", err))
	}
	if !inserted {
		// Generated references are UUIDs; a collision means something is
		// deeply wrong.
		return nil, apperror.InternalError(fmt.Errorf("generated reference collision: %s", txn.Reference))
	}

	if txn.CountsTowardBalance() {
		newBalance := wallet.Balance - req.Amount
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance, txn.Reference); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
		wallet.Balance = newBalance
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if businessErr != nil {
		s.log.Warn().
			Str("student_id", req.StudentID).
			Str("reason", txn.Metadata.Reason).
			Int64("amount", req.Amount).
			Msg("fee charge recorded as failed")
		return nil, businessErr
	}

	s.log.Info().
		Str("reference", txn.Reference).
		Str("student_id", req.StudentID).
		Int64("amount", req.Amount).
		Int64("balance", wallet.Balance).
		Msg("fee charged")

	return &ports.ApplyResult{Transaction: txn, WalletBalance: wallet.Balance}, nil
}

// GetWallet fetches a wallet by student id.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, studentID string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(studentID)
	}
	return wallet, nil
}

// ListTransactions returns a filtered page of a student's ledger.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.StudentID == "" {
		return nil, 0, apperror.Validation("student_id is required")
	}
	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

func (s *LedgerServiceImpl) cacheResult(ctx context.Context, reference string, result *ports.ApplyResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.resultCache.Set(ctx, reference, data, resultTTL); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("failed to cache apply result")
	}
}

func (s *LedgerServiceImpl) unmarshalCachedResult(data []byte) (*ports.ApplyResult, error) {
	result := &ports.ApplyResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}
	result.Replayed = true
	return result, nil
}
