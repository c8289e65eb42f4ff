package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/internal/core/ports/mocks"
	"student-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	walletRepo  *mocks.MockWalletRepository
	txRepo      *mocks.MockTransactionRepository
	resultCache *mocks.MockResultCache
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		resultCache: mocks.NewMockResultCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLedgerService(d.walletRepo, d.txRepo, d.resultCache, d.transactor, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func activeWallet(studentID string, balance int64) *domain.Wallet {
	return &domain.Wallet{
		ID:        uuid.New(),
		StudentID: studentID,
		Balance:   balance,
		Currency:  "GHS",
		Status:    domain.WalletStatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func depositEvent(reference string, amount int64) domain.PaymentEvent {
	return domain.PaymentEvent{
		Reference:     reference,
		StudentID:     "STU-2024-001",
		Amount:        amount,
		Currency:      "GHS",
		GatewayStatus: domain.GatewayStatusSuccess,
		Channel:       domain.ChannelWebhook,
		Purpose:       domain.PurposeWalletDeposit,
	}
}

// ==================== Apply Tests ====================

func TestLedgerService_Apply_Deposit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("DEP-001", 50000)
	wallet := activeWallet(event.StudentID, 10000)

	d.resultCache.EXPECT().Get(ctx, "DEP-001").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, int64(60000), "DEP-001").Return(nil)
	d.resultCache.EXPECT().Set(ctx, "DEP-001", gomock.Any(), gomock.Any()).Return(nil)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, int64(60000), result.WalletBalance)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
	assert.Equal(t, domain.TransactionTypeDeposit, result.Transaction.Type)
}

func TestLedgerService_Apply_InvalidAmount_NeverReachesGuard(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	event := depositEvent("DEP-bad", -5)

	// No cache, transactor or repo calls expected: validation fails first.
	_, err := d.svc.Apply(context.Background(), event)
	require.Error(t, err)

	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_001", appErr.Code)
}

func TestLedgerService_Apply_CachedReplay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	event := depositEvent("DEP-002", 50000)

	cached, _ := json.Marshal(&ports.ApplyResult{
		Transaction:   &domain.Transaction{Reference: "DEP-002", Status: domain.TransactionStatusCompleted},
		WalletBalance: 60000,
	})
	d.resultCache.EXPECT().Get(ctx, "DEP-002").Return(cached, nil)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, int64(60000), result.WalletBalance)
}

func TestLedgerService_Apply_LostRace_ReplaysCommitted(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("DEP-003", 50000)
	wallet := activeWallet(event.StudentID, 60000)

	committed := &domain.Transaction{
		ID:        uuid.New(),
		StudentID: event.StudentID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    50000,
		Status:    domain.TransactionStatusCompleted,
		Reference: "DEP-003",
	}

	d.resultCache.EXPECT().Get(ctx, "DEP-003").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(false, nil)
	// After losing the race: committed state is read outside the tx.
	d.txRepo.EXPECT().GetByReference(ctx, "DEP-003").Return(committed, nil)
	d.walletRepo.EXPECT().GetByStudentID(ctx, event.StudentID).Return(wallet, nil)
	d.resultCache.EXPECT().Set(ctx, "DEP-003", gomock.Any(), gomock.Any()).Return(nil)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, committed.ID, result.Transaction.ID)
	assert.Equal(t, int64(60000), result.WalletBalance)
}

func TestLedgerService_Apply_Deposit_AutoCreatesWallet(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("DEP-004", 25000)
	created := activeWallet(event.StudentID, 0)

	d.resultCache.EXPECT().Get(ctx, "DEP-004").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(nil, nil)
	d.walletRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(created, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, created.ID, int64(25000), "DEP-004").Return(nil)
	d.resultCache.EXPECT().Set(ctx, "DEP-004", gomock.Any(), gomock.Any()).Return(nil)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), result.WalletBalance)
}

func TestLedgerService_Apply_FeePayment_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("FEE-001", 150000)
	event.Purpose = domain.PurposeFeePayment
	wallet := activeWallet(event.StudentID, 1000)

	var recorded *domain.Transaction
	d.resultCache.EXPECT().Get(ctx, "FEE-001").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) (bool, error) {
			recorded = txn
			return true, nil
		})
	// No UpdateBalance: the failed entry does not count toward the balance.
	d.resultCache.EXPECT().Set(ctx, "FEE-001", gomock.Any(), gomock.Any()).Return(nil)

	_, err := d.svc.Apply(ctx, event)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_003", appErr.Code)

	// The attempt is still recorded, consuming the reference.
	require.NotNil(t, recorded)
	assert.Equal(t, domain.TransactionStatusFailed, recorded.Status)
	assert.Equal(t, "insufficient funds", recorded.Metadata.Reason)
}

func TestLedgerService_Apply_SuspendedWallet_RejectsDebit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("FEE-002", 5000)
	event.Purpose = domain.PurposeFeePayment
	wallet := activeWallet(event.StudentID, 100000)
	wallet.Status = domain.WalletStatusSuspended

	d.resultCache.EXPECT().Get(ctx, "FEE-002").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.resultCache.EXPECT().Set(ctx, "FEE-002", gomock.Any(), gomock.Any()).Return(nil)

	_, err := d.svc.Apply(ctx, event)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_004", appErr.Code)
}

func TestLedgerService_Apply_SuspendedWallet_AcceptsDeposit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("DEP-005", 10000)
	wallet := activeWallet(event.StudentID, 5000)
	wallet.Status = domain.WalletStatusSuspended

	d.resultCache.EXPECT().Get(ctx, "DEP-005").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, int64(15000), "DEP-005").Return(nil)
	d.resultCache.EXPECT().Set(ctx, "DEP-005", gomock.Any(), gomock.Any()).Return(nil)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), result.WalletBalance)
}

func TestLedgerService_Apply_FailedGatewayEvent_RecordsWithoutMutation(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("DEP-006", 30000)
	event.GatewayStatus = domain.GatewayStatusFailed
	wallet := activeWallet(event.StudentID, 5000)

	d.resultCache.EXPECT().Get(ctx, "DEP-006").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.resultCache.EXPECT().Set(ctx, "DEP-006", gomock.Any(), gomock.Any()).Return(nil)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, result.Transaction.Status)
	assert.Equal(t, int64(5000), result.WalletBalance)
}

func TestLedgerService_Apply_WithdrawalWithoutWallet(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("WDR-001", 30000)
	event.Purpose = domain.PurposeWalletWithdrawal

	d.resultCache.EXPECT().Get(ctx, "WDR-001").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(nil, nil)

	_, err := d.svc.Apply(ctx, event)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_002", appErr.Code)
}

func TestLedgerService_Apply_RedisDownFallsThroughToDB(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	event := depositEvent("DEP-007", 10000)
	wallet := activeWallet(event.StudentID, 0)

	d.resultCache.EXPECT().Get(ctx, "DEP-007").Return(nil, assert.AnError)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, event.StudentID).Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, int64(10000), "DEP-007").Return(nil)
	d.resultCache.EXPECT().Set(ctx, "DEP-007", gomock.Any(), gomock.Any()).Return(assert.AnError)

	result, err := d.svc.Apply(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), result.WalletBalance)
}

// ==================== ChargeFee Tests ====================

func TestLedgerService_ChargeFee_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := activeWallet("STU-2024-001", 200000)

	var recorded *domain.Transaction
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, "STU-2024-001").Return(wallet, nil)
	d.txRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) (bool, error) {
			recorded = txn
			return true, nil
		})
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, int64(50000), gomock.Any()).Return(nil)

	result, err := d.svc.ChargeFee(ctx, ports.FeeChargeRequest{
		StudentID:    "STU-2024-001",
		Amount:       150000,
		Description:  "Tuition",
		AcademicYear: "2024/2025",
		Semester:     "1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), result.WalletBalance)
	require.NotNil(t, recorded)
	assert.Equal(t, domain.TransactionTypeFeeDeduction, recorded.Type)
	assert.Equal(t, domain.TransactionSourceSystem, recorded.Source)
	assert.Contains(t, recorded.Reference, "FEE-")
	assert.Equal(t, "2024/2025", recorded.Metadata.AcademicYear)
}

func TestLedgerService_ChargeFee_WalletNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByStudentIDForUpdate(ctx, tx, "STU-UNKNOWN").Return(nil, nil)

	_, err := d.svc.ChargeFee(ctx, ports.FeeChargeRequest{StudentID: "STU-UNKNOWN", Amount: 1000})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_002", appErr.Code)
}

func TestLedgerService_ChargeFee_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.ChargeFee(context.Background(), ports.FeeChargeRequest{StudentID: "STU-2024-001", Amount: 0})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_001", appErr.Code)
}

// ==================== Read Path Tests ====================

func TestLedgerService_GetWallet_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.walletRepo.EXPECT().GetByStudentID(ctx, "STU-UNKNOWN").Return(nil, nil)

	_, err := d.svc.GetWallet(ctx, "STU-UNKNOWN")
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "PAY_002", appErr.Code)
}

func TestLedgerService_ListTransactions_RequiresStudentID(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, _, err := d.svc.ListTransactions(context.Background(), ports.TransactionListParams{})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "VAL_001", appErr.Code)
}
