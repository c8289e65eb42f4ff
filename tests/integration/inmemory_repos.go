package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet // keyed by student ID
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.StudentID]; ok {
		return nil
	}
	cp := *w
	r.wallets[w.StudentID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByStudentID(ctx context.Context, studentID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[studentID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByStudentIDForUpdate(ctx context.Context, tx pgx.Tx, studentID string) (*domain.Wallet, error) {
	return r.GetByStudentID(ctx, studentID)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64, lastTransactionRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.ID == walletID {
			w.Balance = balance
			ref := lastTransactionRef
			w.LastTransactionRef = &ref
			w.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("wallet not found")
}

func (r *inMemoryWalletRepo) ListStudentIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.wallets))
	for id := range r.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// seed installs a wallet directly, bypassing auto-creation. Tests use it
// to stage pre-existing state such as a drifted balance.
func (r *inMemoryWalletRepo) seed(w *domain.Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.StudentID] = &cp
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions []*domain.Transaction
	byReference  map[string]*domain.Transaction
	projections  *inMemoryFeeProjectionRepo
}

func newInMemoryTransactionRepo(projections *inMemoryFeeProjectionRepo) *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		byReference: make(map[string]*domain.Transaction),
		projections: projections,
	}
}

func (r *inMemoryTransactionRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, t *domain.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byReference[t.Reference]; ok {
		return false, nil
	}
	cp := *t
	r.transactions = append(r.transactions, &cp)
	r.byReference[t.Reference] = &cp
	return true, nil
}

func (r *inMemoryTransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byReference[reference]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) ListHistory(ctx context.Context, tx pgx.Tx, studentID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.StudentID == studentID {
			result = append(result, *t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.StudentID != params.StudentID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		result = append(result, *t)
	}
	total := int64(len(result))

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transactions {
		if t.ID == id {
			t.Status = status
			return nil
		}
	}
	return fmt.Errorf("transaction not found")
}

func (r *inMemoryTransactionRepo) ListUnprojectedFeeDeductions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.Type != domain.TransactionTypeFeeDeduction || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if r.projections.has(t.Reference) {
			continue
		}
		result = append(result, *t)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// seed installs a ledger entry directly, bypassing the idempotency
// guard. Tests use it to stage legacy duplicate rows that predate the
// unique reference index.
func (r *inMemoryTransactionRepo) seed(t *domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transactions = append(r.transactions, &cp)
	if _, ok := r.byReference[t.Reference]; !ok {
		r.byReference[t.Reference] = &cp
	}
}

func (r *inMemoryTransactionRepo) countForStudent(studentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.transactions {
		if t.StudentID == studentID {
			n++
		}
	}
	return n
}

// --- In-Memory Fee Projection Repo ---

type inMemoryFeeProjectionRepo struct {
	mu          sync.RWMutex
	projections map[string]*domain.FeeProjection
}

func newInMemoryFeeProjectionRepo() *inMemoryFeeProjectionRepo {
	return &inMemoryFeeProjectionRepo{projections: make(map[string]*domain.FeeProjection)}
}

func (r *inMemoryFeeProjectionRepo) CreateIfAbsent(ctx context.Context, p *domain.FeeProjection) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projections[p.Reference]; ok {
		return false, nil
	}
	cp := *p
	r.projections[p.Reference] = &cp
	return true, nil
}

func (r *inMemoryFeeProjectionRepo) GetByReference(ctx context.Context, reference string) (*domain.FeeProjection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projections[reference]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryFeeProjectionRepo) has(reference string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.projections[reference]
	return ok
}

// --- In-Memory Transactor (serializing) ---

// lockingTransactor emulates the wallet row lock with one global mutex:
// Begin blocks until the previous transaction commits or rolls back, so
// concurrent applies serialize the same way they do behind FOR UPDATE.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockedTx{release: t.mu.Unlock}, nil
}

// lockedTx is a no-op pgx.Tx that releases the transactor lock exactly
// once, on whichever of Commit/Rollback runs first.
type lockedTx struct {
	once    sync.Once
	release func()
}

func (t *lockedTx) Commit(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *lockedTx) Rollback(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *lockedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockedTx) Conn() *pgx.Conn { return nil }
