package postgres

import (
	"context"
	"errors"
	"fmt"

	"student-wallet-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// FeeProjectionRepo implements ports.FeeProjectionRepository.
type FeeProjectionRepo struct {
	pool Pool
}

// NewFeeProjectionRepo creates a new FeeProjectionRepo.
func NewFeeProjectionRepo(pool Pool) *FeeProjectionRepo {
	return &FeeProjectionRepo{pool: pool}
}

// CreateIfAbsent mirrors a fee deduction into the projection store. The
// unique reference index makes re-runs of the synchronizer no-ops.
func (r *FeeProjectionRepo) CreateIfAbsent(ctx context.Context, p *domain.FeeProjection) (bool, error) {
	query := `INSERT INTO fee_projections (id, student_id, amount, reference, description, payment_date, academic_year, semester, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reference) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.StudentID, p.Amount, p.Reference, p.Description,
		p.PaymentDate, p.AcademicYear, p.Semester, p.Source, p.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert fee projection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByReference fetches a projection by the source transaction reference.
func (r *FeeProjectionRepo) GetByReference(ctx context.Context, reference string) (*domain.FeeProjection, error) {
	query := `SELECT id, student_id, amount, reference, description, payment_date, academic_year, semester, source, created_at
		FROM fee_projections WHERE reference = $1`

	p := &domain.FeeProjection{}
	err := r.pool.QueryRow(ctx, query, reference).Scan(
		&p.ID, &p.StudentID, &p.Amount, &p.Reference, &p.Description,
		&p.PaymentDate, &p.AcademicYear, &p.Semester, &p.Source, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan fee projection: %w", err)
	}
	return p, nil
}
