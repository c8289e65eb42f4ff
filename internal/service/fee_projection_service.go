package service

import (
	"context"
	"fmt"

	"student-wallet-service/internal/core/domain"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/internal/metrics"
	"student-wallet-service/pkg/apperror"

	"github.com/rs/zerolog"
)

// FeeProjectionServiceImpl implements ports.FeeProjectionService. It
// mirrors completed fee deductions into the fee-reporting store, exactly
// once per reference. The mirror direction is strictly ledger to
// projection; nothing here writes back to the ledger.
type FeeProjectionServiceImpl struct {
	txRepo         ports.TransactionRepository
	projectionRepo ports.FeeProjectionRepository
	batchSize      int
	log            zerolog.Logger
}

// NewFeeProjectionService creates a new FeeProjectionServiceImpl.
func NewFeeProjectionService(
	txRepo ports.TransactionRepository,
	projectionRepo ports.FeeProjectionRepository,
	batchSize int,
	log zerolog.Logger,
) *FeeProjectionServiceImpl {
	if batchSize < 1 {
		batchSize = 200
	}
	return &FeeProjectionServiceImpl{
		txRepo:         txRepo,
		projectionRepo: projectionRepo,
		batchSize:      batchSize,
		log:            log,
	}
}

// SyncCompleted scans for completed fee deductions that have no
// projection yet and mirrors them. Safe to run concurrently with itself:
// the projection store's unique reference index turns double mirroring
// into a skip.
func (s *FeeProjectionServiceImpl) SyncCompleted(ctx context.Context) (*ports.FeeSyncReport, error) {
	report := &ports.FeeSyncReport{}

	for {
		batch, err := s.txRepo.ListUnprojectedFeeDeductions(ctx, s.batchSize)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list unprojected fee deductions: %w", err))
		}
		if len(batch) == 0 {
			break
		}
		report.Scanned += len(batch)

		for i := range batch {
			projection, err := domain.NewFeeProjection(&batch[i])
			if err != nil {
				// The query should only return projectable entries.
				s.log.Error().Err(err).Str("reference", batch[i].Reference).Msg("skipping unprojectable transaction")
				report.Skipped++
				continue
			}
			inserted, err := s.projectionRepo.CreateIfAbsent(ctx, projection)
			if err != nil {
				return report, apperror.InternalError(fmt.Errorf("mirror projection %s: %w", projection.Reference, err))
			}
			if inserted {
				report.Mirrored++
				metrics.FeeProjectionsMirrored.Inc()
			} else {
				report.Skipped++
			}
		}

		if len(batch) < s.batchSize {
			break
		}
	}

	s.log.Info().
		Int("scanned", report.Scanned).
		Int("mirrored", report.Mirrored).
		Int("skipped", report.Skipped).
		Msg("fee projection sync complete")

	return report, nil
}
