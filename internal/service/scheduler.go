package service

import (
	"context"
	"time"

	"student-wallet-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// Scheduler drives the background reconciliation and fee-sync jobs on
// fixed intervals. An interval of zero disables that job; the HTTP job
// endpoints remain available for an external scheduler either way.
type Scheduler struct {
	reconciliation ports.ReconciliationService
	feeProjection  ports.FeeProjectionService
	reconcileEvery time.Duration
	feeSyncEvery   time.Duration
	log            zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	reconciliation ports.ReconciliationService,
	feeProjection ports.FeeProjectionService,
	reconcileEvery, feeSyncEvery time.Duration,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		reconciliation: reconciliation,
		feeProjection:  feeProjection,
		reconcileEvery: reconcileEvery,
		feeSyncEvery:   feeSyncEvery,
		log:            log,
	}
}

// Start launches the job loops. Call Stop to shut them down.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
}

func (s *Scheduler) run(ctx context.Context) {
	var reconcileC, feeSyncC <-chan time.Time

	if s.reconcileEvery > 0 {
		t := time.NewTicker(s.reconcileEvery)
		defer t.Stop()
		reconcileC = t.C
	} else {
		s.log.Info().Msg("reconciliation scheduler disabled")
	}
	if s.feeSyncEvery > 0 {
		t := time.NewTicker(s.feeSyncEvery)
		defer t.Stop()
		feeSyncC = t.C
	} else {
		s.log.Info().Msg("fee sync scheduler disabled")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconcileC:
			if _, err := s.reconciliation.ReconcileAll(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled reconciliation failed")
			}
		case <-feeSyncC:
			if _, err := s.feeProjection.SyncCompleted(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled fee sync failed")
			}
		}
	}
}

// Stop cancels the job loops and waits for the current iteration to end.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
