package worker

import (
	"sync"

	"student-wallet-service/internal/metrics"
)

// Pool is a fixed-size worker pool used to fan out reconciliation across
// wallets. Queue depth is exported as a gauge.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan func()
}

func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{jobs: make(chan func(), 1024)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Dec()
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f func()) {
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- f
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
