package worker

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsAllSubmittedTasks(t *testing.T) {
	p := NewPool(4)

	var count int64
	for i := 0; i < 100; i++ {
		p.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	p.Stop()

	assert.Equal(t, int64(100), atomic.LoadInt64(&count))
}

func TestPool_ZeroWorkersStillRuns(t *testing.T) {
	p := NewPool(0)

	var ran atomic.Bool
	p.Submit(func() { ran.Store(true) })
	p.Stop()

	assert.True(t, ran.Load())
}
