package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// peakTracker records the highest number of simultaneously running tasks.
type peakTracker struct {
	active int64
	peak   int64
}

func (p *peakTracker) enter() {
	n := atomic.AddInt64(&p.active, 1)
	for {
		old := atomic.LoadInt64(&p.peak)
		if n <= old || atomic.CompareAndSwapInt64(&p.peak, old, n) {
			return
		}
	}
}

func (p *peakTracker) exit() { atomic.AddInt64(&p.active, -1) }

func (p *peakTracker) max() int64 { return atomic.LoadInt64(&p.peak) }

func TestRunBatchPreservesSubmissionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(3)
	results := RunBatch(context.Background(), p, 8, func(_ context.Context, i int) int {
		if i%2 == 0 {
			time.Sleep(10 * time.Millisecond)
		}
		return i * 10
	})
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70}, results)
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(3)
	var tracker peakTracker
	RunBatch(context.Background(), p, 12, func(_ context.Context, _ int) struct{} {
		tracker.enter()
		defer tracker.exit()
		time.Sleep(15 * time.Millisecond)
		return struct{}{}
	})
	assert.LessOrEqual(t, tracker.max(), int64(3))
}

func TestPoolLimitIsSharedAcrossBatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(2)
	var tracker peakTracker
	task := func(_ context.Context, _ int) struct{} {
		tracker.enter()
		defer tracker.exit()
		time.Sleep(15 * time.Millisecond)
		return struct{}{}
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RunBatch(context.Background(), p, 4, task)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, tracker.max(), int64(2))
}

func TestNewPoolDefaultsSize(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(0)
	assert.Equal(t, defaultPoolSize, cap(p.sem))
}
