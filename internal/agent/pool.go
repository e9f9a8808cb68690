package agent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many provider calls run at once. A single pool is shared
// across all concurrent research requests, so the limit caps outbound
// pressure process-wide rather than per request.
type Pool struct {
	sem chan struct{}
}

const defaultPoolSize = 3

func NewPool(size int) *Pool {
	if size <= 0 {
		size = defaultPoolSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// RunBatch executes n tasks through the pool and returns their results in
// submission order. Tasks carry their failures inside T, so one slow or
// failing task never disturbs its siblings.
func RunBatch[T any](ctx context.Context, p *Pool, n int, task func(ctx context.Context, i int) T) []T {
	results := make([]T, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p.sem <- struct{}{}
			defer func() { <-p.sem }()
			results[i] = task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
