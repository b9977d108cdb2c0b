// Package worker runs the per-file stages of a batch concurrently.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many tasks of one batch run at the same time.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given worker count.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers reports the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Run calls fn for every index in [0, n) with at most Workers calls in
// flight. The first error cancels the context passed to the remaining calls
// and is returned once every started call has finished. Callers write
// results into an index-addressed slice, so output order never depends on
// scheduling.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
