// Package workers provides a bounded worker pool for request-scoped fan-out.
//
// A [Pool] caps the number of tasks in flight. There are no long-lived goroutines: every call
// starts its workers, waits for all of them and returns.
package workers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the concurrency used when a pool is created with a non-positive size.
const DefaultSize = 5

// Pool runs tasks with at most Size of them in flight.
type Pool struct {
	size int
}

// New returns a pool of the given size.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{size: size}
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	return p.size
}

// Run calls fn for every index in [0, n) and waits for all calls to finish.
//
// The first error cancels the context passed to the remaining tasks and is returned.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Map applies fn to every item through p and returns the results in input order.
//
// fn cannot fail: callers that need a fallback value choose it inside fn.
func Map[In, Out any](ctx context.Context, p *Pool, items []In, fn func(ctx context.Context, item In) Out) []Out {
	out := make([]Out, len(items))
	_ = p.Run(ctx, len(items), func(ctx context.Context, i int) error {
		out[i] = fn(ctx, items[i])
		return nil
	})
	return out
}
