// Package parallel provides the bounded worker pool used by every stage of
// a shrinker run.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PoolConfig bounds the concurrency of a stage.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent tasks.
	// Default: NumCPU clamped to [2, 8].
	MaxWorkers int
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxWorkers: min(max(runtime.NumCPU(), 2), 8)}
}

// WithWorkers returns a copy using n workers. Non-positive n keeps c.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	if n > 0 {
		c.MaxWorkers = n
	}
	return c
}

func (c PoolConfig) workers() int {
	if c.MaxWorkers <= 0 {
		return DefaultPoolConfig().MaxWorkers
	}
	return c.MaxWorkers
}

// Map applies fn to every item with at most config.MaxWorkers calls in
// flight and returns the results in input order. The first error cancels
// the context of the remaining calls; items not started by then are
// skipped.
func Map[T any, R any](ctx context.Context, items []T, config PoolConfig, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.workers())
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, items[i])
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
