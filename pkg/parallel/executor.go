package parallel

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Executor is a bounded pool shared across the stages of a run. Tasks are
// submitted with Go; Wait is the stage barrier. After Wait returns the
// executor accepts tasks for the next stage.
type Executor struct {
	parent context.Context
	config PoolConfig

	mu    sync.Mutex
	group *errgroup.Group
	ctx   context.Context
}

// NewExecutor creates an executor whose tasks observe ctx.
func NewExecutor(ctx context.Context, config PoolConfig) *Executor {
	if config.MaxWorkers <= 0 {
		config = DefaultPoolConfig()
	}
	return &Executor{parent: ctx, config: config}
}

// Config returns the pool configuration.
func (e *Executor) Config() PoolConfig {
	return e.config
}

// Go submits a task to the current stage. It blocks while MaxWorkers tasks
// are running. A task error cancels the stage context.
func (e *Executor) Go(fn func(ctx context.Context) error) {
	e.mu.Lock()
	if e.group == nil {
		e.group, e.ctx = errgroup.WithContext(e.parent)
		e.group.SetLimit(e.config.MaxWorkers)
	}
	g, ctx := e.group, e.ctx
	e.mu.Unlock()

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// Wait blocks until every submitted task finished and returns the first error.
func (e *Executor) Wait() error {
	e.mu.Lock()
	g := e.group
	e.group, e.ctx = nil, nil
	e.mu.Unlock()

	if g == nil {
		return e.parent.Err()
	}
	return g.Wait()
}
