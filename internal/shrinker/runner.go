package shrinker

import (
	"context"

	"github.com/class-shrinker/internal/storage"
	apperrors "github.com/class-shrinker/pkg/errors"
)

// Runner runs incrementally when asked to and falls back to a full run
// when the incremental run is impossible.
type Runner struct {
	full        *FullRunShrinker
	incremental *IncrementalShrinker
}

// NewRunner creates a runner. Both run kinds share opts.
func NewRunner(output storage.OutputProvider, opts ...Option) *Runner {
	return &Runner{
		full:        NewFullRunShrinker(output, opts...),
		incremental: NewIncrementalShrinker(output, opts...),
	}
}

// Run performs an incremental run if incremental is set, or a full run.
// The fallback is transparent: the returned Result tells which kind ran.
// A full run always saves state when a store is configured.
func (r *Runner) Run(ctx context.Context, req Request, incremental bool) (*Result, error) {
	if incremental {
		res, err := r.incremental.Run(ctx, req)
		if err == nil {
			return res, nil
		}
		if !apperrors.IsIncrementalRunImpossible(err) {
			return nil, err
		}
		r.full.logger.Info("incremental run impossible, running a full run: %v", err)
	}
	req.SaveState = req.SaveState || r.full.store != nil
	return r.full.Run(ctx, req)
}
