package shrinker

import (
	"context"
	"sort"

	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/internal/ingest"
	"github.com/class-shrinker/internal/storage"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/model"
)

// IncrementalShrinker patches the graph of the previous run. Only changes
// to the code of existing methods are supported; anything else fails with
// INCREMENTAL_RUN_IMPOSSIBLE and the caller runs a full run instead.
type IncrementalShrinker struct {
	base
}

// NewIncrementalShrinker creates an incremental shrinker. The store set
// with WithStore is required: it holds the graph of the previous run.
func NewIncrementalShrinker(output storage.OutputProvider, opts ...Option) *IncrementalShrinker {
	return &IncrementalShrinker{base: newBase(output, opts)}
}

// Run reprocesses the changed program classes, recomputes every counter
// from the persisted roots and writes only the classes whose output
// changed. Rules are not evaluated again: the roots come from the state,
// and the run is impossible when the rules or settings changed since.
func (s *IncrementalShrinker) Run(ctx context.Context, req Request) (*Result, error) {
	if s.store == nil {
		return nil, apperrors.IncrementalRunImpossible("no state store configured")
	}
	if err := checkLibraries(req.Inputs); err != nil {
		return nil, err
	}

	r := s.newRun(ctx, "incremental run", req)
	r.result.Incremental = true
	if set := req.Rules[graph.Shrink]; set != nil && len(set.WhyAreYouKeeping) > 0 {
		r.logger.Warn("incremental run: %d why-are-you-keeping rules are not traced, run a full run for traces", len(set.WhyAreYouKeeping))
	}

	var (
		in       *ingest.Ingester
		old      map[string]graph.ClassSnapshot
		modified []graph.NodeID
		changes  classChanges
	)

	steps := []step{
		{"load state", func(ctx context.Context) error {
			st, err := s.store.Load(ctx)
			if err != nil {
				return loadFailed(err)
			}
			if st.Fingerprint != r.fingerprint {
				return apperrors.IncrementalRunImpossible("run configuration changed since the last run")
			}
			g, err := graph.NewFromState(st)
			if err != nil {
				return loadFailed(err)
			}
			r.graph = g
			in = r.newIngester()
			return nil
		}},
		{"snapshot", func(ctx context.Context) error {
			old = r.graph.Snapshot(graph.Shrink)
			return nil
		}},
		{"clear counters", func(ctx context.Context) error {
			r.graph.ClearCounters()
			return nil
		}},
		{"process inputs", func(ctx context.Context) error {
			var err error
			modified, err = in.ProcessChanges(ctx, req.Inputs.Program)
			return err
		}},
		{"finish graph", func(ctx context.Context) error {
			f, err := r.newFinisher()
			if err != nil {
				return err
			}
			return f.Finish(ctx, in.Data())
		}},
		{"check dependencies", func(ctx context.Context) error {
			r.graph.CheckDependencies(r.diag)
			return nil
		}},
		{"traverse", func(ctx context.Context) error {
			return r.traverse(ctx, nil)
		}},
		{"calculate changes", func(ctx context.Context) error {
			changes = r.calculateChanges(old, modified)
			return nil
		}},
		{"write output", func(ctx context.Context) error {
			if err := r.writeClasses(ctx, changes.write, req.Inputs.Program); err != nil {
				return err
			}
			return r.deleteClasses(ctx, changes.delete, req.Inputs.Program)
		}},
		{"persist state", r.persist},
	}

	if err := r.runSteps(ctx, steps); err != nil {
		return nil, err
	}
	res := r.finish()
	r.logger.Info("incremental run: %d classes modified, %d written, %d deleted", len(modified), len(res.Written), len(res.Deleted))
	return res, nil
}

func loadFailed(err error) error {
	return apperrors.Wrap(apperrors.CodeIncrementalRunImpossible, "failed to load incremental state", err)
}

// checkLibraries refuses any change to library inputs: library classes
// are never reprocessed.
func checkLibraries(inputs ingest.Inputs) error {
	for _, input := range inputs.Libraries {
		for _, jar := range input.Jars {
			if jar.Status != model.StatusNotChanged {
				return apperrors.IncrementalRunImpossible("library jar %s has been %s", jar.Path, jar.Status)
			}
		}
		for _, dir := range input.Directories {
			if dir.Status != model.StatusNotChanged || len(dir.ChangedFiles) > 0 {
				return apperrors.IncrementalRunImpossible("library directory %s has changed", dir.Path)
			}
		}
	}
	return nil
}

type classChanges struct {
	write  []graph.NodeID
	delete []graph.NodeID
}

// calculateChanges compares the reachable program classes with the
// snapshot taken before the run. A class is written when it is new, when
// its bytes changed or when its snapshot differs. Classes that were
// reachable before and are not anymore are deleted.
func (r *run) calculateChanges(old map[string]graph.ClassSnapshot, modified []graph.NodeID) classChanges {
	touched := make(map[graph.NodeID]struct{}, len(modified))
	for _, id := range modified {
		touched[id] = struct{}{}
	}

	current := r.graph.Snapshot(graph.Shrink)
	var changes classChanges
	for _, class := range r.reachableProgramClasses() {
		name := r.graph.Name(class)
		before, existed := old[name]
		_, changed := touched[class]
		if !existed || changed || !before.Equal(current[name]) {
			changes.write = append(changes.write, class)
		}
	}

	var gone []string
	for name := range old {
		if _, ok := current[name]; !ok {
			gone = append(gone, name)
		}
	}
	sort.Strings(gone)
	for _, name := range gone {
		if id, ok := r.graph.Class(name); ok {
			changes.delete = append(changes.delete, id)
		}
	}
	r.logger.Debug("%d classes to write, %d to delete", len(changes.write), len(changes.delete))
	return changes
}
