package shrinker

import (
	"context"
	"sort"
	"sync"

	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/internal/ingest"
	"github.com/class-shrinker/internal/keeprules"
	"github.com/class-shrinker/internal/storage"
)

// Request describes the inputs of a run.
type Request struct {
	// Inputs are the program and library classes.
	Inputs ingest.Inputs

	// Rules seed the roots of each counter set. The why-are-you-keeping
	// specifications of the Shrink rules select the traced nodes.
	Rules map[graph.CounterSet]*keeprules.RuleSet

	// SaveState persists the graph for the next incremental run.
	SaveState bool
}

// FullRunShrinker builds the graph from scratch.
type FullRunShrinker struct {
	base
}

// NewFullRunShrinker creates a full run shrinker writing to output.
func NewFullRunShrinker(output storage.OutputProvider, opts ...Option) *FullRunShrinker {
	return &FullRunShrinker{base: newBase(output, opts)}
}

// Run clears the output, reads every input, computes reachability and
// writes every reachable program class.
func (s *FullRunShrinker) Run(ctx context.Context, req Request) (*Result, error) {
	r := s.newRun(ctx, "full run", req)
	r.graph = graph.New()
	in := r.newIngester()
	var interest []graph.NodeID

	steps := []step{
		{"delete output", r.output.DeleteAll},
		{"ingest", func(ctx context.Context) error {
			stats, err := in.Ingest(ctx, req.Inputs)
			r.logger.Info("read %d program and %d library classes", stats.ProgramClasses, stats.LibraryClasses)
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
		{"seed roots", func(ctx context.Context) error {
			var err error
			interest, err = r.seedRoots(req.Rules)
			return err
		}},
		{"traverse", func(ctx context.Context) error {
			return r.traverse(ctx, interest)
		}},
		{"write output", func(ctx context.Context) error {
			return r.writeClasses(ctx, r.reachableProgramClasses(), req.Inputs.Program)
		}},
	}
	if req.SaveState {
		steps = append(steps, step{"persist state", r.persist})
	}

	if err := r.runSteps(ctx, steps); err != nil {
		return nil, err
	}
	res := r.finish()
	r.logger.Info("full run kept %d classes, wrote %d", res.Reachable[graph.Shrink], len(res.Written))
	return res, nil
}

// seedRoots evaluates the rules of every counter set against every program
// class and returns the nodes selected for tracing, sorted.
func (r *run) seedRoots(rules map[graph.CounterSet]*keeprules.RuleSet) ([]graph.NodeID, error) {
	classes := r.graph.ProgramClasses()
	var (
		mu       sync.Mutex
		interest = make(map[graph.NodeID]struct{})
	)

	for _, cs := range graph.CounterSets {
		set := rules[cs]
		if set == nil {
			continue
		}
		cs := cs
		keep := set.KeepRules(r.diag)
		var targets *keeprules.KeepRules
		if cs == graph.Shrink {
			targets = set.TraceTargets(r.diag)
		}

		for _, class := range classes {
			class := class
			r.executor.Go(func(context.Context) error {
				r.graph.AddRoots(keep.SymbolsToKeep(class, r.graph), cs)
				if targets == nil {
					return nil
				}
				traced := targets.SymbolsToKeep(class, r.graph)
				mu.Lock()
				for id := range traced {
					interest[id] = struct{}{}
				}
				mu.Unlock()
				return nil
			})
		}
		if err := r.executor.Wait(); err != nil {
			return nil, err
		}
		r.logger.Debug("%s: %d roots", cs, len(r.graph.Roots(cs)))
	}

	out := make([]graph.NodeID, 0, len(interest))
	for id := range interest {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *run) reachableProgramClasses() []graph.NodeID {
	var out []graph.NodeID
	for _, class := range r.graph.ReachableClasses(graph.Shrink) {
		if r.graph.IsProgram(class) {
			out = append(out, class)
		}
	}
	return out
}
