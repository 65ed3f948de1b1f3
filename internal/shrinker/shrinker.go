// Package shrinker runs the stages of a shrinking run over a dependency
// graph: a full run builds the graph from scratch, an incremental run
// patches the graph persisted by the previous run. Each stage is a
// barrier on the executor shared by the run.
package shrinker

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/finisher"
	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/internal/ingest"
	"github.com/class-shrinker/internal/reach"
	"github.com/class-shrinker/internal/state"
	"github.com/class-shrinker/internal/storage"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/filter"
	"github.com/class-shrinker/pkg/parallel"
	"github.com/class-shrinker/pkg/telemetry"
	"github.com/class-shrinker/pkg/utils"
)

// Config holds the settings shared by full and incremental runs.
type Config struct {
	// Pool bounds the executor of every stage and the traversal.
	Pool parallel.PoolConfig

	// BytecodeVersion overrides the class file version of written classes.
	BytecodeVersion *classfile.Version

	// SDK drops references into platform packages during ingestion.
	SDK *filter.ClassFilter

	// HierarchyCacheSize bounds the memoised hierarchy walks of the finisher.
	HierarchyCacheSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pool:               parallel.DefaultPoolConfig(),
		SDK:                filter.NewClassFilter(),
		HierarchyCacheSize: 4096,
	}
}

// Option configures a shrinker.
type Option func(*base)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(b *base) {
		if cfg != nil {
			b.config = cfg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithStore sets where the graph is persisted after a run.
func WithStore(store state.Store) Option {
	return func(b *base) {
		b.store = store
	}
}

// Result describes a finished run.
type Result struct {
	// Graph is the graph after the run.
	Graph *graph.Graph

	// Incremental is set when the run patched the previous graph.
	Incremental bool

	// Written and Deleted list the output classes by name.
	Written []string
	Deleted []string

	// Reachable counts reachable classes per counter set.
	Reachable map[graph.CounterSet]int

	// Traces explain why the traced nodes were kept.
	Traces map[graph.NodeID]*reach.Trace

	// Diagnostics are the invalid references found during the run.
	Diagnostics []graph.Diagnostic

	// Timings lists the stage durations.
	Timings []utils.Phase
}

// base carries what both run kinds share.
type base struct {
	config *Config
	output storage.OutputProvider
	store  state.Store
	logger utils.Logger
}

func newBase(output storage.OutputProvider, opts []Option) base {
	b := base{
		config: DefaultConfig(),
		output: output,
		logger: &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// run is the state of one run.
type run struct {
	*base
	name        string
	fingerprint string
	graph       *graph.Graph
	executor    *parallel.Executor
	diag        *graph.Diagnostics
	timer       *utils.Timer
	result      *Result
}

func (b *base) newRun(ctx context.Context, name string, req Request) *run {
	return &run{
		base:        b,
		name:        name,
		fingerprint: b.fingerprint(req),
		executor:    parallel.NewExecutor(ctx, b.config.Pool),
		diag:        graph.NewDiagnostics(b.logger),
		timer:       utils.NewTimer(name, utils.WithLogger(b.logger)),
		result:      &Result{Reachable: make(map[graph.CounterSet]int)},
	}
}

// step is one stage of a run.
type step struct {
	name string
	fn   func(ctx context.Context) error
}

// runSteps runs steps in order. Each one finishes before the next starts.
func (r *run) runSteps(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if err := r.stage(ctx, st.name, st.fn); err != nil {
			return err
		}
	}
	return nil
}

// stage runs fn as one named stage inside a span.
func (r *run) stage(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "shrinker."+name, attribute.String("shrinker.run", r.name))
	defer func() { telemetry.EndSpan(span, err) }()

	phase := r.timer.Start(name)
	defer phase.Stop()

	if err := ctx.Err(); err != nil {
		return err
	}
	r.logger.Debug("%s: %s", r.name, name)
	return fn(ctx)
}

// finish fills the common result fields and reports diagnostics.
func (r *run) finish() *Result {
	r.diag.Report()
	r.timer.PrintSummary()
	r.result.Graph = r.graph
	r.result.Diagnostics = r.diag.Entries()
	r.result.Timings = r.timer.Phases()
	sort.Strings(r.result.Written)
	sort.Strings(r.result.Deleted)
	return r.result
}

func (r *run) newFinisher() (*finisher.Finisher, error) {
	return finisher.New(r.graph, r.executor, r.diag,
		finisher.WithLogger(r.logger),
		finisher.WithCacheSize(r.config.HierarchyCacheSize))
}

func (r *run) newIngester() *ingest.Ingester {
	opts := []ingest.Option{ingest.WithLogger(r.logger)}
	if r.config.SDK != nil {
		opts = append(opts, ingest.WithSDKFilter(r.config.SDK))
	}
	return ingest.New(r.graph, r.executor, opts...)
}

// traverse recomputes the counters of every counter set that has roots.
// Traces are recorded for Shrink only.
func (r *run) traverse(ctx context.Context, interest []graph.NodeID) error {
	engine := reach.NewEngine(r.graph, reach.WithPoolConfig(r.config.Pool), reach.WithLogger(r.logger))
	for _, cs := range graph.CounterSets {
		var tracer reach.Tracer = reach.NoOpTracer{}
		if cs == graph.Shrink && len(interest) > 0 {
			tracer = reach.NewRealTracer(interest)
		}
		stats, err := engine.Traverse(ctx, cs, tracer)
		if err != nil {
			return err
		}
		reachable := len(r.graph.ReachableClasses(cs))
		r.result.Reachable[cs] = reachable
		if cs == graph.Shrink {
			r.result.Traces = tracer.Traces()
		}
		r.logger.Debug("%s: %d levels, %d nodes reached, %d reachable classes", cs, stats.Levels, stats.Reached, reachable)
	}
	return nil
}

// persist saves the graph if a store is configured.
func (r *run) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	st := r.graph.Export()
	st.Fingerprint = r.fingerprint
	if err := r.store.Save(ctx, st); err != nil {
		return apperrors.Wrap(apperrors.CodeStateError, "failed to persist shrinker state", err)
	}
	return nil
}
