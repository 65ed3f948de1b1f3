// Package reach propagates reachability from the roots of a counter set
// through the dependency graph.
package reach

import (
	"context"
	"sort"

	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/pkg/parallel"
	"github.com/class-shrinker/pkg/utils"
)

// item is a pending counter increment.
type item struct {
	node  graph.NodeID
	typ   graph.DependencyType
	trace *Trace
}

// Engine runs the traversal on a bounded pool.
type Engine struct {
	graph  *graph.Graph
	config parallel.PoolConfig
	logger utils.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPoolConfig sets the worker pool used for each level.
func WithPoolConfig(cfg parallel.PoolConfig) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over g.
func NewEngine(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:  g,
		config: parallel.DefaultPoolConfig(),
		logger: &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats describes one traversal.
type Stats struct {
	Levels     int
	Increments int
	Reached    int
}

// Traverse increments counters from the roots of cs until nothing new
// becomes reachable. The frontier is processed level by level. Within a
// level the increments are grouped by target node, groups run in
// parallel, and each group applies its increments in frontier order, so
// counters and recorded traces do not depend on scheduling.
func (e *Engine) Traverse(ctx context.Context, cs graph.CounterSet, tracer Tracer) (Stats, error) {
	if tracer == nil {
		tracer = NoOpTracer{}
	}

	var frontier []item
	for _, r := range e.graph.Roots(cs) {
		frontier = append(frontier, item{node: r.Node, typ: r.Type, trace: StartTrace()})
	}

	var stats Stats
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Levels++
		stats.Increments += len(frontier)

		groups := groupByNode(frontier)
		outputs, err := parallel.Map(ctx, groups, e.config, func(ctx context.Context, group []item) (expansion, error) {
			return e.expand(group, cs, tracer), nil
		})
		if err != nil {
			return stats, err
		}

		frontier = frontier[:0:0]
		for _, out := range outputs {
			if out.reached {
				stats.Reached++
			}
			frontier = append(frontier, out.next...)
		}
		e.logger.Debug("%s level %d: %d increments, %d next", cs, stats.Levels, stats.Increments, len(frontier))
	}
	return stats, nil
}

type expansion struct {
	reached bool
	next    []item
}

// expand applies the increments of one node. Only the increment that makes
// the node reachable expands its dependencies.
func (e *Engine) expand(group []item, cs graph.CounterSet, tracer Tracer) expansion {
	var out expansion
	for _, it := range group {
		if !e.graph.IncrementAndCheck(it.node, it.typ, cs) {
			continue
		}
		out.reached = true
		trace := it.trace.With(it.node, it.typ)
		tracer.NodeReached(it.node, trace)
		for _, dep := range e.sortedDependencies(it.node) {
			out.next = append(out.next, item{node: dep.Target, typ: dep.Type, trace: trace})
		}
	}
	return out
}

func (e *Engine) sortedDependencies(node graph.NodeID) []graph.Dependency {
	deps := e.graph.Dependencies(node)
	sort.SliceStable(deps, func(i, j int) bool {
		ni, nj := e.graph.FullName(deps[i].Target), e.graph.FullName(deps[j].Target)
		if ni != nj {
			return ni < nj
		}
		return deps[i].Type < deps[j].Type
	})
	return deps
}

// groupByNode splits the frontier by target node, keeping the order in
// which nodes first appear and the order of items within a node.
func groupByNode(frontier []item) [][]item {
	index := make(map[graph.NodeID]int)
	var groups [][]item
	for _, it := range frontier {
		i, ok := index[it.node]
		if !ok {
			i = len(groups)
			index[it.node] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], it)
	}
	return groups
}
