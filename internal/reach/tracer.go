package reach

import (
	"sync"

	"github.com/class-shrinker/internal/graph"
)

// Tracer observes nodes becoming reachable. It must not influence the
// traversal.
type Tracer interface {
	NodeReached(node graph.NodeID, trace *Trace)
	Traces() map[graph.NodeID]*Trace
}

// NoOpTracer records nothing.
type NoOpTracer struct{}

// NodeReached does nothing.
func (NoOpTracer) NodeReached(graph.NodeID, *Trace) {}

// Traces returns nil.
func (NoOpTracer) Traces() map[graph.NodeID]*Trace { return nil }

// RealTracer keeps the trace by which each node of interest first became
// reachable.
type RealTracer struct {
	interest map[graph.NodeID]struct{}

	mu     sync.Mutex
	traces map[graph.NodeID]*Trace
}

// NewRealTracer creates a tracer for the given nodes.
func NewRealTracer(nodes []graph.NodeID) *RealTracer {
	t := &RealTracer{
		interest: make(map[graph.NodeID]struct{}, len(nodes)),
		traces:   make(map[graph.NodeID]*Trace),
	}
	for _, n := range nodes {
		t.interest[n] = struct{}{}
	}
	return t
}

// NodeReached records trace if node is of interest and has no trace yet.
func (t *RealTracer) NodeReached(node graph.NodeID, trace *Trace) {
	if _, ok := t.interest[node]; !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.traces[node]; !seen {
		t.traces[node] = trace
	}
}

// Traces returns a copy of the recorded traces.
func (t *RealTracer) Traces() map[graph.NodeID]*Trace {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[graph.NodeID]*Trace, len(t.traces))
	for k, v := range t.traces {
		out[k] = v
	}
	return out
}
