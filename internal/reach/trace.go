package reach

import (
	"strings"

	"github.com/class-shrinker/internal/graph"
)

// Trace is an immutable path from a root to a node, stored newest first.
// The zero-length trace is a sentinel with no node.
type Trace struct {
	node graph.NodeID
	typ  graph.DependencyType
	rest *Trace
}

var sentinel = &Trace{node: graph.InvalidNode}

// StartTrace returns the empty trace every root starts from.
func StartTrace() *Trace {
	return sentinel
}

// With returns a trace extended by one step. The receiver is unchanged.
func (t *Trace) With(node graph.NodeID, typ graph.DependencyType) *Trace {
	return &Trace{node: node, typ: typ, rest: t}
}

// Node returns the last node of the trace, or InvalidNode for the sentinel.
func (t *Trace) Node() graph.NodeID {
	if t == nil {
		return graph.InvalidNode
	}
	return t.node
}

// Step is one hop of a trace: the node reached and the edge type used.
type Step struct {
	Node graph.NodeID
	Type graph.DependencyType
}

// Steps returns the path from the reached node back to its root.
func (t *Trace) Steps() []Step {
	var out []Step
	for cur := t; cur != nil && cur.node != graph.InvalidNode; cur = cur.rest {
		out = append(out, Step{Node: cur.node, Type: cur.typ})
	}
	return out
}

// Format renders the trace with one "name (TYPE)" line per step, the
// reached node first.
func (t *Trace) Format(g *graph.Graph) string {
	var sb strings.Builder
	for i, s := range t.Steps() {
		if i > 0 {
			sb.WriteString("\n  <- ")
		}
		sb.WriteString(g.FullName(s.Node))
		sb.WriteString(" (")
		sb.WriteString(s.Type.String())
		sb.WriteString(")")
	}
	return sb.String()
}
