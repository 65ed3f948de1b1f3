package graph

import (
	"sort"

	apperrors "github.com/class-shrinker/pkg/errors"
)

// State is a plain data copy of a graph, used by the persistence layer.
// Node ids are positions in Nodes.
type State struct {
	Nodes    []NodeRecord
	Edges    []EdgeRecord
	Roots    []RootRecord
	Counters []CounterRecord

	// Fingerprint identifies the run configuration the graph was built
	// with. The graph itself never reads it.
	Fingerprint string
}

// NodeRecord holds the attributes of one node. Class-only fields are empty
// for members.
type NodeRecord struct {
	Kind           NodeKind
	Name           string
	Descriptor     string
	Owner          NodeID
	Declared       bool
	Access         uint16
	Annotations    []string
	Program        bool
	Superclass     string
	Interfaces     []string
	Source         Source
	SignatureTypes []string
	Members        []NodeID
}

// EdgeRecord is one dependency.
type EdgeRecord struct {
	From NodeID
	To   NodeID
	Type DependencyType
}

// RootRecord is one seeded root.
type RootRecord struct {
	Node NodeID
	Type DependencyType
	Set  CounterSet
}

// CounterRecord is a non-zero counter.
type CounterRecord struct {
	Node  NodeID
	Set   CounterSet
	Type  DependencyType
	Value uint32
}

// Export copies the graph into a State.
func (g *Graph) Export() *State {
	g.mu.RLock()
	nodes := g.nodes
	g.mu.RUnlock()

	st := &State{Nodes: make([]NodeRecord, len(nodes))}
	for i, n := range nodes {
		n.mu.Lock()
		st.Nodes[i] = NodeRecord{
			Kind:           n.kind,
			Name:           n.name,
			Descriptor:     n.desc,
			Owner:          n.owner,
			Declared:       n.declared,
			Access:         n.access,
			Annotations:    append([]string(nil), n.annotations...),
			Program:        n.program,
			Superclass:     n.superName,
			Interfaces:     append([]string(nil), n.interfaces...),
			Source:         n.source,
			SignatureTypes: append([]string(nil), n.sigTypes...),
			Members:        append([]NodeID(nil), n.members...),
		}
		for _, d := range n.deps {
			st.Edges = append(st.Edges, EdgeRecord{From: n.id, To: d.Target, Type: d.Type})
		}
		for cs := CounterSet(0); cs < numCounterSets; cs++ {
			for t, v := range n.counters[cs] {
				if v != 0 {
					st.Counters = append(st.Counters, CounterRecord{Node: n.id, Set: cs, Type: DependencyType(t), Value: v})
				}
			}
		}
		n.mu.Unlock()
	}

	g.rootsMu.Lock()
	for cs := CounterSet(0); cs < numCounterSets; cs++ {
		for id, mask := range g.roots[cs] {
			for t := DependencyType(0); t < numDependencyTypes; t++ {
				if mask&(1<<t) != 0 {
					st.Roots = append(st.Roots, RootRecord{Node: id, Type: t, Set: cs})
				}
			}
		}
	}
	g.rootsMu.Unlock()
	sort.Slice(st.Roots, func(i, j int) bool {
		a, b := st.Roots[i], st.Roots[j]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Type < b.Type
	})
	return st
}

// NewFromState rebuilds a graph from a State. Records that point outside
// the node table fail with STATE_ERROR.
func NewFromState(st *State) (*Graph, error) {
	g := New()
	valid := func(id NodeID) bool { return id >= 0 && int(id) < len(st.Nodes) }

	for i, r := range st.Nodes {
		if !valid(r.Owner) {
			return nil, apperrors.Newf(apperrors.CodeStateError, "node %d: owner %d out of range", i, r.Owner)
		}
		if r.Kind > KindField {
			return nil, apperrors.Newf(apperrors.CodeStateError, "node %d: unknown kind %d", i, r.Kind)
		}
		n := &node{
			id:          NodeID(i),
			kind:        r.Kind,
			name:        r.Name,
			desc:        r.Descriptor,
			owner:       r.Owner,
			declared:    r.Declared,
			access:      r.Access,
			annotations: r.Annotations,
			program:     r.Program,
			superName:   r.Superclass,
			interfaces:  r.Interfaces,
			source:      r.Source,
			sigTypes:    r.SignatureTypes,
			members:     r.Members,
		}
		g.nodes = append(g.nodes, n)
	}
	for _, n := range g.nodes {
		if n.kind == KindClass {
			n.key = ClassKey(n.name)
		} else {
			n.key = MemberKey(g.nodes[n.owner].name, n.name, n.desc)
		}
		if _, dup := g.index[n.key]; dup {
			return nil, apperrors.Newf(apperrors.CodeStateError, "duplicate node %s", n.key)
		}
		g.index[n.key] = n.id
		for _, m := range n.members {
			if !valid(m) {
				return nil, apperrors.Newf(apperrors.CodeStateError, "class %s: member %d out of range", n.name, m)
			}
		}
	}

	for _, e := range st.Edges {
		if !valid(e.From) || !valid(e.To) || !e.Type.Valid() {
			return nil, apperrors.Newf(apperrors.CodeStateError, "invalid edge %d -> %d (%d)", e.From, e.To, e.Type)
		}
		n := g.nodes[e.From]
		n.deps = append(n.deps, Dependency{Target: e.To, Type: e.Type})
	}
	for _, r := range st.Roots {
		if !valid(r.Node) || !r.Type.Valid() || !r.Set.Valid() {
			return nil, apperrors.Newf(apperrors.CodeStateError, "invalid root %d (%d)", r.Node, r.Type)
		}
		g.roots[r.Set][r.Node] |= 1 << r.Type
	}
	for _, c := range st.Counters {
		if !valid(c.Node) || !c.Type.Valid() || !c.Set.Valid() {
			return nil, apperrors.Newf(apperrors.CodeStateError, "invalid counter on node %d", c.Node)
		}
		g.nodes[c.Node].counters[c.Set][c.Type] = c.Value
	}
	return g, nil
}

// ClassSnapshot is what the output of one class depends on, beyond its
// bytes: the reachable members, the interfaces it keeps and the reachable
// classes its generic signatures mention.
type ClassSnapshot struct {
	Members        []string
	Interfaces     []string
	SignatureTypes []string
}

// Equal reports whether two snapshots would produce the same output.
func (s ClassSnapshot) Equal(o ClassSnapshot) bool {
	return equalStrings(s.Members, o.Members) &&
		equalStrings(s.Interfaces, o.Interfaces) &&
		equalStrings(s.SignatureTypes, o.SignatureTypes)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KeepsInterface reports whether the output of a reachable class keeps
// the named interface: library interfaces always stay, program ones only
// when reachable.
func (g *Graph) KeepsInterface(name string, cs CounterSet) bool {
	id, ok := g.Class(name)
	if !ok || !g.IsClassKnown(id) {
		return false
	}
	return !g.IsProgram(id) || g.IsReachable(id, cs)
}

// KeepsClass reports whether a class name survives in output under cs.
// Unknown and library classes are never removed.
func (g *Graph) KeepsClass(name string, cs CounterSet) bool {
	id, ok := g.Class(name)
	if !ok || !g.IsProgram(id) {
		return true
	}
	return g.IsReachable(id, cs)
}

// Snapshot captures the ClassSnapshot of every reachable program class.
func (g *Graph) Snapshot(cs CounterSet) map[string]ClassSnapshot {
	out := make(map[string]ClassSnapshot)
	for _, class := range g.ReachableClasses(cs) {
		if !g.IsProgram(class) {
			continue
		}
		s := ClassSnapshot{Members: g.ReachableMemberLocalNames(class, cs)}
		for _, iface := range g.InterfaceNames(class) {
			if g.KeepsInterface(iface, cs) {
				s.Interfaces = append(s.Interfaces, iface)
			}
		}
		for _, t := range g.SignatureTypes(class) {
			if id, ok := g.Class(t); ok && g.IsProgram(id) && g.IsReachable(id, cs) {
				s.SignatureTypes = append(s.SignatureTypes, t)
			}
		}
		sort.Strings(s.Interfaces)
		sort.Strings(s.SignatureTypes)
		out[g.Name(class)] = s
	}
	return out
}
