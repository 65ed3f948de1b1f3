package graph

import (
	"sort"
	"sync"

	apperrors "github.com/class-shrinker/pkg/errors"
)

// node is the tagged union stored in the arena. Class-only fields are
// unused on members. Everything below mu is guarded by it.
type node struct {
	id    NodeID
	kind  NodeKind
	key   string
	name  string
	desc  string
	owner NodeID

	mu          sync.Mutex
	deps        []Dependency
	counters    [numCounterSets]Counters
	declared    bool
	access      uint16
	annotations []string

	program    bool
	superName  string
	interfaces []string
	source     Source
	members    []NodeID
	sigTypes   []string
}

// Graph is the arena of nodes. Node creation is serialized by mu; each
// node guards its own edges and counters, so edges from different nodes
// can be added concurrently.
type Graph struct {
	// mu guards nodes and index.
	mu    sync.RWMutex
	nodes []*node
	index map[string]NodeID

	rootsMu sync.Mutex
	// roots holds a bit mask of dependency types per node and counter set.
	roots [numCounterSets]map[NodeID]uint16
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{index: make(map[string]NodeID)}
	for i := range g.roots {
		g.roots[i] = make(map[NodeID]uint16)
	}
	return g
}

func (g *Graph) node(id NodeID) *node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id < 0 || int(id) >= len(g.nodes) {
		panic("graph: invalid node id")
	}
	return g.nodes[id]
}

func (g *Graph) lookup(key string) (NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.index[key]
	return id, ok
}

func (g *Graph) getOrCreate(key string, create func(id NodeID) *node) NodeID {
	if id, ok := g.lookup(key); ok {
		return id
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.index[key]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, create(id))
	g.index[key] = id
	return id
}

// NodeCount returns the number of nodes in the arena.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ClassReference returns the node for a class name, creating an
// undeclared placeholder when the class has not been seen.
func (g *Graph) ClassReference(name string) NodeID {
	return g.getOrCreate(ClassKey(name), func(id NodeID) *node {
		return &node{id: id, kind: KindClass, key: ClassKey(name), name: name, owner: id}
	})
}

// MemberReference returns the node for a field or method, creating an
// undeclared placeholder when needed. The kind follows the descriptor.
func (g *Graph) MemberReference(class, name, desc string) NodeID {
	owner := g.ClassReference(class)
	key := MemberKey(class, name, desc)
	return g.getOrCreate(key, func(id NodeID) *node {
		kind := KindField
		if IsMethodDescriptor(desc) {
			kind = KindMethod
		}
		return &node{id: id, kind: kind, key: key, name: name, desc: desc, owner: owner}
	})
}

// Class returns the node of a class if it exists.
func (g *Graph) Class(name string) (NodeID, bool) {
	return g.lookup(ClassKey(name))
}

// Member returns the node of a member if it exists.
func (g *Graph) Member(class, name, desc string) (NodeID, bool) {
	return g.lookup(MemberKey(class, name, desc))
}

// DeclareClass records a class declaration. A program class replaces an
// earlier library declaration; a later library declaration never replaces
// a program one. Between two library declarations the one with the smaller
// source wins so the result does not depend on ingestion order. Declaring
// the same program class twice is an error. accepted reports whether
// info is now the class's declaration, in which case its members must be
// declared next.
func (g *Graph) DeclareClass(info ClassInfo) (id NodeID, accepted bool, err error) {
	id = g.ClassReference(info.Name)
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.declared {
		switch {
		case n.program && info.Program:
			return id, false, apperrors.Newf(apperrors.CodeInvalidInput,
				"duplicate program class %s in %s and %s", info.Name, n.source, info.Source)
		case n.program:
			return id, false, nil
		case !info.Program && n.source.String() <= info.Source.String():
			return id, false, nil
		}
	}

	n.declared = true
	n.program = info.Program
	n.access = info.Access
	n.superName = info.Superclass
	n.interfaces = append([]string(nil), info.Interfaces...)
	n.source = info.Source
	n.annotations = append([]string(nil), info.Annotations...)
	n.sigTypes = append([]string(nil), info.SignatureTypes...)
	for _, m := range n.members {
		mn := g.node(m)
		mn.mu.Lock()
		mn.declared = false
		mn.mu.Unlock()
	}
	n.members = nil
	return id, true, nil
}

// DeclareMember records a member of a declared class.
func (g *Graph) DeclareMember(owner NodeID, info MemberInfo) NodeID {
	o := g.node(owner)
	id := g.MemberReference(o.name, info.Name, info.Descriptor)
	m := g.node(id)

	m.mu.Lock()
	m.declared = true
	m.access = info.Access
	m.annotations = append([]string(nil), info.Annotations...)
	m.mu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.members {
		if existing == id {
			return id
		}
	}
	o.members = append(o.members, id)
	return id
}

// SetSignatureTypes replaces the generic signature types of a class. Used
// when a changed class keeps its structure but edits its signatures.
func (g *Graph) SetSignatureTypes(class NodeID, types []string) {
	n := g.node(class)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sigTypes = append([]string(nil), types...)
}

// Kind returns the node variant.
func (g *Graph) Kind(id NodeID) NodeKind {
	return g.node(id).kind
}

// Name returns the class internal name or the member name.
func (g *Graph) Name(id NodeID) string {
	return g.node(id).name
}

// Descriptor returns a member's descriptor, empty for classes.
func (g *Graph) Descriptor(id NodeID) string {
	return g.node(id).desc
}

// Owner returns a member's class; a class is its own owner.
func (g *Graph) Owner(id NodeID) NodeID {
	return g.node(id).owner
}

// ClassName returns the name of the node's class.
func (g *Graph) ClassName(id NodeID) string {
	return g.node(g.node(id).owner).name
}

// FullName returns a stable display name: "a/B" or "a/B.m:()V".
func (g *Graph) FullName(id NodeID) string {
	return g.node(id).key
}

// LocalName returns "name:desc" for members and the name for classes.
func (g *Graph) LocalName(id NodeID) string {
	n := g.node(id)
	if n.kind == KindClass {
		return n.name
	}
	return n.name + ":" + n.desc
}

// IsDeclared reports whether the node was declared by some input.
// A member also requires its class to be declared.
func (g *Graph) IsDeclared(id NodeID) bool {
	n := g.node(id)
	n.mu.Lock()
	declared := n.declared
	n.mu.Unlock()
	if !declared || n.kind == KindClass {
		return declared
	}
	return g.IsClassKnown(n.owner)
}

// IsClassKnown reports whether the node's class was declared.
func (g *Graph) IsClassKnown(id NodeID) bool {
	c := g.node(g.node(id).owner)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declared
}

// IsProgram reports whether the node's class is declared program code.
func (g *Graph) IsProgram(id NodeID) bool {
	c := g.node(g.node(id).owner)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declared && c.program
}

// IsLibrary reports whether the node's class is declared library code.
func (g *Graph) IsLibrary(id NodeID) bool {
	c := g.node(g.node(id).owner)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declared && !c.program
}

// Access returns the declared access flags.
func (g *Graph) Access(id NodeID) uint16 {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.access
}

// Annotations returns the declared annotation types.
func (g *Graph) Annotations(id NodeID) []string {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.annotations...)
}

// Source returns where a class was read from.
func (g *Graph) Source(class NodeID) Source {
	n := g.node(g.node(class).owner)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.source
}

// SignatureTypes returns the classes named by the class's generic signatures.
func (g *Graph) SignatureTypes(class NodeID) []string {
	n := g.node(class)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sigTypes...)
}

// SuperclassName returns the declared superclass name, empty for roots of
// the hierarchy.
func (g *Graph) SuperclassName(class NodeID) string {
	n := g.node(class)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.superName
}

// InterfaceNames returns the declared direct interface names.
func (g *Graph) InterfaceNames(class NodeID) []string {
	n := g.node(class)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.interfaces...)
}

// Superclass returns the superclass node, or InvalidNode for a class
// without one. It fails with CLASS_LOOKUP_ERROR if the class or its
// superclass is unknown.
func (g *Graph) Superclass(class NodeID) (NodeID, error) {
	if !g.IsClassKnown(class) {
		return InvalidNode, classLookupError(g.Name(class))
	}
	name := g.SuperclassName(class)
	if name == "" {
		return InvalidNode, nil
	}
	id, ok := g.Class(name)
	if !ok || !g.IsClassKnown(id) {
		return InvalidNode, classLookupError(name)
	}
	return id, nil
}

// Interfaces returns the known direct interfaces. Unknown interfaces are
// skipped and reported through the CLASS_LOOKUP_ERROR of the first one.
func (g *Graph) Interfaces(class NodeID) ([]NodeID, error) {
	if !g.IsClassKnown(class) {
		return nil, classLookupError(g.Name(class))
	}
	var out []NodeID
	var firstErr error
	for _, name := range g.InterfaceNames(class) {
		id, ok := g.Class(name)
		if !ok || !g.IsClassKnown(id) {
			if firstErr == nil {
				firstErr = classLookupError(name)
			}
			continue
		}
		out = append(out, id)
	}
	return out, firstErr
}

// ClassLookupError is the CLASS_LOOKUP_ERROR for a missing class.
type ClassLookupError struct {
	*apperrors.AppError
	ClassName string
}

func classLookupError(name string) error {
	return &ClassLookupError{
		AppError:  apperrors.Newf(apperrors.CodeClassLookup, "invalid class reference: %s", name),
		ClassName: name,
	}
}

// Members returns the declared members of a class in declaration order.
func (g *Graph) Members(class NodeID) []NodeID {
	n := g.node(class)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NodeID(nil), n.members...)
}

// Methods returns the declared methods of a class.
func (g *Graph) Methods(class NodeID) []NodeID {
	return g.membersOfKind(class, KindMethod)
}

// Fields returns the declared fields of a class.
func (g *Graph) Fields(class NodeID) []NodeID {
	return g.membersOfKind(class, KindField)
}

func (g *Graph) membersOfKind(class NodeID, kind NodeKind) []NodeID {
	var out []NodeID
	for _, m := range g.Members(class) {
		if g.Kind(m) == kind {
			out = append(out, m)
		}
	}
	return out
}

// FindMatchingMethod returns the member of class with the same name and
// descriptor as member, if class declares one.
func (g *Graph) FindMatchingMethod(class, member NodeID) (NodeID, bool) {
	m := g.node(member)
	id, ok := g.Member(g.Name(class), m.name, m.desc)
	if !ok || !g.IsDeclared(id) {
		return InvalidNode, false
	}
	return id, true
}

// AddDependency adds an edge; an identical edge is coalesced.
func (g *Graph) AddDependency(from, to NodeID, t DependencyType) {
	g.node(to) // validates the handle
	n := g.node(from)
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, d := range n.deps {
		if d.Target == to && d.Type == t {
			return
		}
	}
	n.deps = append(n.deps, Dependency{Target: to, Type: t})
}

// Dependencies returns a copy of the node's outgoing edges.
func (g *Graph) Dependencies(id NodeID) []Dependency {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Dependency(nil), n.deps...)
}

// RemoveDependencies drops the node's outgoing edges of the given types.
func (g *Graph) RemoveDependencies(id NodeID, types ...DependencyType) {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.deps[:0]
	for _, d := range n.deps {
		drop := false
		for _, t := range types {
			if d.Type == t {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, d)
		}
	}
	n.deps = kept
}

// IncrementAndCheck bumps the counter of type t and reports whether this
// increment made the node reachable under cs.
func (g *Graph) IncrementAndCheck(id NodeID, t DependencyType, cs CounterSet) bool {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	c := &n.counters[cs]
	before := c.Reachable()
	c[t]++
	return !before && c.Reachable()
}

// IsReachable reports whether the node is reachable under cs.
func (g *Graph) IsReachable(id NodeID, cs CounterSet) bool {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counters[cs].Reachable()
}

// CountersOf returns a copy of the node's counters for cs.
func (g *Graph) CountersOf(id NodeID, cs CounterSet) Counters {
	n := g.node(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counters[cs]
}

// ClearCounters resets every counter of every counter set.
func (g *Graph) ClearCounters() {
	g.mu.RLock()
	nodes := g.nodes
	g.mu.RUnlock()
	for _, n := range nodes {
		n.mu.Lock()
		n.counters = [numCounterSets]Counters{}
		n.mu.Unlock()
	}
}

// AddRoot seeds a node into cs.
func (g *Graph) AddRoot(id NodeID, t DependencyType, cs CounterSet) {
	g.node(id)
	g.rootsMu.Lock()
	defer g.rootsMu.Unlock()
	g.roots[cs][id] |= 1 << t
}

// AddRoots seeds every entry of roots into cs.
func (g *Graph) AddRoots(roots map[NodeID]DependencyType, cs CounterSet) {
	for id, t := range roots {
		g.AddRoot(id, t, cs)
	}
}

// Roots returns the roots of cs ordered by node name, then type.
func (g *Graph) Roots(cs CounterSet) []Root {
	g.rootsMu.Lock()
	var out []Root
	for id, mask := range g.roots[cs] {
		for t := DependencyType(0); t < numDependencyTypes; t++ {
			if mask&(1<<t) != 0 {
				out = append(out, Root{Node: id, Type: t})
			}
		}
	}
	g.rootsMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := g.FullName(out[i].Node), g.FullName(out[j].Node)
		if ki != kj {
			return ki < kj
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// ClearRoots removes every root of every counter set.
func (g *Graph) ClearRoots() {
	g.rootsMu.Lock()
	defer g.rootsMu.Unlock()
	for i := range g.roots {
		g.roots[i] = make(map[NodeID]uint16)
	}
}

// Classes returns every declared class ordered by name.
func (g *Graph) Classes() []NodeID {
	return g.collectClasses(func(n *node) bool { return n.declared })
}

// ProgramClasses returns the declared program classes ordered by name.
func (g *Graph) ProgramClasses() []NodeID {
	return g.collectClasses(func(n *node) bool { return n.declared && n.program })
}

// ReachableClasses returns the declared classes reachable under cs,
// ordered by name.
func (g *Graph) ReachableClasses(cs CounterSet) []NodeID {
	return g.collectClasses(func(n *node) bool { return n.declared && n.counters[cs].Reachable() })
}

func (g *Graph) collectClasses(pred func(n *node) bool) []NodeID {
	g.mu.RLock()
	nodes := g.nodes
	g.mu.RUnlock()

	var out []NodeID
	for _, n := range nodes {
		if n.kind != KindClass {
			continue
		}
		n.mu.Lock()
		ok := pred(n)
		n.mu.Unlock()
		if ok {
			out = append(out, n.id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return nodes[out[i]].name < nodes[out[j]].name })
	return out
}

// ReachableMembers returns the declared members of class reachable under cs.
func (g *Graph) ReachableMembers(class NodeID, cs CounterSet) []NodeID {
	var out []NodeID
	for _, m := range g.Members(class) {
		if g.IsReachable(m, cs) {
			out = append(out, m)
		}
	}
	return out
}

// ReachableMemberLocalNames returns "name:desc" of every reachable member,
// sorted.
func (g *Graph) ReachableMemberLocalNames(class NodeID, cs CounterSet) []string {
	var out []string
	for _, m := range g.ReachableMembers(class, cs) {
		out = append(out, g.LocalName(m))
	}
	sort.Strings(out)
	return out
}

// CheckDependencies drops edges that point into classes no input declared
// and reports them. Reflection edges are dropped silently since they come
// from a heuristic over arbitrary strings.
func (g *Graph) CheckDependencies(diag *Diagnostics) {
	g.mu.RLock()
	nodes := g.nodes
	g.mu.RUnlock()

	for _, n := range nodes {
		for _, d := range g.Dependencies(n.id) {
			if g.IsClassKnown(d.Target) {
				continue
			}
			if d.Type != RequiredCodeReferenceReflection {
				diag.InvalidClassReference(n.key, g.ClassName(d.Target))
			}
			g.removeDependency(n.id, d)
		}
	}
}

func (g *Graph) removeDependency(from NodeID, dep Dependency) {
	n := g.node(from)
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, d := range n.deps {
		if d == dep {
			n.deps = append(n.deps[:i], n.deps[i+1:]...)
			return
		}
	}
}
