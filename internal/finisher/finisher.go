// Package finisher closes the graph after ingestion: it adds the edges that
// depend on the whole type hierarchy being known.
package finisher

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/internal/ingest"
	"github.com/class-shrinker/pkg/parallel"
	"github.com/class-shrinker/pkg/utils"
)

const defaultCacheSize = 4096

type hierarchyKey struct {
	class graph.NodeID
	mode  graph.Hierarchy
}

// Finisher runs the closure passes. Hierarchy walks are memoised for the
// lifetime of the Finisher, which must not outlive the run that created it.
type Finisher struct {
	graph    *graph.Graph
	executor *parallel.Executor
	diag     *graph.Diagnostics
	logger   utils.Logger
	cache    *lru.Cache[hierarchyKey, []graph.NodeID]
}

// Option configures a Finisher.
type Option func(*finisherOptions)

type finisherOptions struct {
	logger    utils.Logger
	cacheSize int
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(o *finisherOptions) {
		o.logger = logger
	}
}

// WithCacheSize bounds the number of memoised hierarchy walks.
func WithCacheSize(n int) Option {
	return func(o *finisherOptions) {
		o.cacheSize = n
	}
}

// New creates a Finisher. Invalid references are reported to diag.
func New(g *graph.Graph, executor *parallel.Executor, diag *graph.Diagnostics, opts ...Option) (*Finisher, error) {
	o := finisherOptions{logger: &utils.NullLogger{}, cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := lru.New[hierarchyKey, []graph.NodeID](o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Finisher{
		graph:    g,
		executor: executor,
		diag:     diag,
		logger:   o.logger,
		cache:    cache,
	}, nil
}

// Finish runs the four passes over data as one stage and waits for them.
// The passes touch disjoint edges, so their tasks interleave freely.
func (f *Finisher) Finish(ctx context.Context, data *ingest.PostProcessingData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	virtual := data.VirtualMethods()
	multiple := data.MultipleInheritance()
	ifaces := data.InterfaceInheritance()
	refs := data.UnresolvedReferences()
	f.logger.Debug("finishing graph: %d virtual methods, %d multiple inheritance, %d interface inheritance, %d references",
		len(virtual), len(multiple), len(ifaces), len(refs))

	for _, m := range virtual {
		m := m
		f.executor.Go(func(context.Context) error {
			f.HandleOverrides(m)
			return nil
		})
	}
	for _, c := range multiple {
		c := c
		f.executor.Go(func(context.Context) error {
			f.HandleMultipleInheritance(c)
			return nil
		})
	}
	for _, c := range ifaces {
		c := c
		f.executor.Go(func(context.Context) error {
			f.HandleInterfaceInheritance(c)
			return nil
		})
	}
	for _, r := range refs {
		r := r
		f.executor.Go(func(context.Context) error {
			f.ResolveReference(r)
			return nil
		})
	}
	return f.executor.Wait()
}

// traverse is graph.Traverse behind the cache. Callers must not modify the
// returned slice.
func (f *Finisher) traverse(class graph.NodeID, mode graph.Hierarchy) []graph.NodeID {
	key := hierarchyKey{class: class, mode: mode}
	if nodes, ok := f.cache.Get(key); ok {
		return nodes
	}
	nodes := f.graph.Traverse(class, mode, f.diag)
	f.cache.Add(key, nodes)
	return nodes
}

func isObjectMethod(name, desc string) bool {
	return (name == "hashCode" && desc == "()I") ||
		(name == "equals" && desc == "(Ljava/lang/Object;)Z") ||
		(name == "toString" && desc == "()Ljava/lang/String;")
}

// HandleOverrides links a virtual method to the supertype methods it
// overrides. Overriding a library method makes it part of the class
// structure. Overriding a program method keeps it only while both its class
// and the overridden method are kept.
func (f *Finisher) HandleOverrides(method graph.NodeID) {
	g := f.graph
	owner := g.Owner(method)

	if isObjectMethod(g.Name(method), g.Descriptor(method)) {
		g.AddDependency(owner, method, graph.RequiredClassStructure)
		return
	}

	for _, class := range f.traverse(owner, graph.SuperclassesAndInterfaces)[1:] {
		if g.Name(class) == classfile.ObjectClass {
			continue
		}
		super, ok := g.FindMatchingMethod(class, method)
		if !ok || super == method {
			continue
		}
		if !g.IsProgram(super) {
			g.AddDependency(owner, method, graph.RequiredClassStructure)
			return
		}
		g.AddDependency(owner, method, graph.ClassIsKept)
		g.AddDependency(super, method, graph.IfClassKept)
	}
}

// HandleMultipleInheritance adds fake members for interface methods that a
// class inherits from a program superclass instead of declaring them. The
// fake member depends on the inherited implementation, so an interface call
// keeps the implementation alive.
func (f *Finisher) HandleMultipleInheritance(class graph.NodeID) {
	g := f.graph

	super, err := g.Superclass(class)
	if err != nil {
		f.reportLookup(g.Name(class), err)
		return
	}
	if super == graph.InvalidNode || !g.IsProgram(super) {
		// Library superclasses keep all their methods.
		return
	}

	declared := make(map[string]struct{})
	for _, m := range g.Methods(class) {
		declared[g.LocalName(m)] = struct{}{}
	}

	for _, iface := range f.traverse(class, graph.InterfacesOf)[1:] {
		for _, method := range g.Methods(iface) {
			if g.Access(method)&classfile.AccStatic != 0 || graph.IsFakeMember(g.Name(method)) {
				continue
			}
			if _, ok := declared[g.LocalName(method)]; ok {
				continue
			}
			f.forwardInherited(class, method)
		}
	}
}

func (f *Finisher) forwardInherited(class, method graph.NodeID) {
	g := f.graph
	for _, current := range f.traverse(class, graph.Superclasses)[1:] {
		if !g.IsProgram(current) {
			return
		}
		impl, ok := g.FindMatchingMethod(current, method)
		if !ok {
			continue
		}

		fake := g.DeclareMember(class, graph.MemberInfo{
			Name:       g.Name(method) + graph.FakeMemberSuffix,
			Descriptor: g.Descriptor(method),
			Access:     g.Access(method),
		})
		g.AddDependency(fake, impl, graph.RequiredClassStructure)

		if !g.IsProgram(method) {
			g.AddDependency(class, fake, graph.RequiredClassStructure)
		} else {
			g.AddDependency(class, fake, graph.ClassIsKept)
			g.AddDependency(method, fake, graph.IfClassKept)
		}
		return
	}
}

// HandleInterfaceInheritance links a class to the program interfaces it
// implements, and an interface to its program superinterfaces. A library
// superinterface is always kept, so the interface extending it becomes a
// root of the shrink counter set.
func (f *Finisher) HandleInterfaceInheritance(class graph.NodeID) {
	g := f.graph

	if g.Access(class)&classfile.AccInterface != 0 {
		for _, super := range g.DirectSupertypes(class, graph.InterfacesOf, f.diag) {
			if g.IsProgram(super) {
				g.AddDependency(super, class, graph.SuperinterfaceKept)
			} else {
				g.AddRoot(class, graph.SuperinterfaceKept, graph.Shrink)
			}
		}
	}

	for _, iface := range f.traverse(class, graph.InterfacesOf)[1:] {
		if g.IsProgram(iface) {
			g.AddDependency(class, iface, graph.InterfaceImplemented)
		}
	}
}

// ResolveReference finds the member a field access or method call binds
// to and, if it is program code, adds edges from the calling method to the
// member and to the class declaring it. Unknown classes and members are
// reported and the reference is dropped.
func (f *Finisher) ResolveReference(ref ingest.UnresolvedReference) {
	g := f.graph
	source := g.FullName(ref.Source)

	start, ok := g.Class(ref.Class)
	if ref.InvokeSpecial && ref.Name != classfile.ConstructorName && ref.Class != ref.Caller {
		// super.foo() binds starting at the caller's superclass.
		caller, known := g.Class(ref.Caller)
		if !known {
			f.diag.InvalidClassReference(source, ref.Caller)
			return
		}
		super, err := g.Superclass(caller)
		if err != nil {
			f.reportLookup(ref.Caller, err)
			return
		}
		if super == graph.InvalidNode {
			f.diag.InvalidMemberReference(source, graph.MemberKey(ref.Class, ref.Name, ref.Desc))
			return
		}
		start, ok = super, true
	}
	if !ok || !g.IsClassKnown(start) {
		f.diag.InvalidClassReference(source, ref.Class)
		return
	}

	for _, class := range f.traverse(start, graph.SuperclassesAndInterfaces) {
		member, found := g.Member(g.Name(class), ref.Name, ref.Desc)
		if !found || !g.IsDeclared(member) {
			continue
		}
		if g.IsProgram(class) {
			g.AddDependency(ref.Source, class, ref.Type)
			g.AddDependency(ref.Source, member, ref.Type)
		}
		return
	}
	f.diag.InvalidMemberReference(source, graph.MemberKey(ref.Class, ref.Name, ref.Desc))
}

func (f *Finisher) reportLookup(from string, err error) {
	var lookup *graph.ClassLookupError
	if errors.As(err, &lookup) {
		f.diag.InvalidClassReference(from, lookup.ClassName)
		return
	}
	f.logger.Warn("hierarchy lookup from %s failed: %v", from, err)
}
