package finisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/internal/ingest"
	"github.com/class-shrinker/pkg/parallel"
	"github.com/class-shrinker/pkg/utils"
)

type builder struct {
	t *testing.T
	g *graph.Graph
}

func newBuilder(t *testing.T) *builder {
	b := &builder{t: t, g: graph.New()}
	b.class(classfile.ObjectClass, "", false, 0)
	b.method(classfile.ObjectClass, "hashCode", "()I", classfile.AccPublic)
	b.method(classfile.ObjectClass, "toString", "()Ljava/lang/String;", classfile.AccPublic)
	return b
}

func (b *builder) class(name, super string, program bool, access uint16, ifaces ...string) graph.NodeID {
	b.t.Helper()
	id, accepted, err := b.g.DeclareClass(graph.ClassInfo{
		Name:       name,
		Superclass: super,
		Interfaces: ifaces,
		Access:     access,
		Program:    program,
		Source:     graph.Source{Path: name + ".class"},
	})
	require.NoError(b.t, err)
	require.True(b.t, accepted)
	return id
}

func (b *builder) method(class, name, desc string, access uint16) graph.NodeID {
	id, ok := b.g.Class(class)
	require.True(b.t, ok)
	return b.g.DeclareMember(id, graph.MemberInfo{Name: name, Descriptor: desc, Access: access})
}

func (b *builder) finisher(diag *graph.Diagnostics) *Finisher {
	b.t.Helper()
	f, err := New(b.g, parallel.NewExecutor(context.Background(), parallel.DefaultPoolConfig()), diag,
		WithLogger(&utils.NullLogger{}), WithCacheSize(64))
	require.NoError(b.t, err)
	return f
}

func hasEdge(g *graph.Graph, from, to graph.NodeID, typ graph.DependencyType) bool {
	for _, d := range g.Dependencies(from) {
		if d.Target == to && d.Type == typ {
			return true
		}
	}
	return false
}

const iface = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract

func TestHandleOverrides(t *testing.T) {
	b := newBuilder(t)
	b.class("java/lang/Runnable", "", false, iface)
	b.method("java/lang/Runnable", "run", "()V", classfile.AccPublic|classfile.AccAbstract)

	base := b.class("a/Base", classfile.ObjectClass, true, classfile.AccPublic)
	baseFoo := b.method("a/Base", "foo", "()V", classfile.AccPublic)
	impl := b.class("a/Impl", "a/Base", true, classfile.AccPublic, "java/lang/Runnable")
	implFoo := b.method("a/Impl", "foo", "()V", classfile.AccPublic)
	implRun := b.method("a/Impl", "run", "()V", classfile.AccPublic)
	implHash := b.method("a/Impl", "hashCode", "()I", classfile.AccPublic)
	implOwn := b.method("a/Impl", "own", "()V", classfile.AccPublic)

	f := b.finisher(graph.NewDiagnostics(&utils.NullLogger{}))
	for _, m := range []graph.NodeID{baseFoo, implFoo, implRun, implHash, implOwn} {
		f.HandleOverrides(m)
	}
	g := b.g

	tests := []struct {
		name     string
		from, to graph.NodeID
		typ      graph.DependencyType
		want     bool
	}{
		{"program override needs its class", impl, implFoo, graph.ClassIsKept, true},
		{"program override needs the overridden method", baseFoo, implFoo, graph.IfClassKept, true},
		{"program override is not structure", impl, implFoo, graph.RequiredClassStructure, false},
		{"library override is structure", impl, implRun, graph.RequiredClassStructure, true},
		{"object method is structure", impl, implHash, graph.RequiredClassStructure, true},
		{"new method gets no edge", impl, implOwn, graph.RequiredClassStructure, false},
		{"root method gets no edge", base, baseFoo, graph.ClassIsKept, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasEdge(g, tt.from, tt.to, tt.typ))
		})
	}
	assert.Empty(t, g.Dependencies(implOwn))
}

func TestHandleMultipleInheritance(t *testing.T) {
	b := newBuilder(t)
	b.class("a/I", "", true, iface)
	ifaceFoo := b.method("a/I", "foo", "()V", classfile.AccPublic|classfile.AccAbstract)
	b.method("a/I", "helper", "()V", classfile.AccPublic|classfile.AccStatic)
	b.class("java/lang/Runnable", "", false, iface)
	b.method("java/lang/Runnable", "run", "()V", classfile.AccPublic|classfile.AccAbstract)

	b.class("a/Base", classfile.ObjectClass, true, classfile.AccPublic)
	baseFoo := b.method("a/Base", "foo", "()V", classfile.AccPublic)
	baseRun := b.method("a/Base", "run", "()V", classfile.AccPublic)
	child := b.class("a/Child", "a/Base", true, classfile.AccPublic, "a/I", "java/lang/Runnable")

	f := b.finisher(graph.NewDiagnostics(&utils.NullLogger{}))
	f.HandleMultipleInheritance(child)
	g := b.g

	fakeFoo, ok := g.Member("a/Child", "foo"+graph.FakeMemberSuffix, "()V")
	require.True(t, ok)
	assert.True(t, g.IsDeclared(fakeFoo))
	assert.True(t, hasEdge(g, fakeFoo, baseFoo, graph.RequiredClassStructure))
	assert.True(t, hasEdge(g, child, fakeFoo, graph.ClassIsKept))
	assert.True(t, hasEdge(g, ifaceFoo, fakeFoo, graph.IfClassKept))

	fakeRun, ok := g.Member("a/Child", "run"+graph.FakeMemberSuffix, "()V")
	require.True(t, ok)
	assert.True(t, hasEdge(g, fakeRun, baseRun, graph.RequiredClassStructure))
	assert.True(t, hasEdge(g, child, fakeRun, graph.RequiredClassStructure))

	_, ok = g.Member("a/Child", "helper"+graph.FakeMemberSuffix, "()V")
	assert.False(t, ok, "static interface methods are not inherited")
}

func TestHandleMultipleInheritance_NoFake(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *builder) graph.NodeID
	}{
		{
			name: "library superclass",
			setup: func(b *builder) graph.NodeID {
				b.class("a/I", "", true, iface)
				b.method("a/I", "hashCode", "()I", classfile.AccPublic|classfile.AccAbstract)
				return b.class("a/C", classfile.ObjectClass, true, classfile.AccPublic, "a/I")
			},
		},
		{
			name: "method declared by the class",
			setup: func(b *builder) graph.NodeID {
				b.class("a/I", "", true, iface)
				b.method("a/I", "foo", "()V", classfile.AccPublic|classfile.AccAbstract)
				b.class("a/Base", classfile.ObjectClass, true, classfile.AccPublic)
				b.method("a/Base", "foo", "()V", classfile.AccPublic)
				c := b.class("a/C", "a/Base", true, classfile.AccPublic, "a/I")
				b.method("a/C", "foo", "()V", classfile.AccPublic)
				return c
			},
		},
		{
			name: "no program implementation",
			setup: func(b *builder) graph.NodeID {
				b.class("a/I", "", true, iface)
				b.method("a/I", "foo", "()V", classfile.AccPublic|classfile.AccAbstract)
				b.class("a/Base", classfile.ObjectClass, true, classfile.AccPublic|classfile.AccAbstract)
				return b.class("a/C", "a/Base", true, classfile.AccPublic|classfile.AccAbstract, "a/I")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t)
			c := tt.setup(b)
			before := len(b.g.Members(c))

			b.finisher(graph.NewDiagnostics(&utils.NullLogger{})).HandleMultipleInheritance(c)

			assert.Len(t, b.g.Members(c), before)
		})
	}
}

func TestHandleMultipleInheritance_UnknownSuperclass(t *testing.T) {
	b := newBuilder(t)
	b.class("a/I", "", true, iface)
	c := b.class("a/C", "a/Missing", true, classfile.AccPublic, "a/I")
	diag := graph.NewDiagnostics(&utils.NullLogger{})

	b.finisher(diag).HandleMultipleInheritance(c)

	assert.Equal(t, []graph.Diagnostic{{Kind: graph.InvalidClassRef, From: "a/C", Target: "a/Missing"}}, diag.Entries())
}

func TestHandleInterfaceInheritance(t *testing.T) {
	b := newBuilder(t)
	b.class("java/util/EventListener", "", false, iface)
	top := b.class("a/Top", "", true, iface)
	sub := b.class("a/Sub", "", true, iface, "a/Top")
	listener := b.class("a/Listener", "", true, iface, "java/util/EventListener")
	impl := b.class("a/Impl", classfile.ObjectClass, true, classfile.AccPublic, "a/Sub")

	f := b.finisher(graph.NewDiagnostics(&utils.NullLogger{}))
	for _, c := range []graph.NodeID{sub, listener, impl} {
		f.HandleInterfaceInheritance(c)
	}
	g := b.g

	assert.True(t, hasEdge(g, top, sub, graph.SuperinterfaceKept))
	assert.True(t, hasEdge(g, sub, top, graph.InterfaceImplemented))
	assert.True(t, hasEdge(g, impl, sub, graph.InterfaceImplemented))
	assert.True(t, hasEdge(g, impl, top, graph.InterfaceImplemented), "transitive superinterfaces are implemented too")
	assert.Equal(t, []graph.Root{{Node: listener, Type: graph.SuperinterfaceKept}}, g.Roots(graph.Shrink))
	assert.Empty(t, g.Roots(graph.LegacyMultidex))
}

func TestResolveReference(t *testing.T) {
	b := newBuilder(t)
	b.class("a/Base", classfile.ObjectClass, true, classfile.AccPublic)
	baseFoo := b.method("a/Base", "foo", "()V", classfile.AccPublic)
	b.method("a/Base", classfile.ConstructorName, "()V", classfile.AccPublic)
	child := b.class("a/Child", "a/Base", true, classfile.AccPublic)
	childFoo := b.method("a/Child", "foo", "()V", classfile.AccPublic)
	childCtor := b.method("a/Child", classfile.ConstructorName, "()V", classfile.AccPublic)
	caller := b.method("a/Child", "call", "()V", classfile.AccPublic)
	base, _ := b.g.Class("a/Base")
	object, _ := b.g.Class(classfile.ObjectClass)
	hash, _ := b.g.Member(classfile.ObjectClass, "hashCode", "()I")

	tests := []struct {
		name       string
		ref        ingest.UnresolvedReference
		wantMember graph.NodeID
		wantClass  graph.NodeID
		wantDiag   []graph.Diagnostic
	}{
		{
			name:       "declared in the referenced class",
			ref:        ingest.UnresolvedReference{Class: "a/Child", Name: "foo", Desc: "()V"},
			wantMember: childFoo,
			wantClass:  child,
		},
		{
			name:       "constructor binds to the named class",
			ref:        ingest.UnresolvedReference{Class: "a/Child", Name: classfile.ConstructorName, Desc: "()V", InvokeSpecial: true},
			wantMember: childCtor,
			wantClass:  child,
		},
		{
			name:       "super call starts at the superclass",
			ref:        ingest.UnresolvedReference{Class: "a/Base", Name: "foo", Desc: "()V", InvokeSpecial: true},
			wantMember: baseFoo,
			wantClass:  base,
		},
		{
			name:       "library member adds nothing",
			ref:        ingest.UnresolvedReference{Class: "a/Child", Name: "hashCode", Desc: "()I"},
			wantMember: hash,
			wantClass:  object,
		},
		{
			name:     "unknown member",
			ref:      ingest.UnresolvedReference{Class: "a/Child", Name: "missing", Desc: "()V"},
			wantDiag: []graph.Diagnostic{{Kind: graph.InvalidMemberRef, From: "a/Child.call:()V", Target: "a/Child.missing:()V"}},
		},
		{
			name:     "unknown class",
			ref:      ingest.UnresolvedReference{Class: "a/Gone", Name: "foo", Desc: "()V"},
			wantDiag: []graph.Diagnostic{{Kind: graph.InvalidClassRef, From: "a/Child.call:()V", Target: "a/Gone"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := b.g
			g.RemoveDependencies(caller, graph.RequiredCodeReference)
			diag := graph.NewDiagnostics(&utils.NullLogger{})

			ref := tt.ref
			ref.Source = caller
			ref.Caller = "a/Child"
			ref.Type = graph.RequiredCodeReference
			if _, ok := g.Class(ref.Class); !ok && ref.Class != "" {
				g.ClassReference(ref.Class)
			}
			b.finisher(diag).ResolveReference(ref)

			assert.Equal(t, tt.wantDiag, diag.Entries())
			if len(tt.wantDiag) > 0 {
				assert.Empty(t, g.Dependencies(caller))
				return
			}
			if g.IsProgram(tt.wantClass) {
				assert.True(t, hasEdge(g, caller, tt.wantMember, graph.RequiredCodeReference))
				assert.True(t, hasEdge(g, caller, tt.wantClass, graph.RequiredCodeReference))
			} else {
				assert.Empty(t, g.Dependencies(caller))
			}
		})
	}
}

func TestFinish(t *testing.T) {
	b := newBuilder(t)
	b.class("a/I", "", true, iface)
	ifaceFoo := b.method("a/I", "foo", "()V", classfile.AccPublic|classfile.AccAbstract)
	b.class("a/Base", classfile.ObjectClass, true, classfile.AccPublic)
	baseFoo := b.method("a/Base", "foo", "()V", classfile.AccPublic)
	child := b.class("a/Child", "a/Base", true, classfile.AccPublic, "a/I")
	caller := b.method("a/Child", "call", "()V", classfile.AccPublic)
	ifaceID, _ := b.g.Class("a/I")

	data := ingest.NewPostProcessingData()
	data.AddVirtualMethod(baseFoo)
	data.AddMultipleInheritance(child)
	data.AddInterfaceInheritance(child)
	data.AddUnresolvedReference(ingest.UnresolvedReference{
		Source: caller, Caller: "a/Child", Class: "a/I", Name: "foo", Desc: "()V", Type: graph.RequiredCodeReference,
	})

	diag := graph.NewDiagnostics(&utils.NullLogger{})
	require.NoError(t, b.finisher(diag).Finish(context.Background(), data))

	g := b.g
	fake, ok := g.Member("a/Child", "foo"+graph.FakeMemberSuffix, "()V")
	require.True(t, ok)
	assert.True(t, hasEdge(g, ifaceFoo, fake, graph.IfClassKept))
	assert.True(t, hasEdge(g, child, ifaceID, graph.InterfaceImplemented))
	assert.True(t, hasEdge(g, caller, ifaceFoo, graph.RequiredCodeReference))
	assert.Empty(t, diag.Entries())
}

func TestFinish_Cancelled(t *testing.T) {
	b := newBuilder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.finisher(nil).Finish(ctx, ingest.NewPostProcessingData())
	assert.ErrorIs(t, err, context.Canceled)
}
