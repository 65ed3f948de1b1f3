package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/utils"
)

func declare(t *testing.T, g *Graph, name, super string, program bool, ifaces ...string) NodeID {
	t.Helper()
	id, accepted, err := g.DeclareClass(ClassInfo{
		Name:       name,
		Superclass: super,
		Interfaces: ifaces,
		Program:    program,
		Source:     Source{Path: name + ".class"},
	})
	require.NoError(t, err)
	require.True(t, accepted)
	return id
}

func TestGraph_ReferencesAreIdempotent(t *testing.T) {
	g := New()

	a := g.ClassReference("a/A")
	assert.Equal(t, a, g.ClassReference("a/A"))

	m := g.MemberReference("a/A", "run", "()V")
	f := g.MemberReference("a/A", "count", "I")
	assert.Equal(t, m, g.MemberReference("a/A", "run", "()V"))
	assert.Equal(t, KindMethod, g.Kind(m))
	assert.Equal(t, KindField, g.Kind(f))
	assert.Equal(t, a, g.Owner(m))
	assert.Equal(t, "a/A.run:()V", g.FullName(m))
	assert.Equal(t, "run:()V", g.LocalName(m))
	assert.False(t, g.IsDeclared(m))
	assert.Equal(t, 3, g.NodeCount())
}

func TestGraph_ConcurrentReferences(t *testing.T) {
	g := New()
	ids := make([]NodeID, 16)

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = g.MemberReference("a/A", "run", "()V")
			g.AddDependency(ids[i], g.ClassReference("a/B"), RequiredCodeReference)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, g.Dependencies(ids[0]), 1)
}

func TestGraph_DeclareClassConflicts(t *testing.T) {
	tests := []struct {
		name        string
		first       ClassInfo
		second      ClassInfo
		wantAccept  bool
		wantErr     bool
		wantProgram bool
		wantSource  string
	}{
		{
			name:        "program twice",
			first:       ClassInfo{Name: "a/A", Program: true, Source: Source{Path: "one"}},
			second:      ClassInfo{Name: "a/A", Program: true, Source: Source{Path: "two"}},
			wantErr:     true,
			wantProgram: true,
			wantSource:  "one",
		},
		{
			name:        "program over library",
			first:       ClassInfo{Name: "a/A", Source: Source{Path: "lib.jar", Entry: "a/A.class"}},
			second:      ClassInfo{Name: "a/A", Program: true, Source: Source{Path: "classes"}},
			wantAccept:  true,
			wantProgram: true,
			wantSource:  "classes",
		},
		{
			name:        "library under program",
			first:       ClassInfo{Name: "a/A", Program: true, Source: Source{Path: "classes"}},
			second:      ClassInfo{Name: "a/A", Source: Source{Path: "lib.jar"}},
			wantProgram: true,
			wantSource:  "classes",
		},
		{
			name:       "smaller library source wins",
			first:      ClassInfo{Name: "a/A", Source: Source{Path: "z.jar"}},
			second:     ClassInfo{Name: "a/A", Source: Source{Path: "b.jar"}},
			wantAccept: true,
			wantSource: "b.jar",
		},
		{
			name:       "larger library source loses",
			first:      ClassInfo{Name: "a/A", Source: Source{Path: "b.jar"}},
			second:     ClassInfo{Name: "a/A", Source: Source{Path: "z.jar"}},
			wantSource: "b.jar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			_, accepted, err := g.DeclareClass(tt.first)
			require.NoError(t, err)
			require.True(t, accepted)

			id, accepted, err := g.DeclareClass(tt.second)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAccept, accepted)
			assert.Equal(t, tt.wantProgram, g.IsProgram(id))
			assert.Equal(t, tt.wantSource, g.Source(id).Path)
		})
	}
}

func TestGraph_RedeclarationResetsMembers(t *testing.T) {
	g := New()
	lib, _, err := g.DeclareClass(ClassInfo{Name: "a/A", Source: Source{Path: "lib.jar"}})
	require.NoError(t, err)
	old := g.DeclareMember(lib, MemberInfo{Name: "old", Descriptor: "()V"})
	require.True(t, g.IsDeclared(old))

	prog, accepted, err := g.DeclareClass(ClassInfo{Name: "a/A", Program: true})
	require.NoError(t, err)
	require.True(t, accepted)
	g.DeclareMember(prog, MemberInfo{Name: "fresh", Descriptor: "()V"})

	methods := g.Methods(prog)
	require.Len(t, methods, 1)
	assert.Equal(t, "fresh", g.Name(methods[0]))
	assert.False(t, g.IsDeclared(old))
}

func TestGraph_AddDependencyCoalesces(t *testing.T) {
	g := New()
	a := g.ClassReference("a/A")
	b := g.ClassReference("a/B")

	g.AddDependency(a, b, RequiredClassStructure)
	g.AddDependency(a, b, RequiredClassStructure)
	g.AddDependency(a, b, RequiredCodeReference)

	assert.Equal(t, []Dependency{
		{Target: b, Type: RequiredClassStructure},
		{Target: b, Type: RequiredCodeReference},
	}, g.Dependencies(a))

	g.RemoveDependencies(a, RequiredCodeReference, RequiredCodeReferenceReflection)
	assert.Equal(t, []Dependency{{Target: b, Type: RequiredClassStructure}}, g.Dependencies(a))
}

func TestGraph_IncrementAndCheck(t *testing.T) {
	tests := []struct {
		name      string
		increment []DependencyType
		reached   []bool
	}{
		{"class structure", []DependencyType{RequiredClassStructure, RequiredClassStructure}, []bool{true, false}},
		{"keep rules", []DependencyType{RequiredKeepRules}, []bool{true}},
		{"code reference", []DependencyType{RequiredCodeReference}, []bool{true}},
		{"reflection", []DependencyType{RequiredCodeReferenceReflection}, []bool{true}},
		{"if class kept alone", []DependencyType{IfClassKept, IfClassKept}, []bool{false, false}},
		{"class is kept alone", []DependencyType{ClassIsKept}, []bool{false}},
		{"kept pair", []DependencyType{IfClassKept, ClassIsKept, IfClassKept}, []bool{false, true, false}},
		{"kept pair reversed", []DependencyType{ClassIsKept, IfClassKept}, []bool{false, true}},
		{"interface pair", []DependencyType{SuperinterfaceKept, InterfaceImplemented}, []bool{false, true}},
		{"mixed pairs", []DependencyType{IfClassKept, InterfaceImplemented}, []bool{false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			id := g.ClassReference("a/A")
			for i, dt := range tt.increment {
				assert.Equal(t, tt.reached[i], g.IncrementAndCheck(id, dt, Shrink), "step %d", i)
			}
			assert.False(t, g.IsReachable(id, LegacyMultidex))
		})
	}
}

func TestGraph_IncrementAndCheckConcurrent(t *testing.T) {
	g := New()
	id := g.ClassReference("a/A")

	var mu sync.Mutex
	transitions := 0
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.IncrementAndCheck(id, RequiredCodeReference, Shrink) {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions)
	assert.Equal(t, uint32(64), g.CountersOf(id, Shrink)[RequiredCodeReference])

	g.ClearCounters()
	assert.False(t, g.IsReachable(id, Shrink))
}

func TestGraph_SuperclassLookup(t *testing.T) {
	g := New()
	declare(t, g, "java/lang/Object", "", false)
	b := declare(t, g, "a/B", "java/lang/Object", true)
	c := declare(t, g, "a/C", "a/Missing", true, "a/I", "a/Gone")
	i := declare(t, g, "a/I", "java/lang/Object", true)

	super, err := g.Superclass(b)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", g.Name(super))

	_, err = g.Superclass(c)
	require.Error(t, err)
	assert.True(t, apperrors.IsClassLookup(err))
	var lookup *ClassLookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "a/Missing", lookup.ClassName)

	ifaces, err := g.Interfaces(c)
	assert.True(t, apperrors.IsClassLookup(err))
	assert.Equal(t, []NodeID{i}, ifaces)

	_, err = g.Superclass(g.ClassReference("a/Unknown"))
	assert.True(t, apperrors.IsClassLookup(err))
}

func TestGraph_Traverse(t *testing.T) {
	g := New()
	declare(t, g, "java/lang/Object", "", false)
	declare(t, g, "a/J", "java/lang/Object", true)
	declare(t, g, "a/I", "java/lang/Object", true, "a/J")
	declare(t, g, "a/K", "java/lang/Object", true, "a/J")
	declare(t, g, "a/B", "java/lang/Object", true, "a/K")
	c := declare(t, g, "a/C", "a/B", true, "a/I", "a/Missing")

	names := func(ids []NodeID) []string {
		var out []string
		for _, id := range ids {
			out = append(out, g.Name(id))
		}
		return out
	}

	logger := utils.NewMemoryLogger()
	diag := NewDiagnostics(logger)

	assert.Equal(t, []string{"a/C", "a/B", "java/lang/Object"}, names(g.Traverse(c, Superclasses, diag)))
	assert.Equal(t, []string{"a/C", "a/I", "a/J"}, names(g.Traverse(c, InterfacesOf, diag)))
	assert.Equal(t,
		[]string{"a/C", "a/B", "java/lang/Object", "a/K", "a/J", "a/I"},
		names(g.Traverse(c, SuperclassesAndInterfaces, diag)))

	assert.Equal(t, []Diagnostic{{Kind: InvalidClassRef, From: "a/C", Target: "a/Missing"}}, diag.Entries())
	assert.True(t, g.IsSubtypeOf(c, g.ClassReference("a/J"), nil))
}

func TestGraph_FindMatchingMethod(t *testing.T) {
	g := New()
	b := declare(t, g, "a/B", "", true)
	c := declare(t, g, "a/C", "a/B", true)
	bRun := g.DeclareMember(b, MemberInfo{Name: "run", Descriptor: "()V"})
	cRun := g.DeclareMember(c, MemberInfo{Name: "run", Descriptor: "()V"})
	g.MemberReference("a/B", "ghost", "()V")

	found, ok := g.FindMatchingMethod(b, cRun)
	require.True(t, ok)
	assert.Equal(t, bRun, found)

	_, ok = g.FindMatchingMethod(b, g.MemberReference("a/C", "ghost", "()V"))
	assert.False(t, ok)
}

func TestGraph_RootsAreSorted(t *testing.T) {
	g := New()
	b := g.ClassReference("a/B")
	a := g.ClassReference("a/A")

	g.AddRoots(map[NodeID]DependencyType{b: RequiredKeepRules, a: RequiredKeepRules}, Shrink)
	g.AddRoot(a, RequiredClassStructure, Shrink)
	g.AddRoot(b, RequiredKeepRules, LegacyMultidex)

	assert.Equal(t, []Root{
		{Node: a, Type: RequiredClassStructure},
		{Node: a, Type: RequiredKeepRules},
		{Node: b, Type: RequiredKeepRules},
	}, g.Roots(Shrink))
	assert.Len(t, g.Roots(LegacyMultidex), 1)

	g.ClearRoots()
	assert.Empty(t, g.Roots(Shrink))
}

func TestGraph_CheckDependencies(t *testing.T) {
	g := New()
	a := declare(t, g, "a/A", "", true)
	run := g.DeclareMember(a, MemberInfo{Name: "run", Descriptor: "()V"})
	b := declare(t, g, "a/B", "", true)

	g.AddDependency(run, b, RequiredCodeReference)
	g.AddDependency(run, g.ClassReference("a/Missing"), RequiredCodeReference)
	g.AddDependency(run, g.MemberReference("a/Missing", "m", "()V"), RequiredCodeReference)
	g.AddDependency(run, g.ClassReference("com/example/Plugin"), RequiredCodeReferenceReflection)

	diag := NewDiagnostics(nil)
	g.CheckDependencies(diag)

	assert.Equal(t, []Dependency{{Target: b, Type: RequiredCodeReference}}, g.Dependencies(run))
	assert.Equal(t, []Diagnostic{{Kind: InvalidClassRef, From: "a/A.run:()V", Target: "a/Missing"}}, diag.Entries())
}

func TestGraph_ReachableQueries(t *testing.T) {
	g := New()
	a := declare(t, g, "a/A", "", true)
	lib := declare(t, g, "lib/L", "", false)
	run := g.DeclareMember(a, MemberInfo{Name: "run", Descriptor: "()V"})
	g.DeclareMember(a, MemberInfo{Name: "dead", Descriptor: "()V"})
	size := g.DeclareMember(a, MemberInfo{Name: "size", Descriptor: "I"})

	for _, id := range []NodeID{a, lib, run, size} {
		g.IncrementAndCheck(id, RequiredKeepRules, Shrink)
	}

	assert.Equal(t, []NodeID{a, lib}, g.ReachableClasses(Shrink))
	assert.Equal(t, []NodeID{a}, g.ProgramClasses())
	assert.Equal(t, []string{"run:()V", "size:I"}, g.ReachableMemberLocalNames(a, Shrink))
	assert.Len(t, g.Fields(a), 1)
	assert.Len(t, g.Methods(a), 2)
}

func TestDiagnostics_Report(t *testing.T) {
	logger := utils.NewMemoryLogger()
	diag := NewDiagnostics(logger)

	diag.InvalidMemberReference("a/B.run:()V", "a/C.gone:()V")
	diag.InvalidMemberReference("a/B.run:()V", "a/C.gone:()V")
	diag.InvalidClassReference("a/B", "a/X")
	diag.Report()

	assert.Equal(t, 1, diag.Count(InvalidMemberRef))
	assert.Len(t, diag.Entries(), 2)
	warnings := logger.Entries(utils.LevelWarn)
	require.Len(t, warnings, 3)
	assert.Equal(t, "invalid class reference: a/B -> a/X", warnings[0].Message)

	var nilDiag *Diagnostics
	nilDiag.InvalidClassReference("a", "b")
	assert.Nil(t, nilDiag.Entries())
	assert.Nil(t, NewDiagnostics(logger).Entries(), "no diagnostics gives a nil slice")
}
