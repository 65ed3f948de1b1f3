package keeprules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
)

type fixture struct {
	g       *graph.Graph
	main    graph.NodeID
	ctor    graph.NodeID
	run     graph.NodeID
	helper  graph.NodeID
	counter graph.NodeID
	name    graph.NodeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := graph.New()
	declare := func(name, super string, access uint16, annotations ...string) graph.NodeID {
		id, ok, err := g.DeclareClass(graph.ClassInfo{
			Name: name, Superclass: super, Access: access, Program: true, Annotations: annotations,
		})
		require.NoError(t, err)
		require.True(t, ok)
		return id
	}

	declare("java/lang/Object", "", classfile.AccPublic)
	declare("com/example/Base", "java/lang/Object", classfile.AccPublic|classfile.AccAbstract)
	main := declare("com/example/Main", "com/example/Base", classfile.AccPublic, "com/example/Keep")

	f := &fixture{g: g, main: main}
	f.ctor = g.DeclareMember(main, graph.MemberInfo{Name: "<init>", Descriptor: "()V", Access: classfile.AccPublic})
	f.run = g.DeclareMember(main, graph.MemberInfo{Name: "run", Descriptor: "([Ljava/lang/String;)V", Access: classfile.AccPublic | classfile.AccStatic})
	f.helper = g.DeclareMember(main, graph.MemberInfo{Name: "helper", Descriptor: "()I", Access: classfile.AccPrivate})
	f.counter = g.DeclareMember(main, graph.MemberInfo{Name: "counter", Descriptor: "I", Access: classfile.AccStatic})
	f.name = g.DeclareMember(main, graph.MemberInfo{Name: "name", Descriptor: "Ljava/lang/String;", Access: classfile.AccPublic, Annotations: []string{"com/example/Keep"}})
	return f
}

func load(t *testing.T, yamlText string) *RuleSet {
	t.Helper()
	set, err := Load(strings.NewReader(yamlText))
	require.NoError(t, err)
	return set
}

func TestSymbolsToKeep_KeepClass(t *testing.T) {
	f := newFixture(t)
	rules := load(t, `
keep:
  - class: com.example.Main
    methods:
      - name: run
        args: java.lang.String[]
`).KeepRules(nil)

	got := rules.SymbolsToKeep(f.main, f.g)
	assert.Equal(t, map[graph.NodeID]graph.DependencyType{
		f.main: graph.RequiredKeepRules,
		f.ctor: graph.RequiredClassStructure,
		f.run:  graph.RequiredKeepRules,
	}, got)
}

func TestSymbolsToKeep_KeepClassWithoutDefaultConstructor(t *testing.T) {
	g := graph.New()
	id, _, err := g.DeclareClass(graph.ClassInfo{Name: "a/A", Program: true})
	require.NoError(t, err)
	rules := load(t, "keep:\n  - class: a.A\n").KeepRules(nil)

	assert.Equal(t, map[graph.NodeID]graph.DependencyType{id: graph.RequiredKeepRules}, rules.SymbolsToKeep(id, g))
}

func TestSymbolsToKeep_KeepClassMembers(t *testing.T) {
	f := newFixture(t)
	rules := load(t, `
keep_class_members:
  - class: com.example.*
    fields:
      - name: <fields>
        modifiers: [static]
`).KeepRules(nil)

	got := rules.SymbolsToKeep(f.main, f.g)
	assert.Equal(t, map[graph.NodeID]graph.DependencyType{f.counter: graph.IfClassKept}, got)
	assert.Contains(t, f.g.Dependencies(f.main), graph.Dependency{Target: f.counter, Type: graph.ClassIsKept})
}

func TestSymbolsToKeep_KeepClassesWithMembers(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		want  func(f *fixture) map[graph.NodeID]graph.DependencyType
	}{
		{
			name: "all member specs match",
			rules: `
keep_classes_with_members:
  - class: "**"
    methods:
      - name: run
        args: "..."
    fields:
      - name: counter
        type: int
`,
			want: func(f *fixture) map[graph.NodeID]graph.DependencyType {
				return map[graph.NodeID]graph.DependencyType{
					f.main:    graph.RequiredKeepRules,
					f.run:     graph.RequiredKeepRules,
					f.counter: graph.RequiredKeepRules,
				}
			},
		},
		{
			name: "one member spec matches nothing",
			rules: `
keep_classes_with_members:
  - class: "**"
    methods:
      - name: run
        args: "..."
      - name: missing
`,
			want: func(f *fixture) map[graph.NodeID]graph.DependencyType {
				return map[graph.NodeID]graph.DependencyType{}
			},
		},
		{
			name: "other rules still apply",
			rules: `
keep_classes_with_members:
  - class: "**"
    fields:
      - name: missing
keep_class_members:
  - class: "**"
    methods:
      - name: helper
        returns: int
`,
			want: func(f *fixture) map[graph.NodeID]graph.DependencyType {
				return map[graph.NodeID]graph.DependencyType{f.helper: graph.IfClassKept}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			got := load(t, tt.rules).KeepRules(nil).SymbolsToKeep(f.main, f.g)
			assert.Equal(t, tt.want(f), got)
		})
	}
}

func TestSymbolsToKeep_ClassFilters(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		match bool
	}{
		{"annotation", "keep:\n  - class: '**'\n    annotated: com.example.Keep\n", true},
		{"missing annotation", "keep:\n  - class: '**'\n    annotated: com.example.Other\n", false},
		{"extends", "keep:\n  - class: '**'\n    extends: com.example.Base\n", true},
		{"extends object", "keep:\n  - class: '**'\n    extends: java.lang.Object\n", true},
		{"extends unrelated", "keep:\n  - class: '**'\n    extends: com.example.Other\n", false},
		{"public", "keep:\n  - class: '**'\n    modifiers: [public]\n", true},
		{"not public", "keep:\n  - class: '**'\n    modifiers: ['!public']\n", false},
		{"interface", "keep:\n  - class: '**'\n    type: interface\n", false},
		{"not interface", "keep:\n  - class: '**'\n    type: '!interface'\n", true},
		{"negated name", "keep:\n  - class: '!com.example.Main, **'\n", false},
		{"allow shrinking", "keep:\n  - class: '**'\n    allow_shrinking: true\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			got := load(t, tt.rules).KeepRules(nil).SymbolsToKeep(f.main, f.g)
			_, kept := got[f.main]
			assert.Equal(t, tt.match, kept)
		})
	}
}

func TestSymbolsToKeep_MemberAnnotation(t *testing.T) {
	f := newFixture(t)
	rules := load(t, `
keep_class_members:
  - class: "**"
    fields:
      - name: "*"
        annotated: com.example.Keep
    methods:
      - name: <methods>
        modifiers: [private]
`).KeepRules(nil)

	got := rules.SymbolsToKeep(f.main, f.g)
	assert.Equal(t, map[graph.NodeID]graph.DependencyType{
		f.name:   graph.IfClassKept,
		f.helper: graph.IfClassKept,
	}, got)
}

func TestTraceTargets(t *testing.T) {
	set := load(t, "keep:\n  - class: '**'\n")
	assert.Nil(t, set.TraceTargets(nil))

	set = load(t, "why_are_you_keeping:\n  - class: com.example.Main\n    methods:\n      - name: run\n        args: '...'\n")
	f := newFixture(t)
	targets := set.TraceTargets(nil)
	require.NotNil(t, targets)
	got := targets.SymbolsToKeep(f.main, f.g)
	assert.Contains(t, got, f.main)
	assert.Contains(t, got, f.run)
	assert.True(t, set.KeepRules(nil).Empty())
}
