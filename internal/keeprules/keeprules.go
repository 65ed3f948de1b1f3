package keeprules

import (
	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
)

// Rules decides which symbols of a class become roots.
type Rules interface {
	// SymbolsToKeep returns the roots contributed by class. It may add
	// edges between class and its own members.
	SymbolsToKeep(class graph.NodeID, g *graph.Graph) map[graph.NodeID]graph.DependencyType
}

// KeepRules evaluates the three kinds of keep specifications. It holds no
// mutable state, so one instance serves concurrent callers.
type KeepRules struct {
	keepClass              []*ClassSpecification
	keepClassMembers       []*ClassSpecification
	keepClassesWithMembers []*ClassSpecification
	diag                   *graph.Diagnostics
}

// New creates keep rules. Specifications marked allowshrinking never
// produce roots and are left out here.
func New(keepClass, keepClassMembers, keepClassesWithMembers []*ClassSpecification, diag *graph.Diagnostics) *KeepRules {
	return &KeepRules{
		keepClass:              shrinkable(keepClass),
		keepClassMembers:       shrinkable(keepClassMembers),
		keepClassesWithMembers: shrinkable(keepClassesWithMembers),
		diag:                   diag,
	}
}

// NewTraceTargets builds rules from why-are-you-keeping specifications.
// Nodes they select are the ones whose traces get recorded. It returns nil
// when there is nothing to trace.
func NewTraceTargets(specs []*ClassSpecification, diag *graph.Diagnostics) *KeepRules {
	if len(specs) == 0 {
		return nil
	}
	return &KeepRules{keepClass: specs, diag: diag}
}

func shrinkable(specs []*ClassSpecification) []*ClassSpecification {
	var out []*ClassSpecification
	for _, s := range specs {
		if !s.KeepModifier.AllowShrinking {
			out = append(out, s)
		}
	}
	return out
}

// Empty reports whether no rule can ever match.
func (r *KeepRules) Empty() bool {
	return len(r.keepClass)+len(r.keepClassMembers)+len(r.keepClassesWithMembers) == 0
}

// SymbolsToKeep implements Rules.
func (r *KeepRules) SymbolsToKeep(class graph.NodeID, g *graph.Graph) map[graph.NodeID]graph.DependencyType {
	result := make(map[graph.NodeID]graph.DependencyType)

	for _, spec := range r.keepClass {
		if !r.matchesClass(class, spec, g) {
			continue
		}
		result[class] = graph.RequiredKeepRules
		if ctor, ok := g.Member(g.Name(class), classfile.ConstructorName, classfile.DefaultCtorDesc); ok && g.IsDeclared(ctor) {
			result[ctor] = graph.RequiredClassStructure
		}
		for _, m := range findMatchingMembers(class, spec, g) {
			result[m] = graph.RequiredKeepRules
		}
	}

	for _, spec := range r.keepClassMembers {
		if !r.matchesClass(class, spec, g) {
			continue
		}
		for _, m := range findMatchingMembers(class, spec, g) {
			result[m] = graph.IfClassKept
			g.AddDependency(class, m, graph.ClassIsKept)
		}
	}

	for _, spec := range r.keepClassesWithMembers {
		if !r.matchesClass(class, spec, g) {
			continue
		}
		for _, id := range keepClassesWithMembers(class, spec, g) {
			result[id] = graph.RequiredKeepRules
		}
	}
	return result
}

// keepClassesWithMembers returns the class and the matched members only if
// every member specification matched something.
func keepClassesWithMembers(class graph.NodeID, spec *ClassSpecification, g *graph.Graph) []graph.NodeID {
	var result []graph.NodeID

	methods := g.Methods(class)
	for i := range spec.Methods {
		found := false
		for _, m := range methods {
			if matchesMethod(m, &spec.Methods[i], g) {
				found = true
				result = append(result, m)
			}
		}
		if !found {
			return nil
		}
	}

	fields := g.Fields(class)
	for i := range spec.Fields {
		found := false
		for _, f := range fields {
			if matchesField(f, &spec.Fields[i], g) {
				found = true
				result = append(result, f)
			}
		}
		if !found {
			return nil
		}
	}

	return append(result, class)
}

func findMatchingMembers(class graph.NodeID, spec *ClassSpecification, g *graph.Graph) []graph.NodeID {
	var result []graph.NodeID
	for _, m := range g.Methods(class) {
		for i := range spec.Methods {
			if matchesMethod(m, &spec.Methods[i], g) {
				result = append(result, m)
				break
			}
		}
	}
	for _, f := range g.Fields(class) {
		for i := range spec.Fields {
			if matchesField(f, &spec.Fields[i], g) {
				result = append(result, f)
				break
			}
		}
	}
	return result
}

func matchesField(field graph.NodeID, spec *FieldSpecification, g *graph.Graph) bool {
	return spec.Name.Matches(g.Name(field)) &&
		spec.Modifier.Matches(g.Access(field), TargetField) &&
		(spec.Type == nil || spec.Type.Matches(g.Descriptor(field))) &&
		matchesAnnotations(field, spec.Annotation, g)
}

func matchesMethod(method graph.NodeID, spec *MethodSpecification, g *graph.Graph) bool {
	return spec.Name.Matches(g.Name(method)) &&
		spec.Descriptor.Matches(g.Descriptor(method)) &&
		spec.Modifier.Matches(g.Access(method), TargetMethod) &&
		matchesAnnotations(method, spec.Annotation, g)
}

func (r *KeepRules) matchesClass(class graph.NodeID, spec *ClassSpecification, g *graph.Graph) bool {
	flags := g.Access(class)
	return MatchesClassName(spec.Names, g.Name(class)) &&
		spec.ClassType.Matches(flags) &&
		spec.Modifier.Matches(flags, TargetClass) &&
		matchesAnnotations(class, spec.Annotation, g) &&
		r.matchesInheritance(class, spec.Inheritance, g)
}

func matchesAnnotations(id graph.NodeID, annotation *NameSpecification, g *graph.Graph) bool {
	if annotation == nil {
		return true
	}
	for _, name := range g.Annotations(id) {
		if annotation.Matches(name) {
			return true
		}
	}
	return false
}

func (r *KeepRules) matchesInheritance(class graph.NodeID, spec *InheritanceSpecification, g *graph.Graph) bool {
	if spec == nil {
		return true
	}
	for _, super := range g.Traverse(class, graph.SuperclassesAndInterfaces, r.diag)[1:] {
		if spec.Name.Matches(g.Name(super)) && matchesAnnotations(super, spec.Annotation, g) {
			return true
		}
	}
	return false
}
