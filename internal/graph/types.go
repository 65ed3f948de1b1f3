// Package graph holds the dependency graph over classes, methods and fields
// together with the per counter set reachability counters.
package graph

import (
	"fmt"
	"strings"
)

// NodeID is a handle into the node arena.
type NodeID int32

// InvalidNode is returned when a lookup finds nothing.
const InvalidNode NodeID = -1

// NodeKind discriminates the node variants.
type NodeKind uint8

const (
	KindClass NodeKind = iota
	KindMethod
	KindField
)

// String returns the string representation of NodeKind.
func (k NodeKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	default:
		return "unknown"
	}
}

// DependencyType is the kind of an edge. Reachability of the target
// depends on which kinds of edges reached it.
type DependencyType uint8

const (
	// RequiredClassStructure marks edges that must exist for the source to be
	// well formed, such as a class to its superclass.
	RequiredClassStructure DependencyType = iota
	// RequiredCodeReference is an opcode level reference from a method body.
	RequiredCodeReference
	// RequiredCodeReferenceReflection is a reference found by a reflection
	// heuristic (Class.forName on a constant).
	RequiredCodeReferenceReflection
	// RequiredKeepRules is the edge type of roots seeded by keep rules.
	RequiredKeepRules
	// IfClassKept and ClassIsKept are paired: a node with both survives.
	IfClassKept
	ClassIsKept
	// InterfaceImplemented and SuperinterfaceKept are paired the same way.
	InterfaceImplemented
	SuperinterfaceKept

	numDependencyTypes
)

var dependencyTypeNames = [numDependencyTypes]string{
	"REQUIRED_CLASS_STRUCTURE",
	"REQUIRED_CODE_REFERENCE",
	"REQUIRED_CODE_REFERENCE_REFLECTION",
	"REQUIRED_KEEP_RULES",
	"IF_CLASS_KEPT",
	"CLASS_IS_KEPT",
	"INTERFACE_IMPLEMENTED",
	"SUPERINTERFACE_KEPT",
}

// String returns the string representation of DependencyType.
func (t DependencyType) String() string {
	if t < numDependencyTypes {
		return dependencyTypeNames[t]
	}
	return fmt.Sprintf("DependencyType(%d)", uint8(t))
}

// Valid reports whether t is a known dependency type.
func (t DependencyType) Valid() bool {
	return t < numDependencyTypes
}

// CounterSet is an independent reachability namespace over the same graph.
type CounterSet uint8

const (
	// Shrink decides what survives in the output.
	Shrink CounterSet = iota
	// LegacyMultidex computes the main dex list for legacy multidex.
	LegacyMultidex

	numCounterSets
)

// CounterSets lists every counter set in order.
var CounterSets = []CounterSet{Shrink, LegacyMultidex}

// String returns the string representation of CounterSet.
func (c CounterSet) String() string {
	switch c {
	case Shrink:
		return "SHRINK"
	case LegacyMultidex:
		return "LEGACY_MULTIDEX"
	default:
		return fmt.Sprintf("CounterSet(%d)", uint8(c))
	}
}

// Valid reports whether c is a known counter set.
func (c CounterSet) Valid() bool {
	return c < numCounterSets
}

// Dependency is an outgoing edge.
type Dependency struct {
	Target NodeID
	Type   DependencyType
}

// Root is a node seeded into a counter set.
type Root struct {
	Node NodeID
	Type DependencyType
}

// Source locates the bytes a class was read from: a class file, or an
// entry inside an archive.
type Source struct {
	Path  string
	Entry string
}

// String returns "path" or "path!entry".
func (s Source) String() string {
	if s.Entry == "" {
		return s.Path
	}
	return s.Path + "!" + s.Entry
}

// ClassInfo describes a class declaration.
type ClassInfo struct {
	Name           string
	Superclass     string
	Interfaces     []string
	Access         uint16
	Program        bool
	Source         Source
	Annotations    []string
	SignatureTypes []string
}

// MemberInfo describes a field or method declaration.
type MemberInfo struct {
	Name        string
	Descriptor  string
	Access      uint16
	Annotations []string
}

// Counters holds one counter per dependency type.
type Counters [numDependencyTypes]uint32

// Reachable applies the reachability rule: any unconditional counter, or
// both halves of a conditional pair.
func (c *Counters) Reachable() bool {
	return c[RequiredClassStructure] > 0 ||
		c[RequiredKeepRules] > 0 ||
		c[RequiredCodeReference] > 0 ||
		c[RequiredCodeReferenceReflection] > 0 ||
		(c[IfClassKept] > 0 && c[ClassIsKept] > 0) ||
		(c[SuperinterfaceKept] > 0 && c[InterfaceImplemented] > 0)
}

// IsMethodDescriptor reports whether desc describes a method.
func IsMethodDescriptor(desc string) bool {
	return len(desc) > 0 && desc[0] == '('
}

// ClassKey returns the arena key of a class node.
func ClassKey(name string) string {
	return name
}

// MemberKey returns the arena key of a member node.
func MemberKey(class, name, desc string) string {
	return class + "." + name + ":" + desc
}

// FakeMemberSuffix marks members the finisher adds to forward an inherited
// interface implementation. No class file declares them.
const FakeMemberSuffix = "$shrinker_fake"

// IsFakeMember reports whether a member name carries FakeMemberSuffix.
func IsFakeMember(name string) bool {
	return strings.HasSuffix(name, FakeMemberSuffix)
}
