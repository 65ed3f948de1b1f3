package graph

import (
	"github.com/class-shrinker/pkg/collections"
)

// Hierarchy selects which supertype edges a traversal follows.
type Hierarchy uint8

const (
	// Superclasses follows the superclass chain only.
	Superclasses Hierarchy = iota
	// InterfacesOf follows direct interfaces and their superinterfaces.
	InterfacesOf
	// SuperclassesAndInterfaces follows both, superclass first.
	SuperclassesAndInterfaces
)

// DirectSupertypes returns the supertypes of class that mode follows.
// Supertypes no input declared are reported to diag and left out.
func (g *Graph) DirectSupertypes(class NodeID, mode Hierarchy, diag *Diagnostics) []NodeID {
	var out []NodeID
	from := g.Name(class)

	if mode != InterfacesOf {
		if name := g.SuperclassName(class); name != "" {
			if id, ok := g.Class(name); ok && g.IsClassKnown(id) {
				out = append(out, id)
			} else {
				diag.InvalidClassReference(from, name)
			}
		}
	}
	if mode != Superclasses {
		for _, name := range g.InterfaceNames(class) {
			if id, ok := g.Class(name); ok && g.IsClassKnown(id) {
				out = append(out, id)
			} else {
				diag.InvalidClassReference(from, name)
			}
		}
	}
	return out
}

// Traverse returns class followed by its supertypes in pre-order. Each
// class appears once, at its first position.
func (g *Graph) Traverse(class NodeID, mode Hierarchy, diag *Diagnostics) []NodeID {
	visited := collections.NewBitset(g.NodeCount())
	stack := collections.NewStack[NodeID](8)
	stack.Push(class)

	var out []NodeID
	for stack.Len() > 0 {
		id, _ := stack.Pop()
		if visited.TestAndSet(int(id)) {
			continue
		}
		out = append(out, id)
		stack.PushReversed(g.DirectSupertypes(id, mode, diag))
	}
	return out
}

// IsSubtypeOf reports whether class is super or inherits from it.
func (g *Graph) IsSubtypeOf(class, super NodeID, diag *Diagnostics) bool {
	for _, id := range g.Traverse(class, SuperclassesAndInterfaces, diag) {
		if id == super {
			return true
		}
	}
	return false
}
