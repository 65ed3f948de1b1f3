package ingest

import (
	"sync"

	"github.com/class-shrinker/internal/graph"
)

// UnresolvedReference is a field access or method call whose target member
// is only known once the full hierarchy is in the graph.
type UnresolvedReference struct {
	// Source is the method containing the instruction.
	Source graph.NodeID
	// Caller is the class declaring Source.
	Caller        string
	Class         string
	Name          string
	Desc          string
	Type          graph.DependencyType
	InvokeSpecial bool
}

// PostProcessingData collects the work ingestion leaves for the finisher.
// It is safe for concurrent use.
type PostProcessingData struct {
	mu                   sync.Mutex
	virtualMethods       []graph.NodeID
	multipleInheritance  []graph.NodeID
	interfaceInheritance []graph.NodeID
	unresolved           []UnresolvedReference
}

// NewPostProcessingData creates an empty collection.
func NewPostProcessingData() *PostProcessingData {
	return &PostProcessingData{}
}

// AddVirtualMethod records a method that may override a supertype method.
func (d *PostProcessingData) AddVirtualMethod(m graph.NodeID) {
	d.mu.Lock()
	d.virtualMethods = append(d.virtualMethods, m)
	d.mu.Unlock()
}

// AddMultipleInheritance records a class that may inherit interface
// methods from its superclass.
func (d *PostProcessingData) AddMultipleInheritance(class graph.NodeID) {
	d.mu.Lock()
	d.multipleInheritance = append(d.multipleInheritance, class)
	d.mu.Unlock()
}

// AddInterfaceInheritance records a class or interface with supertypes
// that are interfaces.
func (d *PostProcessingData) AddInterfaceInheritance(class graph.NodeID) {
	d.mu.Lock()
	d.interfaceInheritance = append(d.interfaceInheritance, class)
	d.mu.Unlock()
}

// AddUnresolvedReference records a member reference to resolve later.
func (d *PostProcessingData) AddUnresolvedReference(ref UnresolvedReference) {
	d.mu.Lock()
	d.unresolved = append(d.unresolved, ref)
	d.mu.Unlock()
}

// VirtualMethods returns a copy of the recorded virtual methods.
func (d *PostProcessingData) VirtualMethods() []graph.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]graph.NodeID(nil), d.virtualMethods...)
}

// MultipleInheritance returns a copy of the recorded classes.
func (d *PostProcessingData) MultipleInheritance() []graph.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]graph.NodeID(nil), d.multipleInheritance...)
}

// InterfaceInheritance returns a copy of the recorded classes.
func (d *PostProcessingData) InterfaceInheritance() []graph.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]graph.NodeID(nil), d.interfaceInheritance...)
}

// UnresolvedReferences returns a copy of the recorded references.
func (d *PostProcessingData) UnresolvedReferences() []UnresolvedReference {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]UnresolvedReference(nil), d.unresolved...)
}
