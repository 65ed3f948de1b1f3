// Package keeprules evaluates keep specifications against the graph to
// produce the roots of a run.
package keeprules

import (
	"github.com/class-shrinker/internal/classfile"
)

// ModifierTarget selects which modifiers are meaningful for a symbol kind.
type ModifierTarget int

const (
	TargetField ModifierTarget = iota
	TargetMethod
	TargetClass
)

// AccessFlag is a visibility constraint.
type AccessFlag uint16

const (
	AccessPublic    AccessFlag = classfile.AccPublic
	AccessPrivate   AccessFlag = classfile.AccPrivate
	AccessProtected AccessFlag = classfile.AccProtected
	// AccessPackage stands for the absence of the three flags above.
	AccessPackage AccessFlag = 0
)

// Modifier is a non-visibility flag.
type Modifier uint16

const (
	ModStatic       Modifier = classfile.AccStatic
	ModFinal        Modifier = classfile.AccFinal
	ModSuper        Modifier = classfile.AccSuper
	ModSynchronized Modifier = classfile.AccSynchronized
	ModVolatile     Modifier = classfile.AccVolatile
	ModBridge       Modifier = classfile.AccBridge
	ModTransient    Modifier = classfile.AccTransient
	ModVarargs      Modifier = classfile.AccVarargs
	ModNative       Modifier = classfile.AccNative
	ModInterface    Modifier = classfile.AccInterface
	ModAbstract     Modifier = classfile.AccAbstract
	ModStrict       Modifier = classfile.AccStrict
	ModSynthetic    Modifier = classfile.AccSynthetic
	ModAnnotation   Modifier = classfile.AccAnnotation
	ModEnum         Modifier = classfile.AccEnum
)

// Several flags share a bit, so the bits that count depend on the target.
var modifiersByTarget = map[ModifierTarget]uint16{
	TargetField: uint16(ModStatic | ModFinal | ModTransient | ModVolatile | ModEnum | ModSynthetic),
	TargetMethod: uint16(ModStatic | ModNative | ModAbstract | ModFinal | ModSynchronized |
		ModBridge | ModSynthetic | ModStrict | ModVarargs),
	TargetClass: uint16(ModStatic | ModFinal | ModEnum | ModSynthetic | ModAbstract |
		ModInterface | ModAnnotation | ModSuper | ModStrict),
}

var modifierNames = map[string]Modifier{
	"static":       ModStatic,
	"final":        ModFinal,
	"synchronized": ModSynchronized,
	"volatile":     ModVolatile,
	"bridge":       ModBridge,
	"transient":    ModTransient,
	"varargs":      ModVarargs,
	"native":       ModNative,
	"interface":    ModInterface,
	"abstract":     ModAbstract,
	"strictfp":     ModStrict,
	"synthetic":    ModSynthetic,
	"annotation":   ModAnnotation,
	"enum":         ModEnum,
}

var accessNames = map[string]AccessFlag{
	"public":    AccessPublic,
	"private":   AccessPrivate,
	"protected": AccessProtected,
	"package":   AccessPackage,
}

// ModifierSpecification constrains visibility and modifiers. Required
// access flags are alternatives: "public protected" accepts either.
// Required modifiers must all be present.
type ModifierSpecification struct {
	access        []AccessFlag
	negatedAccess []AccessFlag
	modifiers     uint16
	negatedMods   uint16
}

// AddAccessFlag adds a visibility constraint.
func (m *ModifierSpecification) AddAccessFlag(flag AccessFlag, negated bool) {
	if negated {
		m.negatedAccess = append(m.negatedAccess, flag)
	} else {
		m.access = append(m.access, flag)
	}
}

// AddModifier adds a modifier constraint.
func (m *ModifierSpecification) AddModifier(mod Modifier, negated bool) {
	if negated {
		m.negatedMods |= uint16(mod)
	} else {
		m.modifiers |= uint16(mod)
	}
}

func accessOf(flags uint16) AccessFlag {
	for _, f := range []AccessFlag{AccessPublic, AccessPrivate, AccessProtected} {
		if flags&uint16(f) != 0 {
			return f
		}
	}
	return AccessPackage
}

func containsAccess(list []AccessFlag, f AccessFlag) bool {
	for _, a := range list {
		if a == f {
			return true
		}
	}
	return false
}

// Matches checks access flags of a symbol of the given kind.
func (m *ModifierSpecification) Matches(flags uint16, target ModifierTarget) bool {
	if m == nil {
		return true
	}
	access := accessOf(flags)
	if len(m.access) > 0 && !containsAccess(m.access, access) {
		return false
	}
	if containsAccess(m.negatedAccess, access) {
		return false
	}

	present := flags & modifiersByTarget[target]
	return present&m.modifiers == m.modifiers && present&m.negatedMods == 0
}

// ClassTypeSpecification is the "class", "interface", "enum" or
// "@interface" keyword of a rule. "class" matches every type.
type ClassTypeSpecification struct {
	Flags   uint16
	Negated bool
}

// Matches checks the class access flags.
func (c *ClassTypeSpecification) Matches(flags uint16) bool {
	if c == nil {
		return true
	}
	return (flags&c.Flags == c.Flags) != c.Negated
}

// InheritanceSpecification is an "extends" or "implements" clause. Any
// supertype, direct or not, may match.
type InheritanceSpecification struct {
	Name       NameSpecification
	Annotation *NameSpecification
}

// FieldSpecification selects fields. A nil Type matches every type.
type FieldSpecification struct {
	Name       NameSpecification
	Type       *NameSpecification
	Modifier   *ModifierSpecification
	Annotation *NameSpecification
}

// MethodSpecification selects methods by name and descriptor.
type MethodSpecification struct {
	Name       NameSpecification
	Descriptor NameSpecification
	Modifier   *ModifierSpecification
	Annotation *NameSpecification
}

// KeepModifier carries the "allowshrinking" and "allowobfuscation" options.
type KeepModifier struct {
	AllowShrinking   bool
	AllowObfuscation bool
}

// ClassSpecification is one keep rule.
type ClassSpecification struct {
	Names        []NameSpecification
	ClassType    *ClassTypeSpecification
	Modifier     *ModifierSpecification
	Annotation   *NameSpecification
	Inheritance  *InheritanceSpecification
	Fields       []FieldSpecification
	Methods      []MethodSpecification
	KeepModifier KeepModifier
}
