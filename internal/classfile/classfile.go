// Package classfile reads JVM class files into the structural view the
// shrinker needs and writes pruned copies of them.
package classfile

import (
	"fmt"
	"strings"

	apperrors "github.com/class-shrinker/pkg/errors"
)

// Constant is one constant pool entry. The meaning of A and B depends on
// the tag: Class, String and MethodType keep their index in A; NameAndType,
// the three ref kinds, MethodHandle and the dynamic kinds use both.
type Constant struct {
	Tag uint8
	Str string
	A   uint16
	B   uint16
	Num uint64
}

// ConstantPool is indexed from 1. Long and Double entries take two slots.
type ConstantPool struct {
	entries []Constant
	raw     []byte
}

// Len returns the constant_pool_count value.
func (p *ConstantPool) Len() int {
	return len(p.entries)
}

func (p *ConstantPool) get(index uint16, tag uint8) (*Constant, error) {
	if index == 0 || int(index) >= len(p.entries) {
		return nil, fmt.Errorf("constant pool index %d out of range", index)
	}
	c := &p.entries[index]
	if c.Tag != tag {
		return nil, fmt.Errorf("constant pool entry %d has tag %d, expected %d", index, c.Tag, tag)
	}
	return c, nil
}

// Entry returns the raw entry at index.
func (p *ConstantPool) Entry(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(p.entries) {
		return Constant{}, fmt.Errorf("constant pool index %d out of range", index)
	}
	return p.entries[index], nil
}

// UTF8 returns the string stored at index.
func (p *ConstantPool) UTF8(index uint16) (string, error) {
	c, err := p.get(index, TagUTF8)
	if err != nil {
		return "", err
	}
	return c.Str, nil
}

// ClassName returns the internal name of the Class entry at index.
func (p *ConstantPool) ClassName(index uint16) (string, error) {
	c, err := p.get(index, TagClass)
	if err != nil {
		return "", err
	}
	return p.UTF8(c.A)
}

// NameAndType returns the name and descriptor at index.
func (p *ConstantPool) NameAndType(index uint16) (string, string, error) {
	c, err := p.get(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := p.UTF8(c.A)
	if err != nil {
		return "", "", err
	}
	desc, err := p.UTF8(c.B)
	return name, desc, err
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref.
type MemberRef struct {
	Owner     string
	Name      string
	Desc      string
	Field     bool
	Interface bool
}

// Member returns the field or method reference at index.
func (p *ConstantPool) Member(index uint16) (MemberRef, error) {
	if index == 0 || int(index) >= len(p.entries) {
		return MemberRef{}, fmt.Errorf("constant pool index %d out of range", index)
	}
	c := p.entries[index]
	if c.Tag != TagFieldref && c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref {
		return MemberRef{}, fmt.Errorf("constant pool entry %d is not a member reference", index)
	}
	owner, err := p.ClassName(c.A)
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := p.NameAndType(c.B)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{
		Owner:     owner,
		Name:      name,
		Desc:      desc,
		Field:     c.Tag == TagFieldref,
		Interface: c.Tag == TagInterfaceMethodref,
	}, nil
}

// Attribute is an undecoded attribute.
type Attribute struct {
	NameIndex uint16
	Name      string
	Info      []byte
}

// Member is a field or method declaration.
type Member struct {
	Access     uint16
	NameIndex  uint16
	DescIndex  uint16
	Name       string
	Descriptor string
	Attributes []Attribute
}

// Key returns the "name:descriptor" form used to identify members within a class.
func (m *Member) Key() string {
	return m.Name + ":" + m.Descriptor
}

// Attribute returns the first attribute with the given name.
func (m *Member) Attribute(name string) (Attribute, bool) {
	return findAttribute(m.Attributes, name)
}

// ClassFile is a parsed class file. Byte slices alias the input buffer.
type ClassFile struct {
	Minor      uint16
	Major      uint16
	Pool       *ConstantPool
	Access     uint16
	ThisClass  uint16
	SuperClass uint16
	Interfaces []uint16
	Fields     []*Member
	Methods    []*Member
	Attributes []Attribute

	Name          string
	SuperName     string
	InterfaceList []string
}

// IsInterface reports whether the class is an interface or annotation type.
func (c *ClassFile) IsInterface() bool {
	return c.Access&AccInterface != 0
}

// Attribute returns the first class attribute with the given name.
func (c *ClassFile) Attribute(name string) (Attribute, bool) {
	return findAttribute(c.Attributes, name)
}

// Members returns fields followed by methods.
func (c *ClassFile) Members() []*Member {
	out := make([]*Member, 0, len(c.Fields)+len(c.Methods))
	out = append(out, c.Fields...)
	return append(out, c.Methods...)
}

func findAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Parse decodes a class file. Malformed input yields a PARSE_ERROR.
func Parse(data []byte) (*ClassFile, error) {
	cf, err := parse(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "malformed class file", err)
	}
	return cf, nil
}

func parse(data []byte) (*ClassFile, error) {
	r := newReader(data)
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, fmt.Errorf("bad magic 0x%08x", magic)
	}
	cf := &ClassFile{}
	cf.Minor = r.u2()
	cf.Major = r.u2()

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}
	cf.Pool = pool

	cf.Access = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()
	count := int(r.u2())
	cf.Interfaces = make([]uint16, 0, count)
	for i := 0; i < count; i++ {
		cf.Interfaces = append(cf.Interfaces, r.u2())
	}
	if cf.Fields, err = readMembers(r, pool); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if cf.Methods, err = readMembers(r, pool); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if cf.Attributes, err = readAttributes(r, pool); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.remaining())
	}

	if cf.Name, err = pool.ClassName(cf.ThisClass); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if cf.SuperClass != 0 {
		if cf.SuperName, err = pool.ClassName(cf.SuperClass); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}
	for _, idx := range cf.Interfaces {
		name, err := pool.ClassName(idx)
		if err != nil {
			return nil, fmt.Errorf("interfaces: %w", err)
		}
		cf.InterfaceList = append(cf.InterfaceList, name)
	}
	return cf, nil
}

func readConstantPool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	if count == 0 {
		return nil, fmt.Errorf("empty constant pool")
	}
	start := r.pos
	entries := make([]Constant, count)
	for i := 1; i < count; i++ {
		c := Constant{Tag: r.u1()}
		switch c.Tag {
		case TagUTF8:
			length := int(r.u2())
			s, err := decodeModifiedUTF8(r.bytes(length))
			if err != nil {
				return nil, fmt.Errorf("constant %d: %w", i, err)
			}
			c.Str = s
		case TagInteger, TagFloat:
			c.Num = uint64(r.u4())
		case TagLong, TagDouble:
			c.Num = r.u8()
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.A = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.A = r.u2()
			c.B = r.u2()
		case TagMethodHandle:
			c.A = uint16(r.u1())
			c.B = r.u2()
		default:
			if r.err != nil {
				return nil, r.err
			}
			return nil, fmt.Errorf("constant %d: unknown tag %d", i, c.Tag)
		}
		entries[i] = c
		if c.Tag == TagLong || c.Tag == TagDouble {
			i++
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &ConstantPool{entries: entries, raw: r.data[start:r.pos]}, nil
}

func readMembers(r *reader, pool *ConstantPool) ([]*Member, error) {
	count := int(r.u2())
	members := make([]*Member, 0, count)
	for i := 0; i < count; i++ {
		m := &Member{Access: r.u2(), NameIndex: r.u2(), DescIndex: r.u2()}
		attrs, err := readAttributes(r, pool)
		if err != nil {
			return nil, err
		}
		m.Attributes = attrs
		if r.err != nil {
			return nil, r.err
		}
		if m.Name, err = pool.UTF8(m.NameIndex); err != nil {
			return nil, err
		}
		if m.Descriptor, err = pool.UTF8(m.DescIndex); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, r.err
}

func readAttributes(r *reader, pool *ConstantPool) ([]Attribute, error) {
	count := int(r.u2())
	attrs := make([]Attribute, 0, count)
	for i := 0; i < count; i++ {
		a := Attribute{NameIndex: r.u2()}
		a.Info = r.bytes(int(r.u4()))
		if r.err != nil {
			return nil, r.err
		}
		name, err := pool.UTF8(a.NameIndex)
		if err != nil {
			return nil, err
		}
		a.Name = name
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// Signature returns the generic signature in attrs, if any.
func Signature(pool *ConstantPool, attrs []Attribute) (string, bool, error) {
	a, ok := findAttribute(attrs, AttrSignature)
	if !ok {
		return "", false, nil
	}
	r := newReader(a.Info)
	idx := r.u2()
	if r.err != nil {
		return "", false, r.err
	}
	s, err := pool.UTF8(idx)
	return s, err == nil, err
}

// Exceptions returns the classes named by a method's Exceptions attribute.
func Exceptions(pool *ConstantPool, m *Member) ([]string, error) {
	a, ok := m.Attribute(AttrExceptions)
	if !ok {
		return nil, nil
	}
	r := newReader(a.Info)
	count := int(r.u2())
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name, err := pool.ClassName(r.u2())
		if r.err != nil {
			return nil, r.err
		}
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// InnerClass is one entry of the InnerClasses attribute.
type InnerClass struct {
	Inner  string
	Outer  string
	Name   string
	Access uint16
}

// InnerClasses decodes the class's InnerClasses attribute.
func (c *ClassFile) InnerClasses() ([]InnerClass, error) {
	a, ok := c.Attribute(AttrInnerClasses)
	if !ok {
		return nil, nil
	}
	r := newReader(a.Info)
	count := int(r.u2())
	out := make([]InnerClass, 0, count)
	for i := 0; i < count; i++ {
		innerIdx, outerIdx, nameIdx, access := r.u2(), r.u2(), r.u2(), r.u2()
		if r.err != nil {
			return nil, r.err
		}
		ic := InnerClass{Access: access}
		var err error
		if ic.Inner, err = c.Pool.ClassName(innerIdx); err != nil {
			return nil, err
		}
		if outerIdx != 0 {
			if ic.Outer, err = c.Pool.ClassName(outerIdx); err != nil {
				return nil, err
			}
		}
		if nameIdx != 0 {
			if ic.Name, err = c.Pool.UTF8(nameIdx); err != nil {
				return nil, err
			}
		}
		out = append(out, ic)
	}
	return out, nil
}

// IsArrayName reports whether a Class constant names an array type.
func IsArrayName(name string) bool {
	return strings.HasPrefix(name, "[")
}
