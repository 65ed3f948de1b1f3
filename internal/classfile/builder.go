package classfile

import "fmt"

// poolBuilder deduplicates constant pool entries while a class is assembled.
type poolBuilder struct {
	w     writer
	index map[string]uint16
	next  uint16
}

func newPoolBuilder() *poolBuilder {
	return &poolBuilder{index: map[string]uint16{}, next: 1}
}

func (p *poolBuilder) intern(key string, emit func(w *writer)) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	emit(&p.w)
	idx := p.next
	p.next++
	p.index[key] = idx
	return idx
}

func (p *poolBuilder) utf8(s string) uint16 {
	return p.intern("u:"+s, func(w *writer) {
		w.u1(TagUTF8)
		w.utf8(s)
	})
}

func (p *poolBuilder) class(name string) uint16 {
	n := p.utf8(name)
	return p.intern("c:"+name, func(w *writer) {
		w.u1(TagClass)
		w.u2(n)
	})
}

func (p *poolBuilder) str(s string) uint16 {
	n := p.utf8(s)
	return p.intern("s:"+s, func(w *writer) {
		w.u1(TagString)
		w.u2(n)
	})
}

func (p *poolBuilder) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.intern("nt:"+name+":"+desc, func(w *writer) {
		w.u1(TagNameAndType)
		w.u2(n)
		w.u2(d)
	})
}

func (p *poolBuilder) ref(tag uint8, owner, name, desc string) uint16 {
	c, nt := p.class(owner), p.nameAndType(name, desc)
	return p.intern(fmt.Sprintf("r%d:%s.%s:%s", tag, owner, name, desc), func(w *writer) {
		w.u1(tag)
		w.u2(c)
		w.u2(nt)
	})
}

func (p *poolBuilder) methodHandle(kind uint8, tag uint8, owner, name, desc string) uint16 {
	r := p.ref(tag, owner, name, desc)
	return p.intern(fmt.Sprintf("mh%d:%d", kind, r), func(w *writer) {
		w.u1(TagMethodHandle)
		w.u1(kind)
		w.u2(r)
	})
}

func (p *poolBuilder) methodType(desc string) uint16 {
	d := p.utf8(desc)
	return p.intern("mt:"+desc, func(w *writer) {
		w.u1(TagMethodType)
		w.u2(d)
	})
}

func (p *poolBuilder) invokeDynamic(bootstrap uint16, name, desc string) uint16 {
	nt := p.nameAndType(name, desc)
	return p.intern(fmt.Sprintf("indy:%d:%d", bootstrap, nt), func(w *writer) {
		w.u1(TagInvokeDynamic)
		w.u2(bootstrap)
		w.u2(nt)
	})
}

// Builder assembles class files. The generated bytecode is structurally
// valid but not meant to pass the verifier.
type Builder struct {
	pool        *poolBuilder
	version     Version
	access      uint16
	name        string
	super       string
	interfaces  []string
	signature   string
	annotations []string
	fields      []*MemberBuilder
	methods     []*MemberBuilder
	inner       []InnerClass
	bootstraps  []builderBootstrap
}

type builderBootstrap struct {
	handle uint16
	args   []uint16
}

// NewBuilder starts a public class. An empty super produces a class without
// a superclass.
func NewBuilder(name, super string, interfaces ...string) *Builder {
	return &Builder{
		pool:       newPoolBuilder(),
		version:    Version{Major: 52},
		access:     AccPublic | AccSuper,
		name:       name,
		super:      super,
		interfaces: interfaces,
	}
}

// NewInterfaceBuilder starts a public interface.
func NewInterfaceBuilder(name string, superinterfaces ...string) *Builder {
	b := NewBuilder(name, ObjectClass, superinterfaces...)
	b.access = AccPublic | AccInterface | AccAbstract
	return b
}

// Access replaces the class access flags.
func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

// Version sets the class file version.
func (b *Builder) Version(v Version) *Builder {
	b.version = v
	return b
}

// Signature sets the class generic signature.
func (b *Builder) Signature(sig string) *Builder {
	b.signature = sig
	return b
}

// Annotate adds a runtime visible annotation by internal class name.
func (b *Builder) Annotate(class string) *Builder {
	b.annotations = append(b.annotations, class)
	return b
}

// InnerClass adds an InnerClasses entry.
func (b *Builder) InnerClass(inner, outer, simpleName string, access uint16) *Builder {
	b.inner = append(b.inner, InnerClass{Inner: inner, Outer: outer, Name: simpleName, Access: access})
	return b
}

// Field declares a field.
func (b *Builder) Field(access uint16, name, desc string) *MemberBuilder {
	m := &MemberBuilder{owner: b, access: access, name: name, desc: desc}
	b.fields = append(b.fields, m)
	return m
}

// Method declares a method. Methods that are neither abstract nor native
// get a Code attribute ending in a return instruction.
func (b *Builder) Method(access uint16, name, desc string) *MemberBuilder {
	m := &MemberBuilder{owner: b, access: access, name: name, desc: desc}
	b.methods = append(b.methods, m)
	return m
}

// MemberBuilder assembles a field or method.
type MemberBuilder struct {
	owner       *Builder
	access      uint16
	name        string
	desc        string
	signature   string
	annotations []string
	exceptions  []string
	code        writer
	catches     []string
}

// Signature sets the member's generic signature.
func (m *MemberBuilder) Signature(sig string) *MemberBuilder {
	m.signature = sig
	return m
}

// Annotate adds a runtime visible annotation.
func (m *MemberBuilder) Annotate(class string) *MemberBuilder {
	m.annotations = append(m.annotations, class)
	return m
}

// Throws lists checked exceptions.
func (m *MemberBuilder) Throws(classes ...string) *MemberBuilder {
	m.exceptions = append(m.exceptions, classes...)
	return m
}

// Catch adds an exception handler for the given type.
func (m *MemberBuilder) Catch(class string) *MemberBuilder {
	m.catches = append(m.catches, class)
	return m
}

func (m *MemberBuilder) op(opcode uint8, index uint16) *MemberBuilder {
	m.code.u1(opcode)
	m.code.u2(index)
	return m
}

// InvokeVirtual emits invokevirtual.
func (m *MemberBuilder) InvokeVirtual(owner, name, desc string) *MemberBuilder {
	return m.op(opInvokeVirtual, m.owner.pool.ref(TagMethodref, owner, name, desc))
}

// InvokeStatic emits invokestatic.
func (m *MemberBuilder) InvokeStatic(owner, name, desc string) *MemberBuilder {
	return m.op(opInvokeStatic, m.owner.pool.ref(TagMethodref, owner, name, desc))
}

// InvokeSpecial emits invokespecial.
func (m *MemberBuilder) InvokeSpecial(owner, name, desc string) *MemberBuilder {
	return m.op(opInvokeSpecial, m.owner.pool.ref(TagMethodref, owner, name, desc))
}

// InvokeInterface emits invokeinterface.
func (m *MemberBuilder) InvokeInterface(owner, name, desc string) *MemberBuilder {
	m.op(opInvokeInterface, m.owner.pool.ref(TagInterfaceMethodref, owner, name, desc))
	m.code.u1(1)
	m.code.u1(0)
	return m
}

// GetField emits getfield.
func (m *MemberBuilder) GetField(owner, name, desc string) *MemberBuilder {
	return m.op(opGetField, m.owner.pool.ref(TagFieldref, owner, name, desc))
}

// PutStatic emits putstatic.
func (m *MemberBuilder) PutStatic(owner, name, desc string) *MemberBuilder {
	return m.op(opPutStatic, m.owner.pool.ref(TagFieldref, owner, name, desc))
}

// New emits new.
func (m *MemberBuilder) New(class string) *MemberBuilder {
	return m.op(opNew, m.owner.pool.class(class))
}

// CheckCast emits checkcast.
func (m *MemberBuilder) CheckCast(class string) *MemberBuilder {
	return m.op(opCheckCast, m.owner.pool.class(class))
}

// LdcClass emits ldc_w of a class literal.
func (m *MemberBuilder) LdcClass(class string) *MemberBuilder {
	return m.op(opLdcW, m.owner.pool.class(class))
}

// LdcString emits ldc_w of a string constant.
func (m *MemberBuilder) LdcString(s string) *MemberBuilder {
	return m.op(opLdcW, m.owner.pool.str(s))
}

// Lambda emits an invokedynamic bootstrapped by LambdaMetafactory whose
// implementation is the given static method.
func (m *MemberBuilder) Lambda(iface, samName, samDesc, implOwner, implName, implDesc string) *MemberBuilder {
	p := m.owner.pool
	bsm := p.methodHandle(RefInvokeStatic, TagMethodref, "java/lang/invoke/LambdaMetafactory", "metafactory",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;")
	impl := p.methodHandle(RefInvokeStatic, TagMethodref, implOwner, implName, implDesc)
	samType := p.methodType(samDesc)
	m.owner.bootstraps = append(m.owner.bootstraps, builderBootstrap{handle: bsm, args: []uint16{samType, impl, samType}})
	idx := p.invokeDynamic(uint16(len(m.owner.bootstraps)-1), samName, "()L"+iface+";")
	m.op(opInvokeDynamic, idx)
	m.code.u2(0)
	return m
}

// TableSwitch emits a tableswitch with the given number of cases. Jump
// offsets are left at zero.
func (m *MemberBuilder) TableSwitch(cases int) *MemberBuilder {
	m.code.u1(opTableSwitch)
	for len(m.code.buf)%4 != 0 {
		m.code.u1(0)
	}
	m.code.u4(0)
	m.code.u4(0)
	m.code.u4(uint32(cases - 1))
	for i := 0; i < cases; i++ {
		m.code.u4(0)
	}
	return m
}

func (m *MemberBuilder) hasCode() bool {
	return m.access&(AccAbstract|AccNative) == 0
}

// Bytes encodes the class file.
func (b *Builder) Bytes() []byte {
	p := b.pool
	var body writer

	body.u2(b.access)
	body.u2(p.class(b.name))
	if b.super != "" {
		body.u2(p.class(b.super))
	} else {
		body.u2(0)
	}
	body.u2(uint16(len(b.interfaces)))
	for _, iface := range b.interfaces {
		body.u2(p.class(iface))
	}

	for _, members := range [][]*MemberBuilder{b.fields, b.methods} {
		body.u2(uint16(len(members)))
		for _, m := range members {
			body.u2(m.access)
			body.u2(p.utf8(m.name))
			body.u2(p.utf8(m.desc))
			var attrs []encodedAttr
			if m.hasCode() && m.isMethod() {
				attrs = append(attrs, b.codeAttr(m))
			}
			if len(m.exceptions) > 0 {
				var w writer
				w.u2(uint16(len(m.exceptions)))
				for _, e := range m.exceptions {
					w.u2(p.class(e))
				}
				attrs = append(attrs, encodedAttr{AttrExceptions, w.buf})
			}
			attrs = append(attrs, b.commonAttrs(m.signature, m.annotations)...)
			writeAttrs(&body, p, attrs)
		}
	}

	attrs := b.commonAttrs(b.signature, b.annotations)
	if len(b.inner) > 0 {
		var w writer
		w.u2(uint16(len(b.inner)))
		for _, ic := range b.inner {
			w.u2(p.class(ic.Inner))
			if ic.Outer != "" {
				w.u2(p.class(ic.Outer))
			} else {
				w.u2(0)
			}
			if ic.Name != "" {
				w.u2(p.utf8(ic.Name))
			} else {
				w.u2(0)
			}
			w.u2(ic.Access)
		}
		attrs = append(attrs, encodedAttr{AttrInnerClasses, w.buf})
	}
	if len(b.bootstraps) > 0 {
		var w writer
		w.u2(uint16(len(b.bootstraps)))
		for _, bm := range b.bootstraps {
			w.u2(bm.handle)
			w.u2(uint16(len(bm.args)))
			for _, a := range bm.args {
				w.u2(a)
			}
		}
		attrs = append(attrs, encodedAttr{AttrBootstrapMethods, w.buf})
	}
	writeAttrs(&body, p, attrs)

	var out writer
	out.u4(Magic)
	out.u2(b.version.Minor)
	out.u2(b.version.Major)
	out.u2(p.next)
	out.raw(p.w.buf)
	out.raw(body.buf)
	return out.buf
}

func (m *MemberBuilder) isMethod() bool {
	for _, f := range m.owner.fields {
		if f == m {
			return false
		}
	}
	return true
}

type encodedAttr struct {
	name string
	info []byte
}

func writeAttrs(w *writer, p *poolBuilder, attrs []encodedAttr) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(p.utf8(a.name))
		w.u4(uint32(len(a.info)))
		w.raw(a.info)
	}
}

func (b *Builder) commonAttrs(signature string, annotations []string) []encodedAttr {
	var attrs []encodedAttr
	if signature != "" {
		var w writer
		w.u2(b.pool.utf8(signature))
		attrs = append(attrs, encodedAttr{AttrSignature, w.buf})
	}
	if len(annotations) > 0 {
		var w writer
		w.u2(uint16(len(annotations)))
		for _, a := range annotations {
			w.u2(b.pool.utf8("L" + a + ";"))
			w.u2(0)
		}
		attrs = append(attrs, encodedAttr{AttrRuntimeVisibleAnnotations, w.buf})
	}
	return attrs
}

func (b *Builder) codeAttr(m *MemberBuilder) encodedAttr {
	code := append(append([]byte{}, m.code.buf...), opReturn)
	var w writer
	w.u2(8)
	w.u2(8)
	w.u4(uint32(len(code)))
	w.raw(code)
	w.u2(uint16(len(m.catches)))
	for _, c := range m.catches {
		w.u2(0)
		w.u2(uint16(len(code)))
		w.u2(uint16(len(code) - 1))
		w.u2(b.pool.class(c))
	}
	w.u2(0)
	return encodedAttr{AttrCode, w.buf}
}
