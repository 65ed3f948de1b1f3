package classfile

import "fmt"

// RefKind classifies a symbolic reference found in a method body.
type RefKind int

const (
	// RefClass is a type instruction, class literal or catch type.
	RefClass RefKind = iota
	// RefFieldAccess is a field instruction or field method handle.
	RefFieldAccess
	// RefMethodCall is an invoke instruction or method handle.
	RefMethodCall
	// RefMethodType is a method type constant or call site descriptor.
	RefMethodType
	// RefClassForName is a constant string passed straight to Class.forName.
	RefClassForName
)

// CodeRef is one reference found while scanning a method body.
type CodeRef struct {
	Kind          RefKind
	Class         string
	Name          string
	Desc          string
	InvokeSpecial bool
}

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	Handle    uint16
	Arguments []uint16
}

// BootstrapMethods decodes the class's BootstrapMethods attribute.
func (c *ClassFile) BootstrapMethods() ([]BootstrapMethod, error) {
	a, ok := c.Attribute(AttrBootstrapMethods)
	if !ok {
		return nil, nil
	}
	r := newReader(a.Info)
	count := int(r.u2())
	out := make([]BootstrapMethod, 0, count)
	for i := 0; i < count; i++ {
		bm := BootstrapMethod{Handle: r.u2()}
		n := int(r.u2())
		for j := 0; j < n; j++ {
			bm.Arguments = append(bm.Arguments, r.u2())
		}
		out = append(out, bm)
	}
	return out, r.err
}

// ScanCode lists the references made by a method body. Methods without a
// Code attribute yield nothing.
func (c *ClassFile) ScanCode(m *Member) ([]CodeRef, error) {
	a, ok := m.Attribute(AttrCode)
	if !ok {
		return nil, nil
	}
	refs, err := c.scanCode(a.Info)
	if err != nil {
		return nil, fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Descriptor, err)
	}
	return refs, nil
}

func (c *ClassFile) scanCode(info []byte) ([]CodeRef, error) {
	r := newReader(info)
	r.skip(4) // max_stack, max_locals
	code := r.bytes(int(r.u4()))
	if r.err != nil {
		return nil, r.err
	}

	s := &scanner{cf: c}
	if err := s.instructions(code); err != nil {
		return nil, err
	}

	handlers := int(r.u2())
	for i := 0; i < handlers; i++ {
		r.skip(6)
		if catchType := r.u2(); catchType != 0 && r.err == nil {
			if err := s.classConstant(catchType); err != nil {
				return nil, err
			}
		}
	}
	return s.refs, r.err
}

type scanner struct {
	cf         *ClassFile
	refs       []CodeRef
	bootstraps []BootstrapMethod
}

func (s *scanner) add(ref CodeRef) {
	s.refs = append(s.refs, ref)
}

func (s *scanner) instructions(code []byte) error {
	// pendingString holds a String constant loaded by the previous
	// instruction, for the Class.forName pattern.
	pendingString := ""
	for pc := 0; pc < len(code); {
		op := code[pc]
		length, err := instructionLength(code, pc)
		if err != nil {
			return err
		}
		if pc+length > len(code) {
			return fmt.Errorf("instruction at %d overruns code", pc)
		}
		operand := func() uint16 { return uint16(code[pc+1])<<8 | uint16(code[pc+2]) }

		loaded := ""
		switch op {
		case opLdc:
			loaded, err = s.loadConstant(uint16(code[pc+1]))
		case opLdcW:
			loaded, err = s.loadConstant(operand())
		case opGetStatic, opPutStatic, opGetField, opPutField:
			err = s.memberRef(operand(), false)
		case opInvokeVirtual, opInvokeStatic, opInvokeInterface:
			if op == opInvokeStatic && pendingString != "" {
				if ref, e := s.cf.Pool.Member(operand()); e == nil &&
					ref.Owner == classForNameOwner && ref.Name == classForNameName && ref.Desc == classForNameDesc {
					s.add(CodeRef{Kind: RefClassForName, Class: ToInternalName(pendingString)})
				}
			}
			err = s.memberRef(operand(), false)
		case opInvokeSpecial:
			err = s.memberRef(operand(), true)
		case opInvokeDynamic:
			err = s.invokeDynamic(operand())
		case opNew, opANewArray, opCheckCast, opInstanceOf, opMultiANewArray:
			err = s.classConstant(operand())
		}
		if err != nil {
			return fmt.Errorf("instruction at %d: %w", pc, err)
		}
		pendingString = loaded
		pc += length
	}
	return nil
}

func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	switch op {
	case opTableSwitch, opLookupSwitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+12 > len(code) {
			return 0, fmt.Errorf("truncated switch at %d", pc)
		}
		word := func(off int) int {
			return int(int32(uint32(code[off])<<24 | uint32(code[off+1])<<16 | uint32(code[off+2])<<8 | uint32(code[off+3])))
		}
		if op == opTableSwitch {
			low, high := word(base+4), word(base+8)
			if high < low {
				return 0, fmt.Errorf("bad tableswitch bounds at %d", pc)
			}
			return 1 + pad + 12 + (high-low+1)*4, nil
		}
		npairs := word(base + 4)
		if npairs < 0 {
			return 0, fmt.Errorf("bad lookupswitch size at %d", pc)
		}
		return 1 + pad + 8 + npairs*8, nil
	case opWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at %d", pc)
		}
		if code[pc+1] == opIinc {
			return 6, nil
		}
		return 4, nil
	}
	if n := instructionLengths[op]; n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("unknown opcode 0x%02x at %d", op, pc)
}

func (s *scanner) classConstant(index uint16) error {
	name, err := s.cf.Pool.ClassName(index)
	if err != nil {
		return err
	}
	if elem, ok := ElementClass(name); ok {
		s.add(CodeRef{Kind: RefClass, Class: elem})
	}
	return nil
}

func (s *scanner) memberRef(index uint16, invokeSpecial bool) error {
	ref, err := s.cf.Pool.Member(index)
	if err != nil {
		return err
	}
	s.addMember(ref, invokeSpecial)
	return nil
}

func (s *scanner) addMember(ref MemberRef, invokeSpecial bool) {
	kind := RefMethodCall
	if ref.Field {
		kind = RefFieldAccess
	}
	owner, ok := ElementClass(ref.Owner)
	if !ok {
		return
	}
	if IsArrayName(ref.Owner) {
		// Methods called on arrays are inherited from Object.
		owner = ObjectClass
	}
	s.add(CodeRef{Kind: kind, Class: owner, Name: ref.Name, Desc: ref.Desc, InvokeSpecial: invokeSpecial})
}

// loadConstant handles ldc operands. It returns the string value of a
// String constant so the caller can detect Class.forName.
func (s *scanner) loadConstant(index uint16) (string, error) {
	c, err := s.cf.Pool.Entry(index)
	if err != nil {
		return "", err
	}
	switch c.Tag {
	case TagString:
		return s.cf.Pool.UTF8(c.A)
	case TagClass:
		return "", s.classConstant(index)
	case TagMethodType:
		desc, err := s.cf.Pool.UTF8(c.A)
		if err != nil {
			return "", err
		}
		s.add(CodeRef{Kind: RefMethodType, Desc: desc})
	case TagMethodHandle:
		return "", s.methodHandle(index)
	}
	return "", nil
}

func (s *scanner) methodHandle(index uint16) error {
	c, err := s.cf.Pool.Entry(index)
	if err != nil {
		return err
	}
	if c.Tag != TagMethodHandle {
		return fmt.Errorf("constant %d is not a method handle", index)
	}
	ref, err := s.cf.Pool.Member(c.B)
	if err != nil {
		return err
	}
	s.addMember(ref, false)
	return nil
}

func (s *scanner) invokeDynamic(index uint16) error {
	c, err := s.cf.Pool.Entry(index)
	if err != nil {
		return err
	}
	if c.Tag != TagInvokeDynamic {
		return fmt.Errorf("constant %d is not invokedynamic", index)
	}
	_, desc, err := s.cf.Pool.NameAndType(c.B)
	if err != nil {
		return err
	}
	s.add(CodeRef{Kind: RefMethodType, Desc: desc})

	if s.bootstraps == nil {
		if s.bootstraps, err = s.cf.BootstrapMethods(); err != nil {
			return err
		}
	}
	if int(c.A) >= len(s.bootstraps) {
		return fmt.Errorf("bootstrap method %d out of range", c.A)
	}
	bm := s.bootstraps[c.A]
	if err := s.methodHandle(bm.Handle); err != nil {
		return err
	}
	for _, arg := range bm.Arguments {
		if _, err := s.loadConstant(arg); err != nil {
			return err
		}
	}
	return nil
}
