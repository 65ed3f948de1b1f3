package classfile

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/class-shrinker/pkg/errors"
)

// Version is a class file format version.
type Version struct {
	Major uint16
	Minor uint16
}

// ParseVersion accepts a Java release ("1.7", "8", "17") or a raw major
// version ("52").
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	release := strings.TrimPrefix(s, "1.")
	n, err := strconv.Atoi(release)
	if err != nil {
		return Version{}, apperrors.Newf(apperrors.CodeConfigError, "invalid bytecode version %q", s)
	}
	switch {
	case n >= 44:
		return Version{Major: uint16(n)}, nil
	case n >= 1 && n <= 30:
		return Version{Major: uint16(44 + n)}, nil
	}
	return Version{}, apperrors.Newf(apperrors.CodeConfigError, "unsupported bytecode version %q", s)
}

// RewriteOptions controls Rewrite.
type RewriteOptions struct {
	// KeepMember receives "name:descriptor".
	KeepMember func(key string) bool
	// KeepClass decides whether interfaces, inner class entries, nest
	// members and signature types naming a class survive.
	KeepClass func(name string) bool
	// Version overrides the class file version when set.
	Version *Version
}

// Rewrite returns a copy of the class without the dropped members,
// interfaces and inner class entries, with generic signatures remapped.
// The original constant pool is kept; new strings are appended to it.
func Rewrite(data []byte, opts RewriteOptions) ([]byte, error) {
	cf, err := Parse(data)
	if err != nil {
		return nil, err
	}
	rw := &rewriter{cf: cf, opts: opts, added: map[string]uint16{}, next: uint16(cf.Pool.Len())}
	out, err := rw.write()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, fmt.Sprintf("rewrite %s", cf.Name), err)
	}
	return out, nil
}

type rewriter struct {
	cf    *ClassFile
	opts  RewriteOptions
	added map[string]uint16
	order []string
	next  uint16
}

func (rw *rewriter) utf8Index(s string) uint16 {
	if idx, ok := rw.added[s]; ok {
		return idx
	}
	idx := rw.next
	rw.next++
	rw.added[s] = idx
	rw.order = append(rw.order, s)
	return idx
}

func (rw *rewriter) write() ([]byte, error) {
	cf := rw.cf
	var body writer

	body.u2(cf.Access)
	body.u2(cf.ThisClass)
	body.u2(cf.SuperClass)

	var ifaces []uint16
	for i, idx := range cf.Interfaces {
		if rw.opts.KeepClass(cf.InterfaceList[i]) {
			ifaces = append(ifaces, idx)
		}
	}
	body.u2(uint16(len(ifaces)))
	for _, idx := range ifaces {
		body.u2(idx)
	}

	for _, members := range [][]*Member{cf.Fields, cf.Methods} {
		var kept []*Member
		for _, m := range members {
			if rw.opts.KeepMember(m.Key()) {
				kept = append(kept, m)
			}
		}
		body.u2(uint16(len(kept)))
		for _, m := range kept {
			body.u2(m.Access)
			body.u2(m.NameIndex)
			body.u2(m.DescIndex)
			if err := rw.attributes(&body, m.Attributes); err != nil {
				return nil, fmt.Errorf("%s: %w", m.Key(), err)
			}
		}
	}
	if err := rw.attributes(&body, cf.Attributes); err != nil {
		return nil, err
	}
	if int(rw.next) > 0xffff {
		return nil, fmt.Errorf("constant pool overflow")
	}

	var out writer
	out.u4(Magic)
	minor, major := cf.Minor, cf.Major
	if rw.opts.Version != nil {
		minor, major = rw.opts.Version.Minor, rw.opts.Version.Major
	}
	out.u2(minor)
	out.u2(major)
	out.u2(rw.next)
	out.raw(cf.Pool.raw)
	for _, s := range rw.order {
		out.u1(TagUTF8)
		out.utf8(s)
	}
	out.raw(body.buf)
	return out.buf, nil
}

func (rw *rewriter) attributes(w *writer, attrs []Attribute) error {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		info := a.Info
		var err error
		switch a.Name {
		case AttrSignature:
			info, err = rw.signature(a.Info)
		case AttrInnerClasses:
			info, err = rw.filterInnerClasses(a.Info)
		case AttrNestMembers:
			info, err = rw.filterClassList(a.Info)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		w.u2(a.NameIndex)
		w.u4(uint32(len(info)))
		w.raw(info)
	}
	return nil
}

func (rw *rewriter) signature(info []byte) ([]byte, error) {
	r := newReader(info)
	idx := r.u2()
	if r.err != nil {
		return nil, r.err
	}
	sig, err := rw.cf.Pool.UTF8(idx)
	if err != nil {
		return nil, err
	}
	remapped, err := RemapSignature(sig, rw.opts.KeepClass)
	if err != nil {
		return nil, err
	}
	if remapped == sig {
		return info, nil
	}
	var w writer
	w.u2(rw.utf8Index(remapped))
	return w.buf, nil
}

func (rw *rewriter) filterInnerClasses(info []byte) ([]byte, error) {
	r := newReader(info)
	count := int(r.u2())
	var kept [][]byte
	for i := 0; i < count; i++ {
		entry := r.bytes(8)
		if r.err != nil {
			return nil, r.err
		}
		name, err := rw.cf.Pool.ClassName(uint16(entry[0])<<8 | uint16(entry[1]))
		if err != nil {
			return nil, err
		}
		if rw.opts.KeepClass(name) {
			kept = append(kept, entry)
		}
	}
	var w writer
	w.u2(uint16(len(kept)))
	for _, e := range kept {
		w.raw(e)
	}
	return w.buf, nil
}

func (rw *rewriter) filterClassList(info []byte) ([]byte, error) {
	r := newReader(info)
	count := int(r.u2())
	var kept []uint16
	for i := 0; i < count; i++ {
		idx := r.u2()
		if r.err != nil {
			return nil, r.err
		}
		name, err := rw.cf.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		if rw.opts.KeepClass(name) {
			kept = append(kept, idx)
		}
	}
	var w writer
	w.u2(uint16(len(kept)))
	for _, idx := range kept {
		w.u2(idx)
	}
	return w.buf, nil
}
