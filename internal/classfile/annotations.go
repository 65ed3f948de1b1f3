package classfile

import "fmt"

// Annotations holds the annotation types declared on a class or member and
// the classes referenced from their element values (class literals and enum
// types).
type Annotations struct {
	Types      []string
	Referenced []string
}

// ReadAnnotations decodes the visible and invisible annotation attributes
// of a class or member.
func ReadAnnotations(pool *ConstantPool, attrs []Attribute) (Annotations, error) {
	var out Annotations
	for _, name := range []string{AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations} {
		a, ok := findAttribute(attrs, name)
		if !ok {
			continue
		}
		r := newReader(a.Info)
		count := int(r.u2())
		for i := 0; i < count; i++ {
			typ, err := readAnnotation(r, pool, &out)
			if err != nil {
				return Annotations{}, fmt.Errorf("%s: %w", name, err)
			}
			out.Types = append(out.Types, typ)
		}
		if r.err != nil {
			return Annotations{}, fmt.Errorf("%s: %w", name, r.err)
		}
	}
	return out, nil
}

func readAnnotation(r *reader, pool *ConstantPool, acc *Annotations) (string, error) {
	desc, err := pool.UTF8(r.u2())
	if r.err != nil {
		return "", r.err
	}
	if err != nil {
		return "", err
	}
	typ, ok := descriptorClass(desc)
	if !ok {
		return "", fmt.Errorf("annotation type %q is not a class", desc)
	}
	pairs := int(r.u2())
	for i := 0; i < pairs; i++ {
		r.u2() // element name
		if err := readElementValue(r, pool, acc); err != nil {
			return "", err
		}
	}
	return typ, r.err
}

func readElementValue(r *reader, pool *ConstantPool, acc *Annotations) error {
	tag := r.u1()
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		r.u2()
	case 'e':
		desc, err := pool.UTF8(r.u2())
		if err != nil {
			return err
		}
		r.u2()
		acc.Referenced = append(acc.Referenced, DescriptorClasses(desc)...)
	case 'c':
		desc, err := pool.UTF8(r.u2())
		if err != nil {
			return err
		}
		acc.Referenced = append(acc.Referenced, DescriptorClasses(desc)...)
	case '@':
		typ, err := readAnnotation(r, pool, acc)
		if err != nil {
			return err
		}
		acc.Referenced = append(acc.Referenced, typ)
	case '[':
		count := int(r.u2())
		for i := 0; i < count; i++ {
			if err := readElementValue(r, pool, acc); err != nil {
				return err
			}
		}
	default:
		if r.err != nil {
			return r.err
		}
		return fmt.Errorf("unknown element value tag %q", tag)
	}
	return r.err
}

func descriptorClass(desc string) (string, bool) {
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1], true
	}
	return "", false
}
