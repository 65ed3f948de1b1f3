package classfile

import (
	"fmt"
	"strings"
)

// SignatureClasses returns every class named by a generic signature,
// including inner class types in "Outer$Inner" form.
func SignatureClasses(sig string) ([]string, error) {
	w := &sigWalker{s: sig}
	if err := w.walk(); err != nil {
		return nil, err
	}
	return w.names, nil
}

// RemapSignature rewrites a generic signature replacing every class type
// for which keep returns false with java/lang/Object. Type arguments of a
// replaced type are dropped with it.
func RemapSignature(sig string, keep func(string) bool) (string, error) {
	w := &sigWalker{s: sig, keep: keep, out: &strings.Builder{}}
	if err := w.walk(); err != nil {
		return "", err
	}
	return w.out.String(), nil
}

type sigWalker struct {
	s     string
	i     int
	names []string
	keep  func(string) bool
	out   *strings.Builder
}

func (w *sigWalker) fail(what string) error {
	return fmt.Errorf("invalid signature %q at %d: %s", w.s, w.i, what)
}

func (w *sigWalker) peek() byte {
	if w.i >= len(w.s) {
		return 0
	}
	return w.s[w.i]
}

func (w *sigWalker) emit(s string) {
	if w.out != nil {
		w.out.WriteString(s)
	}
}

// copyByte moves one byte to the output.
func (w *sigWalker) copyByte() {
	w.emit(w.s[w.i : w.i+1])
	w.i++
}

func (w *sigWalker) walk() error {
	if w.peek() == '<' {
		if err := w.typeParameters(); err != nil {
			return err
		}
	}
	if w.peek() == '(' {
		w.copyByte()
		for w.peek() != ')' {
			if w.i >= len(w.s) {
				return w.fail("unterminated parameter list")
			}
			if err := w.javaType(); err != nil {
				return err
			}
		}
		w.copyByte()
		if w.peek() == 'V' {
			w.copyByte()
		} else if err := w.javaType(); err != nil {
			return err
		}
		for w.peek() == '^' {
			w.copyByte()
			if err := w.referenceType(); err != nil {
				return err
			}
		}
	} else {
		for w.i < len(w.s) {
			if err := w.referenceType(); err != nil {
				return err
			}
		}
	}
	if w.i != len(w.s) {
		return w.fail("trailing characters")
	}
	return nil
}

func (w *sigWalker) typeParameters() error {
	w.copyByte() // '<'
	for w.peek() != '>' {
		colon := strings.IndexByte(w.s[w.i:], ':')
		if colon <= 0 {
			return w.fail("type parameter without bound")
		}
		w.emit(w.s[w.i : w.i+colon])
		w.i += colon
		// class bound, possibly empty
		w.copyByte()
		if c := w.peek(); c != ':' && c != '>' {
			if err := w.referenceType(); err != nil {
				return err
			}
		}
		for w.peek() == ':' {
			w.copyByte()
			if err := w.referenceType(); err != nil {
				return err
			}
		}
		if w.i >= len(w.s) {
			return w.fail("unterminated type parameters")
		}
	}
	w.copyByte()
	return nil
}

func (w *sigWalker) javaType() error {
	switch w.peek() {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		w.copyByte()
		return nil
	}
	return w.referenceType()
}

func (w *sigWalker) referenceType() error {
	switch w.peek() {
	case 'L':
		return w.classType()
	case 'T':
		end := strings.IndexByte(w.s[w.i:], ';')
		if end < 0 {
			return w.fail("unterminated type variable")
		}
		w.emit(w.s[w.i : w.i+end+1])
		w.i += end + 1
		return nil
	case '[':
		w.copyByte()
		return w.javaType()
	}
	return w.fail("expected reference type")
}

// classType handles one ClassTypeSignature including nested type
// arguments and inner class suffixes.
func (w *sigWalker) classType() error {
	start := w.i
	w.i++ // 'L'

	// The type is rendered aside so it can be replaced as a whole when one
	// of its names is dropped.
	var rendered strings.Builder
	rendered.WriteByte('L')
	var own []string

	name := w.identifier()
	if name == "" {
		return w.fail("empty class name")
	}
	current := name
	own = append(own, current)
	rendered.WriteString(name)

	for {
		switch w.peek() {
		case '<':
			args, err := w.typeArguments()
			if err != nil {
				return err
			}
			rendered.WriteString(args)
		case '.':
			w.i++
			inner := w.identifier()
			if inner == "" {
				return w.fail("empty inner class name")
			}
			current = current + "$" + inner
			own = append(own, current)
			rendered.WriteByte('.')
			rendered.WriteString(inner)
		case ';':
			w.i++
			rendered.WriteByte(';')
			w.names = append(w.names, own...)
			if w.out != nil {
				kept := true
				for _, n := range own {
					if !w.keep(n) {
						kept = false
						break
					}
				}
				if kept {
					w.out.WriteString(rendered.String())
				} else {
					w.out.WriteString("L" + ObjectClass + ";")
				}
			}
			return nil
		default:
			w.i = start
			return w.fail("unterminated class type")
		}
	}
}

func (w *sigWalker) identifier() string {
	start := w.i
	for w.i < len(w.s) {
		switch w.s[w.i] {
		case '<', '.', ';':
			return w.s[start:w.i]
		}
		w.i++
	}
	return w.s[start:w.i]
}

func (w *sigWalker) typeArguments() (string, error) {
	// Render arguments into a separate buffer.
	saved := w.out
	var buf strings.Builder
	if saved != nil {
		w.out = &buf
	}
	defer func() { w.out = saved }()

	w.i++ // '<'
	buf.WriteByte('<')
	for w.peek() != '>' {
		switch w.peek() {
		case 0:
			return "", w.fail("unterminated type arguments")
		case '*':
			w.copyByte()
			continue
		case '+', '-':
			w.copyByte()
		}
		if err := w.referenceType(); err != nil {
			return "", err
		}
	}
	w.i++
	buf.WriteByte('>')
	return buf.String(), nil
}
