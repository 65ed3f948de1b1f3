package classfile

import "strings"

// DescriptorClasses returns the class names mentioned in a field or method
// descriptor, in order of appearance. Array dimensions are stripped.
func DescriptorClasses(desc string) []string {
	var out []string
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			break
		}
		out = append(out, desc[i+1:i+end])
		i += end
	}
	return out
}

// ElementClass returns the class underlying a Class constant. Plain class
// names are returned unchanged; array names yield their element class, or
// false for arrays of primitives.
func ElementClass(name string) (string, bool) {
	if !IsArrayName(name) {
		return name, true
	}
	trimmed := strings.TrimLeft(name, "[")
	if len(trimmed) > 2 && trimmed[0] == 'L' && trimmed[len(trimmed)-1] == ';' {
		return trimmed[1 : len(trimmed)-1], true
	}
	return "", false
}

// ToInternalName converts a binary name such as "a.b.C" into "a/b/C".
func ToInternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// ToBinaryName converts an internal name such as "a/b/C" into "a.b.C".
func ToBinaryName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
