package keeprules

import (
	"strings"

	"github.com/gobwas/glob"

	apperrors "github.com/class-shrinker/pkg/errors"
)

// NameSpecification matches a name against a ProGuard style wildcard
// pattern. In class names '*' stops at package boundaries and '**' does not.
type NameSpecification struct {
	Pattern string
	Negated bool
	matcher glob.Glob
}

// ClassName compiles a dotted class name pattern such as "com.example.**".
// A lone "*" matches every class.
func ClassName(pattern string, negated bool) (NameSpecification, error) {
	expr := pattern
	if expr == "*" {
		expr = "**"
	}
	g, err := glob.Compile(convertName(expr), '/')
	if err != nil {
		return NameSpecification{}, apperrors.Wrap(apperrors.CodeConfigError, "bad class pattern "+pattern, err)
	}
	return NameSpecification{Pattern: pattern, Negated: negated, matcher: g}, nil
}

// MemberName compiles a field or method name pattern.
func MemberName(pattern string) (NameSpecification, error) {
	g, err := glob.Compile(escapeMeta(pattern))
	if err != nil {
		return NameSpecification{}, apperrors.Wrap(apperrors.CodeConfigError, "bad member pattern "+pattern, err)
	}
	return NameSpecification{Pattern: pattern, matcher: g}, nil
}

// descriptorPattern compiles an already converted descriptor pattern.
func descriptorPattern(pattern string) (NameSpecification, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return NameSpecification{}, apperrors.Wrap(apperrors.CodeConfigError, "bad type pattern "+pattern, err)
	}
	return NameSpecification{Pattern: pattern, matcher: g}, nil
}

// Matches reports whether name matches, honoring negation.
func (n NameSpecification) Matches(name string) bool {
	return n.matcher.Match(name) != n.Negated
}

// MatchesClassName applies a name list: the first pattern that matches
// decides, a negated one excluding the name. A name no pattern matches is
// accepted only when the list ends with a negation, so "!a.B" alone means
// every class but a/B.
func MatchesClassName(specs []NameSpecification, name string) bool {
	for _, s := range specs {
		if s.matcher.Match(name) {
			return !s.Negated
		}
	}
	return len(specs) > 0 && specs[len(specs)-1].Negated
}

// convertName turns a dotted name pattern into a '/' separated glob.
func convertName(name string) string {
	return escapeMeta(strings.ReplaceAll(name, ".", "/"))
}

// escapeMeta quotes glob syntax ProGuard patterns do not use. '*' and '?'
// keep their wildcard meaning.
func escapeMeta(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '[', ']', '{', '}', '\\', '!':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var primitiveDescriptors = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"float":   "F",
	"double":  "D",
	"long":    "J",
	"void":    "V",
}

// typePattern converts a Java type as written in a rule ("int",
// "java.lang.String[]", "***", "%") into a descriptor glob.
func typePattern(javaType string) string {
	javaType = strings.TrimSpace(javaType)
	dims := 0
	for strings.HasSuffix(javaType, "[]") {
		dims++
		javaType = strings.TrimSpace(strings.TrimSuffix(javaType, "[]"))
	}

	var sb strings.Builder
	for i := 0; i < dims; i++ {
		sb.WriteString(`\[`)
	}
	switch javaType {
	case "***", "...":
		sb.WriteString("**")
	case "%":
		sb.WriteString("[BCDFIJSZ]")
	default:
		if d, ok := primitiveDescriptors[javaType]; ok {
			sb.WriteString(d)
		} else {
			sb.WriteString("L" + convertName(javaType) + ";")
		}
	}
	return sb.String()
}

// methodDescriptorPattern builds the glob for "(args)ret". args is a comma
// separated list; "..." matches any argument list.
func methodDescriptorPattern(args, ret string) string {
	var sb strings.Builder
	sb.WriteString(`(`)
	if args = strings.TrimSpace(args); args != "" {
		for _, a := range strings.Split(args, ",") {
			sb.WriteString(typePattern(a))
		}
	}
	sb.WriteString(`)`)
	if strings.TrimSpace(ret) == "" {
		ret = "void"
	}
	sb.WriteString(typePattern(ret))
	return sb.String()
}
