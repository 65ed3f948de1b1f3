package keeprules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
)

// RuleFile is the YAML form of a rules file.
type RuleFile struct {
	Keep                   []ClassRule `yaml:"keep"`
	KeepClassMembers       []ClassRule `yaml:"keep_class_members"`
	KeepClassesWithMembers []ClassRule `yaml:"keep_classes_with_members"`
	WhyAreYouKeeping       []ClassRule `yaml:"why_are_you_keeping"`
}

// ClassRule is one class specification. Names are dotted and may carry a
// leading '!' to negate them.
type ClassRule struct {
	Class            StringList   `yaml:"class"`
	Type             string       `yaml:"type"`
	Modifiers        []string     `yaml:"modifiers"`
	Annotated        string       `yaml:"annotated"`
	Extends          string       `yaml:"extends"`
	ExtendsAnnotated string       `yaml:"extends_annotated"`
	AllowShrinking   bool         `yaml:"allow_shrinking"`
	AllowObfuscation bool         `yaml:"allow_obfuscation"`
	Fields           []FieldRule  `yaml:"fields"`
	Methods          []MethodRule `yaml:"methods"`
}

// FieldRule selects fields. "<fields>" selects all of them.
type FieldRule struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Modifiers []string `yaml:"modifiers"`
	Annotated string   `yaml:"annotated"`
}

// MethodRule selects methods. "<methods>" selects all of them; args is a
// comma separated list of Java types or "...".
type MethodRule struct {
	Name      string   `yaml:"name"`
	Args      string   `yaml:"args"`
	Returns   string   `yaml:"returns"`
	Modifiers []string `yaml:"modifiers"`
	Annotated string   `yaml:"annotated"`
}

// StringList accepts a scalar with comma separated values or a sequence.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = nil
		for _, part := range strings.Split(value.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*s = append(*s, part)
			}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list", value.Line)
	}
}

// RuleSet is a compiled rules file.
type RuleSet struct {
	Keep                   []*ClassSpecification
	KeepClassMembers       []*ClassSpecification
	KeepClassesWithMembers []*ClassSpecification
	WhyAreYouKeeping       []*ClassSpecification

	digest string
}

// Digest identifies the rules the set was compiled from. Equal rule files
// give equal digests regardless of formatting.
func (s *RuleSet) Digest() string {
	return s.digest
}

// KeepRules returns the matcher for the keep specifications.
func (s *RuleSet) KeepRules(diag *graph.Diagnostics) *KeepRules {
	return New(s.Keep, s.KeepClassMembers, s.KeepClassesWithMembers, diag)
}

// TraceTargets returns the matcher for why-are-you-keeping specifications,
// or nil if there are none.
func (s *RuleSet) TraceTargets(diag *graph.Diagnostics) *KeepRules {
	return NewTraceTargets(s.WhyAreYouKeeping, diag)
}

// LoadFile reads and compiles a rules file.
func LoadFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to open rules file", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads and compiles rules from r. Unknown keys are rejected.
func Load(r io.Reader) (*RuleSet, error) {
	var file RuleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to parse rules file", err)
	}
	return file.Compile()
}

// Compile turns the YAML form into class specifications.
func (f *RuleFile) Compile() (*RuleSet, error) {
	set := &RuleSet{}
	groups := []struct {
		name  string
		rules []ClassRule
		dst   *[]*ClassSpecification
	}{
		{"keep", f.Keep, &set.Keep},
		{"keep_class_members", f.KeepClassMembers, &set.KeepClassMembers},
		{"keep_classes_with_members", f.KeepClassesWithMembers, &set.KeepClassesWithMembers},
		{"why_are_you_keeping", f.WhyAreYouKeeping, &set.WhyAreYouKeeping},
	}
	for _, group := range groups {
		for i := range group.rules {
			spec, err := group.rules[i].compile()
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfigError, fmt.Sprintf("%s[%d]", group.name, i), err)
			}
			*group.dst = append(*group.dst, spec)
		}
	}
	b, err := yaml.Marshal(f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to encode rules", err)
	}
	set.digest = fmt.Sprintf("%016x", xxhash.Sum64(b))
	return set, nil
}

func (r *ClassRule) compile() (*ClassSpecification, error) {
	if len(r.Class) == 0 {
		return nil, fmt.Errorf("class is required")
	}
	spec := &ClassSpecification{
		KeepModifier: KeepModifier{AllowShrinking: r.AllowShrinking, AllowObfuscation: r.AllowObfuscation},
	}
	for _, name := range r.Class {
		negated := strings.HasPrefix(name, "!")
		ns, err := ClassName(strings.TrimPrefix(name, "!"), negated)
		if err != nil {
			return nil, err
		}
		spec.Names = append(spec.Names, ns)
	}

	var err error
	if spec.ClassType, err = parseClassType(r.Type); err != nil {
		return nil, err
	}
	if spec.Modifier, err = parseModifiers(r.Modifiers); err != nil {
		return nil, err
	}
	if spec.Annotation, err = optionalClassName(r.Annotated); err != nil {
		return nil, err
	}
	if r.Extends != "" {
		negated := strings.HasPrefix(r.Extends, "!")
		name, err := ClassName(strings.TrimPrefix(r.Extends, "!"), negated)
		if err != nil {
			return nil, err
		}
		annotation, err := optionalClassName(r.ExtendsAnnotated)
		if err != nil {
			return nil, err
		}
		spec.Inheritance = &InheritanceSpecification{Name: name, Annotation: annotation}
	}

	for _, fr := range r.Fields {
		field, err := fr.compile()
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, field)
	}
	for _, mr := range r.Methods {
		method, err := mr.compile()
		if err != nil {
			return nil, err
		}
		spec.Methods = append(spec.Methods, method)
	}
	return spec, nil
}

func (fr FieldRule) compile() (FieldSpecification, error) {
	name := fr.Name
	if name == "" || name == "<fields>" {
		name = "*"
	}
	var spec FieldSpecification
	var err error
	if spec.Name, err = MemberName(name); err != nil {
		return spec, err
	}
	if fr.Type != "" {
		t, err := descriptorPattern(typePattern(fr.Type))
		if err != nil {
			return spec, err
		}
		spec.Type = &t
	}
	if spec.Modifier, err = parseModifiers(fr.Modifiers); err != nil {
		return spec, err
	}
	spec.Annotation, err = optionalClassName(fr.Annotated)
	return spec, err
}

func (mr MethodRule) compile() (MethodSpecification, error) {
	name, args, ret := mr.Name, mr.Args, mr.Returns
	switch name {
	case "", "<methods>":
		name, args, ret = "*", "...", "***"
	case classfile.ConstructorName:
		ret = "void"
	}
	var spec MethodSpecification
	var err error
	if spec.Name, err = MemberName(name); err != nil {
		return spec, err
	}
	if spec.Descriptor, err = descriptorPattern(methodDescriptorPattern(args, ret)); err != nil {
		return spec, err
	}
	if spec.Modifier, err = parseModifiers(mr.Modifiers); err != nil {
		return spec, err
	}
	spec.Annotation, err = optionalClassName(mr.Annotated)
	return spec, err
}

func optionalClassName(pattern string) (*NameSpecification, error) {
	if pattern == "" {
		return nil, nil
	}
	negated := strings.HasPrefix(pattern, "!")
	ns, err := ClassName(strings.TrimPrefix(pattern, "!"), negated)
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

func parseClassType(s string) (*ClassTypeSpecification, error) {
	if s == "" {
		return nil, nil
	}
	negated := strings.HasPrefix(s, "!")
	switch strings.TrimPrefix(s, "!") {
	case "class":
		return &ClassTypeSpecification{Negated: negated}, nil
	case "interface":
		return &ClassTypeSpecification{Flags: classfile.AccInterface, Negated: negated}, nil
	case "enum":
		return &ClassTypeSpecification{Flags: classfile.AccEnum, Negated: negated}, nil
	case "@interface":
		return &ClassTypeSpecification{Flags: classfile.AccInterface | classfile.AccAnnotation, Negated: negated}, nil
	default:
		return nil, fmt.Errorf("unknown class type %q", s)
	}
}

func parseModifiers(list []string) (*ModifierSpecification, error) {
	if len(list) == 0 {
		return nil, nil
	}
	spec := &ModifierSpecification{}
	for _, item := range list {
		negated := strings.HasPrefix(item, "!")
		name := strings.ToLower(strings.TrimPrefix(item, "!"))
		if flag, ok := accessNames[name]; ok {
			spec.AddAccessFlag(flag, negated)
			continue
		}
		if mod, ok := modifierNames[name]; ok {
			spec.AddModifier(mod, negated)
			continue
		}
		return nil, fmt.Errorf("unknown modifier %q", item)
	}
	return spec, nil
}
