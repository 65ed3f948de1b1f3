// Package ingest reads class files into the dependency graph.
//
// Library classes are declared with their members only. Program classes
// additionally get their structural and code edges, and leave the
// hierarchy-dependent work for the finisher in a PostProcessingData.
package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/filter"
	"github.com/class-shrinker/pkg/model"
	"github.com/class-shrinker/pkg/parallel"
	"github.com/class-shrinker/pkg/utils"
)

// Inputs are the class sources of a full run.
type Inputs struct {
	// Program classes are shrunk and rewritten.
	Program []model.TransformInput
	// Libraries are referenced but never rewritten.
	Libraries []model.TransformInput
	// PlatformJars are library jars outside the transform inputs.
	PlatformJars []string
}

// Stats counts what a pass read.
type Stats struct {
	LibraryClasses int
	ProgramClasses int
}

// Ingester feeds class files into a graph on a shared executor.
type Ingester struct {
	graph    *graph.Graph
	executor *parallel.Executor
	logger   utils.Logger
	sdk      *filter.ClassFilter
	data     *PostProcessingData
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(in *Ingester) {
		in.logger = logger
	}
}

// WithSDKFilter drops code references into SDK packages early. SDK classes
// are library code, so the dropped edges never change what is written.
func WithSDKFilter(f *filter.ClassFilter) Option {
	return func(in *Ingester) {
		in.sdk = f
	}
}

// New creates an Ingester writing into g.
func New(g *graph.Graph, executor *parallel.Executor, opts ...Option) *Ingester {
	in := &Ingester{
		graph:    g,
		executor: executor,
		logger:   &utils.NullLogger{},
		data:     NewPostProcessingData(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Data returns the work collected for the finisher.
func (in *Ingester) Data() *PostProcessingData {
	return in.data
}

// Ingest reads every library class, waits, then reads every program class.
// A malformed class aborts the run with PARSE_ERROR.
func (in *Ingester) Ingest(ctx context.Context, inputs Inputs) (Stats, error) {
	var stats Stats
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	w := &walker{}
	var libs []classEntry
	for _, path := range inputs.PlatformJars {
		entries, err := w.jar(path)
		if err != nil {
			_ = w.close()
			return stats, err
		}
		libs = append(libs, entries...)
	}
	entries, err := in.collect(w, inputs.Libraries)
	if err != nil {
		_ = w.close()
		return stats, err
	}
	libs = append(libs, entries...)

	stats.LibraryClasses = len(libs)
	in.logger.Debug("reading %d library classes", len(libs))
	for _, e := range libs {
		e := e
		in.executor.Go(func(ctx context.Context) error {
			_, _, err := in.declare(e, false)
			return err
		})
	}
	err = in.executor.Wait()
	if cerr := w.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return stats, err
	}

	w = &walker{}
	program, err := in.collect(w, inputs.Program)
	if err != nil {
		_ = w.close()
		return stats, err
	}
	stats.ProgramClasses = len(program)
	in.logger.Debug("reading %d program classes", len(program))
	for _, e := range program {
		e := e
		in.executor.Go(func(ctx context.Context) error {
			cf, id, err := in.declare(e, true)
			if err != nil {
				return err
			}
			return in.findDependencies(cf, id)
		})
	}
	err = in.executor.Wait()
	if cerr := w.close(); err == nil {
		err = cerr
	}
	return stats, err
}

func (in *Ingester) collect(w *walker, inputs []model.TransformInput) ([]classEntry, error) {
	var out []classEntry
	for _, input := range inputs {
		for _, jar := range input.Jars {
			if !jar.HasClasses() {
				continue
			}
			entries, err := w.jar(jar.Path)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		}
		for _, dir := range input.Directories {
			if !dir.HasClasses() {
				continue
			}
			entries, err := w.directory(dir.Path)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		}
	}
	return out, nil
}

// parsed is a class file with the attributes both passes need.
type parsed struct {
	cf          *classfile.ClassFile
	annotations classfile.Annotations
	sigTypes    []string
	members     map[*classfile.Member]classfile.Annotations
}

func parseEntry(e classEntry) (*parsed, error) {
	data, err := e.read()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIOError, "failed to read "+e.source.String(), err)
	}
	p, err := parseClass(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to parse "+e.source.String(), err)
	}
	return p, nil
}

func parseClass(data []byte) (*parsed, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	p := &parsed{cf: cf, members: make(map[*classfile.Member]classfile.Annotations)}

	if p.annotations, err = classfile.ReadAnnotations(cf.Pool, cf.Attributes); err != nil {
		return nil, err
	}
	for _, m := range cf.Members() {
		anns, err := classfile.ReadAnnotations(cf.Pool, m.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", cf.Name, m.Key(), err)
		}
		p.members[m] = anns
	}
	if p.sigTypes, err = signatureTypes(cf); err != nil {
		return nil, err
	}
	return p, nil
}

// signatureTypes returns the sorted classes named by the generic
// signatures of the class and its members.
func signatureTypes(cf *classfile.ClassFile) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(attrs []classfile.Attribute) error {
		sig, ok, err := classfile.Signature(cf.Pool, attrs)
		if err != nil || !ok {
			return err
		}
		classes, err := classfile.SignatureClasses(sig)
		if err != nil {
			return err
		}
		for _, c := range classes {
			seen[c] = struct{}{}
		}
		return nil
	}

	if err := add(cf.Attributes); err != nil {
		return nil, err
	}
	for _, m := range cf.Members() {
		if err := add(m.Attributes); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// declare runs the structure pass: the class and its members become
// declared nodes.
func (in *Ingester) declare(e classEntry, program bool) (*parsed, graph.NodeID, error) {
	p, err := parseEntry(e)
	if err != nil {
		return nil, graph.InvalidNode, err
	}
	cf := p.cf

	id, accepted, err := in.graph.DeclareClass(graph.ClassInfo{
		Name:           cf.Name,
		Superclass:     cf.SuperName,
		Interfaces:     cf.InterfaceList,
		Access:         cf.Access,
		Program:        program,
		Source:         e.source,
		Annotations:    p.annotations.Types,
		SignatureTypes: p.sigTypes,
	})
	if err != nil {
		return nil, graph.InvalidNode, err
	}
	if !accepted {
		in.logger.Debug("ignoring %s from %s, already declared", cf.Name, e.source)
		return p, id, nil
	}

	for _, m := range cf.Members() {
		in.graph.DeclareMember(id, graph.MemberInfo{
			Name:        m.Name,
			Descriptor:  m.Descriptor,
			Access:      m.Access,
			Annotations: p.members[m].Types,
		})
	}
	return p, id, nil
}

// findDependencies adds the edges of a program class and records its
// finisher candidates.
func (in *Ingester) findDependencies(p *parsed, class graph.NodeID) error {
	cf := p.cf
	g := in.graph

	if cf.SuperName != "" {
		in.addClassEdge(class, cf.SuperName, graph.RequiredClassStructure)
	}
	in.addAnnotationEdges(class, p.annotations)

	if len(cf.InterfaceList) > 0 || cf.IsInterface() {
		in.data.AddInterfaceInheritance(class)
	}
	if len(cf.InterfaceList) > 0 && !cf.IsInterface() {
		in.data.AddMultipleInheritance(class)
	}

	for _, m := range cf.Members() {
		member, _ := g.Member(cf.Name, m.Name, m.Descriptor)
		g.AddDependency(member, class, graph.RequiredClassStructure)
		for _, c := range classfile.DescriptorClasses(m.Descriptor) {
			in.addClassEdge(member, c, graph.RequiredClassStructure)
		}
		in.addAnnotationEdges(member, p.members[m])

		if !graph.IsMethodDescriptor(m.Descriptor) {
			continue
		}
		if m.Name == classfile.StaticInitName {
			g.AddDependency(class, member, graph.RequiredClassStructure)
		}
		if isVirtual(m) {
			in.data.AddVirtualMethod(member)
		}

		exceptions, err := classfile.Exceptions(cf.Pool, m)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeParseError, "failed to read exceptions of "+graph.MemberKey(cf.Name, m.Name, m.Descriptor), err)
		}
		for _, c := range exceptions {
			in.addClassEdge(member, c, graph.RequiredClassStructure)
		}
		if err := in.scanMethod(cf, member, m); err != nil {
			return err
		}
	}
	return nil
}

func isVirtual(m *classfile.Member) bool {
	return m.Access&(classfile.AccStatic|classfile.AccPrivate) == 0 &&
		m.Name != classfile.ConstructorName &&
		m.Name != classfile.StaticInitName
}

// scanMethod adds the code edges of one method body.
func (in *Ingester) scanMethod(cf *classfile.ClassFile, method graph.NodeID, m *classfile.Member) error {
	refs, err := cf.ScanCode(m)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeParseError, "malformed code", err)
	}
	for _, ref := range refs {
		switch ref.Kind {
		case classfile.RefClass:
			in.addClassEdge(method, ref.Class, graph.RequiredCodeReference)
		case classfile.RefMethodType:
			for _, c := range classfile.DescriptorClasses(ref.Desc) {
				in.addClassEdge(method, c, graph.RequiredCodeReference)
			}
		case classfile.RefClassForName:
			in.addClassEdge(method, ref.Class, graph.RequiredCodeReferenceReflection)
		case classfile.RefFieldAccess, classfile.RefMethodCall:
			if in.isSDK(ref.Class) {
				continue
			}
			in.data.AddUnresolvedReference(UnresolvedReference{
				Source:        method,
				Caller:        cf.Name,
				Class:         ref.Class,
				Name:          ref.Name,
				Desc:          ref.Desc,
				Type:          graph.RequiredCodeReference,
				InvokeSpecial: ref.InvokeSpecial,
			})
		}
	}
	return nil
}

func (in *Ingester) addAnnotationEdges(from graph.NodeID, anns classfile.Annotations) {
	for _, c := range anns.Types {
		in.addClassEdge(from, c, graph.RequiredClassStructure)
	}
	for _, c := range anns.Referenced {
		in.addClassEdge(from, c, graph.RequiredClassStructure)
	}
}

func (in *Ingester) addClassEdge(from graph.NodeID, class string, t graph.DependencyType) {
	if in.isSDK(class) {
		return
	}
	in.graph.AddDependency(from, in.graph.ClassReference(class), t)
}

func (in *Ingester) isSDK(class string) bool {
	return in.sdk != nil && in.sdk.IsSDK(class)
}
