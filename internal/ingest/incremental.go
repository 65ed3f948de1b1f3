package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/model"
)

// ProcessChanges patches the graph for the changed program inputs of an
// incremental run and returns the classes whose bytes changed, sorted by
// name. Jar changes, added or removed directories and added or removed
// class files fail with INCREMENTAL_RUN_IMPOSSIBLE before the graph is
// touched. A changed class keeps its edges except the code references of
// its methods, which are rebuilt from the new bytes.
func (in *Ingester) ProcessChanges(ctx context.Context, inputs []model.TransformInput) ([]graph.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var changed []string
	for _, input := range inputs {
		for _, jar := range input.Jars {
			if jar.Status != model.StatusNotChanged {
				return nil, apperrors.IncrementalRunImpossible("input jar %s has been %s", jar.Path, jar.Status)
			}
		}
		for _, dir := range input.Directories {
			switch dir.Status {
			case model.StatusAdded, model.StatusRemoved:
				return nil, apperrors.IncrementalRunImpossible("input directory %s has been %s", dir.Path, dir.Status)
			}
			for _, rel := range dir.SortedChanges() {
				if !IsClassFile(rel) {
					continue
				}
				path := filepath.Join(dir.Path, filepath.FromSlash(rel))
				switch status := dir.ChangedFiles[rel]; status {
				case model.StatusAdded, model.StatusRemoved:
					return nil, apperrors.IncrementalRunImpossible("file %s has been %s", path, status)
				case model.StatusChanged:
					changed = append(changed, path)
				}
			}
		}
	}

	var (
		mu       sync.Mutex
		modified []graph.NodeID
	)
	for _, path := range changed {
		path := path
		in.executor.Go(func(ctx context.Context) error {
			id, err := in.reprocess(path)
			if err != nil {
				return err
			}
			mu.Lock()
			modified = append(modified, id)
			mu.Unlock()
			return nil
		})
	}
	if err := in.executor.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(modified, func(i, j int) bool {
		return in.graph.Name(modified[i]) < in.graph.Name(modified[j])
	})
	in.logger.Debug("%d changed classes reprocessed", len(modified))
	return modified, nil
}

func (in *Ingester) reprocess(path string) (graph.NodeID, error) {
	p, err := parseEntry(fileEntry(path))
	if errors.Is(err, fs.ErrNotExist) {
		return graph.InvalidNode, apperrors.IncrementalRunImpossible("changed file %s does not exist", path)
	}
	if err != nil {
		return graph.InvalidNode, err
	}
	cf := p.cf
	g := in.graph

	id, ok := g.Class(cf.Name)
	if !ok || !g.IsProgram(id) {
		return graph.InvalidNode, apperrors.IncrementalRunImpossible("class %s in %s was not part of the previous run", cf.Name, path)
	}
	if what := in.structureChange(p, id); what != "" {
		return graph.InvalidNode, apperrors.IncrementalRunImpossible("%s of class %s changed", what, cf.Name)
	}

	g.SetSignatureTypes(id, p.sigTypes)
	for _, m := range g.Methods(id) {
		g.RemoveDependencies(m, graph.RequiredCodeReference, graph.RequiredCodeReferenceReflection)
	}
	for _, m := range cf.Methods {
		method, _ := g.Member(cf.Name, m.Name, m.Descriptor)
		if err := in.scanMethod(cf, method, m); err != nil {
			return graph.InvalidNode, err
		}
	}
	return id, nil
}

// structureChange names the first part of the class declaration that
// differs from the graph, or returns "" if none does.
func (in *Ingester) structureChange(p *parsed, class graph.NodeID) string {
	g := in.graph
	cf := p.cf

	switch {
	case g.SuperclassName(class) != cf.SuperName:
		return "superclass"
	case !sameStrings(g.InterfaceNames(class), cf.InterfaceList):
		return "interfaces"
	case g.Access(class) != cf.Access:
		return "access flags"
	case !sameStrings(g.Annotations(class), p.annotations.Types):
		return "annotations"
	}

	old := make(map[string]string)
	for _, m := range g.Members(class) {
		if graph.IsFakeMember(g.Name(m)) {
			continue
		}
		old[g.LocalName(m)] = memberSignature(g.Access(m), g.Annotations(m))
	}
	members := cf.Members()
	if len(old) != len(members) {
		return "members"
	}
	for _, m := range members {
		sig, ok := old[m.Key()]
		if !ok || sig != memberSignature(m.Access, p.members[m].Types) {
			return "members"
		}
	}
	return ""
}

func memberSignature(access uint16, annotations []string) string {
	sorted := append([]string(nil), annotations...)
	sort.Strings(sorted)
	return fmt.Sprintf("%04x|%s", access, strings.Join(sorted, ","))
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
