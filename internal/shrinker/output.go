package shrinker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"go.uber.org/multierr"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/model"
)

// classSources reads class bytes back from where ingestion found them.
// Archives stay open until close.
type classSources struct {
	mu   sync.Mutex
	jars map[string]*openJar
}

type openJar struct {
	rc      *zip.ReadCloser
	entries map[string]*zip.File
}

func newClassSources() *classSources {
	return &classSources{jars: make(map[string]*openJar)}
}

func (s *classSources) read(src graph.Source) ([]byte, error) {
	if src.Entry == "" {
		return os.ReadFile(src.Path)
	}
	jar, err := s.open(src.Path)
	if err != nil {
		return nil, err
	}
	f, ok := jar.entries[src.Entry]
	if !ok {
		return nil, os.ErrNotExist
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *classSources) open(path string) (*openJar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jar, ok := s.jars[path]; ok {
		return jar, nil
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	jar := &openJar{rc: rc, entries: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		jar.entries[f.Name] = f
	}
	s.jars[path] = jar
	return jar, nil
}

func (s *classSources) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for path, jar := range s.jars {
		err = multierr.Append(err, jar.rc.Close())
		delete(s.jars, path)
	}
	return err
}

// findContent returns the input that holds src.
func findContent(src graph.Source, inputs []model.TransformInput) (model.QualifiedContent, bool) {
	for _, input := range inputs {
		for _, jar := range input.Jars {
			if src.Entry != "" && filepath.Clean(jar.Path) == filepath.Clean(src.Path) {
				return jar.QualifiedContent, true
			}
		}
		for _, dir := range input.Directories {
			if src.Entry == "" && within(dir.Path, src.Path) {
				return dir.QualifiedContent, true
			}
		}
	}
	return model.QualifiedContent{}, false
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// location returns the output directory of a class. Classes from sources
// outside the program inputs have none.
func (r *run) location(class graph.NodeID, inputs []model.TransformInput) (string, bool, error) {
	content, ok := findContent(r.graph.Source(class), inputs)
	if !ok {
		return "", false, nil
	}
	loc, err := r.output.ContentLocation(content.Name, content.ContentTypes, content.Scopes, model.FormatDirectory)
	if err != nil {
		return "", false, err
	}
	return loc, true, nil
}

func (r *run) rewriteOptions(class graph.NodeID) classfile.RewriteOptions {
	keep := make(map[string]struct{})
	for _, name := range r.graph.ReachableMemberLocalNames(class, graph.Shrink) {
		keep[name] = struct{}{}
	}
	g := r.graph
	return classfile.RewriteOptions{
		KeepMember: func(key string) bool {
			_, ok := keep[key]
			return ok
		},
		KeepClass: func(name string) bool {
			return g.KeepsClass(name, graph.Shrink)
		},
		Version: r.config.BytecodeVersion,
	}
}

// writeClasses rewrites classes into the output as one stage.
func (r *run) writeClasses(ctx context.Context, classes []graph.NodeID, inputs []model.TransformInput) (err error) {
	sources := newClassSources()
	defer func() { err = multierr.Append(err, sources.close()) }()

	var (
		mu   sync.Mutex
		errs error
	)
	for _, class := range classes {
		class := class
		loc, ok, err := r.location(class, inputs)
		if err != nil {
			_ = r.executor.Wait()
			return err
		}
		if !ok {
			r.logger.Debug("%s is not part of the program inputs, not written", r.graph.Name(class))
			continue
		}

		r.executor.Go(func(ctx context.Context) error {
			name := r.graph.Name(class)
			err := r.writeClass(ctx, class, loc, sources)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return nil
			}
			r.result.Written = append(r.result.Written, name)
			return nil
		})
	}
	if err := r.executor.Wait(); err != nil {
		return err
	}
	return errs
}

// writeClass rewrites one class and stores it at loc.
func (r *run) writeClass(ctx context.Context, class graph.NodeID, loc string, sources *classSources) error {
	src := r.graph.Source(class)
	data, err := sources.read(src)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to read "+src.String(), err)
	}
	out, err := classfile.Rewrite(data, r.rewriteOptions(class))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeParseError, "failed to rewrite "+src.String(), err)
	}
	return r.output.WriteClass(ctx, loc, r.graph.Name(class), out)
}

// deleteClasses removes the output of classes that are no longer kept.
func (r *run) deleteClasses(ctx context.Context, classes []graph.NodeID, inputs []model.TransformInput) error {
	var errs error
	for _, class := range classes {
		name := r.graph.Name(class)
		loc, ok, err := r.location(class, inputs)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			errs = multierr.Append(errs, apperrors.Newf(apperrors.CodeStateError, "cannot determine the output of %s", name))
			continue
		}
		if err := r.output.DeleteClass(ctx, loc, name); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		r.result.Deleted = append(r.result.Deleted, name)
	}
	return errs
}
