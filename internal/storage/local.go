package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/model"
)

// LocalProvider lays outputs out under a root directory as
// <root>/<scopes>/<types>/<name>.
type LocalProvider struct {
	root string
}

// NewLocalProvider creates the root directory if needed.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "output directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIOError, "failed to create output directory", err)
	}
	return &LocalProvider{root: root}, nil
}

// Root returns the output root.
func (p *LocalProvider) Root() string {
	return p.root
}

// ContentLocation implements OutputProvider. Jar outputs get a ".jar"
// suffix; the shrinker only writes directories.
func (p *LocalProvider) ContentLocation(name string, types []model.ContentType, scopes []model.Scope, format model.Format) (string, error) {
	if err := validateName(name); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "invalid output name", err)
	}
	if format == model.FormatJar {
		name += ".jar"
	}
	return filepath.Join(p.root, scopeKey(scopes), typeKey(types), name), nil
}

// DeleteAll implements OutputProvider. The root itself is kept.
func (p *LocalProvider) DeleteAll(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(p.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeIOError, "failed to list output directory", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(p.root, e.Name())); err != nil {
			return apperrors.Wrap(apperrors.CodeIOError, "failed to delete output", err)
		}
	}
	return nil
}

// WriteClass implements OutputProvider.
func (p *LocalProvider) WriteClass(ctx context.Context, location, class string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path, err := p.classPath(location, class)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to create directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to write "+class, err)
	}
	return nil
}

// DeleteClass implements OutputProvider.
func (p *LocalProvider) DeleteClass(ctx context.Context, location, class string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path, err := p.classPath(location, class)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to delete "+class, err)
	}
	return nil
}

// classPath returns location/<class>.class, refusing paths that leave the root.
func (p *LocalProvider) classPath(location, class string) (string, error) {
	path := filepath.Join(location, filepath.FromSlash(class)+".class")
	rel, err := filepath.Rel(p.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "class %s resolves outside the output directory", class)
	}
	return path, nil
}
