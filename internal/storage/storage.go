// Package storage provides the output locations the shrinker writes to.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/class-shrinker/pkg/model"
)

// OutputProvider maps transform outputs to locations and writes class
// files into them.
type OutputProvider interface {
	// ContentLocation returns the location for the named output. The same
	// arguments always yield the same location.
	ContentLocation(name string, types []model.ContentType, scopes []model.Scope, format model.Format) (string, error)

	// DeleteAll removes every output.
	DeleteAll(ctx context.Context) error

	// WriteClass stores the bytes of class under location.
	WriteClass(ctx context.Context, location, class string, data []byte) error

	// DeleteClass removes class from location. A missing file is not an error.
	DeleteClass(ctx context.Context, location, class string) error
}

// scopeKey joins the scope names in a fixed order.
func scopeKey(scopes []model.Scope) string {
	if len(scopes) == 0 {
		return model.ScopeProject.String()
	}
	sorted := append([]model.Scope(nil), scopes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	names := make([]string, 0, len(sorted))
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		names = append(names, s.String())
	}
	return strings.Join(names, "+")
}

func typeKey(types []model.ContentType) string {
	if len(types) == 0 {
		return model.ContentClasses.String()
	}
	sorted := append([]model.ContentType(nil), types...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	names := make([]string, 0, len(sorted))
	for i, t := range sorted {
		if i > 0 && t == sorted[i-1] {
			continue
		}
		names = append(names, t.String())
	}
	return strings.Join(names, "+")
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("output name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("output name %q must not contain path separators", name)
	}
	return nil
}
