// Package testutil provides utilities for testing.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ClassFiles maps internal class names ("a/b/C") to class file bytes.
type ClassFiles map[string][]byte

// Names returns the class names in lexical order.
func (c ClassFiles) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EntryName returns the archive entry or relative path of a class.
func EntryName(class string) string {
	return class + ".class"
}

// WriteFile writes content to a file below dir, creating parents, and
// returns its path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// WriteClassDir lays out classes as loose class files below dir.
func WriteClassDir(t *testing.T, dir string, classes ClassFiles) string {
	t.Helper()
	for _, name := range classes.Names() {
		WriteFile(t, dir, EntryName(name), classes[name])
	}
	return dir
}

// WriteJar writes an archive holding classes plus optional extra entries
// (resources) and returns its path.
func WriteJar(t *testing.T, path string, classes ClassFiles, extra map[string][]byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create jar: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	entries := make(map[string][]byte, len(classes)+len(extra))
	for name, data := range classes {
		entries[EntryName(name)] = data
	}
	for name, data := range extra {
		entries[name] = data
	}
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := w.Write(entries[name]); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close jar: %v", err)
	}
	return path
}

// ReadTree returns every file below root keyed by its '/' separated
// relative path.
func ReadTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read tree %s: %v", root, err)
	}
	return out
}

// ClassNamesIn returns the class names of the .class files in a tree
// returned by ReadTree, ignoring the given number of leading path segments.
func ClassNamesIn(tree map[string][]byte, skipSegments int) []string {
	var out []string
	for p := range tree {
		if !strings.HasSuffix(p, ".class") {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(p, ".class"), "/")
		if len(parts) <= skipSegments {
			continue
		}
		out = append(out, strings.Join(parts[skipSegments:], "/"))
	}
	sort.Strings(out)
	return out
}

// FileExists checks if a file exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}
