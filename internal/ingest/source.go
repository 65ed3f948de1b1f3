package ingest

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/multierr"

	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
)

const classSuffix = ".class"

// classEntry is one class file waiting to be read.
type classEntry struct {
	source graph.Source
	read   func() ([]byte, error)
}

// walker lists the class files of inputs. Archives stay open until close
// so entries can be read from concurrent tasks.
type walker struct {
	closers []io.Closer
}

// IsClassFile reports whether an archive entry or file name holds a class.
func IsClassFile(name string) bool {
	if !strings.HasSuffix(name, classSuffix) {
		return false
	}
	base := name[strings.LastIndexByte(name, '/')+1:]
	return base != "module-info.class" && !strings.HasPrefix(name, "META-INF/")
}

func (w *walker) jar(path string) ([]classEntry, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIOError, "failed to open jar "+path, err)
	}
	w.closers = append(w.closers, rc)

	var entries []classEntry
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || !IsClassFile(f.Name) {
			continue
		}
		f := f
		entries = append(entries, classEntry{
			source: graph.Source{Path: path, Entry: f.Name},
			read: func() ([]byte, error) {
				r, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer r.Close()
				return io.ReadAll(r)
			},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].source.Entry < entries[j].source.Entry
	})
	return entries, nil
}

// directory lists the class files below root. A missing directory holds
// nothing.
func (w *walker) directory(root string) ([]classEntry, error) {
	var entries []classEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsClassFile(filepath.ToSlash(path)) {
			return nil
		}
		entries = append(entries, fileEntry(path))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeIOError, "failed to list "+root, err)
	}
	return entries, nil
}

func fileEntry(path string) classEntry {
	return classEntry{
		source: graph.Source{Path: path},
		read: func() ([]byte, error) {
			return os.ReadFile(path)
		},
	}
}

func (w *walker) close() error {
	var err error
	for _, c := range w.closers {
		err = multierr.Append(err, c.Close())
	}
	w.closers = nil
	return err
}
