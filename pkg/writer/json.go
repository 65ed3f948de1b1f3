// Package writer writes run reports as plain or gzipped JSON.
package writer

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/class-shrinker/pkg/errors"
)

// Writer encodes a value to an io.Writer.
type Writer[T any] interface {
	Write(data T, w io.Writer) error
}

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent is the indentation for pretty printing. Empty means compact.
	Indent string
}

// NewJSONWriter creates a JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to w.
func (j *JSONWriter[T]) Write(data T, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if j.Indent != "" {
		encoder.SetIndent("", j.Indent)
	}
	return encoder.Encode(data)
}

// GzipWriter writes data as gzipped JSON.
type GzipWriter[T any] struct {
	// Level is the gzip compression level.
	Level int
}

// NewGzipWriter creates a gzip writer with default compression.
func NewGzipWriter[T any]() *GzipWriter[T] {
	return &GzipWriter[T]{Level: gzip.DefaultCompression}
}

// Write writes the data as gzipped JSON to w.
func (g *GzipWriter[T]) Write(data T, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, g.Level)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ForPath returns a gzip writer for paths ending in ".gz" and a pretty
// JSON writer otherwise.
func ForPath[T any](path string) Writer[T] {
	if strings.HasSuffix(path, ".gz") {
		return NewGzipWriter[T]()
	}
	return NewPrettyJSONWriter[T]()
}

// WriteFile writes data to path with the writer ForPath selects, creating
// the parent directory.
func WriteFile[T any](data T, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to create report directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to create "+path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = apperrors.Wrap(apperrors.CodeIOError, "failed to close "+path, cerr)
		}
	}()

	if err := ForPath[T](path).Write(data, f); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to write "+path, err)
	}
	return nil
}
