// Package compression provides the codecs used for persisted shrinker state.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Type identifies a codec. The value is stored in state file headers, so
// existing values must not change.
type Type uint8

const (
	TypeNone Type = 0
	TypeGzip Type = 1
	TypeZstd Type = 2
)

// String returns the configuration name of the codec.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType maps a configuration name to a codec. The empty string selects zstd.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zstd":
		return TypeZstd, nil
	case "gzip":
		return TypeGzip, nil
	case "none", "off":
		return TypeNone, nil
	default:
		return TypeNone, fmt.Errorf("unknown compression: %q", s)
	}
}

// Level trades speed for ratio.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 3
	LevelBest    Level = 9
)

// Compressor compresses whole buffers.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Type() Type
	// Close releases encoder state. The compressor is unusable afterwards.
	Close()
}

// New creates a compressor for t.
func New(t Type, level Level) (Compressor, error) {
	switch t {
	case TypeZstd:
		return newZstd(level)
	case TypeGzip:
		return newGzip(level), nil
	case TypeNone:
		return none{}, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

type gzipCompressor struct {
	level int
}

func newGzip(level Level) *gzipCompressor {
	switch level {
	case LevelFastest:
		return &gzipCompressor{level: gzip.BestSpeed}
	case LevelBest:
		return &gzipCompressor{level: gzip.BestCompression}
	default:
		return &gzipCompressor{level: gzip.DefaultCompression}
	}
}

func (c *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (c *gzipCompressor) Type() Type { return TypeGzip }
func (c *gzipCompressor) Close()     {}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstd(level Level) (*zstdCompressor, error) {
	zl := zstd.SpeedDefault
	switch level {
	case LevelFastest:
		zl = zstd.SpeedFastest
	case LevelBest:
		zl = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

func (c *zstdCompressor) Type() Type { return TypeZstd }

func (c *zstdCompressor) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

type none struct{}

func (none) Compress(data []byte) ([]byte, error)   { return data, nil }
func (none) Decompress(data []byte) ([]byte, error) { return data, nil }
func (none) Type() Type                             { return TypeNone }
func (none) Close()                                 {}

// Decompress decodes data written by a compressor of type t.
func Decompress(t Type, data []byte) ([]byte, error) {
	c, err := New(t, LevelDefault)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Decompress(data)
}
