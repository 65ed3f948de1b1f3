package state

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/pkg/compression"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/utils"
)

var fileMagic = []byte("SHRK")

// FileVersion is the state file format version. Files of another version
// fail to load with STATE_ERROR, which forces a full run.
const FileVersion = 1

// headerSize is magic, version and codec.
const headerSize = 6

// FileStore keeps the state in one compressed file.
type FileStore struct {
	path   string
	codec  compression.Type
	logger utils.Logger
}

// NewFileStore creates a store writing path with the named codec.
func NewFileStore(path, codec string, opts ...Option) (*FileStore, error) {
	t, err := compression.ParseType(codec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "invalid state compression", err)
	}
	o := newOptions(opts)
	return &FileStore{path: path, codec: t, logger: o.logger}, nil
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the state to a temporary file and renames it over the old one.
func (s *FileStore) Save(ctx context.Context, st *graph.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := compression.New(s.codec, compression.LevelDefault)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStateError, "failed to create compressor", err)
	}
	defer c.Close()

	body := encodeState(st)
	compressed, err := c.Compress(body)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStateError, "failed to compress state", err)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, fileMagic...)
	header = append(header, FileVersion, byte(s.codec))

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to create state directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to create state file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(header); err == nil {
		_, err = tmp.Write(compressed)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to write state file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to replace state file", err)
	}

	s.logger.Debug("saved state: %d nodes, %d edges, %d bytes (%s)", len(st.Nodes), len(st.Edges), len(compressed)+headerSize, s.codec)
	return nil
}

// Load reads the state file. The codec is taken from the file header, so
// changing the configured compression does not invalidate old state.
func (s *FileStore) Load(ctx context.Context) (*graph.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(s.path)
		}
		return nil, apperrors.Wrap(apperrors.CodeIOError, "failed to read state file", err)
	}

	if len(data) < headerSize || !bytes.Equal(data[:4], fileMagic) {
		return nil, apperrors.Newf(apperrors.CodeStateError, "%s is not a state file", s.path)
	}
	if v := data[4]; v != FileVersion {
		return nil, apperrors.Newf(apperrors.CodeStateError, "state file version %d, want %d", v, FileVersion)
	}

	body, err := compression.Decompress(compression.Type(data[5]), data[headerSize:])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to decompress state", err)
	}
	st, err := decodeState(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "malformed state", err)
	}
	s.logger.Debug("loaded state: %d nodes, %d edges", len(st.Nodes), len(st.Edges))
	return st, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
