// Package state persists the shrinker graph between runs.
//
// A full run saves its final graph; an incremental run loads it, patches
// it and saves it again. Backends are chosen by Config.Backend.
package state

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/utils"
)

// Store saves and loads graph state.
type Store interface {
	// Save replaces the stored state.
	Save(ctx context.Context, st *graph.State) error
	// Load returns the stored state, or a NOT_FOUND error if there is none.
	Load(ctx context.Context) (*graph.State, error)
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
)

// DefaultFileName is the state file inside the state directory.
const DefaultFileName = "shrinker.state"

// Config selects and configures a backend.
type Config struct {
	Backend Backend `mapstructure:"backend"`
	// Path is the state file for "file" and the database file for "sqlite".
	Path string `mapstructure:"path"`
	// DSN is the connection string for "postgres" and "mysql".
	DSN         string `mapstructure:"dsn"`
	Compression string `mapstructure:"compression"`
	MaxConns    int    `mapstructure:"max_conns"`
	// Tracing enables the gorm OpenTelemetry plugin.
	Tracing bool `mapstructure:"tracing"`
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger utils.Logger
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{logger: &utils.NullLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates the store cfg selects.
func Open(cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		path := cfg.Path
		if path == "" {
			path = DefaultFileName
		} else if filepath.Ext(path) == "" {
			path = filepath.Join(path, DefaultFileName)
		}
		return NewFileStore(path, cfg.Compression, opts...)
	case BackendSQLite, BackendPostgres, BackendMySQL:
		db, err := OpenDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, opts...)
	default:
		return nil, apperrors.New(apperrors.CodeConfigError, fmt.Sprintf("unsupported state backend: %s", cfg.Backend))
	}
}

func notFound(what string) error {
	return apperrors.Newf(apperrors.CodeNotFound, "no saved state in %s", what)
}
