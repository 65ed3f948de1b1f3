package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
)

func sampleState(t *testing.T) *graph.State {
	t.Helper()
	g := graph.New()
	a, _, err := g.DeclareClass(graph.ClassInfo{
		Name:           "com/example/Main",
		Superclass:     "java/lang/Object",
		Interfaces:     []string{"java/lang/Runnable"},
		Access:         0x0021,
		Program:        true,
		Source:         graph.Source{Path: "app.jar", Entry: "com/example/Main.class"},
		Annotations:    []string{"com/example/Keep"},
		SignatureTypes: []string{"com/example/Model"},
	})
	require.NoError(t, err)
	_, _, err = g.DeclareClass(graph.ClassInfo{Name: "java/lang/Runnable", Access: 0x0601, Source: graph.Source{Path: "rt.jar", Entry: "java/lang/Runnable.class"}})
	require.NoError(t, err)

	run := g.DeclareMember(a, graph.MemberInfo{Name: "run", Descriptor: "()V", Access: 1, Annotations: []string{"com/example/Entry"}})
	g.DeclareMember(a, graph.MemberInfo{Name: "count", Descriptor: "I"})
	g.AddDependency(run, a, graph.RequiredClassStructure)
	g.AddDependency(a, g.ClassReference("java/lang/Runnable"), graph.RequiredClassStructure)
	g.AddDependency(run, g.MemberReference("com/example/Helper", "help", "()V"), graph.RequiredCodeReference)
	g.AddRoot(a, graph.RequiredKeepRules, graph.Shrink)
	g.AddRoot(run, graph.RequiredKeepRules, graph.LegacyMultidex)
	g.IncrementAndCheck(a, graph.RequiredKeepRules, graph.Shrink)
	g.IncrementAndCheck(run, graph.RequiredClassStructure, graph.Shrink)
	g.IncrementAndCheck(run, graph.IfClassKept, graph.Shrink)
	st := g.Export()
	st.Fingerprint = "5f0c9a2e7d41b388"
	return st
}

func TestCodec_RoundTrip(t *testing.T) {
	st := sampleState(t)

	decoded, err := decodeState(encodeState(st))
	require.NoError(t, err)
	assert.Equal(t, st, decoded)
	assert.Equal(t, "5f0c9a2e7d41b388", decoded.Fingerprint)

	g, err := graph.NewFromState(decoded)
	require.NoError(t, err)
	_, ok := g.Member("com/example/Main", "run", "()V")
	assert.True(t, ok)
}

func TestCodec_Empty(t *testing.T) {
	decoded, err := decodeState(encodeState(&graph.State{}))
	require.NoError(t, err)
	assert.Equal(t, &graph.State{}, decoded)
}

func TestCodec_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated tag", []byte{0x80}},
		{"truncated length", []byte{0x0a, 0x05, 0x01}},
		{"fixed64 field", []byte{0x09, 1, 2, 3, 4, 5, 6, 7, 8}},
		{"counter set overflow", []byte{0x22, 0x03, 0x10, 0xac, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeState(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	for _, codec := range []string{"zstd", "gzip", "none"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state", DefaultFileName)
			s, err := NewFileStore(path, codec)
			require.NoError(t, err)
			st := sampleState(t)

			require.NoError(t, s.Save(context.Background(), st))
			loaded, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, st, loaded)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files are cleaned up")
		})
	}
}

func TestFileStore_CodecFromHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	writer, err := NewFileStore(path, "gzip")
	require.NoError(t, err)
	require.NoError(t, writer.Save(context.Background(), sampleState(t)))

	reader, err := NewFileStore(path, "zstd")
	require.NoError(t, err)
	_, err = reader.Load(context.Background())
	assert.NoError(t, err)
}

func TestFileStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		isCode  func(error) bool
	}{
		{"missing", nil, apperrors.IsNotFound},
		{"bad magic", []byte("JUNKJUNK"), apperrors.IsStateError},
		{"short", []byte("SH"), apperrors.IsStateError},
		{"version", []byte{'S', 'H', 'R', 'K', 99, 0}, apperrors.IsStateError},
		{"bad body", []byte{'S', 'H', 'R', 'K', FileVersion, 2, 1, 2, 3}, apperrors.IsStateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, tt.content, 0644))
			}
			s, err := NewFileStore(path, "")
			require.NoError(t, err)

			_, err = s.Load(context.Background())
			require.Error(t, err)
			assert.True(t, tt.isCode(err), "unexpected error: %v", err)
		})
	}
}

func TestNewFileStore_InvalidCodec(t *testing.T) {
	_, err := NewFileStore("state", "lz4")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
}

func newTestGormDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestGormStore_RoundTrip(t *testing.T) {
	s, err := NewGormStore(newTestGormDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Load(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	first := sampleState(t)
	require.NoError(t, s.Save(ctx, first))
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, loaded)

	second := sampleState(t)
	second.Nodes[0].Access = 0x0011
	second.Edges = second.Edges[:1]
	require.NoError(t, s.Save(ctx, second))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)

	var snapshots int64
	require.NoError(t, s.db.Model(&Snapshot{}).Count(&snapshots).Error)
	assert.Equal(t, int64(1), snapshots, "older snapshots are removed")
	var edges int64
	require.NoError(t, s.db.Model(&EdgeRow{}).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)
}

func TestGormStore_VersionMismatch(t *testing.T) {
	s, err := NewGormStore(newTestGormDB(t))
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleState(t)))
	require.NoError(t, s.db.Model(&Snapshot{}).Where("1 = 1").Update("version", FileVersion+1).Error)

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsStateError(err))
}

func TestGormStore_QueryFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "shrinker_snapshots"`).WillReturnError(assert.AnError)
	s := &GormStore{db: db, logger: newOptions(nil).logger}

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsStateError(err))
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SaveFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(assert.AnError)
	s := &GormStore{db: db, logger: newOptions(nil).logger, now: func() time.Time { return time.Unix(0, 0) }}

	err = s.Save(context.Background(), sampleState(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsStateError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Backend: BackendFile, Path: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), s.(*FileStore).Path())

	s, err = Open(Config{Backend: BackendSQLite, Path: filepath.Join(dir, "state.db")})
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleState(t)))
	require.NoError(t, s.Close())

	_, err = Open(Config{Backend: "redis"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
}
