package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/class-shrinker/internal/graph"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/utils"
)

const batchSize = 500

// OpenDB opens the database for a relational backend.
func OpenDB(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Backend {
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = "shrinker-state.db"
		}
		dialector = sqlite.Open(path)
	case BackendPostgres:
		dialector = postgres.Open(cfg.DSN)
	case BackendMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigError, "unsupported database backend: %s", cfg.Backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to open state database", err)
	}

	if cfg.Tracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to enable database tracing", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to get underlying sql.DB", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to ping state database", err)
	}
	return db, nil
}

// GormStore keeps the state in relational tables. Every save writes a new
// snapshot and removes the older ones in the same transaction.
type GormStore struct {
	db     *gorm.DB
	logger utils.Logger
	now    func() time.Time
}

// NewGormStore creates the tables if needed and returns the store.
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	o := newOptions(opts)
	if err := db.AutoMigrate(&Snapshot{}, &NodeRow{}, &EdgeRow{}, &RootRow{}, &CounterRow{}); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to migrate state tables", err)
	}
	return &GormStore{db: db, logger: o.logger, now: time.Now}, nil
}

// Save implements Store.
func (s *GormStore) Save(ctx context.Context, st *graph.State) error {
	id := uuid.New().String()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap := &Snapshot{
			ID:          id,
			Version:     FileVersion,
			Fingerprint: st.Fingerprint,
			NodeCount:   len(st.Nodes),
			EdgeCount:   len(st.Edges),
			CreatedAt:   s.now(),
		}
		if err := tx.Create(snap).Error; err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}

		nodes := make([]NodeRow, len(st.Nodes))
		for i := range st.Nodes {
			nodes[i] = nodeRow(id, i, &st.Nodes[i])
		}
		if err := createAll(tx, nodes); err != nil {
			return fmt.Errorf("failed to save nodes: %w", err)
		}

		edges := make([]EdgeRow, len(st.Edges))
		for i, e := range st.Edges {
			edges[i] = EdgeRow{SnapshotID: id, FromNode: int32(e.From), ToNode: int32(e.To), Type: uint8(e.Type)}
		}
		if err := createAll(tx, edges); err != nil {
			return fmt.Errorf("failed to save edges: %w", err)
		}

		roots := make([]RootRow, len(st.Roots))
		for i, r := range st.Roots {
			roots[i] = RootRow{SnapshotID: id, Node: int32(r.Node), Type: uint8(r.Type), CounterSet: uint8(r.Set)}
		}
		if err := createAll(tx, roots); err != nil {
			return fmt.Errorf("failed to save roots: %w", err)
		}

		counters := make([]CounterRow, len(st.Counters))
		for i, c := range st.Counters {
			counters[i] = CounterRow{SnapshotID: id, Node: int32(c.Node), CounterSet: uint8(c.Set), Type: uint8(c.Type), Value: c.Value}
		}
		if err := createAll(tx, counters); err != nil {
			return fmt.Errorf("failed to save counters: %w", err)
		}

		return deleteOlder(tx, id)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStateError, "failed to save state", err)
	}
	s.logger.Debug("saved state snapshot %s: %d nodes, %d edges", id, len(st.Nodes), len(st.Edges))
	return nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, batchSize).Error
}

func deleteOlder(tx *gorm.DB, keep string) error {
	for _, model := range []interface{}{&NodeRow{}, &EdgeRow{}, &RootRow{}, &CounterRow{}} {
		if err := tx.Where("snapshot_id <> ?", keep).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to delete old rows: %w", err)
		}
	}
	if err := tx.Where("id <> ?", keep).Delete(&Snapshot{}).Error; err != nil {
		return fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	return nil
}

// Load implements Store. It reads the newest snapshot.
func (s *GormStore) Load(ctx context.Context) (*graph.State, error) {
	db := s.db.WithContext(ctx)

	var snap Snapshot
	if err := db.Order("created_at DESC").First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("database")
		}
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to query snapshot", err)
	}
	if snap.Version != FileVersion {
		return nil, apperrors.Newf(apperrors.CodeStateError, "state snapshot version %d, want %d", snap.Version, FileVersion)
	}

	var nodes []NodeRow
	if err := db.Where("snapshot_id = ?", snap.ID).Order("node_id").Find(&nodes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to load nodes", err)
	}
	if len(nodes) != snap.NodeCount {
		return nil, apperrors.Newf(apperrors.CodeStateError, "snapshot %s has %d nodes, want %d", snap.ID, len(nodes), snap.NodeCount)
	}

	st := &graph.State{Nodes: make([]graph.NodeRecord, len(nodes)), Fingerprint: snap.Fingerprint}
	for i := range nodes {
		if int(nodes[i].NodeID) != i {
			return nil, apperrors.Newf(apperrors.CodeStateError, "snapshot %s: missing node %d", snap.ID, i)
		}
		st.Nodes[i] = nodes[i].ToRecord()
	}

	var edges []EdgeRow
	if err := db.Where("snapshot_id = ?", snap.ID).Order("id").Find(&edges).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to load edges", err)
	}
	for _, e := range edges {
		st.Edges = append(st.Edges, graph.EdgeRecord{From: graph.NodeID(e.FromNode), To: graph.NodeID(e.ToNode), Type: graph.DependencyType(e.Type)})
	}

	var roots []RootRow
	if err := db.Where("snapshot_id = ?", snap.ID).Order("id").Find(&roots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to load roots", err)
	}
	for _, r := range roots {
		st.Roots = append(st.Roots, graph.RootRecord{Node: graph.NodeID(r.Node), Type: graph.DependencyType(r.Type), Set: graph.CounterSet(r.CounterSet)})
	}

	var counters []CounterRow
	if err := db.Where("snapshot_id = ?", snap.ID).Order("id").Find(&counters).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateError, "failed to load counters", err)
	}
	for _, c := range counters {
		st.Counters = append(st.Counters, graph.CounterRecord{
			Node:  graph.NodeID(c.Node),
			Set:   graph.CounterSet(c.CounterSet),
			Type:  graph.DependencyType(c.Type),
			Value: c.Value,
		})
	}

	s.logger.Debug("loaded state snapshot %s: %d nodes, %d edges", snap.ID, len(st.Nodes), len(st.Edges))
	return st, nil
}

// Close closes the database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
