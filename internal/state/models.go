package state

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/class-shrinker/internal/graph"
)

// Snapshot is one saved graph. Rows of the other tables belong to exactly
// one snapshot.
type Snapshot struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Version     int       `gorm:"column:version"`
	Fingerprint string    `gorm:"column:fingerprint;type:varchar(64)"`
	NodeCount   int       `gorm:"column:node_count"`
	EdgeCount   int       `gorm:"column:edge_count"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName returns the table name for Snapshot.
func (Snapshot) TableName() string {
	return "shrinker_snapshots"
}

// NodeRow is one graph node.
type NodeRow struct {
	SnapshotID     string     `gorm:"column:snapshot_id;type:varchar(36);primaryKey"`
	NodeID         int32      `gorm:"column:node_id;primaryKey;autoIncrement:false"`
	Kind           uint8      `gorm:"column:kind"`
	Name           string     `gorm:"column:name;type:varchar(512)"`
	Descriptor     string     `gorm:"column:descriptor;type:text"`
	Owner          int32      `gorm:"column:owner"`
	Declared       bool       `gorm:"column:declared"`
	Access         uint16     `gorm:"column:access"`
	Program        bool       `gorm:"column:program"`
	Superclass     string     `gorm:"column:superclass;type:varchar(512)"`
	Interfaces     StringList `gorm:"column:interfaces;type:text"`
	Annotations    StringList `gorm:"column:annotations;type:text"`
	SignatureTypes StringList `gorm:"column:signature_types;type:text"`
	SourcePath     string     `gorm:"column:source_path;type:text"`
	SourceEntry    string     `gorm:"column:source_entry;type:text"`
	Members        IDList     `gorm:"column:members;type:text"`
}

// TableName returns the table name for NodeRow.
func (NodeRow) TableName() string {
	return "shrinker_nodes"
}

func nodeRow(snapshot string, id int, r *graph.NodeRecord) NodeRow {
	return NodeRow{
		SnapshotID:     snapshot,
		NodeID:         int32(id),
		Kind:           uint8(r.Kind),
		Name:           r.Name,
		Descriptor:     r.Descriptor,
		Owner:          int32(r.Owner),
		Declared:       r.Declared,
		Access:         r.Access,
		Program:        r.Program,
		Superclass:     r.Superclass,
		Interfaces:     r.Interfaces,
		Annotations:    r.Annotations,
		SignatureTypes: r.SignatureTypes,
		SourcePath:     r.Source.Path,
		SourceEntry:    r.Source.Entry,
		Members:        r.Members,
	}
}

// ToRecord converts the row back to a graph record.
func (n *NodeRow) ToRecord() graph.NodeRecord {
	return graph.NodeRecord{
		Kind:           graph.NodeKind(n.Kind),
		Name:           n.Name,
		Descriptor:     n.Descriptor,
		Owner:          graph.NodeID(n.Owner),
		Declared:       n.Declared,
		Access:         n.Access,
		Annotations:    n.Annotations,
		Program:        n.Program,
		Superclass:     n.Superclass,
		Interfaces:     n.Interfaces,
		Source:         graph.Source{Path: n.SourcePath, Entry: n.SourceEntry},
		SignatureTypes: n.SignatureTypes,
		Members:        n.Members,
	}
}

// EdgeRow is one dependency.
type EdgeRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SnapshotID string `gorm:"column:snapshot_id;type:varchar(36);index"`
	FromNode   int32  `gorm:"column:from_node"`
	ToNode     int32  `gorm:"column:to_node"`
	Type       uint8  `gorm:"column:type"`
}

// TableName returns the table name for EdgeRow.
func (EdgeRow) TableName() string {
	return "shrinker_edges"
}

// RootRow is one seeded root.
type RootRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SnapshotID string `gorm:"column:snapshot_id;type:varchar(36);index"`
	Node       int32  `gorm:"column:node"`
	Type       uint8  `gorm:"column:type"`
	CounterSet uint8  `gorm:"column:counter_set"`
}

// TableName returns the table name for RootRow.
func (RootRow) TableName() string {
	return "shrinker_roots"
}

// CounterRow is one non-zero counter.
type CounterRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SnapshotID string `gorm:"column:snapshot_id;type:varchar(36);index"`
	Node       int32  `gorm:"column:node"`
	CounterSet uint8  `gorm:"column:counter_set"`
	Type       uint8  `gorm:"column:type"`
	Value      uint32 `gorm:"column:value"`
}

// TableName returns the table name for CounterRow.
func (CounterRow) TableName() string {
	return "shrinker_counters"
}

// StringList stores a string slice as a JSON array.
type StringList []string

// Value implements driver.Valuer interface.
func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface.
func (s *StringList) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil || len(data) == 0 {
		*s = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		out = nil
	}
	*s = out
	return nil
}

// IDList stores node ids as a JSON array.
type IDList []graph.NodeID

// Value implements driver.Valuer interface.
func (l IDList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]graph.NodeID(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface.
func (l *IDList) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil || len(data) == 0 {
		*l = nil
		return err
	}
	var out []graph.NodeID
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		out = nil
	}
	*l = out
	return nil
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type for list")
	}
}
