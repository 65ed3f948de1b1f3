package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	r := NewReport("1.0.0")

	assert.Equal(t, "1.0.0", r.Version)
	assert.NotNil(t, r.Written)
	assert.NotNil(t, r.Reachable)
	assert.Zero(t, r.Kept())
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestReport_AddTiming(t *testing.T) {
	r := NewReport("dev")
	r.AddTiming("ingest", 1500*time.Millisecond)
	r.AddTiming("traverse", 250*time.Millisecond)

	assert.Equal(t, []Timing{{"ingest", 1500}, {"traverse", 250}}, r.Timings)
	assert.Equal(t, int64(1750), r.TotalMillis)
}

func TestReport_SortTraces(t *testing.T) {
	r := NewReport("dev")
	r.Traces = []KeepTrace{{Target: "b/C"}, {Target: "a/B.m:()V"}, {Target: "a/A"}}
	r.SortTraces()

	var targets []string
	for _, tr := range r.Traces {
		targets = append(targets, tr.Target)
	}
	assert.Equal(t, []string{"a/A", "a/B.m:()V", "b/C"}, targets)
}

func TestReport_JSONOmitsEmptySections(t *testing.T) {
	r := NewReport("dev")
	r.Written = append(r.Written, "a/Main")
	r.Reachable["shrink"] = 1

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "written")
	assert.Contains(t, fields, "reachable")
	assert.NotContains(t, fields, "deleted")
	assert.NotContains(t, fields, "diagnostics")
	assert.NotContains(t, fields, "traces")
}
