package model

import (
	"sort"
	"time"
)

// Report is the summary of one shrinker run, written as JSON.
type Report struct {
	Version     string         `json:"version"`
	Incremental bool           `json:"incremental"`
	Written     []string       `json:"written"`
	Deleted     []string       `json:"deleted,omitempty"`
	Reachable   map[string]int `json:"reachable"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	Traces      []KeepTrace    `json:"traces,omitempty"`
	Timings     []Timing       `json:"timings"`
	TotalMillis int64          `json:"total_ms"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Diagnostic is an invalid reference found during the run.
type Diagnostic struct {
	Kind   string `json:"kind"`
	From   string `json:"from"`
	Target string `json:"target"`
}

// KeepTrace explains why a node was kept: the path from the node back to
// the root that reached it.
type KeepTrace struct {
	Target string      `json:"target"`
	Steps  []TraceStep `json:"steps"`
}

// TraceStep is one hop of a KeepTrace.
type TraceStep struct {
	Node       string `json:"node"`
	Dependency string `json:"dependency"`
}

// Timing is the duration of one run stage.
type Timing struct {
	Stage  string `json:"stage"`
	Millis int64  `json:"ms"`
}

// NewReport creates an empty report.
func NewReport(version string) *Report {
	return &Report{
		Version:     version,
		Written:     make([]string, 0),
		Reachable:   make(map[string]int),
		Timings:     make([]Timing, 0),
		GeneratedAt: time.Now().UTC(),
	}
}

// AddTiming appends a stage timing and updates the total.
func (r *Report) AddTiming(stage string, d time.Duration) {
	ms := d.Milliseconds()
	r.Timings = append(r.Timings, Timing{Stage: stage, Millis: ms})
	r.TotalMillis += ms
}

// SortTraces orders traces by target name.
func (r *Report) SortTraces() {
	sort.Slice(r.Traces, func(i, j int) bool {
		return r.Traces[i].Target < r.Traces[j].Target
	})
}

// Kept returns the number of written classes.
func (r *Report) Kept() int {
	return len(r.Written)
}
