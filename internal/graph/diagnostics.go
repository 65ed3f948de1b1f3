package graph

import (
	"sort"
	"sync"

	"github.com/class-shrinker/pkg/utils"
)

// DiagnosticKind classifies a problem found while building the graph.
type DiagnosticKind string

const (
	InvalidClassRef  DiagnosticKind = "invalid class reference"
	InvalidMemberRef DiagnosticKind = "invalid member reference"
)

// Diagnostic is one reported problem. From names the referencing symbol.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	From   string         `json:"from"`
	Target string         `json:"target"`
}

// Diagnostics collects invalid references found during a run. None of
// them is fatal; they are surfaced as warnings at the end. A nil
// *Diagnostics discards everything.
type Diagnostics struct {
	mu      sync.Mutex
	logger  utils.Logger
	entries map[Diagnostic]struct{}
}

// NewDiagnostics creates an empty collector.
func NewDiagnostics(logger utils.Logger) *Diagnostics {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Diagnostics{logger: logger, entries: make(map[Diagnostic]struct{})}
}

// InvalidClassReference records that from references a class no input declares.
func (d *Diagnostics) InvalidClassReference(from, class string) {
	d.add(Diagnostic{Kind: InvalidClassRef, From: from, Target: class})
}

// InvalidMemberReference records a reference no class in the hierarchy satisfies.
func (d *Diagnostics) InvalidMemberReference(from, member string) {
	d.add(Diagnostic{Kind: InvalidMemberRef, From: from, Target: member})
}

func (d *Diagnostics) add(e Diagnostic) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[e]; ok {
		return
	}
	d.entries[e] = struct{}{}
	d.logger.Debug("%s: %s -> %s", e.Kind, e.From, e.Target)
}

// Entries returns the distinct diagnostics sorted by kind, source and
// target, or nil when there are none.
func (d *Diagnostics) Entries() []Diagnostic {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if len(d.entries) == 0 {
		d.mu.Unlock()
		return nil
	}
	out := make([]Diagnostic, 0, len(d.entries))
	for e := range d.entries {
		out = append(out, e)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.Target < b.Target
	})
	return out
}

// Count returns the number of distinct diagnostics of kind.
func (d *Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, e := range d.Entries() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Report logs every diagnostic as a warning.
func (d *Diagnostics) Report() {
	if d == nil {
		return
	}
	entries := d.Entries()
	for _, e := range entries {
		d.logger.Warn("%s: %s -> %s", e.Kind, e.From, e.Target)
	}
	if len(entries) > 0 {
		d.logger.Warn("%d invalid references, see above", len(entries))
	}
}
