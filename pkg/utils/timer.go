package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed stage.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	done     bool
}

// PhaseTimer completes a phase; intended for use with defer.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop records the phase duration. Only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stop(pt.name)
}

// Timer records stage durations of a run in start order.
type Timer struct {
	mu     sync.Mutex
	name   string
	start  time.Time
	phases []*Phase
	logger Logger
	clock  Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger used by PrintSummary.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = logger
	}
}

// WithClock sets a custom clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:   name,
		logger: &NullLogger{},
		clock:  NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// Start begins timing a phase.
func (t *Timer) Start(name string) *PhaseTimer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, &Phase{Name: name, Start: t.clock.Now()})
	return &PhaseTimer{timer: t, name: name}
}

func (t *Timer) stop(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.phases) - 1; i >= 0; i-- {
		p := t.phases[i]
		if p.Name != name {
			continue
		}
		if !p.done {
			p.Duration = t.clock.Since(p.Start)
			p.done = true
		}
		return p.Duration
	}
	return 0
}

// Phases returns copies of all phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, 0, len(t.phases))
	for _, p := range t.phases {
		out = append(out, *p)
	}
	return out
}

// TotalDuration returns the time elapsed since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.start)
}

// Summary formats all completed phases.
func (t *Timer) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s timing ===\n", t.name)
	for i, p := range t.Phases() {
		fmt.Fprintf(&sb, "%d. %s: %v\n", i+1, p.Name, p.Duration)
	}
	fmt.Fprintf(&sb, "total: %v\n", t.TotalDuration())
	return sb.String()
}

// PrintSummary writes the summary through the configured logger at debug level.
func (t *Timer) PrintSummary() {
	for _, line := range strings.Split(strings.TrimSpace(t.Summary()), "\n") {
		t.logger.Debug("%s", line)
	}
}
