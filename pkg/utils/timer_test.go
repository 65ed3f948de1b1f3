package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_PhasesInStartOrder(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("shrink", WithClock(clock))

	ingest := timer.Start("ingest")
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, ingest.Stop())

	traverse := timer.Start("traverse")
	clock.Advance(time.Second)
	traverse.Stop()
	clock.Advance(time.Second)
	assert.Equal(t, time.Second, traverse.Stop(), "second stop has no effect")

	phases := timer.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, "ingest", phases[0].Name)
	assert.Equal(t, "traverse", phases[1].Name)
	assert.Equal(t, 4*time.Second, timer.TotalDuration())
}

func TestTimer_Summary(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	logger := NewMemoryLogger()
	timer := NewTimer("shrink", WithClock(clock), WithLogger(logger))

	pt := timer.Start("output")
	clock.Advance(time.Millisecond)
	pt.Stop()

	summary := timer.Summary()
	assert.Contains(t, summary, "=== shrink timing ===")
	assert.Contains(t, summary, "1. output: 1ms")

	timer.PrintSummary()
	assert.Len(t, logger.Entries(LevelDebug), 3)
}

func TestTimer_StopUnknownPhase(t *testing.T) {
	timer := NewTimer("x")
	pt := &PhaseTimer{timer: timer, name: "missing"}
	assert.Equal(t, time.Duration(0), pt.Stop())
}
