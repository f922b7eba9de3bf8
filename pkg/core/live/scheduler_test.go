package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguaflow/linguaflow/pkg/core/audio"
)

// manualClock is a settable device clock for deterministic scheduling tests.
type manualClock struct {
	now float64
}

func (c *manualClock) Now() float64 { return c.now }

// recordingSink records every Play call and which stops fired.
type recordingSink struct {
	starts  []float64
	stopped []int
}

func (s *recordingSink) Play(unit audio.PlaybackUnit, at float64) func() {
	idx := len(s.starts)
	s.starts = append(s.starts, at)
	return func() { s.stopped = append(s.stopped, idx) }
}

// frozenTimer never fires on its own, keeping completion under test control.
type frozenTimer struct{}

func (frozenTimer) Stop() bool { return true }

func newTestScheduler(clock Clock, sink Sink) *Scheduler {
	s := NewScheduler(clock, sink)
	s.afterFunc = func(time.Duration, func()) timerHandle { return frozenTimer{} }
	return s
}

func unitOf(duration float64) audio.PlaybackUnit {
	n := int(duration * float64(audio.OutputSampleRate))
	return audio.PlaybackUnit{
		Samples:    make([]float32, n),
		SampleRate: audio.OutputSampleRate,
		Duration:   duration,
	}
}

func TestSchedulerGaplessSequence(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock, sink)

	// Three units of 1.0s, 0.5s, and 2.0s arriving back to back while the
	// device clock sits at zero.
	assert.Equal(t, 0.0, s.Schedule(unitOf(1.0)))
	assert.Equal(t, 1.0, s.Schedule(unitOf(0.5)))
	assert.Equal(t, 1.5, s.Schedule(unitOf(2.0)))

	require.Equal(t, []float64{0.0, 1.0, 1.5}, sink.starts)
	assert.Equal(t, 3.5, s.NextStart())
	assert.True(t, s.IsSpeaking())
}

func TestSchedulerIdleRestart(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock, sink)

	s.Schedule(unitOf(1.0))

	// Queue drains; next unit arrives after the clock has moved past the
	// previous end. It must start now, not at the stale nextStart.
	clock.now = 5.0
	start := s.Schedule(unitOf(0.5))
	assert.Equal(t, 5.0, start)
	assert.Equal(t, 5.5, s.NextStart())
}

func TestSchedulerZeroDurationUnit(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock, sink)

	s.Schedule(audio.PlaybackUnit{SampleRate: audio.OutputSampleRate})

	assert.Empty(t, sink.starts)
	assert.False(t, s.IsSpeaking())
	assert.Zero(t, s.NextStart())
}

func TestSchedulerInterrupt(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock, sink)

	s.Schedule(unitOf(1.0))
	s.Schedule(unitOf(1.0))
	require.Equal(t, 2, s.Pending())

	s.Interrupt()

	assert.ElementsMatch(t, []int{0, 1}, sink.stopped)
	assert.False(t, s.IsSpeaking())
	assert.Zero(t, s.NextStart())

	// Interrupting an empty scheduler is a no-op.
	s.Interrupt()
	assert.Len(t, sink.stopped, 2)
}

func TestSchedulerResumesAfterInterrupt(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock, sink)

	s.Schedule(unitOf(2.0))
	clock.now = 0.7
	s.Interrupt()

	// nextStart was reset to zero; the max against the clock pulls the new
	// unit to the present instead of the past.
	start := s.Schedule(unitOf(1.0))
	assert.Equal(t, 0.7, start)
}

func TestSchedulerCompletionRemovesSource(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	var fire func()
	s.afterFunc = func(_ time.Duration, f func()) timerHandle {
		fire = f
		return frozenTimer{}
	}

	s.Schedule(unitOf(1.0))
	require.True(t, s.IsSpeaking())

	fire()
	assert.False(t, s.IsSpeaking())
	assert.Equal(t, 1.0, s.NextStart())
}
