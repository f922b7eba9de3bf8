package live

import (
	"sync"
	"time"

	"github.com/linguaflow/linguaflow/pkg/core/audio"
)

// Clock reports the output device timeline in seconds. The scheduler only
// ever compares and adds these values, so any monotonic origin works.
type Clock interface {
	Now() float64
}

// Sink starts playback of a decoded unit at an absolute device time and
// returns a function that stops it early. Stop must be safe to call after
// the unit has already finished.
type Sink interface {
	Play(unit audio.PlaybackUnit, at float64) (stop func())
}

// timerHandle lets tests substitute deterministic completion timers.
type timerHandle interface {
	Stop() bool
}

type realTimer struct{ *time.Timer }

func afterFunc(d time.Duration, f func()) timerHandle {
	return realTimer{time.AfterFunc(d, f)}
}

type scheduledSource struct {
	stop  func()
	timer timerHandle
	start float64
	end   float64
}

// Scheduler keeps synthesized audio gapless: each unit starts exactly when
// the previous one ends, or immediately if the queue has drained. Sources
// are tracked in a slot map keyed by a monotonically increasing id so that
// completion and interruption remove exactly the source they target.
type Scheduler struct {
	mu        sync.Mutex
	clock     Clock
	sink      Sink
	nextStart float64
	nextID    uint64
	sources   map[uint64]*scheduledSource

	// afterFunc is swapped out by tests.
	afterFunc func(d time.Duration, f func()) timerHandle

	// onDrained fires, outside the lock, when the last source completes
	// naturally. Interrupt does not fire it.
	onDrained func()
}

// SetOnDrained registers the callback invoked when playback runs dry.
func (s *Scheduler) SetOnDrained(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = f
}

// NewScheduler creates a scheduler over the given device clock and sink.
func NewScheduler(clock Clock, sink Sink) *Scheduler {
	return &Scheduler{
		clock:     clock,
		sink:      sink,
		sources:   make(map[uint64]*scheduledSource),
		afterFunc: afterFunc,
	}
}

// Schedule enqueues one playback unit and returns its start time on the
// device timeline. Zero-duration units are dropped without touching the
// schedule.
func (s *Scheduler) Schedule(unit audio.PlaybackUnit) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.nextStart < now {
		s.nextStart = now
	}
	start := s.nextStart

	if unit.Duration <= 0 {
		return start
	}

	id := s.nextID
	s.nextID++

	src := &scheduledSource{
		stop:  s.sink.Play(unit, start),
		start: start,
		end:   start + unit.Duration,
	}
	s.sources[id] = src
	s.nextStart = src.end

	delay := time.Duration((src.end - now) * float64(time.Second))
	src.timer = s.afterFunc(delay, func() { s.complete(id) })

	return start
}

// complete removes a source whose playback has run to the end.
func (s *Scheduler) complete(id uint64) {
	s.mu.Lock()
	_, existed := s.sources[id]
	delete(s.sources, id)
	drained := existed && len(s.sources) == 0
	cb := s.onDrained
	s.mu.Unlock()

	if drained && cb != nil {
		cb()
	}
}

// Interrupt stops everything currently scheduled or playing and resets the
// timeline so the next unit starts immediately. Safe to call at any time,
// including when nothing is playing.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, src := range s.sources {
		if src.timer != nil {
			src.timer.Stop()
		}
		src.stop()
		delete(s.sources, id)
	}
	s.nextStart = 0
}

// IsSpeaking reports whether any source is scheduled or playing.
func (s *Scheduler) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources) > 0
}

// Pending returns the number of live sources, for diagnostics.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// NextStart exposes the schedule head for tests and diagnostics.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
