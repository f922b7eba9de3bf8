package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/linguaflow/linguaflow/pkg/core/audio"
	"github.com/linguaflow/linguaflow/pkg/gemini"
)

// Transport is the duplex connection to the speech model.
type Transport interface {
	// Events returns the server event stream. The channel closes when
	// the connection dies; Err reports why.
	Events() <-chan gemini.ServerEvent

	// SendAudio streams one encoded microphone chunk.
	SendAudio(chunk audio.EncodedChunk) error

	// SendToolResponse acknowledges function calls.
	SendToolResponse(resp gemini.ToolResponse) error

	// Close shuts the connection down. Idempotent.
	Close() error

	// Err returns the terminal connection error, if any.
	Err() error
}

// Connector opens a transport for the given session configuration.
type Connector func(ctx context.Context, cfg SessionConfig) (Transport, error)

// Evaluation is the judge's verdict on a finished conversation.
type Evaluation struct {
	Score    int      `json:"score"`
	Feedback string   `json:"feedback"`
	Tips     []string `json:"tips"`
}

// Evaluator scores a finished conversation. Implementations must always
// return a usable evaluation; degraded results stand in for hard failures.
type Evaluator interface {
	Evaluate(ctx context.Context, turns []Turn, missionAchieved bool) Evaluation
}

// Result is the final outcome of a session, produced exactly once.
type Result struct {
	Turns           []Turn     `json:"turns"`
	TurnCount       int        `json:"turn_count"`
	MissionAchieved bool       `json:"mission_achieved"`
	Evaluation      Evaluation `json:"evaluation"`
}

// captureFrame is one raw microphone frame queued for encoding.
type captureFrame struct {
	samples []float32
	rate    int
}

// Session is the orchestrator for one live tutoring conversation. It owns
// the transport, the playback scheduler, the transcript, and the mission
// latch, and runs the full lifecycle from dial to evaluation.
type Session struct {
	config    SessionConfig
	logger    *slog.Logger
	connect   Connector
	evaluator Evaluator

	scheduler  *Scheduler
	transcript *Transcript
	mission    *MissionTrigger
	levels     *audio.LevelTap

	mu        sync.RWMutex
	phase     Phase
	sessionID string
	transport Transport
	result    *Result
	speaking  bool

	muted  atomic.Bool
	closed atomic.Bool

	frames chan captureFrame
	events chan Event
	done   chan struct{}

	finishOnce sync.Once

	// emitMu serializes event sends against the channel close in teardown.
	emitMu       sync.Mutex
	eventsClosed bool

	errMu sync.Mutex
	err   error
}

// NewSession creates a session. The connector opens the transport on
// Start; clock and sink drive the playback scheduler; the evaluator runs
// after the conversation ends.
func NewSession(
	config SessionConfig,
	connect Connector,
	clock Clock,
	sink Sink,
	evaluator Evaluator,
	logger *slog.Logger,
) *Session {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		config:     config,
		logger:     logger,
		connect:    connect,
		evaluator:  evaluator,
		scheduler:  NewScheduler(clock, sink),
		transcript: NewTranscript(),
		levels:     audio.NewLevelTap(0.6),
		phase:      PhaseIdle,
		sessionID:  uuid.NewString(),
		frames:     make(chan captureFrame, config.FrameBufferSize),
		events:     make(chan Event, config.EventBufferSize),
		done:       make(chan struct{}),
	}

	s.scheduler.SetOnDrained(func() { s.setSpeaking(false) })
	return s
}

// SessionID returns the session identifier.
func (s *Session) SessionID() string { return s.sessionID }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Events returns the channel for receiving session events.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session has fully terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start dials the transport and brings the session to the open phase.
// A connection failure is terminal: the session lands in Failed and
// cannot be restarted.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.phase = PhaseConnecting
	s.mu.Unlock()
	s.emit(&PhaseChangedEvent{From: PhaseIdle, To: PhaseConnecting})

	transport, err := s.connect(ctx, s.config)
	if err != nil {
		s.fail(fmt.Errorf("connect: %w", err))
		return err
	}

	s.mu.Lock()
	s.transport = transport
	s.mu.Unlock()

	s.mission = NewMissionTrigger(
		s.config.MissionGraceDelay,
		s.logger,
		transport.SendToolResponse,
		func(callID string) { s.emit(&MissionCompletedEvent{ToolCallID: callID}) },
		func() { go s.Finish() },
	)

	go s.sendLoop()
	go s.routeLoop()

	s.setPhase(PhaseOpen)
	s.logger.Info("session open", "session_id", s.sessionID, "model", s.config.Model)
	s.emit(&SessionOpenEvent{SessionID: s.sessionID, Model: s.config.Model})
	return nil
}

// SendFrame queues one raw microphone frame for encoding and transport.
// Frames are dropped silently while muted, before the session opens, and
// after it closes. The capture callback never blocks: when the encoder
// falls behind, the frame is dropped.
func (s *Session) SendFrame(samples []float32, srcRate int) {
	if s.closed.Load() || s.muted.Load() || len(samples) == 0 {
		return
	}
	s.mu.RLock()
	open := s.phase == PhaseOpen || s.phase == PhaseInterrupted
	s.mu.RUnlock()
	if !open {
		return
	}
	s.levels.Observe(samples)

	select {
	case s.frames <- captureFrame{samples: samples, rate: srcRate}:
	default:
		s.logger.Debug("frame queue full, dropping capture frame")
	}
}

// SetMuted toggles microphone muting. Muted frames are dropped before
// encoding; the transport stays open.
func (s *Session) SetMuted(muted bool) {
	s.muted.Store(muted)
	if muted {
		s.levels.Reset()
	}
}

// Muted reports whether the microphone is muted.
func (s *Session) Muted() bool { return s.muted.Load() }

// IsSpeaking reports whether synthesized audio is scheduled or playing.
func (s *Session) IsSpeaking() bool { return s.scheduler.IsSpeaking() }

// Levels returns the smoothed microphone input levels, for UI meters.
func (s *Session) Levels() (rms, peak float64) { return s.levels.Level() }

// sendLoop drains the frame queue, encodes, and transmits.
func (s *Session) sendLoop() {
	for {
		select {
		case <-s.done:
			return
		case f := <-s.frames:
			chunk := audio.EncodeChunk(f.samples, f.rate)
			if err := s.transport.SendAudio(chunk); err != nil {
				if errors.Is(err, gemini.ErrConnClosed) {
					return
				}
				s.logger.Warn("audio send failed", "error", err)
			}
		}
	}
}

// routeLoop dispatches server events until the transport dies.
func (s *Session) routeLoop() {
	for ev := range s.transport.Events() {
		switch ev.Kind {
		case gemini.EventAudio:
			rate := rateFromMIME(ev.Audio.MIMEType, audio.OutputSampleRate)
			unit := audio.DecodePCM16(ev.Audio.Data, rate)
			if unit.Duration > 0 {
				s.scheduler.Schedule(unit)
				s.setSpeaking(true)
			}

		case gemini.EventInputTranscription:
			s.transcript.AddFragment(RoleUser, ev.Text)

		case gemini.EventOutputTranscription:
			s.transcript.AddFragment(RoleModel, ev.Text)

		case gemini.EventTurnComplete:
			if turns := s.transcript.CompleteTurn(); len(turns) > 0 {
				s.emit(&TurnCompletedEvent{Turns: turns})
			}

		case gemini.EventInterrupted:
			s.handleInterrupted()

		case gemini.EventToolCall:
			s.mission.Handle(ev.Calls)
		}
	}

	if s.closed.Load() {
		return
	}
	if err := s.transport.Err(); err != nil {
		s.fail(err)
		return
	}
	// Server closed the conversation on its own terms; evaluate what we
	// have instead of discarding it.
	s.Finish()
}

// handleInterrupted cancels all in-flight playback when the user speaks
// over the model.
func (s *Session) handleInterrupted() {
	s.setPhase(PhaseInterrupted)
	s.scheduler.Interrupt()
	s.setSpeaking(false)
	s.emit(&InterruptedEvent{})
	s.setPhase(PhaseOpen)
}

// Finish ends the conversation and runs the judge. Safe to call from any
// goroutine and any number of times; evaluation happens at most once.
func (s *Session) Finish() {
	s.finishOnce.Do(s.finalize)
}

func (s *Session) finalize() {
	if s.closed.Load() {
		return
	}

	if s.mission != nil {
		s.mission.Cancel()
	}
	s.setPhase(PhaseEvaluating)

	if s.transport != nil {
		s.transport.Close()
	}
	s.scheduler.Interrupt()
	s.setSpeaking(false)

	s.transcript.FlushFinal()
	turns := s.transcript.Turns()
	achieved := s.MissionAchieved()

	var evaluation Evaluation
	if s.evaluator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.EvaluationTimeout)
		defer cancel()
		evaluation = s.evaluator.Evaluate(ctx, turns, achieved)
	}

	result := &Result{
		Turns:           turns,
		TurnCount:       len(turns),
		MissionAchieved: achieved,
		Evaluation:      evaluation,
	}
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()

	s.emit(&ResultEvent{Result: result})
	s.teardown(PhaseClosed, "finished")
}

// Close aborts the session without evaluation. Idempotent; a session that
// already finished is left untouched.
func (s *Session) Close() error {
	s.finishOnce.Do(func() {
		if s.mission != nil {
			s.mission.Cancel()
		}
		if s.transport != nil {
			s.transport.Close()
		}
		s.scheduler.Interrupt()
		s.transcript.FlushFinal()
		s.teardown(PhaseClosed, "closed")
	})
	return nil
}

// fail records a terminal error and releases everything.
func (s *Session) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()

	s.logger.Error("session failed", "session_id", s.sessionID, "error", err)
	s.emit(&ErrorEvent{Code: "session_failed", Message: err.Error()})

	s.finishOnce.Do(func() {
		if s.mission != nil {
			s.mission.Cancel()
		}
		if s.transport != nil {
			s.transport.Close()
		}
		s.scheduler.Interrupt()
		s.teardown(PhaseFailed, "failed")
	})
}

// teardown is the single exit path shared by finish, close, and fail.
func (s *Session) teardown(terminal Phase, reason string) {
	if s.closed.Swap(true) {
		return
	}
	s.setPhase(terminal)
	s.emit(&SessionClosedEvent{Reason: reason})
	close(s.done)

	s.emitMu.Lock()
	s.eventsClosed = true
	close(s.events)
	s.emitMu.Unlock()
}

// Result returns the final result, or nil before evaluation completes.
func (s *Session) Result() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// MissionAchieved reports the mission latch.
func (s *Session) MissionAchieved() bool {
	return s.mission != nil && s.mission.Achieved()
}

// Turns returns the completed transcript so far.
func (s *Session) Turns() []Turn {
	return s.transcript.Turns()
}

func (s *Session) setPhase(next Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = next
	s.mu.Unlock()

	if prev != next {
		s.logger.Debug("phase change", "from", prev.String(), "to", next.String())
		s.emit(&PhaseChangedEvent{From: prev, To: next})
	}
}

func (s *Session) setSpeaking(speaking bool) {
	s.mu.Lock()
	changed := s.speaking != speaking
	s.speaking = speaking
	s.mu.Unlock()

	if changed {
		s.emit(&SpeakingChangedEvent{Speaking: speaking})
	}
}

// emit sends an event without ever blocking the caller. Events are
// dropped when the consumer falls behind or the session is gone.
func (s *Session) emit(event Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

// rateFromMIME extracts the sample rate from a tag like
// "audio/pcm;rate=24000", falling back when absent or malformed.
func rateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		if v, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return fallback
}
