package live

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Phase represents the current lifecycle phase of the live session.
type Phase int

const (
	// PhaseIdle is the initial phase before Start is called.
	PhaseIdle Phase = iota
	// PhaseConnecting covers transport dial and handshake.
	PhaseConnecting
	// PhaseOpen is the steady conversational state.
	PhaseOpen
	// PhaseInterrupted is the transient state while in-flight model audio
	// is being cancelled. The session returns to Open immediately after.
	PhaseInterrupted
	// PhaseEvaluating runs the post-conversation judge.
	PhaseEvaluating
	// PhaseClosed is the terminal phase after a clean shutdown.
	PhaseClosed
	// PhaseFailed is the terminal phase after an unrecoverable error.
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseOpen:
		return "OPEN"
	case PhaseInterrupted:
		return "INTERRUPTED"
	case PhaseEvaluating:
		return "EVALUATING"
	case PhaseClosed:
		return "CLOSED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SessionConfig holds all configuration for a live tutoring session.
type SessionConfig struct {
	// Model is the live conversational model.
	Model string `json:"model"`

	// SystemInstruction is the assembled tutor prompt for this scenario.
	SystemInstruction string `json:"system_instruction,omitempty"`

	// Voice selects the prebuilt synthesis voice.
	Voice string `json:"voice,omitempty"`

	// Language is the BCP-47 speech language code, e.g. "es-ES".
	Language string `json:"language,omitempty"`

	// MissionGraceDelay is how long to keep the session open after the
	// model declares the mission complete, so closing remarks can play
	// out. Default: 2s.
	MissionGraceDelay time.Duration `json:"mission_grace_delay"`

	// EvaluationTimeout bounds the post-conversation judge call.
	// Default: 60s.
	EvaluationTimeout time.Duration `json:"evaluation_timeout"`

	// EventBufferSize is the capacity of the Events channel. Events are
	// dropped when the consumer falls behind. Default: 64.
	EventBufferSize int `json:"event_buffer_size"`

	// FrameBufferSize is the capacity of the capture frame queue between
	// the device callback and the encoder. Default: 16.
	FrameBufferSize int `json:"frame_buffer_size"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:             "gemini-2.5-flash-native-audio-preview-09-2025",
		Voice:             "Zephyr",
		MissionGraceDelay: 2 * time.Second,
		EvaluationTimeout: 60 * time.Second,
		EventBufferSize:   64,
		FrameBufferSize:   16,
	}
}

// SessionConfigFromEnv builds a SessionConfig from environment variables,
// falling back to defaults for anything unset.
//
//	LINGUAFLOW_LIVE_MODEL        live model name
//	LINGUAFLOW_VOICE             prebuilt voice name
//	LINGUAFLOW_LANGUAGE          BCP-47 speech language code
//	LINGUAFLOW_GRACE_DELAY_MS    mission grace delay in milliseconds
func SessionConfigFromEnv() (SessionConfig, error) {
	cfg := DefaultSessionConfig()

	if v := os.Getenv("LINGUAFLOW_LIVE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LINGUAFLOW_VOICE"); v != "" {
		cfg.Voice = v
	}
	if v := os.Getenv("LINGUAFLOW_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("LINGUAFLOW_GRACE_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return cfg, fmt.Errorf("invalid LINGUAFLOW_GRACE_DELAY_MS %q", v)
		}
		cfg.MissionGraceDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func (c *SessionConfig) applyDefaults() {
	d := DefaultSessionConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MissionGraceDelay <= 0 {
		c.MissionGraceDelay = d.MissionGraceDelay
	}
	if c.EvaluationTimeout <= 0 {
		c.EvaluationTimeout = d.EvaluationTimeout
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = d.EventBufferSize
	}
	if c.FrameBufferSize <= 0 {
		c.FrameBufferSize = d.FrameBufferSize
	}
}
