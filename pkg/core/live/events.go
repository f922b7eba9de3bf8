package live

// Event is the interface for all live session events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// PhaseChangedEvent is emitted when the session phase changes.
type PhaseChangedEvent struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

func (e *PhaseChangedEvent) EventType() string { return "phase.changed" }

// SessionOpenEvent is emitted once the transport handshake completes and
// the session is live.
type SessionOpenEvent struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

func (e *SessionOpenEvent) EventType() string { return "session.open" }

// TurnCompletedEvent is emitted when transcript buffers flush into turns.
type TurnCompletedEvent struct {
	Turns []Turn `json:"turns"`
}

func (e *TurnCompletedEvent) EventType() string { return "turn.completed" }

// SpeakingChangedEvent is emitted when synthesized playback starts or the
// source set drains or is interrupted.
type SpeakingChangedEvent struct {
	Speaking bool `json:"speaking"`
}

func (e *SpeakingChangedEvent) EventType() string { return "speaking.changed" }

// InterruptedEvent is emitted when the server cancels in-flight model audio
// because the user spoke over it.
type InterruptedEvent struct{}

func (e *InterruptedEvent) EventType() string { return "interrupted" }

// MissionCompletedEvent is emitted the first time the model declares the
// scenario objective achieved.
type MissionCompletedEvent struct {
	ToolCallID string `json:"tool_call_id"`
}

func (e *MissionCompletedEvent) EventType() string { return "mission.completed" }

// ResultEvent carries the final session result, emitted exactly once after
// evaluation finishes.
type ResultEvent struct {
	Result *Result `json:"result"`
}

func (e *ResultEvent) EventType() string { return "result" }

// SessionClosedEvent is emitted when the session ends.
type SessionClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *SessionClosedEvent) EventType() string { return "session.closed" }

// ErrorEvent is emitted when an error occurs.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }
