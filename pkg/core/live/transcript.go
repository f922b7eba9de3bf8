package live

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a transcript turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one completed utterance in the conversation record.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript accumulates streaming transcription fragments per role and
// flushes them into completed turns at turn boundaries. Fragments arrive
// out of lockstep with audio, so both roles buffer independently until the
// server signals the end of a model turn.
type Transcript struct {
	mu        sync.Mutex
	userBuf   strings.Builder
	modelBuf  strings.Builder
	turns     []Turn
	now       func() time.Time
	newTurnID func() string
}

// NewTranscript creates an empty transcript aggregator.
func NewTranscript() *Transcript {
	return &Transcript{
		now:       time.Now,
		newTurnID: func() string { return uuid.NewString() },
	}
}

// AddFragment appends a transcription fragment to the buffer for role.
// Fragments are concatenated exactly as they arrive.
func (t *Transcript) AddFragment(role Role, text string) {
	if text == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch role {
	case RoleUser:
		t.userBuf.WriteString(text)
	case RoleModel:
		t.modelBuf.WriteString(text)
	}
}

// CompleteTurn flushes both buffers into the turn record, user side first.
// Buffers that hold only whitespace produce no turn. Returns the turns
// emitted by this flush.
func (t *Transcript) CompleteTurn() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked("")
}

// FlushFinal captures any residual buffered content at teardown. Turns
// emitted here carry a "-final" suffix on the ID so consumers can tell a
// forced flush from a server-delimited one.
func (t *Transcript) FlushFinal() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked("-final")
}

func (t *Transcript) flushLocked(idSuffix string) []Turn {
	var emitted []Turn

	if text := strings.TrimSpace(t.userBuf.String()); text != "" {
		emitted = append(emitted, Turn{
			ID:        t.newTurnID() + idSuffix,
			Role:      RoleUser,
			Text:      text,
			Timestamp: t.now(),
		})
	}
	t.userBuf.Reset()

	if text := strings.TrimSpace(t.modelBuf.String()); text != "" {
		emitted = append(emitted, Turn{
			ID:        t.newTurnID() + idSuffix,
			Role:      RoleModel,
			Text:      text,
			Timestamp: t.now(),
		})
	}
	t.modelBuf.Reset()

	t.turns = append(t.turns, emitted...)
	return emitted
}

// Turns returns a copy of all completed turns in order.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of completed turns.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}
