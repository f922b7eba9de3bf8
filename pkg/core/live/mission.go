package live

import (
	"log/slog"
	"sync"
	"time"

	"github.com/linguaflow/linguaflow/pkg/gemini"
)

// MissionToolName is the function the model calls to declare the scenario
// objective achieved.
const MissionToolName = "complete_mission"

// MissionTrigger watches tool calls for the completion declaration. The
// latch is monotonic: once achieved, later calls (or the absence of them)
// never clear it. After latching it acknowledges the call and arms a grace
// timer so the model's closing words can finish playing before teardown.
type MissionTrigger struct {
	logger     *slog.Logger
	graceDelay time.Duration

	// onAck sends the tool response back over the transport.
	onAck func(resp gemini.ToolResponse) error
	// onComplete fires once when the mission latches.
	onComplete func(callID string)
	// onExpire fires after the grace delay.
	onExpire func()

	mu       sync.Mutex
	achieved bool
	timer    *time.Timer
}

// NewMissionTrigger creates a trigger with the given grace delay.
func NewMissionTrigger(
	graceDelay time.Duration,
	logger *slog.Logger,
	onAck func(gemini.ToolResponse) error,
	onComplete func(callID string),
	onExpire func(),
) *MissionTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &MissionTrigger{
		logger:     logger,
		graceDelay: graceDelay,
		onAck:      onAck,
		onComplete: onComplete,
		onExpire:   onExpire,
	}
}

// Handle inspects a batch of tool calls. Completion calls latch the
// mission exactly once; unknown tool names are ignored. Every recognized
// call is acknowledged, even repeats, so the model never stalls waiting
// for a response.
func (m *MissionTrigger) Handle(calls []gemini.FunctionCall) {
	for _, call := range calls {
		if call.Name != MissionToolName {
			m.logger.Debug("ignoring unknown tool call", "name", call.Name)
			continue
		}

		if m.onAck != nil {
			err := m.onAck(gemini.ToolResponse{
				FunctionResponses: []gemini.FunctionResponse{{
					ID:       call.ID,
					Name:     call.Name,
					Response: map[string]any{"result": "ok"},
				}},
			})
			if err != nil {
				m.logger.Warn("tool response send failed", "error", err)
			}
		}

		m.mu.Lock()
		if m.achieved {
			m.mu.Unlock()
			continue
		}
		m.achieved = true
		m.timer = time.AfterFunc(m.graceDelay, func() {
			if m.onExpire != nil {
				m.onExpire()
			}
		})
		m.mu.Unlock()

		m.logger.Info("mission completed", "call_id", call.ID,
			"grace_delay", m.graceDelay)
		if m.onComplete != nil {
			m.onComplete(call.ID)
		}
	}
}

// Achieved reports whether the mission latch is set.
func (m *MissionTrigger) Achieved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.achieved
}

// Cancel stops a pending grace timer without clearing the latch.
func (m *MissionTrigger) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
