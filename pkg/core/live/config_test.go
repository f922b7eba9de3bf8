package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConfigApplyDefaults(t *testing.T) {
	cfg := SessionConfig{}
	cfg.applyDefaults()

	def := DefaultSessionConfig()
	assert.Equal(t, def.Model, cfg.Model)
	assert.Equal(t, def.MissionGraceDelay, cfg.MissionGraceDelay)
	assert.Equal(t, def.EvaluationTimeout, cfg.EvaluationTimeout)
	assert.Equal(t, def.EventBufferSize, cfg.EventBufferSize)
	assert.Equal(t, def.FrameBufferSize, cfg.FrameBufferSize)
}

func TestSessionConfigDefaults(t *testing.T) {
	cfg := DefaultSessionConfig()
	assert.Equal(t, 2*time.Second, cfg.MissionGraceDelay)
	assert.Equal(t, 60*time.Second, cfg.EvaluationTimeout)
}

func TestSessionConfigFromEnv(t *testing.T) {
	t.Setenv("LINGUAFLOW_VOICE", "Puck")
	t.Setenv("LINGUAFLOW_GRACE_DELAY_MS", "250")

	cfg, err := SessionConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Puck", cfg.Voice)
	assert.Equal(t, 250*time.Millisecond, cfg.MissionGraceDelay)
}

func TestSessionConfigFromEnvRejectsBadDelay(t *testing.T) {
	t.Setenv("LINGUAFLOW_GRACE_DELAY_MS", "soon")

	_, err := SessionConfigFromEnv()
	assert.Error(t, err)
}
