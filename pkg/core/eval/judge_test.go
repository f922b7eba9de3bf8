package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguaflow/linguaflow/pkg/core/live"
)

func stubJudge(generate generateFunc) *Judge {
	cfg := Config{APIKey: "test"}
	cfg.applyDefaults()
	return &Judge{
		cfg: cfg,
		scenario: live.Scenario{
			Title:       "Cafe Protocol",
			Description: "Order a coffee in London.",
			Difficulty:  live.DifficultyRookie,
		},
		logger:   cfg.Logger,
		generate: generate,
	}
}

func sampleTurns() []live.Turn {
	return []live.Turn{
		{Role: live.RoleUser, Text: "I want coffee please"},
		{Role: live.RoleModel, Text: "Sure! What size would you like?"},
	}
}

func TestEvaluatePrimarySucceeds(t *testing.T) {
	var models []string
	j := stubJudge(func(_ context.Context, model, prompt string) (string, error) {
		models = append(models, model)
		assert.Contains(t, prompt, "USER: I want coffee please")
		assert.Contains(t, prompt, "Cafe Protocol")
		return `{"score": 9, "feedback": "Strong.", "tips": ["a", "b", "c"]}`, nil
	})

	ev := j.Evaluate(context.Background(), sampleTurns(), true)

	assert.Equal(t, 9, ev.Score)
	assert.Equal(t, "Strong.", ev.Feedback)
	assert.Len(t, ev.Tips, 3)
	assert.Equal(t, []string{DefaultPrimaryModel}, models)
}

func TestEvaluateFallsBackToSecondModel(t *testing.T) {
	var models []string
	j := stubJudge(func(_ context.Context, model, _ string) (string, error) {
		models = append(models, model)
		if model == DefaultPrimaryModel {
			return "", errors.New("quota exceeded")
		}
		return "```json\n{\"score\": 6, \"feedback\": \"ok\", \"tips\": []}\n```", nil
	})

	ev := j.Evaluate(context.Background(), sampleTurns(), false)

	assert.Equal(t, 6, ev.Score)
	assert.Equal(t, []string{DefaultPrimaryModel, DefaultFallbackModel}, models)
}

func TestEvaluateStaticFallback(t *testing.T) {
	failAll := func(context.Context, string, string) (string, error) {
		return "", errors.New("offline")
	}

	t.Run("mission achieved", func(t *testing.T) {
		ev := stubJudge(failAll).Evaluate(context.Background(), sampleTurns(), true)
		assert.Equal(t, 7, ev.Score)
		assert.Len(t, ev.Tips, 3)
		assert.NotEmpty(t, ev.Feedback)
	})

	t.Run("mission not achieved", func(t *testing.T) {
		ev := stubJudge(failAll).Evaluate(context.Background(), sampleTurns(), false)
		assert.Equal(t, 5, ev.Score)
	})
}

func TestEvaluateUnparseableThenFallback(t *testing.T) {
	calls := 0
	j := stubJudge(func(_ context.Context, model, _ string) (string, error) {
		calls++
		if calls == 1 {
			return "I think the user did well overall!", nil
		}
		return `{"score": 4, "feedback": "shaky", "tips": ["x"]}`, nil
	})

	ev := j.Evaluate(context.Background(), sampleTurns(), false)
	assert.Equal(t, 4, ev.Score)
	assert.Equal(t, 2, calls)
}

func TestParseEvaluationClampsScore(t *testing.T) {
	ev, err := parseEvaluation(`{"score": 42, "feedback": "", "tips": []}`)
	require.NoError(t, err)
	assert.Equal(t, 10, ev.Score)

	ev, err = parseEvaluation(`{"score": -3, "feedback": "", "tips": []}`)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Score)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"plain", `{"a":1}`, `{"a":1}`},
		{"padded", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestNewJudgeRequiresKey(t *testing.T) {
	_, err := NewJudge(context.Background(), Config{}, live.Scenario{})
	assert.Error(t, err)
}
