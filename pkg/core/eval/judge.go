// Package eval scores finished tutoring conversations with a separate
// judge model, degrading through a fallback model to a static verdict so
// the session always ends with usable feedback.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/linguaflow/linguaflow/pkg/core/live"
)

const (
	// DefaultPrimaryModel is the first-choice judge model.
	DefaultPrimaryModel = "gemini-2.5-flash"
	// DefaultFallbackModel is tried when the primary fails.
	DefaultFallbackModel = "gemini-2.5-flash-lite"
)

// Config configures the judge.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// PrimaryModel and FallbackModel name the judge models.
	PrimaryModel  string
	FallbackModel string

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.PrimaryModel == "" {
		c.PrimaryModel = DefaultPrimaryModel
	}
	if c.FallbackModel == "" {
		c.FallbackModel = DefaultFallbackModel
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// generateFunc produces raw model text for a prompt. Split out so tests
// can run the strategy chain without network access.
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// Judge evaluates a finished conversation for one scenario. It implements
// the session's Evaluator contract: Evaluate never fails, it degrades.
type Judge struct {
	cfg      Config
	scenario live.Scenario
	logger   *slog.Logger
	generate generateFunc
}

// NewJudge creates a judge for the given scenario.
func NewJudge(ctx context.Context, cfg Config, scenario live.Scenario) (*Judge, error) {
	cfg.applyDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("eval: api key required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("eval: create client: %w", err)
	}

	return &Judge{
		cfg:      cfg,
		scenario: scenario,
		logger:   cfg.Logger,
		generate: func(ctx context.Context, model, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model,
				genai.Text(prompt), &genai.GenerateContentConfig{
					ResponseMIMEType: "application/json",
				})
			if err != nil {
				return "", err
			}
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("empty response from %s", model)
			}
			return text, nil
		},
	}, nil
}

// Evaluate scores the conversation. Strategy: primary model, then the
// fallback model, then a static verdict keyed to the mission outcome.
func (j *Judge) Evaluate(ctx context.Context, turns []live.Turn, missionAchieved bool) live.Evaluation {
	prompt := j.buildPrompt(turns)

	for _, model := range []string{j.cfg.PrimaryModel, j.cfg.FallbackModel} {
		raw, err := j.generate(ctx, model, prompt)
		if err != nil {
			j.logger.Warn("judge model failed", "model", model, "error", err)
			continue
		}
		ev, err := parseEvaluation(raw)
		if err != nil {
			j.logger.Warn("judge returned unparseable verdict", "model", model, "error", err)
			continue
		}
		return ev
	}

	j.logger.Error("all judge models failed, using static evaluation",
		"mission_achieved", missionAchieved)
	return staticEvaluation(missionAchieved)
}

// buildPrompt renders the judge prompt with the scenario and transcript.
func (j *Judge) buildPrompt(turns []live.Turn) string {
	var conv strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&conv, "%s: %s\n", strings.ToUpper(string(turn.Role)), turn.Text)
	}

	return fmt.Sprintf(`You are an expert language tutor and evaluator.
Your task is to evaluate the following conversation between a user and an AI tutor.

SCENARIO: %s (%s)
DIFFICULTY: %s

CONVERSATION TRANSCRIPT:
%s
Based on the user's performance, provide:
1. A Score from 0 to 10 (integer).
2. A brief Feedback summary (max 2 sentences).
3. Three specific Tips for improvement.

Return the result strictly as a JSON object with this format:
{
  "score": number,
  "feedback": "string",
  "tips": ["string", "string", "string"]
}`, j.scenario.Title, j.scenario.Description, j.scenario.Difficulty, conv.String())
}

// parseEvaluation decodes a model verdict, tolerating markdown fences.
func parseEvaluation(raw string) (live.Evaluation, error) {
	var ev live.Evaluation
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &ev); err != nil {
		return ev, fmt.Errorf("decode verdict: %w", err)
	}
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 10 {
		ev.Score = 10
	}
	return ev, nil
}

// cleanJSON strips markdown code fences that models wrap JSON in.
func cleanJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// staticEvaluation is the last-resort verdict when every judge model is
// unreachable. A completed mission still earns a passing score.
func staticEvaluation(missionAchieved bool) live.Evaluation {
	score := 5
	if missionAchieved {
		score = 7
	}
	return live.Evaluation{
		Score:    score,
		Feedback: "Great effort! The AI judge is currently offline, but keep practicing to improve your fluency.",
		Tips: []string{
			"Try to speak more confidently.",
			"Expand your vocabulary.",
			"Practice daily.",
		},
	}
}
