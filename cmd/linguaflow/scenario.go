package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/linguaflow/linguaflow/pkg/core/live"
)

// defaultScenario is used when no scenario file is given.
var defaultScenario = live.Scenario{
	ID:             "coffee-shop",
	Title:          "Cafe Protocol",
	Description:    "Execute order sequence at a high-velocity London distribution node.",
	Difficulty:     live.DifficultyRookie,
	InitialMessage: "System Online. Barista Unit Active. Awaiting your beverage specifications.",
	PromptContext:  "You are a friendly, slightly busy barista at a coffee shop in London. You should ask about size, milk preferences, and if they want food. Keep it casual. The user is allowed to be informal.",
	Mode:           live.ModeFluency,
}

// loadScenario reads one scenario from a YAML file, with an optional
// teaching mode override from the command line.
func loadScenario(path, modeOverride string) (live.Scenario, error) {
	scenario := defaultScenario

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return scenario, fmt.Errorf("read scenario file: %w", err)
		}
		scenario = live.Scenario{}
		if err := yaml.Unmarshal(raw, &scenario); err != nil {
			return scenario, fmt.Errorf("parse scenario file %q: %w", path, err)
		}
	}

	if modeOverride != "" {
		scenario.Mode = live.TeachingMode(modeOverride)
	}

	if err := scenario.Validate(); err != nil {
		return scenario, err
	}
	return scenario, nil
}
