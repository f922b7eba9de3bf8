package live

import (
	"fmt"
	"strings"
)

// TeachingMode selects how aggressively the tutor corrects the learner.
type TeachingMode string

const (
	// ModeTeacher interrupts with corrections as errors happen.
	ModeTeacher TeachingMode = "TEACHER"
	// ModeFluency prioritizes conversational flow over correctness.
	ModeFluency TeachingMode = "FLUENCY"
)

// Valid reports whether the mode is a known value.
func (m TeachingMode) Valid() bool {
	return m == ModeTeacher || m == ModeFluency
}

// Difficulty labels the scenario challenge tier.
type Difficulty string

const (
	DifficultyRookie Difficulty = "ROOKIE"
	DifficultyAdept  Difficulty = "ADEPT"
	DifficultyElite  Difficulty = "ELITE"
)

// Scenario describes one roleplay situation the learner trains in.
type Scenario struct {
	ID             string       `yaml:"id" json:"id"`
	Title          string       `yaml:"title" json:"title"`
	Description    string       `yaml:"description" json:"description"`
	Difficulty     Difficulty   `yaml:"difficulty" json:"difficulty"`
	InitialMessage string       `yaml:"initial_message" json:"initial_message"`
	PromptContext  string       `yaml:"prompt_context" json:"prompt_context"`
	Mode           TeachingMode `yaml:"mode" json:"mode"`
}

// Validate checks the scenario carries enough to drive a session.
func (s *Scenario) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("scenario title required")
	}
	if s.PromptContext == "" {
		return fmt.Errorf("scenario prompt_context required")
	}
	if s.Mode != "" && !s.Mode.Valid() {
		return fmt.Errorf("unknown teaching mode %q", s.Mode)
	}
	return nil
}

const systemInstructionBase = `
You are LinguaFlow, an advanced AI linguistic combat training unit.

CRITICAL DIRECTIVES:
1. **GIBBERISH PROTOCOL**: If the user speaks nonsense, random sounds, or unintelligible English, DO NOT play along. STOP immediately. Say in Portuguese: "Não entendi o que você disse. Isso não parece inglês. Pode repetir com calma?".
2. **DUAL LANGUAGE CORE**:
   - ROLEPLAY: Always English.
   - CORRECTIONS/FEEDBACK: Always Portuguese.
4. **LANGUAGE SWITCHING**:
   - If you must correct the user (Teacher Mode), do it in Portuguese inside parentheses: '(Correção: ...)' or '(Dica: ...)'.
   - **IMMEDIATELY** after the Portuguese correction, switch back to **ENGLISH** to continue the roleplay.
   - **NEVER** continue the conversation in Portuguese. Your persona is an English speaker.
   - Example: "(Correção: O correto é 'I would like'.) So, what can I get for you today?"

5. **MISSION COMPLETION**:
   - When the user has successfully completed the scenario's objective (e.g. ordered coffee, passed the interview), you MUST call the ` + "`complete_mission`" + ` tool.
   - Do NOT say "Mission Complete". Just call the tool silently.
`

var modeInstructions = map[TeachingMode]string{
	ModeTeacher: `
MODE: DRILL SERGEANT (STRICT BUT FAIR)
- If the user makes a grammar or pronunciation error that matters for the current context, INTERRUPT IMMEDIATELY.
- State the error clearly in Portuguese.
- Explain the grammar rule in Portuguese (keep it brief).
- Ask them to repeat the correct sentence in English.
- **Context Check**: Before correcting, ask yourself: "Is this error acceptable in this specific social context?" If yes, let it slide.
- If they say something completely wrong/random, correct them bluntly.
`,
	ModeFluency: `
MODE: FREE FLOW
- Maintain conversation momentum.
- Do not interrupt for minor anomalies.
- If they speak gibberish, gently ask for clarification in English.
- Focus on the flow of ideas rather than perfect grammar.
`,
}

// BuildSystemInstruction assembles the full tutor prompt: the base
// directives, the teaching mode, the scenario context, and the opening
// line. An unset mode defaults to fluency.
func (s *Scenario) BuildSystemInstruction() string {
	mode := s.Mode
	if !mode.Valid() {
		mode = ModeFluency
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemInstructionBase))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(modeInstructions[mode]))
	b.WriteString("\nSCENARIO: ")
	b.WriteString(s.PromptContext)
	if s.InitialMessage != "" {
		fmt.Fprintf(&b, "\nStart by saying: %q", s.InitialMessage)
	}
	return b.String()
}
