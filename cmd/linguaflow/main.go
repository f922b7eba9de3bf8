// Command linguaflow runs a live language-tutoring session from the
// terminal: microphone in, synthesized tutor speech out, transcript and
// evaluation printed at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/linguaflow/linguaflow/internal/dotenv"
	"github.com/linguaflow/linguaflow/pkg/core/eval"
	"github.com/linguaflow/linguaflow/pkg/core/live"
	"github.com/linguaflow/linguaflow/pkg/device"
	"github.com/linguaflow/linguaflow/pkg/gemini"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a YAML scenario file (default: built-in cafe scenario)")
	mode := flag.String("mode", "", "teaching mode override: TEACHER or FLUENCY")
	envPath := flag.String("env", ".env", "path to a dotenv file with credentials")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*scenarioPath, *mode, *envPath, logger); err != nil {
		logger.Error("session aborted", "error", err)
		os.Exit(1)
	}
}

func run(scenarioPath, mode, envPath string, logger *slog.Logger) error {
	if err := dotenv.Load(envPath); err != nil {
		return err
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}

	scenario, err := loadScenario(scenarioPath, mode)
	if err != nil {
		return err
	}

	cfg, err := live.SessionConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.SystemInstruction = scenario.BuildSystemInstruction()

	ctx := context.Background()

	judge, err := eval.NewJudge(ctx, eval.Config{APIKey: apiKey, Logger: logger}, scenario)
	if err != nil {
		return err
	}

	speaker, err := device.NewSpeaker(logger)
	if err != nil {
		return err
	}
	defer speaker.Close()

	connector := func(ctx context.Context, cfg live.SessionConfig) (live.Transport, error) {
		return gemini.Connect(ctx, gemini.ConnectConfig{
			APIKey: apiKey,
			Setup:  liveSetup(cfg),
			Logger: logger,
		})
	}

	session := live.NewSession(cfg, connector, speaker, speaker, judge, logger)

	capture, err := device.NewCapture(device.CaptureConfig{Logger: logger}, session.SendFrame)
	if err != nil {
		return fmt.Errorf("microphone unavailable: %w", err)
	}
	defer capture.Close()

	if err := session.Start(ctx); err != nil {
		return err
	}
	if err := capture.Start(); err != nil {
		session.Close()
		return err
	}

	fmt.Printf("Scenario: %s [%s]\n", scenario.Title, scenario.Difficulty)
	fmt.Printf("  %s\n", scenario.Description)
	fmt.Println("Speak into the microphone. Ctrl+C finishes the session and runs the judge.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("finishing session")
		capture.Stop()
		session.Finish()
	}()

	for event := range session.Events() {
		switch e := event.(type) {
		case *live.TurnCompletedEvent:
			for _, turn := range e.Turns {
				fmt.Printf("[%s] %s\n", turn.Role, turn.Text)
			}
		case *live.MissionCompletedEvent:
			fmt.Println(">>> Mission complete!")
		case *live.ResultEvent:
			printResult(e.Result)
		case *live.ErrorEvent:
			fmt.Fprintf(os.Stderr, "error: %s\n", e.Message)
		}
	}

	<-session.Done()
	return session.Err()
}

// liveSetup maps the session configuration onto the wire handshake.
func liveSetup(cfg live.SessionConfig) gemini.Setup {
	setup := gemini.Setup{
		Model: "models/" + cfg.Model,
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		Tools: []gemini.Tool{{
			FunctionDeclarations: []gemini.FunctionDeclaration{{
				Name:        live.MissionToolName,
				Description: "Call when the user has successfully completed the scenario objective.",
			}},
		}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}

	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &gemini.Content{
			Parts: []gemini.Part{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.Voice != "" || cfg.Language != "" {
		speech := &gemini.SpeechConfig{LanguageCode: cfg.Language}
		if cfg.Voice != "" {
			speech.VoiceConfig = &gemini.VoiceConfig{
				PrebuiltVoiceConfig: &gemini.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			}
		}
		setup.GenerationConfig.SpeechConfig = speech
	}
	return setup
}

func printResult(result *live.Result) {
	fmt.Println()
	fmt.Println("=== Session Report ===")
	fmt.Printf("Turns: %d   Mission achieved: %v\n", result.TurnCount, result.MissionAchieved)
	fmt.Printf("Score: %d/10\n", result.Evaluation.Score)
	fmt.Printf("Feedback: %s\n", result.Evaluation.Feedback)
	for i, tip := range result.Evaluation.Tips {
		fmt.Printf("  Tip %d: %s\n", i+1, tip)
	}
}
