// Command call runs one interactive training call from the terminal using
// the system microphone and speakers, then prints the analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/call"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/config"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scenario"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scoring"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/session"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/store"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	exerciseID := flag.String("exercise", "qualify", "exercise id (qualify, cold_qualify, emotion, proposal, objections)")
	difficulty := flag.String("difficulty", "medio", "difficulty: facil, medio or dificil")
	disc := flag.String("disc", "", "seller DISC profile: D, I, S or C")
	userID := flag.String("user", "local", "trainee id attached to the recording")
	flag.Parse()

	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	recordings, err := store.NewFileStore(cfg.RecordingsDir)
	if err != nil {
		log.Fatalf("recordings store: %v", err)
	}
	if cfg.SupabaseURL != "" {
		recordings.SetArchive(store.NewSupabaseArchive(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket))
	}

	orch := &call.Orchestrator{
		APIKey:    cfg.GeminiAPIKey,
		LiveModel: cfg.LiveModelID,
		Analyzer:  scoring.NewGeminiClient(cfg.GeminiAPIKey, cfg.ScoringModel),
		Store:     recordings,
		Duration:  cfg.CallDuration,
		OnTick: func(remaining time.Duration) {
			// One line per minute plus the final seconds.
			if remaining <= 10*time.Second || remaining%time.Minute < time.Second {
				fmt.Printf("Tempo restante: %s\n", remaining.Round(time.Second))
			}
		},
		OnStatus: func(st session.Status) {
			switch st {
			case session.Connecting:
				fmt.Println("A inicializar coach de IA...")
			case session.Listening:
				fmt.Println("Pode falar agora")
			case session.Speaking:
				fmt.Println("Lead a falar...")
			case session.Ended:
				fmt.Println("Chamada finalizada.")
			}
		},
	}

	req := call.Request{
		ExerciseID: *exerciseID,
		Difficulty: parseDifficulty(*difficulty),
		Disc:       scenario.DiscType(strings.ToUpper(*disc)),
		UserID:     *userID,
	}

	plan, err := orch.Prepare(req)
	if err != nil {
		log.Fatalf("prepare: %v", err)
	}
	fmt.Printf("%s (%s)\n", plan.Exercise.Title, req.Difficulty)
	fmt.Printf("Vai falar com %s da %s. Ctrl+C termina a chamada.\n\n", plan.Scenario.Name, plan.Scenario.Brand)

	// Ctrl+C ends the call gracefully and still produces the analysis.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rec, err := orch.Run(ctx, req)
	if err != nil {
		if rec.ID == "" {
			log.Fatalf("call failed: %v", err)
		}
		// Analysis failed but the call itself completed and was saved.
		log.Printf("aviso: %v", err)
	}

	printResult(rec)
}

func parseDifficulty(s string) scenario.Difficulty {
	switch strings.ToLower(s) {
	case "facil", "fácil":
		return scenario.Easy
	case "dificil", "difícil":
		return scenario.Difficult
	default:
		return scenario.Medium
	}
}

func printResult(rec store.Recording) {
	fmt.Println("\n--- Transcrição ---")
	fmt.Println(call.FormatTranscript(rec.Transcript))
	fmt.Println("\n--- Análise ---")
	fmt.Printf("Pontuação: %d/100  Qualificado: %v\n", rec.Analysis.Score, rec.Analysis.IsQualified)
	fmt.Println(rec.Analysis.Summary)
	if len(rec.Analysis.FailedPoints) > 0 {
		fmt.Println("\nPontos falhados:")
		for _, p := range rec.Analysis.FailedPoints {
			fmt.Println("  -", p)
		}
	}
	if len(rec.Analysis.NextSteps) > 0 {
		fmt.Println("\nPróximos passos:")
		for _, p := range rec.Analysis.NextSteps {
			fmt.Println("  -", p)
		}
	}
	fmt.Printf("\nGravação guardada: %s\n", rec.ID)
}
