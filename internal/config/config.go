package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/gemini"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scoring"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	GeminiAPIKey  string
	LiveModelID   string
	ScoringModel  string
	RecordingsDir string
	CallDuration  time.Duration

	// Optional remote mirror for saved recordings.
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set - live calls and scoring will not work")
	}

	liveModel := os.Getenv("GEMINI_LIVE_MODEL_ID")
	if liveModel == "" {
		liveModel = gemini.DefaultLiveModel
	}

	scoringModel := os.Getenv("GEMINI_SCORING_MODEL_ID")
	if scoringModel == "" {
		scoringModel = scoring.DefaultModel
	}

	recordingsDir := os.Getenv("RECORDINGS_DIR")
	if recordingsDir == "" {
		recordingsDir = "recordings"
	}

	duration := 600 * time.Second
	if v := os.Getenv("CALL_DURATION_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			duration = d
		} else {
			log.Printf("Warning: invalid CALL_DURATION_SECONDS=%q - using default", v)
		}
	}

	bucket := os.Getenv("SUPABASE_BUCKET")
	if bucket == "" {
		bucket = "recordings"
	}

	log.Printf("config: HTTP_ADDRESS=%s RECORDINGS_DIR=%s", addr, recordingsDir)
	return Config{
		HTTPAddress:    addr,
		GeminiAPIKey:   apiKey,
		LiveModelID:    liveModel,
		ScoringModel:   scoringModel,
		RecordingsDir:  recordingsDir,
		CallDuration:   duration,
		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket: bucket,
	}
}
