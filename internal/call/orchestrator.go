// Package call assembles a full training call from its parts: scenario
// generation, the live audio session and the post-call analysis that turns
// the artifact into a stored recording.
package call

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/gemini"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/playback"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scenario"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scoring"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/session"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/store"
)

// Analyzer grades a finished call.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (scoring.AnalysisResult, error)
}

// RecordingStore persists the outcome.
type RecordingStore interface {
	Save(rec store.Recording, userAudio, aiAudio []byte) (store.Recording, error)
}

// Request selects what to train.
type Request struct {
	ExerciseID string
	Difficulty scenario.Difficulty
	Disc       scenario.DiscType
	UserID     string
}

// Plan is the resolved setup for one call.
type Plan struct {
	Exercise scenario.Exercise
	Scenario scenario.ScenarioData
	Prompt   string
	Voice    string
}

// Orchestrator runs training calls end to end.
type Orchestrator struct {
	APIKey    string
	LiveModel string
	Analyzer  Analyzer
	Store     RecordingStore
	Rand      *rand.Rand

	// Duration caps each call. Zero means the session default.
	Duration time.Duration

	// Injection points for tests and alternative frontends. Nil means the
	// real device-audio implementations.
	NewStream func(cfg gemini.LiveConfig) session.Stream
	NewSource func() audio.Source
	NewOutput func() (playback.Output, func(), error)

	OnStatus func(session.Status)
	OnTick   func(remaining time.Duration)
}

// Prepare resolves the exercise and generates the randomized lead and
// prompts for it.
func (o *Orchestrator) Prepare(req Request) (Plan, error) {
	ex, ok := scenario.FindExercise(req.ExerciseID)
	if !ok {
		return Plan{}, fmt.Errorf("unknown exercise %q", req.ExerciseID)
	}
	data := scenario.Generate(ex.Type, o.Rand)
	return Plan{
		Exercise: ex,
		Scenario: data,
		Prompt:   scenario.SystemPrompt(ex, req.Difficulty, data, req.Disc, o.Rand),
		Voice:    data.Voice(),
	}, nil
}

// Run executes one complete call: it wires capture, stream and playback,
// waits for the call to end (hang-up, countdown or context cancel) and
// finishes with analysis and persistence. The returned recording is the
// stored one.
func (o *Orchestrator) Run(ctx context.Context, req Request) (store.Recording, error) {
	plan, err := o.Prepare(req)
	if err != nil {
		return store.Recording{}, err
	}

	stream := o.newStream(gemini.LiveConfig{
		APIKey:            o.APIKey,
		Model:             o.LiveModel,
		Voice:             plan.Voice,
		SystemInstruction: plan.Prompt,
	})

	recorder, err := audio.NewRecorder()
	if err != nil {
		return store.Recording{}, err
	}

	output, closeOutput, err := o.newOutput()
	if err != nil {
		return store.Recording{}, err
	}
	defer closeOutput()

	var sess *session.Session
	scheduler := playback.NewScheduler(output, func() {
		if sess != nil {
			sess.PlaybackIdle()
		}
	})
	defer scheduler.Close()

	var pipeline *audio.Pipeline
	pipeline = audio.NewPipeline(o.newSource(), recorder, func(pcm []byte) {
		sess.SendFrame(pcm)
	})

	var artifact *session.CallArtifact
	var callErr error
	sess = session.New(session.Config{
		Stream:    stream,
		Capture:   pipeline,
		Player:    scheduler,
		UserAudio: recorder.Bytes,
		Duration:  o.Duration,
		OnStatus:  o.notifyStatus,
		OnTick:    o.OnTick,
		OnEnd:     func(a session.CallArtifact) { artifact = &a },
		OnError:   func(err error) { callErr = err },
	})

	if err := sess.Start(); err != nil {
		return store.Recording{}, fmt.Errorf("a ligação ao servidor falhou: %w", err)
	}

	select {
	case <-ctx.Done():
		sess.End()
		<-sess.Done()
	case <-sess.Done():
	}

	if callErr != nil {
		return store.Recording{}, callErr
	}
	if artifact == nil {
		return store.Recording{}, fmt.Errorf("call produced no artifact")
	}
	return o.Finish(ctx, req, plan, *artifact)
}

// Finish grades the artifact and persists the recording. A call with no
// interaction gets the fixed empty grade without touching the model. A
// scoring failure is reported distinctly but the recording is still saved,
// with an ungraded analysis.
func (o *Orchestrator) Finish(ctx context.Context, req Request, plan Plan, artifact session.CallArtifact) (store.Recording, error) {
	var analysis scoring.AnalysisResult
	var analysisErr error
	if len(artifact.Transcript) == 0 {
		analysis = scoring.EmptyCallResult()
	} else {
		prompt := scenario.AnalysisPrompt(FormatTranscript(artifact.Transcript), plan.Exercise)
		analysis, analysisErr = o.Analyzer.Analyze(ctx, prompt)
		if analysisErr != nil {
			log.Printf("Analysis failed, keeping recording ungraded: %v", analysisErr)
			analysis = scoring.AnalysisResult{}
		}
	}

	rec, err := o.Store.Save(store.Recording{
		UserID:     req.UserID,
		Exercise:   plan.Exercise,
		Difficulty: req.Difficulty,
		Transcript: artifact.Transcript,
		Analysis:   analysis,
	}, artifact.UserAudio, artifact.AgentAudio)
	if err != nil {
		return store.Recording{}, fmt.Errorf("save recording: %w", err)
	}
	log.Printf("Call finished: recording=%s score=%d entries=%d", rec.ID, analysis.Score, len(rec.Transcript))
	if analysisErr != nil {
		return rec, fmt.Errorf("não foi possível analisar a sua performance: %w", analysisErr)
	}
	return rec, nil
}

// FormatTranscript renders entries the way the analysis prompt expects,
// one labeled line per utterance.
func FormatTranscript(entries []session.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		label := "CLIENTE"
		if e.Speaker == session.SpeakerUser {
			label = "VENDEDOR"
		}
		lines = append(lines, label+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) newStream(cfg gemini.LiveConfig) session.Stream {
	if o.NewStream != nil {
		return o.NewStream(cfg)
	}
	return gemini.NewLiveSession(cfg)
}

func (o *Orchestrator) newSource() audio.Source {
	if o.NewSource != nil {
		return o.NewSource()
	}
	return audio.NewMicSource()
}

func (o *Orchestrator) newOutput() (playback.Output, func(), error) {
	if o.NewOutput != nil {
		return o.NewOutput()
	}
	sp, err := playback.NewSpeaker()
	if err != nil {
		return nil, nil, err
	}
	return sp, sp.Close, nil
}

func (o *Orchestrator) notifyStatus(st session.Status) {
	if o.OnStatus != nil {
		o.OnStatus(st)
	}
}
