package call

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/gemini"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/playback"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scenario"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scoring"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/session"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/store"
)

type scriptedStream struct {
	cfg    gemini.LiveConfig
	events chan gemini.Event
	mu     sync.Mutex
	closed bool
}

func (f *scriptedStream) Connect() error              { return nil }
func (f *scriptedStream) SendAudio(pcm []byte) error  { return nil }
func (f *scriptedStream) Events() <-chan gemini.Event { return f.events }

func (f *scriptedStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.events <- gemini.Closed{}
		close(f.events)
	}
	return nil
}

type nullSource struct{}

func (nullSource) Start(func(samples []float32)) error { return nil }
func (nullSource) Stop() error                         { return nil }

// instantOutput plays buffers synchronously.
type instantOutput struct{}

type nopStopper struct{}

func (nopStopper) Stop() {}

func (instantOutput) Now() float64 { return 0 }

func (instantOutput) Play(_ *audio.Buffer, _ float64, done func()) playback.Stopper {
	done()
	return nopStopper{}
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	prompts []string
	result  scoring.AnalysisResult
	err     error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, prompt string) (scoring.AnalysisResult, error) {
	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
	return a.result, a.err
}

type fakeStore struct {
	mu    sync.Mutex
	saved []store.Recording
	user  []byte
	ai    []byte
}

func (s *fakeStore) Save(rec store.Recording, userAudio, aiAudio []byte) (store.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = "rec-1"
	s.saved = append(s.saved, rec)
	s.user = userAudio
	s.ai = aiAudio
	return rec, nil
}

func newOrchestrator(analyzer *fakeAnalyzer, st *fakeStore) (*Orchestrator, *scriptedStream) {
	stream := &scriptedStream{events: make(chan gemini.Event, 64)}
	return &Orchestrator{
		APIKey:   "key",
		Analyzer: analyzer,
		Store:    st,
		Rand:     rand.New(rand.NewSource(42)),
		NewStream: func(cfg gemini.LiveConfig) session.Stream {
			stream.cfg = cfg
			return stream
		},
		NewSource: func() audio.Source { return nullSource{} },
		NewOutput: func() (playback.Output, func(), error) { return instantOutput{}, func() {}, nil },
	}, stream
}

func TestPrepare(t *testing.T) {
	o, _ := newOrchestrator(&fakeAnalyzer{}, &fakeStore{})

	if _, err := o.Prepare(Request{ExerciseID: "nope"}); err == nil {
		t.Fatal("expected error for unknown exercise")
	}

	plan, err := o.Prepare(Request{ExerciseID: "qualify", Difficulty: scenario.Easy})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	wantVoice := "Puck"
	if plan.Scenario.Gender == scenario.Female {
		wantVoice = "Charon"
	}
	if plan.Voice != wantVoice {
		t.Errorf("voice = %q, want %q", plan.Voice, wantVoice)
	}
	if !strings.Contains(plan.Prompt, plan.Scenario.Name) {
		t.Error("prompt missing lead name")
	}
}

func TestRunFullCall(t *testing.T) {
	analyzer := &fakeAnalyzer{result: scoring.AnalysisResult{Score: 80, IsQualified: true, Summary: "boa"}}
	st := &fakeStore{}
	o, stream := newOrchestrator(analyzer, st)

	go func() {
		stream.events <- gemini.Opened{}
		stream.events <- gemini.InputTranscript{Text: "bom dia"}
		stream.events <- gemini.OutputTranscript{Text: "alô?"}
		stream.events <- gemini.TurnComplete{}
		stream.events <- gemini.AudioChunk{PCM: []byte{1, 0, 2, 0}, SampleRate: audio.PlaybackRate}
		time.Sleep(50 * time.Millisecond)
		_ = stream.Close() // remote hang-up ends the call
	}()

	rec, err := o.Run(context.Background(), Request{ExerciseID: "qualify", Difficulty: scenario.Medium, UserID: "u1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.ID != "rec-1" || rec.Analysis.Score != 80 {
		t.Errorf("recording = %+v", rec)
	}
	if rec.UserID != "u1" || rec.Difficulty != scenario.Medium {
		t.Errorf("recording metadata = %+v", rec)
	}

	analyzer.mu.Lock()
	prompt := analyzer.prompts[0]
	analyzer.mu.Unlock()
	if !strings.Contains(prompt, "VENDEDOR: bom dia") || !strings.Contains(prompt, "CLIENTE: alô?") {
		t.Errorf("analysis prompt missing transcript: %q", prompt)
	}

	if stream.cfg.SystemInstruction == "" || stream.cfg.Voice == "" {
		t.Error("stream config not derived from plan")
	}
	if len(st.ai) <= 44 {
		t.Errorf("agent audio not captured, len=%d", len(st.ai))
	}
	if len(st.user) == 0 {
		t.Error("user recording missing")
	}
}

func TestRunEmptyCallSkipsAnalyzer(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	st := &fakeStore{}
	o, stream := newOrchestrator(analyzer, st)

	go func() {
		stream.events <- gemini.Opened{}
		time.Sleep(20 * time.Millisecond)
		_ = stream.Close()
	}()

	rec, err := o.Run(context.Background(), Request{ExerciseID: "emotion", Difficulty: scenario.Easy})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	analyzer.mu.Lock()
	calls := len(analyzer.prompts)
	analyzer.mu.Unlock()
	if calls != 0 {
		t.Fatal("analyzer called for empty call")
	}
	if rec.Analysis.Score != 0 || rec.Analysis.IsQualified {
		t.Errorf("analysis = %+v, want empty-call placeholder", rec.Analysis)
	}
	if !strings.Contains(rec.Analysis.Summary, "sem nenhuma interação") {
		t.Errorf("summary = %q", rec.Analysis.Summary)
	}
}

func TestRunAnalyzerFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("quota exceeded")}
	st := &fakeStore{}
	o, stream := newOrchestrator(analyzer, st)

	go func() {
		stream.events <- gemini.Opened{}
		stream.events <- gemini.InputTranscript{Text: "olá"}
		stream.events <- gemini.TurnComplete{}
		time.Sleep(20 * time.Millisecond)
		_ = stream.Close()
	}()

	rec, err := o.Run(context.Background(), Request{ExerciseID: "proposal", Difficulty: scenario.Difficult})
	if err == nil {
		t.Fatal("expected analysis error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error = %v", err)
	}

	// The call itself succeeded, so the recording survives ungraded.
	st.mu.Lock()
	saved := len(st.saved)
	st.mu.Unlock()
	if saved != 1 {
		t.Fatalf("saved = %d, want recording kept despite failed analysis", saved)
	}
	if rec.ID != "rec-1" {
		t.Errorf("recording = %+v", rec)
	}
	if rec.Analysis.Score != 0 || rec.Analysis.Summary != "" {
		t.Errorf("analysis = %+v, want zero value", rec.Analysis)
	}
}

func TestRunContextCancelEndsCall(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	st := &fakeStore{}
	o, stream := newOrchestrator(analyzer, st)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stream.events <- gemini.Opened{}
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	rec, err := o.Run(ctx, Request{ExerciseID: "objections", Difficulty: scenario.Easy})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.Transcript) != 0 {
		t.Errorf("transcript = %+v", rec.Transcript)
	}
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]session.Entry{
		{Speaker: session.SpeakerUser, Text: "bom dia"},
		{Speaker: session.SpeakerAgent, Text: "alô?"},
	})
	want := "VENDEDOR: bom dia\nCLIENTE: alô?"
	if got != want {
		t.Errorf("formatted = %q, want %q", got, want)
	}
	if FormatTranscript(nil) != "" {
		t.Error("empty transcript must format to empty string")
	}
}
