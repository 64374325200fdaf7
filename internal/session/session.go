// Package session runs one roleplay call: it owns the session state
// machine, the countdown, the transcript assembly and the final call
// artifact.
package session

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/gemini"
)

// Status is the lifecycle state of a call.
type Status int

const (
	Idle Status = iota
	Connecting
	Listening
	Speaking
	Ended
	Errored
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Listening:
		return "LISTENING"
	case Speaking:
		return "SPEAKING"
	case Ended:
		return "ENDED"
	case Errored:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Speaker labels one transcript entry.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "ai"
)

// Entry is one finished utterance in the call transcript.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// CallArtifact is everything a completed call leaves behind: the ordered
// transcript, the user's compressed recording and the agent audio in a
// playable WAV container.
type CallArtifact struct {
	Transcript []Entry
	UserAudio  []byte
	AgentAudio []byte
}

// DefaultDuration caps a call at ten minutes of agent interaction.
const DefaultDuration = 600 * time.Second

// Stream is the bidirectional agent connection the session drives.
type Stream interface {
	Connect() error
	SendAudio(pcm []byte) error
	Events() <-chan gemini.Event
	Close() error
}

// Capture is the microphone pipeline feeding the stream.
type Capture interface {
	Start() error
	Stop()
}

// Player schedules decoded agent audio.
type Player interface {
	Schedule(buf *audio.Buffer)
	Interrupt()
}

// Config wires a session together. OnEnd receives the artifact exactly once
// for a normally ended call; a mid-call failure goes to OnError instead and
// no artifact is produced.
type Config struct {
	Stream    Stream
	Capture   Capture
	Player    Player
	UserAudio func() []byte // recorded user audio, read after capture stops
	Duration  time.Duration
	OnStatus  func(Status)
	// OnTick reports the remaining call time once per second while the
	// countdown runs.
	OnTick  func(remaining time.Duration)
	OnEnd   func(CallArtifact)
	OnError func(error)
}

// Session is one live roleplay call. All exported methods are safe for
// concurrent use.
type Session struct {
	cfg Config

	mu           sync.Mutex
	status       Status
	transcript   []Entry
	userPartial  strings.Builder
	agentPartial strings.Builder
	agentPCM     []byte
	timer        *time.Timer
	timerOn      bool
	deadline     time.Time
	ended        bool

	done chan struct{}
}

// New builds an idle session.
func New(cfg Config) *Session {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	return &Session{cfg: cfg, status: Idle, done: make(chan struct{})}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed once the session reached a terminal state and all
// callbacks have fired.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start connects the stream and begins processing events. It returns an
// error only when the connection itself cannot be established.
func (s *Session) Start() error {
	s.setStatus(Connecting)
	if err := s.cfg.Stream.Connect(); err != nil {
		s.mu.Lock()
		s.ended = true
		s.status = Errored
		s.mu.Unlock()
		s.notifyStatus(Errored)
		close(s.done)
		return err
	}
	go s.eventLoop()
	return nil
}

// SendFrame forwards one captured PCM frame to the agent. Frames arriving
// before the stream opened or after the call ended are dropped.
func (s *Session) SendFrame(pcm []byte) {
	s.mu.Lock()
	active := s.status == Listening || s.status == Speaking
	s.mu.Unlock()
	if !active {
		return
	}
	if err := s.cfg.Stream.SendAudio(pcm); err != nil {
		log.Printf("Dropping capture frame: %v", err)
	}
}

// PlaybackIdle must be wired to the player's drain notification; it flips
// the state back to listening once the agent stops talking.
func (s *Session) PlaybackIdle() {
	s.mu.Lock()
	flip := s.status == Speaking
	s.mu.Unlock()
	if flip {
		s.setStatus(Listening)
	}
}

// eventLoop consumes the stream until it closes.
func (s *Session) eventLoop() {
	for ev := range s.cfg.Stream.Events() {
		switch ev := ev.(type) {
		case gemini.Opened:
			s.opened()
		case gemini.InputTranscript:
			s.mu.Lock()
			s.userPartial.WriteString(ev.Text)
			s.mu.Unlock()
		case gemini.OutputTranscript:
			s.mu.Lock()
			s.agentPartial.WriteString(ev.Text)
			s.mu.Unlock()
		case gemini.TurnComplete:
			s.mu.Lock()
			s.flushPartialsLocked()
			s.mu.Unlock()
		case gemini.AudioChunk:
			s.audioChunk(ev)
		case gemini.Interrupted:
			if s.cfg.Player != nil {
				s.cfg.Player.Interrupt()
			}
			// The agent was cut off; the user is the one talking now.
			s.PlaybackIdle()
		case gemini.SessionError:
			s.fail(ev.Err)
			return
		case gemini.Closed:
			s.End()
			return
		}
	}
}

// opened starts the capture once the server accepts audio. A microphone
// failure at this point is fatal for the call.
func (s *Session) opened() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.status = Listening
	s.mu.Unlock()
	s.notifyStatus(Listening)

	if s.cfg.Capture != nil {
		if err := s.cfg.Capture.Start(); err != nil {
			s.fail(err)
		}
	}
}

// audioChunk handles inbound agent speech: it starts the countdown on the
// first chunk, archives the raw PCM and hands the decoded buffer to the
// player.
func (s *Session) audioChunk(ev gemini.AudioChunk) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	if !s.timerOn {
		s.timerOn = true
		s.deadline = time.Now().Add(s.cfg.Duration)
		s.timer = time.AfterFunc(s.cfg.Duration, s.End)
		if s.cfg.OnTick != nil {
			go s.countdown()
		}
	}
	s.agentPCM = append(s.agentPCM, ev.PCM...)
	wasSpeaking := s.status == Speaking
	s.status = Speaking
	s.mu.Unlock()

	if !wasSpeaking {
		s.notifyStatus(Speaking)
	}
	if s.cfg.Player != nil {
		s.cfg.Player.Schedule(audio.DecodeAudioChunk(ev.PCM, ev.SampleRate, 1))
	}
}

// countdown surfaces the remaining call time at one tick per second until
// the call ends or the clock runs out.
func (s *Session) countdown() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			deadline := s.deadline
			s.mu.Unlock()
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			s.cfg.OnTick(remaining)
			if remaining == 0 {
				return
			}
		}
	}
}

// flushPartialsLocked commits both accumulators as finished transcript
// entries, user first, skipping empty sides.
func (s *Session) flushPartialsLocked() {
	if t := strings.TrimSpace(s.userPartial.String()); t != "" {
		s.transcript = append(s.transcript, Entry{Speaker: SpeakerUser, Text: t})
	}
	if t := strings.TrimSpace(s.agentPartial.String()); t != "" {
		s.transcript = append(s.transcript, Entry{Speaker: SpeakerAgent, Text: t})
	}
	s.userPartial.Reset()
	s.agentPartial.Reset()
}

// End finishes the call normally. It is idempotent: the first call wins,
// assembles the artifact and fires OnEnd exactly once.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended || s.status == Idle {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.status = Ended
	if s.timer != nil {
		s.timer.Stop()
	}
	s.flushPartialsLocked()
	transcript := s.transcript
	agentPCM := s.agentPCM
	s.mu.Unlock()

	s.notifyStatus(Ended)
	s.teardown()

	artifact := CallArtifact{
		Transcript: transcript,
		AgentAudio: audio.PCMToWav(agentPCM, audio.PlaybackRate, 1),
	}
	if s.cfg.UserAudio != nil {
		artifact.UserAudio = s.cfg.UserAudio()
	}
	if s.cfg.OnEnd != nil {
		s.cfg.OnEnd(artifact)
	}
	close(s.done)
}

// fail aborts the call on a mid-stream error. The partially built artifact
// is deliberately discarded; an aborted call is not worth scoring.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.status = Errored
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	log.Printf("Call failed: %v", err)
	s.notifyStatus(Errored)
	s.teardown()
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
	close(s.done)
}

// teardown releases capture, playback and the stream. Every part tolerates
// being stopped twice.
func (s *Session) teardown() {
	if s.cfg.Capture != nil {
		s.cfg.Capture.Stop()
	}
	if s.cfg.Player != nil {
		s.cfg.Player.Interrupt()
	}
	_ = s.cfg.Stream.Close()
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.notifyStatus(st)
}

func (s *Session) notifyStatus(st Status) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}
