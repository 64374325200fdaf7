package gemini

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
)

const (
	// DefaultLiveModel is the native-audio dialog model driving the roleplay.
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"
	bidiPath       = "/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	inputMIMEType = "audio/pcm;rate=16000"
)

// LiveConfig describes one streaming session.
type LiveConfig struct {
	APIKey            string
	Model             string
	Voice             string
	SystemInstruction string
	// BaseURL overrides the endpoint, primarily for tests.
	BaseURL string
}

// LiveSession is a bidirectional audio stream to the conversational agent.
// Outbound audio goes through SendAudio; everything inbound arrives on
// Events as a typed union, ending with Closed exactly once.
type LiveSession struct {
	cfg       LiveConfig
	conn      *websocket.Conn
	events    chan Event
	audioData chan []byte
	stopCh    chan struct{}
	mu        sync.RWMutex
	connected bool
	closeOnce sync.Once
}

// Protocol messages, client to server.

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string             `json:"model"`
	GenerationConfig         generationConfig   `json:"generationConfig"`
	SystemInstruction        *systemInstruction `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}          `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}          `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Protocol messages, server to client.

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	Error         *apiError      `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text string `json:"text"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func (e *apiError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("live stream error %d (%s): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("live stream error %d: %s", e.Code, e.Message)
}

// NewLiveSession prepares an unconnected session.
func NewLiveSession(cfg LiveConfig) *LiveSession {
	if cfg.Model == "" {
		cfg.Model = DefaultLiveModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &LiveSession{
		cfg:       cfg,
		events:    make(chan Event, 256),
		audioData: make(chan []byte, 1000),
		stopCh:    make(chan struct{}),
	}
}

// Events returns the inbound event stream. The channel is closed after the
// final Closed event.
func (s *LiveSession) Events() <-chan Event { return s.events }

// Connect dials the endpoint and sends the session setup. The Opened event
// arrives once the server acknowledges.
func (s *LiveSession) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if s.cfg.APIKey == "" {
		return fmt.Errorf("gemini API key is empty")
	}

	wsURL := s.cfg.BaseURL + bidiPath + "?key=" + s.cfg.APIKey

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			log.Printf("Live stream connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to live stream: %w", err)
	}

	setup := setupMessage{
		Setup: setupConfig{
			Model: "models/" + s.cfg.Model,
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if s.cfg.Voice != "" {
		setup.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: s.cfg.Voice},
			},
		}
	}
	if s.cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: s.cfg.SystemInstruction}},
		}
	}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to send session setup: %w", err)
	}

	s.conn = conn
	s.connected = true

	go s.handleMessages()
	go s.sendAudioData()

	log.Printf("Connected to live stream, model=%s voice=%s", s.cfg.Model, s.cfg.Voice)
	return nil
}

// SendAudio queues a 16kHz mono PCM frame for the agent. Frames are dropped
// rather than blocking capture when the outbound buffer is full.
func (s *LiveSession) SendAudio(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("live stream not connected")
	}
	select {
	case s.audioData <- pcm:
		return nil
	default:
		log.Println("Audio buffer full, dropping frame")
		return nil
	}
}

// Close tears the stream down. Safe to call multiple times; the Closed
// event is still delivered exactly once.
func (s *LiveSession) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		// Never connected: still settle the event stream for consumers.
		s.closeOnce.Do(s.deliverClosed)
		return nil
	}
	close(s.stopCh)
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	s.mu.Unlock()

	s.closeOnce.Do(s.deliverClosed)
	log.Println("Live stream closed")
	return nil
}

// deliverClosed settles the event stream with the final Closed event. The
// consumer may have stopped reading already (it bails out at the first
// SessionError), so a full buffer must not block teardown: stale buffered
// events are dropped until Closed fits.
func (s *LiveSession) deliverClosed() {
	for {
		select {
		case s.events <- Closed{}:
			close(s.events)
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// handleMessages reads server messages until the stream ends.
func (s *LiveSession) handleMessages() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in handleMessages: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-s.stopCh:
					// Local close in progress; not an error.
				default:
					log.Printf("Error reading live stream message: %v", err)
					s.emit(SessionError{Err: err})
					_ = s.Close()
				}
				return
			}
			s.processMessage(&msg)
		}
	}
}

// processMessage translates one server message into zero or more events.
func (s *LiveSession) processMessage(msg *serverMessage) {
	switch {
	case msg.SetupComplete != nil:
		s.emit(Opened{})
	case msg.Error != nil:
		log.Printf("Live stream reported error: %v", msg.Error)
		s.emit(SessionError{Err: msg.Error})
	case msg.ServerContent != nil:
		sc := msg.ServerContent
		if sc.Interrupted {
			s.emit(Interrupted{})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			s.emit(InputTranscript{Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			s.emit(OutputTranscript{Text: sc.OutputTranscription.Text})
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				pcm, err := audio.DecodeTransport(p.InlineData.Data)
				if err != nil {
					log.Printf("Error decoding inbound audio: %v", err)
					continue
				}
				s.emit(AudioChunk{
					PCM:        pcm,
					SampleRate: rateFromMIME(p.InlineData.MIMEType),
				})
			}
		}
		if sc.TurnComplete {
			s.emit(TurnComplete{})
		}
	}
}

// emit delivers an event without dropping; transcript and audio loss would
// corrupt the call artifact.
func (s *LiveSession) emit(ev Event) {
	select {
	case <-s.stopCh:
	case s.events <- ev:
	}
}

// sendAudioData writes queued frames as realtimeInput messages.
func (s *LiveSession) sendAudioData() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in sendAudioData: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case pcm, ok := <-s.audioData:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			msg := realtimeInputMessage{
				RealtimeInput: realtimeInput{
					MediaChunks: []mediaChunk{{
						MIMEType: inputMIMEType,
						Data:     audio.EncodeTransport(pcm),
					}},
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("Error sending audio frame: %v", err)
				return
			}
		}
	}
}

// rateFromMIME extracts the sample rate from a "audio/pcm;rate=24000" style
// MIME string, falling back to the synthesis default.
func rateFromMIME(mime string) int {
	for _, p := range strings.Split(mime, ";") {
		p = strings.TrimSpace(p)
		if v, ok := strings.CutPrefix(p, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return audio.PlaybackRate
}
