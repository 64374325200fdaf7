package gemini

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
)

// liveServer is an in-process stand-in for the streaming endpoint.
type liveServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	handle   func(conn *websocket.Conn, setup setupMessage)
}

func (s *liveServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") == "" {
		s.t.Error("missing key query parameter")
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	var setup setupMessage
	if err := conn.ReadJSON(&setup); err != nil {
		s.t.Errorf("read setup: %v", err)
		return
	}
	s.handle(conn, setup)
}

func startSession(t *testing.T, handle func(conn *websocket.Conn, setup setupMessage)) *LiveSession {
	t.Helper()
	srv := httptest.NewServer(&liveServer{t: t, handle: handle})
	t.Cleanup(srv.Close)

	s := NewLiveSession(LiveConfig{
		APIKey:            "test-key",
		Voice:             "Puck",
		SystemInstruction: "act as a customer",
		BaseURL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func nextEvent(t *testing.T, s *LiveSession) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestConnectSendsSetupAndEmitsOpened(t *testing.T) {
	s := startSession(t, func(conn *websocket.Conn, setup setupMessage) {
		if setup.Setup.Model != "models/"+DefaultLiveModel {
			t.Errorf("model = %q", setup.Setup.Model)
		}
		if got := setup.Setup.GenerationConfig.ResponseModalities; len(got) != 1 || got[0] != "AUDIO" {
			t.Errorf("response modalities = %v", got)
		}
		if setup.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
			t.Error("voice not forwarded")
		}
		if setup.Setup.SystemInstruction == nil || setup.Setup.SystemInstruction.Parts[0].Text != "act as a customer" {
			t.Error("system instruction not forwarded")
		}
		if setup.Setup.InputAudioTranscription == nil || setup.Setup.OutputAudioTranscription == nil {
			t.Error("transcription not requested")
		}
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		_, _, _ = conn.ReadMessage() // hold until client closes
	})

	if _, ok := nextEvent(t, s).(Opened); !ok {
		t.Fatal("expected Opened first")
	}
}

func TestSendAudioFramesAreBase64PCM(t *testing.T) {
	got := make(chan realtimeInputMessage, 1)
	s := startSession(t, func(conn *websocket.Conn, _ setupMessage) {
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		var msg realtimeInputMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read frame: %v", err)
			return
		}
		got <- msg
		_, _, _ = conn.ReadMessage()
	})

	nextEvent(t, s) // Opened
	pcm := []byte{1, 2, 3, 4}
	if err := s.SendAudio(pcm); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-got:
		chunks := msg.RealtimeInput.MediaChunks
		if len(chunks) != 1 {
			t.Fatalf("chunks = %d, want 1", len(chunks))
		}
		if chunks[0].MIMEType != inputMIMEType {
			t.Errorf("mime = %q", chunks[0].MIMEType)
		}
		data, err := audio.DecodeTransport(chunks[0].Data)
		if err != nil || string(data) != string(pcm) {
			t.Errorf("payload mismatch: %v %v", data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never reached server")
	}
}

func TestServerContentEventOrder(t *testing.T) {
	s := startSession(t, func(conn *websocket.Conn, _ setupMessage) {
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		_ = conn.WriteJSON(serverMessage{ServerContent: &serverContent{
			InputTranscription: &transcription{Text: "olá"},
		}})
		_ = conn.WriteJSON(serverMessage{ServerContent: &serverContent{
			ModelTurn: &modelTurn{Parts: []part{{InlineData: &inlineData{
				MIMEType: "audio/pcm;rate=24000",
				Data:     audio.EncodeTransport([]byte{0, 0, 255, 127}),
			}}}},
			OutputTranscription: &transcription{Text: "bom dia"},
		}})
		_ = conn.WriteJSON(serverMessage{ServerContent: &serverContent{TurnComplete: true}})
		_, _, _ = conn.ReadMessage()
	})

	nextEvent(t, s) // Opened

	if ev, ok := nextEvent(t, s).(InputTranscript); !ok || ev.Text != "olá" {
		t.Fatalf("expected input transcript, got %#v", ev)
	}
	if ev, ok := nextEvent(t, s).(OutputTranscript); !ok || ev.Text != "bom dia" {
		t.Fatalf("expected output transcript, got %#v", ev)
	}
	chunk, ok := nextEvent(t, s).(AudioChunk)
	if !ok {
		t.Fatal("expected audio chunk")
	}
	if chunk.SampleRate != 24000 || len(chunk.PCM) != 4 {
		t.Errorf("chunk rate=%d len=%d", chunk.SampleRate, len(chunk.PCM))
	}
	if _, ok := nextEvent(t, s).(TurnComplete); !ok {
		t.Fatal("expected turn complete")
	}
}

func TestInterruptedAndErrorEvents(t *testing.T) {
	s := startSession(t, func(conn *websocket.Conn, _ setupMessage) {
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		_ = conn.WriteJSON(serverMessage{ServerContent: &serverContent{Interrupted: true}})
		_ = conn.WriteJSON(serverMessage{Error: &apiError{Code: 429, Message: "quota"}})
		_, _, _ = conn.ReadMessage()
	})

	nextEvent(t, s) // Opened
	if _, ok := nextEvent(t, s).(Interrupted); !ok {
		t.Fatal("expected interrupted")
	}
	ev, ok := nextEvent(t, s).(SessionError)
	if !ok {
		t.Fatal("expected session error")
	}
	if !strings.Contains(ev.Err.Error(), "quota") {
		t.Errorf("error text = %q", ev.Err.Error())
	}
}

func TestCloseEmitsClosedExactlyOnce(t *testing.T) {
	s := startSession(t, func(conn *websocket.Conn, _ setupMessage) {
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		_, _, _ = conn.ReadMessage()
	})

	nextEvent(t, s) // Opened
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	closed := 0
	for ev := range s.Events() {
		if _, ok := ev.(Closed); ok {
			closed++
		}
	}
	if closed != 1 {
		t.Fatalf("closed events = %d, want 1", closed)
	}
}

func TestCloseUnblockedByFullEventBuffer(t *testing.T) {
	s := startSession(t, func(conn *websocket.Conn, _ setupMessage) {
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		_ = conn.WriteJSON(serverMessage{Error: &apiError{Code: 500, Message: "internal"}})
		// Keep talking past the error until the buffer overflows.
		for i := 0; i < 400; i++ {
			if err := conn.WriteJSON(serverMessage{ServerContent: &serverContent{
				OutputTranscription: &transcription{Text: "ainda a falar"},
			}}); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	})

	// Read like the state machine does: stop at the first SessionError.
	for {
		if _, ok := nextEvent(t, s).(SessionError); ok {
			break
		}
	}

	closed := make(chan struct{})
	go func() {
		_ = s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a full event buffer")
	}

	// The stream still settles with Closed before the channel closes.
	sawClosed := false
	for ev := range s.Events() {
		if _, ok := ev.(Closed); ok {
			sawClosed = true
		}
	}
	if !sawClosed {
		t.Fatal("Closed event never delivered")
	}
}

func TestRateFromMIME(t *testing.T) {
	cases := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", audio.PlaybackRate},
		{"", audio.PlaybackRate},
		{"audio/pcm;rate=bogus", audio.PlaybackRate},
	}
	for _, c := range cases {
		if got := rateFromMIME(c.mime); got != c.want {
			t.Errorf("rateFromMIME(%q) = %d, want %d", c.mime, got, c.want)
		}
	}
}
