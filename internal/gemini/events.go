// Package gemini provides a streaming client for the Gemini Live
// BidiGenerateContent API used to run the roleplay conversation.
package gemini

// Event is one occurrence on the live stream. Consumers switch on the
// concrete type; exactly one variant is delivered per event.
type Event interface{ liveEvent() }

// Opened signals that the server acknowledged the session setup and the
// stream accepts audio.
type Opened struct{}

// InputTranscript carries an incremental transcription fragment of the
// user's speech.
type InputTranscript struct {
	Text string
}

// OutputTranscript carries an incremental transcription fragment of the
// agent's speech.
type OutputTranscript struct {
	Text string
}

// TurnComplete signals that the agent finished a conversational turn.
type TurnComplete struct{}

// AudioChunk carries synthesized agent audio as raw 16-bit little-endian
// PCM, ready for decoding and playback scheduling.
type AudioChunk struct {
	PCM        []byte
	SampleRate int
}

// Interrupted signals that the user barged in and the agent's pending
// audio must be discarded.
type Interrupted struct{}

// SessionError carries a mid-stream failure. The stream is unusable after.
type SessionError struct {
	Err error
}

// Closed is the final event on every stream, delivered exactly once.
type Closed struct{}

func (Opened) liveEvent()           {}
func (InputTranscript) liveEvent()  {}
func (OutputTranscript) liveEvent() {}
func (TurnComplete) liveEvent()     {}
func (AudioChunk) liveEvent()       {}
func (Interrupted) liveEvent()      {}
func (SessionError) liveEvent()     {}
func (Closed) liveEvent()           {}
