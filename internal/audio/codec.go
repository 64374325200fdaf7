package audio

import (
	"encoding/base64"
	"encoding/binary"
)

// Sample rates are fixed per direction: the microphone path captures at
// 16 kHz and the agent synthesizes at 24 kHz, both mono 16-bit.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// Buffer holds decoded audio as normalized float32 samples ready for
// playback scheduling. A zero-length Buffer is a valid no-op.
type Buffer struct {
	Data       []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	return float64(len(b.Data)) / float64(b.SampleRate*b.Channels)
}

// EncodeTransport re-expresses binary audio as printable text for inclusion
// in a streaming message payload.
func EncodeTransport(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeTransport is the exact inverse of EncodeTransport.
func DecodeTransport(text string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(text)
}

// PCMToWav wraps raw little-endian 16-bit PCM in a minimal WAV container so
// it can be played or stored standalone. The declared data length always
// equals len(pcm) exactly.
func PCMToWav(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}

// DecodeAudioChunk converts a raw int16 little-endian PCM chunk into a
// Buffer schedulable for playback, normalizing each sample to [-1,1).
// Malformed or empty input yields a zero-duration Buffer rather than an
// error; downstream scheduling treats those as no-ops.
func DecodeAudioChunk(pcm []byte, sampleRate, channels int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = PlaybackRate
	}
	if channels <= 0 {
		channels = 1
	}
	n := len(pcm) / 2
	data := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		data[i] = float32(v) / 32768.0
	}
	return &Buffer{Data: data, SampleRate: sampleRate, Channels: channels}
}

// FloatToPCM16 converts normalized float samples to int16 little-endian
// bytes, clipping to [-1,1] before scaling.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}
