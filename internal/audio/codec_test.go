package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestTransportEncodingRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xFE, 0xFF, 0x80, 0x7F}
	text := EncodeTransport(payload)
	got, err := DecodeTransport(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %v want %v", got, payload)
	}
}

func TestDecodeTransportRejectsGarbage(t *testing.T) {
	if _, err := DecodeTransport("not base64 !!!"); err == nil {
		t.Fatal("expected error for invalid input")
	}
}

func TestPCMToWavHeader(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz mono
	wav := PCMToWav(pcm, CaptureRate, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != CaptureRate {
		t.Errorf("sample rate = %d, want %d", got, CaptureRate)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("declared data length = %d, want %d", got, len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != CaptureRate*2 {
		t.Errorf("byte rate = %d, want %d", got, CaptureRate*2)
	}
}

func TestPCMToWavEmpty(t *testing.T) {
	wav := PCMToWav(nil, PlaybackRate, 1)
	if len(wav) != 44 {
		t.Fatalf("empty wav length = %d, want 44", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Errorf("declared data length = %d, want 0", got)
	}
}

func TestDecodeAudioChunkScaling(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(int16(0)))
	binary.LittleEndian.PutUint16(pcm[2:4], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(pcm[4:6], uint16(int16(-32768)))
	binary.LittleEndian.PutUint16(pcm[6:8], uint16(int16(32767)))

	buf := DecodeAudioChunk(pcm, PlaybackRate, 1)
	want := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	if len(buf.Data) != len(want) {
		t.Fatalf("sample count = %d, want %d", len(buf.Data), len(want))
	}
	for i, w := range want {
		if math.Abs(float64(buf.Data[i]-w)) > 1e-6 {
			t.Errorf("sample %d = %f, want %f", i, buf.Data[i], w)
		}
	}
	if buf.Duration() != float64(len(want))/PlaybackRate {
		t.Errorf("duration = %f", buf.Duration())
	}
}

func TestDecodeAudioChunkDefaults(t *testing.T) {
	buf := DecodeAudioChunk([]byte{0, 0}, 0, 0)
	if buf.SampleRate != PlaybackRate {
		t.Errorf("sample rate default = %d, want %d", buf.SampleRate, PlaybackRate)
	}
	if buf.Channels != 1 {
		t.Errorf("channels default = %d, want 1", buf.Channels)
	}
}

func TestDecodeAudioChunkEmpty(t *testing.T) {
	buf := DecodeAudioChunk(nil, PlaybackRate, 1)
	if len(buf.Data) != 0 {
		t.Fatalf("expected no samples, got %d", len(buf.Data))
	}
	if buf.Duration() != 0 {
		t.Errorf("duration = %f, want 0", buf.Duration())
	}
}

func TestFloatToPCM16Clipping(t *testing.T) {
	pcm := FloatToPCM16([]float32{0, 0.5, 1.0, -1.0, 2.5, -3.0})
	got := make([]int16, len(pcm)/2)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	want := []int16{0, 16383, 32767, -32767, 32767, -32767}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("sample %d = %d, want %d", i, got[i], w)
		}
	}
}
