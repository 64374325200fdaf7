package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

const (
	recFrameSamples = 320 // 20ms at 16kHz
	recFlushEvery   = time.Second
)

// Recorder compresses the raw microphone stream to an Ogg/Opus blob that
// ends up in the call artifact. It runs beside the transport framing, never
// on its path: frames queued here do not delay frames sent to the agent.
type Recorder struct {
	enc *opus.Encoder
	ogg *oggwriter.OggWriter
	out *bytes.Buffer

	mu      sync.Mutex
	pcmBuf  []int16
	packets [][]byte
	seq     uint16
	ts      uint32
	started bool
	stopped bool

	stopCh chan struct{}
	done   chan struct{}
}

// NewRecorder builds a recorder for 16kHz mono input.
func NewRecorder() (*Recorder, error) {
	enc, err := opus.NewEncoder(CaptureRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	out := &bytes.Buffer{}
	ogg, err := oggwriter.NewWith(out, CaptureRate, 1)
	if err != nil {
		return nil, fmt.Errorf("ogg writer: %w", err)
	}
	return &Recorder{
		enc:    enc,
		ogg:    ogg,
		out:    out,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the periodic flusher. Encoded packets accumulate in memory
// and hit the Ogg muxer once a second so a long call never stalls capture.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	go r.flusher()
}

// WritePCM appends 16-bit little-endian mono samples and encodes every full
// 20ms frame.
func (r *Recorder) WritePCM(pcmBytes []byte) {
	if len(pcmBytes) < 2 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	need := len(pcmBytes) / 2
	startLen := len(r.pcmBuf)
	if cap(r.pcmBuf)-startLen < need {
		tmp := make([]int16, startLen, startLen+need+2048)
		copy(tmp, r.pcmBuf)
		r.pcmBuf = tmp
	}
	r.pcmBuf = r.pcmBuf[:startLen+need]
	for i := 0; i < need; i++ {
		r.pcmBuf[startLen+i] = int16(uint16(pcmBytes[2*i]) | uint16(pcmBytes[2*i+1])<<8)
	}
	r.encodeLocked()
}

// encodeLocked drains full frames from pcmBuf into the packet queue.
func (r *Recorder) encodeLocked() {
	opusBuf := make([]byte, 4000)
	for len(r.pcmBuf) >= recFrameSamples {
		frame := r.pcmBuf[:recFrameSamples]
		n, err := r.enc.Encode(frame, opusBuf)
		if err == nil && n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			r.packets = append(r.packets, pkt)
		}
		copy(r.pcmBuf, r.pcmBuf[recFrameSamples:])
		r.pcmBuf = r.pcmBuf[:len(r.pcmBuf)-recFrameSamples]
	}
}

func (r *Recorder) flusher() {
	defer close(r.done)
	ticker := time.NewTicker(recFlushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.muxLocked()
			r.mu.Unlock()
		}
	}
}

// muxLocked writes queued packets into the Ogg container.
func (r *Recorder) muxLocked() {
	for _, pkt := range r.packets {
		r.seq++
		r.ts += recFrameSamples
		_ = r.ogg.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{SequenceNumber: r.seq, Timestamp: r.ts},
			Payload: pkt,
		})
	}
	r.packets = r.packets[:0]
}

// Stop finalizes the recording: pads a trailing partial frame, muxes every
// queued packet and closes the container. Idempotent.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	wasStarted := r.started
	if len(r.pcmBuf) > 0 {
		pad := make([]int16, recFrameSamples)
		copy(pad, r.pcmBuf)
		opusBuf := make([]byte, 4000)
		n, err := r.enc.Encode(pad, opusBuf)
		if err == nil && n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			r.packets = append(r.packets, pkt)
		}
		r.pcmBuf = r.pcmBuf[:0]
	}
	r.muxLocked()
	_ = r.ogg.Close()
	r.mu.Unlock()

	if wasStarted {
		close(r.stopCh)
		<-r.done
	}
}

// Bytes returns the finished Ogg/Opus blob. Valid after Stop.
func (r *Recorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Bytes()
}
