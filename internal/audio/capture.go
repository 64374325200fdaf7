package audio

import (
	"sync"
)

// FrameSamples is the fixed framing window of the capture pipeline. With
// 16 kHz mono capture a window is 256 ms of audio.
const FrameSamples = 4096

// Source produces normalized float32 microphone samples. Start begins
// delivery of sample chunks to fn; chunk sizes are arbitrary.
type Source interface {
	Start(fn func(samples []float32)) error
	Stop() error
}

// Pipeline turns microphone input into fixed-size 16-bit PCM frames for the
// transport, and in parallel feeds a compressed Recorder that accumulates
// the raw user audio for the final call artifact.
type Pipeline struct {
	src     Source
	rec     *Recorder
	onFrame func(pcm []byte)

	mu      sync.Mutex
	window  []float32
	started bool
	stopped bool
}

// NewPipeline constructs a capture pipeline. rec may be nil when no user
// recording is wanted (tests).
func NewPipeline(src Source, rec *Recorder, onFrame func(pcm []byte)) *Pipeline {
	return &Pipeline{
		src:     src,
		rec:     rec,
		onFrame: onFrame,
		window:  make([]float32, 0, FrameSamples*2),
	}
}

// Start requests the audio source and begins framing. A source failure
// (permission denied, no device) is fatal for the whole session and is
// returned to the caller; there is no retry.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	if p.rec != nil {
		p.rec.Start()
	}
	return p.src.Start(p.consume)
}

// consume buffers incoming samples and emits one frame per full window.
func (p *Pipeline) consume(samples []float32) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.window = append(p.window, samples...)
	var frames [][]byte
	for len(p.window) >= FrameSamples {
		pcm := FloatToPCM16(p.window[:FrameSamples])
		frames = append(frames, pcm)
		copy(p.window, p.window[FrameSamples:])
		p.window = p.window[:len(p.window)-FrameSamples]
	}
	p.mu.Unlock()

	for _, pcm := range frames {
		if p.rec != nil {
			p.rec.WritePCM(pcm)
		}
		if p.onFrame != nil {
			p.onFrame(pcm)
		}
	}
}

// Stop tears the pipeline down: stops the device source and flushes the
// recorder. Safe to call multiple times and safe if Start partially failed.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.window = p.window[:0]
	p.mu.Unlock()

	_ = p.src.Stop()
	if p.rec != nil {
		p.rec.Stop()
	}
}
