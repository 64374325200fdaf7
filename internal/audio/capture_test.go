package audio

import (
	"errors"
	"testing"
)

type fakeSource struct {
	fn       func(samples []float32)
	started  bool
	stopped  bool
	startErr error
}

func (f *fakeSource) Start(fn func(samples []float32)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.fn = fn
	f.started = true
	return nil
}

func (f *fakeSource) Stop() error {
	f.stopped = true
	return nil
}

func TestPipelineFraming(t *testing.T) {
	src := &fakeSource{}
	var frames [][]byte
	p := NewPipeline(src, nil, func(pcm []byte) {
		frames = append(frames, pcm)
	})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 2.5 windows in uneven chunks: exactly two frames should come out.
	total := FrameSamples*2 + FrameSamples/2
	chunk := make([]float32, 1000)
	for sent := 0; sent < total; sent += len(chunk) {
		n := len(chunk)
		if total-sent < n {
			n = total - sent
		}
		src.fn(chunk[:n])
	}

	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	for i, f := range frames {
		if len(f) != FrameSamples*2 {
			t.Errorf("frame %d length = %d, want %d", i, len(f), FrameSamples*2)
		}
	}
}

func TestPipelineRemainderEmittedOnNextWindow(t *testing.T) {
	src := &fakeSource{}
	var frames int
	p := NewPipeline(src, nil, func(pcm []byte) { frames++ })
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	src.fn(make([]float32, FrameSamples-1))
	if frames != 0 {
		t.Fatalf("partial window emitted a frame")
	}
	src.fn(make([]float32, 1))
	if frames != 1 {
		t.Fatalf("frames = %d, want 1", frames)
	}
}

func TestPipelineStopIdempotent(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, nil, nil)
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.Stop()
	p.Stop()
	if !src.stopped {
		t.Fatal("source not stopped")
	}

	// Frames after stop are dropped.
	emitted := false
	p.onFrame = func([]byte) { emitted = true }
	src.fn(make([]float32, FrameSamples))
	if emitted {
		t.Fatal("frame emitted after stop")
	}
}

func TestPipelineStartFailurePropagates(t *testing.T) {
	src := &fakeSource{startErr: errFake}
	p := NewPipeline(src, nil, nil)
	if err := p.Start(); err == nil {
		t.Fatal("expected start error")
	}
}

var errFake = errors.New("no device")
