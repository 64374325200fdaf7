package playback

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
)

// Speaker renders scheduled buffers through the system output device. It
// implements Output over a single pull-driven oto player: the player keeps
// draining a sample timeline, with silence wherever nothing is scheduled,
// so the output clock advances continuously.
type Speaker struct {
	ctx    *oto.Context
	player *oto.Player
	rate   int

	mu     sync.Mutex
	clock  int64 // mono samples emitted so far
	queue  []*scheduled
	closed bool
}

type scheduled struct {
	start   int64 // timeline position in samples
	pcm     []byte
	off     int
	done    func()
	fired   bool
	stopped bool
	sp      *Speaker
}

// NewSpeaker opens the default output device at the agent's synthesis rate.
func NewSpeaker() (*Speaker, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   audio.PlaybackRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800, // ~100ms for low latency
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("speaker: %w", err)
	}
	<-ready

	s := &Speaker{ctx: ctx, rate: audio.PlaybackRate}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Now returns the output clock in seconds.
func (s *Speaker) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.clock) / float64(s.rate)
}

// Play schedules buf at the given clock time. done fires when the last
// sample has been handed to the device or the buffer is stopped.
func (s *Speaker) Play(buf *audio.Buffer, at float64, done func()) Stopper {
	item := &scheduled{
		start: int64(at * float64(s.rate)),
		pcm:   audio.FloatToPCM16(buf.Data),
		done:  done,
		sp:    s,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if done != nil {
			done()
		}
		return item
	}
	s.queue = append(s.queue, item)
	s.mu.Unlock()
	return item
}

// Stop cancels the buffer; its done callback still fires exactly once.
func (it *scheduled) Stop() {
	it.sp.mu.Lock()
	it.stopped = true
	fire := !it.fired
	it.fired = true
	it.sp.mu.Unlock()

	if fire && it.done != nil {
		it.done()
	}
}

// Read implements io.Reader for the oto player. It advances the timeline,
// copying scheduled PCM where due and silence elsewhere.
func (s *Speaker) Read(p []byte) (int, error) {
	if len(p)%2 != 0 {
		p = p[:len(p)-1]
	}
	for i := range p {
		p[i] = 0
	}

	s.mu.Lock()
	n := int64(len(p) / 2)
	var finished []func()
	for i := int64(0); i < n; {
		// Drop everything already stopped or exhausted.
		for len(s.queue) > 0 {
			head := s.queue[0]
			if head.stopped || head.off >= len(head.pcm) {
				if !head.fired {
					head.fired = true
					if head.done != nil {
						finished = append(finished, head.done)
					}
				}
				s.queue = s.queue[1:]
				continue
			}
			break
		}
		if len(s.queue) == 0 {
			break
		}
		head := s.queue[0]
		pos := s.clock + i
		if pos < head.start {
			// Silence gap until the head is due.
			gap := head.start - pos
			if gap > n-i {
				gap = n - i
			}
			i += gap
			continue
		}
		copied := copy(p[i*2:], head.pcm[head.off:])
		head.off += copied
		i += int64(copied / 2)
	}
	s.clock += n
	s.mu.Unlock()

	for _, done := range finished {
		done()
	}
	return len(p), nil
}

// Close releases the output device.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, it := range queue {
		it.Stop()
	}
	if s.player != nil {
		_ = s.player.Close()
	}
}
