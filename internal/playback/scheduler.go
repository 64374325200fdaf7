// Package playback schedules decoded agent audio for gapless output.
//
// Chunks arrive from the stream faster than real time, so each one is
// scheduled at a cursor that only moves forward: the first chunk plays
// immediately and every later chunk starts exactly where the previous one
// ends. An interruption drops everything in flight and resets the cursor.
package playback

import (
	"sync"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/audio"
)

// Stopper cancels one scheduled buffer.
type Stopper interface {
	Stop()
}

// Output is the audio sink the scheduler drives. Now is the sink's output
// clock in seconds; Play schedules buf to start at the given clock time and
// invokes done exactly once when the buffer finishes or is stopped.
type Output interface {
	Now() float64
	Play(buf *audio.Buffer, at float64, done func()) Stopper
}

// Scheduler keeps agent speech gapless and tracks whether anything is
// audibly playing.
type Scheduler struct {
	out Output

	mu      sync.Mutex
	cursor  float64
	active  map[int]Stopper
	nextID  int
	onIdle  func()
	stopped bool
}

// NewScheduler builds a scheduler over the given output. onIdle fires each
// time the set of in-flight buffers drains to empty; it may be nil.
func NewScheduler(out Output, onIdle func()) *Scheduler {
	return &Scheduler{
		out:    out,
		active: make(map[int]Stopper),
		onIdle: onIdle,
	}
}

// Schedule queues a decoded chunk. Zero-duration buffers are ignored.
func (s *Scheduler) Schedule(buf *audio.Buffer) {
	if buf == nil || buf.Duration() == 0 {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	start := s.cursor
	if now := s.out.Now(); now > start {
		start = now
	}
	s.cursor = start + buf.Duration()
	id := s.nextID
	s.nextID++
	s.active[id] = nil
	s.mu.Unlock()

	stopper := s.out.Play(buf, start, func() { s.finish(id) })

	s.mu.Lock()
	// Play may have completed (or been interrupted) before returning, in
	// which case the id is already gone and the stopper is stale.
	if _, live := s.active[id]; live {
		s.active[id] = stopper
	}
	s.mu.Unlock()
}

// finish removes a completed buffer and reports idleness when the last one
// drains.
func (s *Scheduler) finish(id int) {
	s.mu.Lock()
	_, ok := s.active[id]
	if ok {
		delete(s.active, id)
	}
	idle := ok && !s.stopped && len(s.active) == 0
	cb := s.onIdle
	s.mu.Unlock()

	if idle && cb != nil {
		cb()
	}
}

// Interrupt stops every in-flight buffer and rewinds the cursor to now, so
// the next chunk plays immediately. Used when the agent is cut off
// mid-sentence.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stoppers := make([]Stopper, 0, len(s.active))
	for id, st := range s.active {
		if st != nil {
			stoppers = append(stoppers, st)
		}
		delete(s.active, id)
	}
	s.cursor = s.out.Now()
	s.mu.Unlock()

	for _, st := range stoppers {
		st.Stop()
	}
}

// Playing reports whether any buffer is currently in flight.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Close interrupts playback and rejects further scheduling.
func (s *Scheduler) Close() {
	s.Interrupt()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
