package playback

import (
	"sync"
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

// Unit is one buffer scheduled on the output timeline.
type Unit struct {
	ID       uint64
	Start    time.Duration
	Duration time.Duration

	source Source
}

// End is the clock time at which the unit finishes.
func (u *Unit) End() time.Duration {
	return u.Start + u.Duration
}

// Scheduler plays asynchronously arriving buffers back to back on an Output.
// Units never overlap and are played in the order Schedule was called.
type Scheduler struct {
	mu        sync.Mutex
	out       Output
	nextStart time.Duration
	inFlight  map[uint64]*Unit
	seq       uint64
	onDrained func()
	onUnit    func(u *Unit, lag time.Duration)
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		inFlight: make(map[uint64]*Unit),
	}
}

// OnDrained registers fn to be called whenever the last in-flight unit ends.
func (s *Scheduler) OnDrained(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = fn
}

// OnScheduled registers fn to observe every scheduled unit together with how
// far ahead of the output clock it was placed.
func (s *Scheduler) OnScheduled(fn func(u *Unit, lag time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUnit = fn
}

// Attach binds the scheduler to a fresh output context and resets the clock
// state. Anything still playing on a previous output is cancelled.
func (s *Scheduler) Attach(out Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.out = out
}

// Detach cancels all playback and returns the output so the caller can close it.
func (s *Scheduler) Detach() Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	out := s.out
	s.out = nil
	return out
}

// Schedule queues buf to start at max(now, end of the previous unit).
func (s *Scheduler) Schedule(buf *audio.Buffer) (*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return nil, ErrNoOutput
	}

	now := s.out.CurrentTime()
	start := s.nextStart
	if now > start {
		start = now
	}

	s.seq++
	unit := &Unit{ID: s.seq, Start: start, Duration: buf.Duration()}
	id := unit.ID
	source, err := s.out.Play(buf, start, func() { s.finish(id) })
	if err != nil {
		return nil, err
	}
	unit.source = source
	s.nextStart = start + unit.Duration
	s.inFlight[id] = unit

	if s.onUnit != nil {
		s.onUnit(unit, start-now)
	}
	return unit, nil
}

// Cancel stops every in-flight unit and resets the clock state.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Scheduler) cancelLocked() {
	for id, u := range s.inFlight {
		if u.source != nil {
			u.source.Stop()
		}
		delete(s.inFlight, id)
	}
	s.nextStart = 0
}

// InFlight returns the number of scheduled units that have not ended.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// NextStartTime returns the earliest time the next unit may start.
func (s *Scheduler) NextStartTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

func (s *Scheduler) finish(id uint64) {
	s.mu.Lock()
	if _, ok := s.inFlight[id]; !ok {
		// cancelled
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, id)
	drained := len(s.inFlight) == 0
	fn := s.onDrained
	s.mu.Unlock()

	if drained && fn != nil {
		fn()
	}
}
