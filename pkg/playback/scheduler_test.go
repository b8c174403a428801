package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

type fakeSource struct {
	stopped bool
}

func (s *fakeSource) Stop() { s.stopped = true }

type fakePlay struct {
	at      time.Duration
	dur     time.Duration
	onEnded func()
	source  *fakeSource
	ended   bool
}

// fakeOutput is a manually advanced output clock.
type fakeOutput struct {
	mu     sync.Mutex
	now    time.Duration
	plays  []*fakePlay
	closed bool
}

func (f *fakeOutput) CurrentTime() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeOutput) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePlay{at: at, dur: buf.Duration(), onEnded: onEnded, source: &fakeSource{}}
	f.plays = append(f.plays, p)
	return p.source, nil
}

func (f *fakeOutput) Close() error {
	f.closed = true
	return nil
}

// advance moves the clock and fires ended callbacks for finished, unstopped plays.
func (f *fakeOutput) advance(to time.Duration) {
	f.mu.Lock()
	f.now = to
	var fire []func()
	for _, p := range f.plays {
		if !p.ended && !p.source.stopped && p.at+p.dur <= to {
			p.ended = true
			fire = append(fire, p.onEnded)
		}
	}
	f.mu.Unlock()
	for _, fn := range fire {
		fn()
	}
}

func silence(d time.Duration) *audio.Buffer {
	frames := int(d * audio.OutputSampleRate / time.Second)
	return audio.NewMonoBuffer(audio.OutputSampleRate, make([]float32, frames))
}

func TestScheduler_BackToBackFromCurrentTime(t *testing.T) {
	out := &fakeOutput{now: 200 * time.Millisecond}
	s := NewScheduler()
	s.Attach(out)

	first, err := s.Schedule(silence(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Schedule(silence(500 * time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Start != 200*time.Millisecond {
		t.Errorf("expected first start 0.2s, got %v", first.Start)
	}
	if second.Start != 1200*time.Millisecond {
		t.Errorf("expected second start 1.2s, got %v", second.Start)
	}
	if s.NextStartTime() != 1700*time.Millisecond {
		t.Errorf("expected next start 1.7s, got %v", s.NextStartTime())
	}
}

func TestScheduler_NoOverlapInSubmissionOrder(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler()
	s.Attach(out)

	durations := []time.Duration{300 * time.Millisecond, 50 * time.Millisecond, time.Second, 10 * time.Millisecond}
	var units []*Unit
	var sum time.Duration
	for i, d := range durations {
		if i == 2 {
			// slow decode: the clock moved past the previous unit's end
			out.advance(2 * time.Second)
			sum = 2 * time.Second
		}
		u, err := s.Schedule(silence(d))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Start < sum {
			t.Errorf("unit %d starts at %v before %v", i, u.Start, sum)
		}
		sum = u.End()
		units = append(units, u)
	}
	for i := 1; i < len(units); i++ {
		if units[i].Start < units[i-1].End() {
			t.Errorf("unit %d overlaps unit %d", i, i-1)
		}
		if units[i].ID <= units[i-1].ID {
			t.Errorf("unit %d reordered", i)
		}
	}
	if units[2].Start != 2*time.Second {
		t.Errorf("expected late unit clamped to clock, got %v", units[2].Start)
	}
	if units[3].Start != 3*time.Second {
		t.Errorf("expected gapless follow-up at 3s, got %v", units[3].Start)
	}
}

func TestScheduler_DrainedAfterLastUnit(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler()
	s.Attach(out)

	drained := 0
	s.OnDrained(func() { drained++ })

	s.Schedule(silence(100 * time.Millisecond))
	s.Schedule(silence(100 * time.Millisecond))
	if s.InFlight() != 2 {
		t.Fatalf("expected 2 in flight, got %d", s.InFlight())
	}

	out.advance(150 * time.Millisecond)
	if drained != 0 || s.InFlight() != 1 {
		t.Errorf("expected one unit left and no drain, got drained=%d inFlight=%d", drained, s.InFlight())
	}
	out.advance(200 * time.Millisecond)
	if drained != 1 || s.InFlight() != 0 {
		t.Errorf("expected drain after last unit, got drained=%d inFlight=%d", drained, s.InFlight())
	}
}

func TestScheduler_CancelStopsEverything(t *testing.T) {
	out := &fakeOutput{now: time.Second}
	s := NewScheduler()
	s.Attach(out)

	drained := 0
	s.OnDrained(func() { drained++ })

	s.Schedule(silence(time.Second))
	s.Schedule(silence(time.Second))
	s.Cancel()

	if s.InFlight() != 0 {
		t.Errorf("expected empty in-flight set, got %d", s.InFlight())
	}
	if s.NextStartTime() != 0 {
		t.Errorf("expected clock reset, got %v", s.NextStartTime())
	}
	for i, p := range out.plays {
		if !p.source.stopped {
			t.Errorf("play %d not stopped", i)
		}
	}
	out.advance(10 * time.Second)
	if drained != 0 {
		t.Errorf("cancelled units must not signal drain")
	}
}

func TestScheduler_RequiresOutput(t *testing.T) {
	s := NewScheduler()
	if _, err := s.Schedule(silence(time.Millisecond)); err != ErrNoOutput {
		t.Errorf("expected ErrNoOutput, got %v", err)
	}

	out := &fakeOutput{}
	s.Attach(out)
	s.Schedule(silence(time.Second))
	if got := s.Detach(); got != out {
		t.Errorf("expected detached output to be returned")
	}
	if !out.plays[0].source.stopped {
		t.Errorf("expected detach to cancel playback")
	}
	if _, err := s.Schedule(silence(time.Millisecond)); err != ErrNoOutput {
		t.Errorf("expected ErrNoOutput after detach, got %v", err)
	}
}

func TestScheduler_AttachResetsClock(t *testing.T) {
	s := NewScheduler()
	s.Attach(&fakeOutput{})
	s.Schedule(silence(time.Second))

	fresh := &fakeOutput{}
	s.Attach(fresh)
	u, err := s.Schedule(silence(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Start != 0 {
		t.Errorf("expected new session to start at 0, got %v", u.Start)
	}
}
