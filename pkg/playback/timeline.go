package playback

import (
	"sync"
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

// Timeline is a sample-accurate mixer shared by the device-backed outputs.
// Its clock advances only as frames are rendered, so it is monotonic and in
// lock step with what the device actually consumed.
type Timeline struct {
	mu       sync.Mutex
	rate     int
	channels int
	rendered int64
	voices   []*voice
	closed   bool

	ended *notifier
}

type voice struct {
	t       *Timeline
	start   int64
	buf     *audio.Buffer
	onEnded func()
}

// NewTimeline creates a timeline rendering interleaved frames at rate.
func NewTimeline(rate, channels int) *Timeline {
	if channels <= 0 {
		channels = 1
	}
	return &Timeline{
		rate:     rate,
		channels: channels,
		ended:    newNotifier(),
	}
}

func (t *Timeline) SampleRate() int { return t.rate }

func (t *Timeline) Channels() int { return t.channels }

// CurrentTime returns the duration of audio rendered so far.
func (t *Timeline) CurrentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.framesToDuration(t.rendered)
}

// Play places buf on the timeline starting at the given clock time. A start
// time already in the past begins at the next rendered frame. The voice spans
// the frames between at and at+buf.Duration() on the device grid, so buffers
// scheduled back to back meet without a gap at any device rate.
func (t *Timeline) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Source, error) {
	start := t.durationToFrames(at)
	length := t.durationToFrames(at+buf.Duration()) - start
	prepared := buf.ResampleTo(t.rate, int(length)).Remix(t.channels)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrOutputClosed
	}

	if start < t.rendered {
		start = t.rendered
	}
	v := &voice{t: t, start: start, buf: prepared, onEnded: onEnded}
	t.voices = append(t.voices, v)
	return v, nil
}

// Render mixes the next len(out)/channels frames into out (interleaved) and
// advances the clock. It is called from the device's audio thread.
func (t *Timeline) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}
	frames := int64(len(out) / t.channels)

	t.mu.Lock()
	from := t.rendered
	to := from + frames
	kept := t.voices[:0]
	var finished []func()
	for _, v := range t.voices {
		v.mixInto(out, from, to, t.channels)
		if v.start+int64(v.buf.Frames()) <= to {
			if v.onEnded != nil {
				finished = append(finished, v.onEnded)
			}
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(t.voices); i++ {
		t.voices[i] = nil
	}
	t.voices = kept
	t.rendered = to
	t.mu.Unlock()

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}
	for _, fn := range finished {
		t.ended.push(fn)
	}
}

// Active returns the number of voices that have not finished rendering.
func (t *Timeline) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.voices)
}

// Close drops all voices without notifying them and stops the notifier.
func (t *Timeline) Close() error {
	t.mu.Lock()
	t.closed = true
	t.voices = nil
	t.mu.Unlock()
	t.ended.close()
	return nil
}

func (t *Timeline) remove(target *voice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, v := range t.voices {
		if v == target {
			t.voices = append(t.voices[:i], t.voices[i+1:]...)
			return
		}
	}
}

func (t *Timeline) framesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(t.rate)
}

func (t *Timeline) durationToFrames(d time.Duration) int64 {
	return (int64(d)*int64(t.rate) + int64(time.Second)/2) / int64(time.Second)
}

func (v *voice) Stop() {
	v.t.remove(v)
}

func (v *voice) mixInto(out []float32, from, to int64, channels int) {
	end := v.start + int64(v.buf.Frames())
	lo, hi := from, to
	if v.start > lo {
		lo = v.start
	}
	if end < hi {
		hi = end
	}
	for f := lo; f < hi; f++ {
		src := int(f - v.start)
		dst := int(f-from) * channels
		for c := 0; c < channels; c++ {
			out[dst+c] += v.buf.Channel(c)[src]
		}
	}
}

// notifier runs ended callbacks off the audio thread, in the order they were pushed.
type notifier struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newNotifier() *notifier {
	n := &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) push(fn func()) {
	n.mu.Lock()
	n.pending = append(n.pending, fn)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	for {
		select {
		case <-n.done:
			return
		case <-n.wake:
		}
		n.mu.Lock()
		batch := n.pending
		n.pending = nil
		n.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
	}
}

func (n *notifier) close() {
	n.once.Do(func() { close(n.done) })
}
