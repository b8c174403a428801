package playback

import (
	"strconv"
	"testing"
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

func constant(rate, frames int, v float32) *audio.Buffer {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = v
	}
	return audio.NewMonoBuffer(rate, samples)
}

func TestTimeline_RendersAtScheduledFrame(t *testing.T) {
	tl := NewTimeline(1000, 1)
	defer tl.Close()

	ended := make(chan struct{}, 1)
	if _, err := tl.Play(constant(1000, 3, 0.5), 2*time.Millisecond, func() { ended <- struct{}{} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := make([]float32, 4)
	tl.Render(out)
	want := []float32{0, 0, 0.5, 0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("frame %d: expected %f, got %f", i, want[i], out[i])
		}
	}
	if tl.CurrentTime() != 4*time.Millisecond {
		t.Errorf("expected clock at 4ms, got %v", tl.CurrentTime())
	}
	select {
	case <-ended:
		t.Fatal("voice ended early")
	default:
	}

	tl.Render(out)
	if out[0] != 0.5 || out[1] != 0 {
		t.Errorf("unexpected tail %v", out)
	}
	select {
	case <-ended:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for ended notification")
	}
	if tl.Active() != 0 {
		t.Errorf("expected no active voices, got %d", tl.Active())
	}
}

func TestTimeline_MixesAndClips(t *testing.T) {
	tl := NewTimeline(1000, 1)
	defer tl.Close()

	tl.Play(constant(1000, 2, 0.75), 0, nil)
	tl.Play(constant(1000, 2, 0.75), 0, nil)
	out := make([]float32, 2)
	tl.Render(out)
	if out[0] != 1 {
		t.Errorf("expected clipped sum, got %f", out[0])
	}
}

func TestTimeline_StopSilencesWithoutNotify(t *testing.T) {
	tl := NewTimeline(1000, 1)
	defer tl.Close()

	ended := make(chan struct{}, 1)
	src, _ := tl.Play(constant(1000, 2, 0.5), 0, func() { ended <- struct{}{} })
	src.Stop()

	out := make([]float32, 4)
	tl.Render(out)
	for i, s := range out {
		if s != 0 {
			t.Errorf("frame %d: expected silence, got %f", i, s)
		}
	}
	select {
	case <-ended:
		t.Error("stopped voice must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimeline_PastStartPlaysImmediately(t *testing.T) {
	tl := NewTimeline(1000, 2)
	defer tl.Close()

	tl.Render(make([]float32, 10)) // 5 frames
	tl.Play(constant(1000, 1, 0.25), time.Millisecond, nil)
	out := make([]float32, 2)
	tl.Render(out)
	if out[0] != 0.25 || out[1] != 0.25 {
		t.Errorf("expected mono voice on both channels, got %v", out)
	}
}

func TestTimeline_BackToBackUnitsAreGapless(t *testing.T) {
	for _, rate := range []int{24000, 44100, 48000} {
		t.Run(strconv.Itoa(rate), func(t *testing.T) {
			tl := NewTimeline(rate, 1)
			defer tl.Close()

			s := NewScheduler()
			s.Attach(tl)
			const units = 30
			for i := 0; i < units; i++ {
				if _, err := s.Schedule(constant(audio.OutputSampleRate, 1001, 0.5)); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}

			span := int(tl.durationToFrames(s.NextStartTime()))
			out := make([]float32, span+8)
			tl.Render(out)

			gaps := 0
			for _, v := range out[:span] {
				if v < 0.25 || v > 0.75 {
					gaps++
				}
			}
			if gaps != 0 {
				t.Errorf("expected no gaps or overlaps, found %d frames off level", gaps)
			}
			for i, v := range out[span:] {
				if v != 0 {
					t.Errorf("frame %d after the last unit: expected silence, got %f", span+i, v)
				}
			}
		})
	}
}

func TestTimeline_PlayAfterClose(t *testing.T) {
	tl := NewTimeline(1000, 1)
	tl.Close()
	if _, err := tl.Play(constant(1000, 1, 0), 0, nil); err != ErrOutputClosed {
		t.Errorf("expected ErrOutputClosed, got %v", err)
	}
}

func TestNewOpenerRejectsUnknownBackend(t *testing.T) {
	if _, err := NewOpener("pulse", 24000, 1); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := NewOpener(BackendOto, 24000, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
