package audio

import (
	"math"
	"testing"
)

func TestFramerEmitsFixedFrames(t *testing.T) {
	f := NewFramer(4)
	var frames [][]float32
	emit := func(frame []float32) {
		cp := make([]float32, len(frame))
		copy(cp, frame)
		frames = append(frames, cp)
	}

	f.Push([]float32{1, 2, 3}, emit)
	if len(frames) != 0 {
		t.Fatalf("expected no frames yet, got %d", len(frames))
	}
	f.Push([]float32{4, 5, 6, 7, 8, 9, 10}, emit)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0][0] != 1 || frames[0][3] != 4 || frames[1][0] != 5 || frames[1][3] != 8 {
		t.Errorf("unexpected frames %v", frames)
	}
	if f.Pending() != 2 {
		t.Errorf("expected 2 pending samples, got %d", f.Pending())
	}
	f.Reset()
	if f.Pending() != 0 {
		t.Errorf("expected reset to drop pending samples")
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Errorf("expected 0 for empty frame")
	}
	got := RMS([]float32{0.5, -0.5, 0.5, -0.5})
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestFloat32LERoundTrip(t *testing.T) {
	src := []float32{0.25, -1, 0.75}
	raw := make([]byte, 12)
	if n := PutFloat32LE(raw, src); n != 3 {
		t.Fatalf("expected 3 samples written, got %d", n)
	}
	dst := make([]float32, 3)
	if n := Float32LE(dst, raw); n != 3 {
		t.Fatalf("expected 3 samples read, got %d", n)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("sample %d: expected %f, got %f", i, src[i], dst[i])
		}
	}
}

func TestResampleAndRemix(t *testing.T) {
	buf := NewMonoBuffer(8000, []float32{0, 1, 0, 1})
	up := buf.Resample(16000)
	if up.SampleRate() != 16000 || up.Frames() != 8 {
		t.Fatalf("expected 8 frames at 16k, got %d at %d", up.Frames(), up.SampleRate())
	}
	if up.Channel(0)[1] != 0.5 {
		t.Errorf("expected interpolated 0.5, got %f", up.Channel(0)[1])
	}
	if buf.Resample(8000) != buf {
		t.Errorf("expected same buffer when rates match")
	}

	stereo := NewBuffer(8000, 2, 2)
	stereo.Channel(0)[0] = 1
	mono := stereo.Remix(1)
	if mono.NumChannels() != 1 || mono.Channel(0)[0] != 0.5 {
		t.Errorf("expected averaged mono, got %v", mono.Channel(0))
	}
	wide := mono.Remix(2)
	if wide.NumChannels() != 2 || wide.Channel(1)[0] != 0.5 {
		t.Errorf("expected duplicated channel, got %v", wide.Channel(1))
	}
}

func TestResampleTo_ExactLength(t *testing.T) {
	buf := NewMonoBuffer(24000, []float32{0.5, 0.5, 0.5})
	out := buf.ResampleTo(44100, 6)
	if out.Frames() != 6 || out.SampleRate() != 44100 {
		t.Fatalf("expected 6 frames at 44.1k, got %d at %d", out.Frames(), out.SampleRate())
	}
	for i, s := range out.Channel(0) {
		if s != 0.5 {
			t.Errorf("sample %d: expected 0.5, got %f", i, s)
		}
	}
	if buf.ResampleTo(24000, 3) != buf {
		t.Error("expected same buffer when shape already matches")
	}
	if empty := buf.ResampleTo(44100, 0); empty.Frames() != 0 {
		t.Errorf("expected empty buffer, got %d frames", empty.Frames())
	}
}
