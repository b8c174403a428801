package audio

import "time"

// Buffer is a decoded, planar block of float samples at a fixed rate.
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// NewBuffer allocates a silent buffer of the given shape.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}
	return &Buffer{sampleRate: sampleRate, channels: data}
}

// NewMonoBuffer wraps samples as a single-channel buffer without copying.
func NewMonoBuffer(sampleRate int, samples []float32) *Buffer {
	return &Buffer{sampleRate: sampleRate, channels: [][]float32{samples}}
}

func (b *Buffer) SampleRate() int { return b.sampleRate }

func (b *Buffer) NumChannels() int { return len(b.channels) }

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Channel returns the samples of channel c. The slice is shared.
func (b *Buffer) Channel(c int) []float32 {
	return b.channels[c]
}

// Duration is the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.sampleRate)
}

// Remix returns a buffer with the requested channel count. Extra source
// channels are averaged, missing target channels repeat the mix.
func (b *Buffer) Remix(channels int) *Buffer {
	if channels == b.NumChannels() || channels <= 0 {
		return b
	}
	frames := b.Frames()
	mono := make([]float32, frames)
	if n := b.NumChannels(); n > 0 {
		for _, ch := range b.channels {
			for i, s := range ch {
				mono[i] += s
			}
		}
		for i := range mono {
			mono[i] /= float32(n)
		}
	}
	out := &Buffer{sampleRate: b.sampleRate, channels: make([][]float32, channels)}
	for c := range out.channels {
		if c == 0 {
			out.channels[c] = mono
			continue
		}
		cp := make([]float32, frames)
		copy(cp, mono)
		out.channels[c] = cp
	}
	return out
}
