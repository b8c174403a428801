package audio

// Framer re-chunks arbitrarily sized sample runs into fixed-size frames.
// Device callbacks rarely deliver exactly the frame size the remote side
// expects; the framer holds the remainder between calls.
type Framer struct {
	size    int
	pending []float32
}

// NewFramer returns a framer emitting frames of size samples.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = 4096
	}
	return &Framer{size: size, pending: make([]float32, 0, size)}
}

// Push appends samples and calls emit once per completed frame. The frame
// passed to emit is only valid for the duration of the call.
func (f *Framer) Push(samples []float32, emit func(frame []float32)) {
	for len(samples) > 0 {
		n := f.size - len(f.pending)
		if n > len(samples) {
			n = len(samples)
		}
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]
		if len(f.pending) == f.size {
			emit(f.pending)
			f.pending = f.pending[:0]
		}
	}
}

// Pending reports how many samples are buffered towards the next frame.
func (f *Framer) Pending() int { return len(f.pending) }

// Reset discards any partial frame.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}
