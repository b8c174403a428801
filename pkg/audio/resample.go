package audio

// Resample converts the buffer to rate using linear interpolation. It returns
// b unchanged when the rates already match.
func (b *Buffer) Resample(rate int) *Buffer {
	if rate <= 0 || rate == b.sampleRate || b.sampleRate <= 0 {
		return b
	}
	return b.ResampleTo(rate, int(float64(b.Frames())*float64(rate)/float64(b.sampleRate)))
}

// ResampleTo converts the buffer to rate and stretches it to exactly frames
// samples per channel. Consecutive buffers placed on a frame grid stay
// contiguous even when the rate ratio does not divide their length.
func (b *Buffer) ResampleTo(rate, frames int) *Buffer {
	if frames < 0 {
		frames = 0
	}
	if rate == b.sampleRate && frames == b.Frames() {
		return b
	}
	out := &Buffer{sampleRate: rate, channels: make([][]float32, len(b.channels))}
	for c, ch := range b.channels {
		out.channels[c] = stretchLinear(ch, frames)
	}
	return out
}

func stretchLinear(samples []float32, outputLength int) []float32 {
	output := make([]float32, outputLength)
	if len(samples) == 0 || outputLength == 0 {
		return output
	}
	step := float64(len(samples)) / float64(outputLength)
	last := len(samples) - 1

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) * step
		idx0 := int(srcPos)
		if idx0 > last {
			idx0 = last
		}
		idx1 := idx0 + 1
		if idx1 > last {
			idx1 = last
		}
		fraction := float32(srcPos - float64(idx0))
		output[i] = samples[idx0]*(1-fraction) + samples[idx1]*fraction
	}
	return output
}
