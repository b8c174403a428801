package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the root mean square level of a normalized frame.
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Float32LE decodes little-endian IEEE-754 samples, as delivered by devices
// opened in f32 format, into dst. It returns the number of samples written.
func Float32LE(dst []float32, raw []byte) int {
	n := len(raw) / 4
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return n
}

// PutFloat32LE is the inverse of Float32LE.
func PutFloat32LE(raw []byte, src []float32) int {
	n := len(raw) / 4
	if n > len(src) {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(src[i]))
	}
	return n
}
