package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDecode is returned when an inbound payload cannot be turned into audio.
var ErrDecode = errors.New("audio payload could not be decoded")

const (
	// InputSampleRate is the microphone rate expected by the remote service.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of synthesized speech returned by the remote service.
	OutputSampleRate = 24000

	bytesPerSample = 2
)

// Blob is a wire audio payload: base64 encoded 16-bit PCM plus its descriptor.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// PCMMimeType returns the descriptor used for 16-bit PCM at the given rate.
func PCMMimeType(sampleRate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(sampleRate)
}

// SampleRate parses the rate parameter of the blob's MIME type.
// It returns fallback when the descriptor carries no usable rate.
func (b Blob) SampleRate(fallback int) int {
	for _, param := range strings.Split(b.MIMEType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(key) != "rate" {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}

// Encode converts normalized float samples into a wire blob.
// Samples outside [-1,1] are clamped, never wrapped.
func Encode(frame []float32, sampleRate int) Blob {
	pcm := make([]byte, len(frame)*bytesPerSample)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(floatToInt16(s)))
	}
	return Blob{
		MIMEType: PCMMimeType(sampleRate),
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}
}

// DecodeBytes is the inverse of the base64 step of Encode.
func DecodeBytes(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// DecodeToBuffer interprets pcm as interleaved 16-bit little-endian samples
// and builds a playable buffer at sampleRate. A trailing partial frame is
// dropped.
func DecodeToBuffer(pcm []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrDecode, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: invalid channel count %d", ErrDecode, channels)
	}

	frames := len(pcm) / (channels * bytesPerSample)
	buf := NewBuffer(sampleRate, channels, frames)
	for c := 0; c < channels; c++ {
		data := buf.Channel(c)
		for i := 0; i < frames; i++ {
			off := (i*channels + c) * bytesPerSample
			sample := int16(binary.LittleEndian.Uint16(pcm[off:]))
			data[i] = float32(sample) / 32768.0
		}
	}
	return buf, nil
}

// DecodeBlob decodes a wire blob into a buffer, reading the rate from the
// blob's descriptor and falling back to defaultRate.
func DecodeBlob(b Blob, defaultRate, channels int) (*Buffer, error) {
	pcm, err := DecodeBytes(b.Data)
	if err != nil {
		return nil, err
	}
	return DecodeToBuffer(pcm, b.SampleRate(defaultRate), channels)
}

func floatToInt16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	v := s * 32768
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	default:
		return int16(v)
	}
}
