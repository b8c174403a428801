package playback

import "fmt"

// Backend names an output implementation.
type Backend string

const (
	BackendMalgo Backend = "malgo"
	BackendOto   Backend = "oto"
)

// Opener creates a fresh output context for a session.
type Opener func() (Output, error)

// NewOpener returns an Opener for the named backend.
func NewOpener(backend Backend, sampleRate, channels int) (Opener, error) {
	switch backend {
	case BackendMalgo, "":
		return func() (Output, error) {
			out, err := OpenMalgoOutput(sampleRate, channels)
			if err != nil {
				return nil, err
			}
			return out, nil
		}, nil
	case BackendOto:
		return func() (Output, error) {
			out, err := OpenOtoOutput(sampleRate, channels)
			if err != nil {
				return nil, err
			}
			return out, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}
