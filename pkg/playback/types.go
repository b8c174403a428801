package playback

import (
	"errors"
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

var (
	// ErrNoOutput is returned when scheduling without an attached output context.
	ErrNoOutput = errors.New("no output context attached")

	// ErrOutputClosed is returned by an output context after Close.
	ErrOutputClosed = errors.New("output context closed")
)

// Source is a started (or pending) playback of one buffer.
type Source interface {
	// Stop silences the source immediately. Its ended callback is not invoked.
	Stop()
}

// Output is an audio output context with its own monotonic clock.
type Output interface {
	// CurrentTime is the output clock: how much audio the context has rendered.
	CurrentTime() time.Duration

	// Play starts buf at the given clock time. onEnded is invoked once when the
	// buffer has been fully rendered; it must never be invoked from within Play
	// or from the realtime audio thread.
	Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Source, error)

	Close() error
}
