package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

// oto allows a single context per process, so it is created on first use and
// reused by every OtoOutput. Players are per session.
var (
	otoMu       sync.Mutex
	otoCtx      *oto.Context
	otoRate     int
	otoChannels int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != sampleRate || otoChannels != channels {
			return nil, fmt.Errorf("oto context already opened at %dHz/%dch", otoRate, otoChannels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init speaker: %w", err)
	}
	<-ready

	otoCtx, otoRate, otoChannels = ctx, sampleRate, channels
	return ctx, nil
}

// OtoOutput renders a Timeline through an oto player. The player pulls
// frames continuously; silence is rendered while nothing is scheduled.
type OtoOutput struct {
	timeline *Timeline
	player   *oto.Player
	scratch  []float32
	once     sync.Once
}

// OpenOtoOutput starts a player on the shared oto context.
func OpenOtoOutput(sampleRate, channels int) (*OtoOutput, error) {
	ctx, err := sharedOtoContext(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	o := &OtoOutput{timeline: NewTimeline(sampleRate, channels)}
	o.player = ctx.NewPlayer(o)
	o.player.Play()
	return o, nil
}

// Read implements io.Reader for the oto player.
func (o *OtoOutput) Read(p []byte) (int, error) {
	frameBytes := 4 * o.timeline.Channels()
	frames := len(p) / frameBytes
	n := frames * o.timeline.Channels()
	if cap(o.scratch) < n {
		o.scratch = make([]float32, n)
	}
	samples := o.scratch[:n]
	o.timeline.Render(samples)
	audio.PutFloat32LE(p, samples)
	return frames * frameBytes, nil
}

func (o *OtoOutput) CurrentTime() time.Duration {
	return o.timeline.CurrentTime()
}

func (o *OtoOutput) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Source, error) {
	return o.timeline.Play(buf, at, onEnded)
}

// Close pauses and releases the player. The shared context stays open.
func (o *OtoOutput) Close() error {
	var err error
	o.once.Do(func() {
		o.player.Pause()
		err = o.player.Close()
		o.timeline.Close()
	})
	return err
}
