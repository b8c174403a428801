package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

// MalgoOutput renders a Timeline through a malgo playback device. Each
// session owns its own context and device; nothing is shared process-wide.
type MalgoOutput struct {
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	timeline *Timeline

	scratch []float32
	once    sync.Once
}

// OpenMalgoOutput opens and starts the default playback device.
func OpenMalgoOutput(sampleRate, channels int) (*MalgoOutput, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	o := &MalgoOutput{
		mctx:     mctx,
		timeline: NewTimeline(sampleRate, channels),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: o.onSamples,
	})
	if err != nil {
		o.release()
		return nil, fmt.Errorf("failed to init playback device: %w", err)
	}
	o.device = device

	if err := device.Start(); err != nil {
		o.release()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	return o, nil
}

func (o *MalgoOutput) onSamples(pOutput, _ []byte, frameCount uint32) {
	if pOutput == nil {
		return
	}
	n := int(frameCount) * o.timeline.Channels()
	if cap(o.scratch) < n {
		o.scratch = make([]float32, n)
	}
	samples := o.scratch[:n]
	o.timeline.Render(samples)
	audio.PutFloat32LE(pOutput, samples)
}

func (o *MalgoOutput) CurrentTime() time.Duration {
	return o.timeline.CurrentTime()
}

func (o *MalgoOutput) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Source, error) {
	return o.timeline.Play(buf, at, onEnded)
}

// Close stops the device and releases the audio context. Safe to call twice.
func (o *MalgoOutput) Close() error {
	var err error
	o.once.Do(func() {
		if o.device != nil {
			err = o.device.Stop()
		}
		o.release()
	})
	return err
}

func (o *MalgoOutput) release() {
	if o.device != nil {
		o.device.Uninit()
		o.device = nil
	}
	if o.mctx != nil {
		_ = o.mctx.Uninit()
		o.mctx.Free()
		o.mctx = nil
	}
	o.timeline.Close()
}
