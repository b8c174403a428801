package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

// MalgoInput is a mono f32 capture device. The device is initialized when
// opened, which is where the OS permission prompt or failure happens.
type MalgoInput struct {
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	handler atomic.Pointer[func([]float32)]
	scratch []float32
	once    sync.Once
}

// OpenMalgoInput is an InputOpener backed by the default capture device.
func OpenMalgoInput(sampleRate int) (InputDevice, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	m := &MalgoInput{mctx: mctx}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onSamples,
	})
	if err != nil {
		m.release()
		return nil, fmt.Errorf("failed to init microphone: %w", err)
	}
	m.device = device
	return m, nil
}

func (m *MalgoInput) onSamples(_, pInput []byte, frameCount uint32) {
	fn := m.handler.Load()
	if fn == nil || pInput == nil {
		return
	}
	n := int(frameCount)
	if cap(m.scratch) < n {
		m.scratch = make([]float32, n)
	}
	samples := m.scratch[:n]
	n = audio.Float32LE(samples, pInput)
	(*fn)(samples[:n])
}

func (m *MalgoInput) Start(onSamples func(samples []float32)) error {
	m.handler.Store(&onSamples)
	if err := m.device.Start(); err != nil {
		m.handler.Store(nil)
		return err
	}
	return nil
}

// Close stops the device, stops the microphone and releases the context.
func (m *MalgoInput) Close() error {
	var err error
	m.once.Do(func() {
		m.handler.Store(nil)
		if m.device != nil && m.device.IsStarted() {
			err = m.device.Stop()
		}
		m.release()
	})
	return err
}

func (m *MalgoInput) release() {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.mctx != nil {
		_ = m.mctx.Uninit()
		m.mctx.Free()
		m.mctx = nil
	}
}
