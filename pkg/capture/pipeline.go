package capture

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
)

var (
	// ErrPermission is returned when the microphone is denied or unavailable.
	ErrPermission = errors.New("microphone unavailable or permission denied")

	// ErrNotOpen is returned when activating a pipeline without a microphone.
	ErrNotOpen = errors.New("capture pipeline not open")
)

// InputDevice is an acquired microphone. Start registers the sample callback,
// which runs on the device's audio thread and must not block.
type InputDevice interface {
	Start(onSamples func(samples []float32)) error
	Close() error
}

// InputOpener acquires a mono microphone at sampleRate.
type InputOpener func(sampleRate int) (InputDevice, error)

// Sink receives encoded frames. It must not block; returning false means the
// frame was dropped because the transport was not ready.
type Sink func(blob audio.Blob) bool

type Config struct {
	SampleRate int
	FrameSize  int
	Gate       GateConfig
}

func DefaultConfig() Config {
	return Config{
		SampleRate: audio.InputSampleRate,
		FrameSize:  4096,
		Gate:       DefaultGateConfig(),
	}
}

// Stats are cumulative frame counters for the lifetime of the pipeline.
type Stats struct {
	Captured uint64
	Sent     uint64
	Dropped  uint64
	Gated    uint64
}

// Pipeline reads the microphone in fixed-size frames, encodes each frame and
// hands it to a sink. At most one device is held at a time.
type Pipeline struct {
	mu     sync.Mutex
	cfg    Config
	opener InputOpener
	device InputDevice
	active bool
	gate   *EchoGate

	captured atomic.Uint64
	sent     atomic.Uint64
	dropped  atomic.Uint64
	gated    atomic.Uint64
	level    atomic.Uint64
}

func NewPipeline(opener InputOpener, cfg Config) *Pipeline {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.InputSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 4096
	}
	return &Pipeline{
		cfg:    cfg,
		opener: opener,
		gate:   NewEchoGate(cfg.Gate),
	}
}

// Gate exposes the echo gate so playback state can be wired into it.
func (p *Pipeline) Gate() *EchoGate { return p.gate }

// Open acquires the microphone without streaming. Opening an already open
// pipeline is a no-op. The lock is not held while the opener runs, since
// acquiring a microphone may wait on the user.
func (p *Pipeline) Open() error {
	p.mu.Lock()
	held := p.device != nil
	p.mu.Unlock()
	if held {
		return nil
	}

	device, err := p.opener(p.cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}

	p.mu.Lock()
	if p.device != nil {
		p.mu.Unlock()
		return device.Close()
	}
	p.device = device
	p.mu.Unlock()
	return nil
}

// Activate starts delivering frames to sink.
func (p *Pipeline) Activate(sink Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return ErrNotOpen
	}
	if p.active {
		return nil
	}

	framer := audio.NewFramer(p.cfg.FrameSize)
	rate := p.cfg.SampleRate
	err := p.device.Start(func(samples []float32) {
		framer.Push(samples, func(frame []float32) {
			p.handleFrame(frame, rate, sink)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to start microphone: %w", err)
	}
	p.active = true
	return nil
}

func (p *Pipeline) handleFrame(frame []float32, rate int, sink Sink) {
	p.captured.Add(1)
	level := audio.RMS(frame)
	p.level.Store(math.Float64bits(level))

	if p.gate.Apply(frame, level) {
		p.gated.Add(1)
	}

	if sink(audio.Encode(frame, rate)) {
		p.sent.Add(1)
	} else {
		p.dropped.Add(1)
	}
}

// Stop disconnects the callback and releases the microphone. Calling Stop on
// a stopped pipeline is a no-op.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	device := p.device
	p.device = nil
	p.active = false
	p.mu.Unlock()

	if device == nil {
		return nil
	}
	return device.Close()
}

// IsOpen reports whether a microphone is currently held.
func (p *Pipeline) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device != nil
}

// Active reports whether frames are being streamed.
func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Level returns the RMS level of the most recent frame.
func (p *Pipeline) Level() float64 {
	return math.Float64frombits(p.level.Load())
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Captured: p.captured.Load(),
		Sent:     p.sent.Load(),
		Dropped:  p.dropped.Load(),
		Gated:    p.gated.Load(),
	}
}
