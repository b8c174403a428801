package capture

import (
	"sync"
	"time"
)

// GateConfig controls echo gating while the model is speaking.
type GateConfig struct {
	// Threshold is the RMS level a frame must exceed to pass while playback is
	// active. Zero disables the gate.
	Threshold float64
	// Hangover keeps the gate closed for a while after playback ends to cover
	// room reverb and output latency.
	Hangover time.Duration
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		Threshold: 0.05,
		Hangover:  200 * time.Millisecond,
	}
}

// EchoGate replaces quiet microphone frames with silence while the speaker is
// playing, so the remote side does not transcribe its own voice. Loud frames
// pass through so the user can still barge in.
type EchoGate struct {
	mu           sync.Mutex
	cfg          GateConfig
	playing      func() bool
	lastPlayedAt time.Time
	now          func() time.Time
}

func NewEchoGate(cfg GateConfig) *EchoGate {
	return &EchoGate{cfg: cfg, now: time.Now}
}

// Watch sets the function used to ask whether playback is in progress.
func (g *EchoGate) Watch(playing func() bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = playing
}

// Apply zeroes frame in place when it is likely echo. It reports whether the
// frame was silenced.
func (g *EchoGate) Apply(frame []float32, level float64) bool {
	g.mu.Lock()
	if g.cfg.Threshold <= 0 || g.playing == nil {
		g.mu.Unlock()
		return false
	}
	now := g.now()
	if g.playing() {
		g.lastPlayedAt = now
	}
	active := !g.lastPlayedAt.IsZero() && now.Sub(g.lastPlayedAt) < g.cfg.Hangover
	threshold := g.cfg.Threshold
	g.mu.Unlock()

	if !active || level > threshold {
		return false
	}
	for i := range frame {
		frame[i] = 0
	}
	return true
}
