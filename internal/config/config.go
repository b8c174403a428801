package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ChannelGemini = "gemini"
	ChannelRelay  = "relay"
)

// Config holds all configuration for the tutor client
type Config struct {
	// Remote service
	APIKey   string `envconfig:"API_KEY" default:""`
	Model    string `envconfig:"LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-09-2025"`
	Channel  string `envconfig:"LIVE_CHANNEL" default:"gemini"` // gemini or relay
	RelayURL string `envconfig:"RELAY_URL" default:""`

	// Learner's native language; empty means ask at startup
	Language string `envconfig:"NATIVE_LANGUAGE" default:""`

	// Audio
	InputSampleRate  int    `envconfig:"INPUT_SAMPLE_RATE" default:"16000"`
	OutputSampleRate int    `envconfig:"OUTPUT_SAMPLE_RATE" default:"24000"`
	FrameSize        int    `envconfig:"CAPTURE_FRAME_SIZE" default:"4096"` // samples per outbound frame
	OutputBackend    string `envconfig:"AUDIO_OUTPUT" default:"malgo"`      // malgo or oto
	OutputChannels   int    `envconfig:"OUTPUT_CHANNELS" default:"1"`

	// Echo gate applied to the microphone while the tutor is speaking. Raise
	// the threshold on open speakers that leak into the mic; a high value
	// makes barge-in need a raised voice.
	EchoGateThreshold  float64 `envconfig:"ECHO_GATE_THRESHOLD" default:"0.05"`
	EchoGateHangoverMs int     `envconfig:"ECHO_GATE_HANGOVER_MS" default:"200"`

	// Observability
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"true"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	UIAddr         string `envconfig:"UI_ADDR" default:""` // e.g. :8089; empty disables the HTTP surface
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Channel {
	case ChannelGemini:
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY is required for the %s channel", ChannelGemini)
		}
	case ChannelRelay:
		if c.RelayURL == "" {
			return fmt.Errorf("RELAY_URL is required for the %s channel", ChannelRelay)
		}
	default:
		return fmt.Errorf("unknown LIVE_CHANNEL %q", c.Channel)
	}

	switch c.OutputBackend {
	case "malgo", "oto":
	default:
		return fmt.Errorf("unknown AUDIO_OUTPUT %q", c.OutputBackend)
	}

	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive")
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("CAPTURE_FRAME_SIZE must be positive")
	}
	if c.OutputChannels <= 0 {
		return fmt.Errorf("OUTPUT_CHANNELS must be positive")
	}
	return nil
}

func (c *Config) EchoGateHangover() time.Duration {
	return time.Duration(c.EchoGateHangoverMs) * time.Millisecond
}
