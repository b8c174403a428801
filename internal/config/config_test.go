package config

import (
	"os"
	"testing"
	"time"
)

var managedEnv = []string{
	"API_KEY", "LIVE_MODEL", "LIVE_CHANNEL", "RELAY_URL", "NATIVE_LANGUAGE",
	"INPUT_SAMPLE_RATE", "OUTPUT_SAMPLE_RATE", "CAPTURE_FRAME_SIZE", "AUDIO_OUTPUT",
	"OUTPUT_CHANNELS", "ECHO_GATE_THRESHOLD", "ECHO_GATE_HANGOVER_MS",
}

func clearEnv() {
	for _, k := range managedEnv {
		os.Unsetenv(k)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv()
	os.Setenv("API_KEY", "test-key")
	os.Setenv("NATIVE_LANGUAGE", "Spanish")
	defer clearEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.APIKey != "test-key" {
		t.Errorf("Expected APIKey 'test-key', got '%s'", cfg.APIKey)
	}
	if cfg.Language != "Spanish" {
		t.Errorf("Expected Language 'Spanish', got '%s'", cfg.Language)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv()
	os.Setenv("API_KEY", "test-key")
	defer clearEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Channel != ChannelGemini {
		t.Errorf("Expected default channel gemini, got '%s'", cfg.Channel)
	}
	if cfg.Model != "gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Errorf("Unexpected default model '%s'", cfg.Model)
	}
	if cfg.InputSampleRate != 16000 || cfg.OutputSampleRate != 24000 {
		t.Errorf("Unexpected default rates %d/%d", cfg.InputSampleRate, cfg.OutputSampleRate)
	}
	if cfg.FrameSize != 4096 {
		t.Errorf("Expected default FrameSize 4096, got %d", cfg.FrameSize)
	}
	if cfg.OutputBackend != "malgo" {
		t.Errorf("Expected default output malgo, got '%s'", cfg.OutputBackend)
	}
	if cfg.EchoGateThreshold != 0.05 {
		t.Errorf("Expected 0.05 gate threshold, got %f", cfg.EchoGateThreshold)
	}
	if cfg.EchoGateHangover() != 200*time.Millisecond {
		t.Errorf("Expected 200ms hangover, got %v", cfg.EchoGateHangover())
	}
	if cfg.UIAddr != "" {
		t.Errorf("Expected UI disabled by default, got '%s'", cfg.UIAddr)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing key", map[string]string{}},
		{"relay without url", map[string]string{"LIVE_CHANNEL": "relay"}},
		{"unknown channel", map[string]string{"API_KEY": "k", "LIVE_CHANNEL": "carrier-pigeon"}},
		{"unknown output", map[string]string{"API_KEY": "k", "AUDIO_OUTPUT": "pulse"}},
		{"zero frame", map[string]string{"API_KEY": "k", "CAPTURE_FRAME_SIZE": "0"}},
		{"bad number", map[string]string{"API_KEY": "k", "INPUT_SAMPLE_RATE": "fast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv()
			defer clearEnv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if _, err := LoadFromEnv(); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadFromEnv_Relay(t *testing.T) {
	clearEnv()
	os.Setenv("LIVE_CHANNEL", "relay")
	os.Setenv("RELAY_URL", "ws://localhost:9000/live")
	defer clearEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.RelayURL != "ws://localhost:9000/live" {
		t.Errorf("Unexpected RelayURL '%s'", cfg.RelayURL)
	}
}
