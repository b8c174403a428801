package live

import (
	"context"
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/audio"
	"github.com/lokutor-ai/lingua-voice/pkg/capture"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// Metrics receives counters from the session. FrameSent and FrameDropped are
// called from the capture thread and must not block.
type Metrics interface {
	SessionStarted()
	StatusChanged(from, to Status)
	FrameSent()
	FrameDropped()
	AudioScheduled(duration, lead time.Duration)
	DecodeFailed()
	TurnFinalized()
}

type NoOpMetrics struct{}

func (n *NoOpMetrics) SessionStarted()                             {}
func (n *NoOpMetrics) StatusChanged(from, to Status)               {}
func (n *NoOpMetrics) FrameSent()                                  {}
func (n *NoOpMetrics) FrameDropped()                               {}
func (n *NoOpMetrics) AudioScheduled(duration, lead time.Duration) {}
func (n *NoOpMetrics) DecodeFailed()                               {}
func (n *NoOpMetrics) TurnFinalized()                              {}

// ServerMessage is one inbound message from the remote channel. Any
// combination of fields may be set.
type ServerMessage struct {
	InputTranscription  string      `json:"inputTranscription,omitempty"`
	OutputTranscription string      `json:"outputTranscription,omitempty"`
	Audio               *audio.Blob `json:"audio,omitempty"`
	TurnComplete        bool        `json:"turnComplete,omitempty"`
	Interrupted         bool        `json:"interrupted,omitempty"`
}

// IsEmpty reports whether the message carries nothing the session consumes.
func (m ServerMessage) IsEmpty() bool {
	return m.InputTranscription == "" && m.OutputTranscription == "" &&
		m.Audio == nil && !m.TurnComplete && !m.Interrupted
}

// ConnectConfig is the setup payload sent when opening a channel.
type ConnectConfig struct {
	Model               string   `json:"model"`
	SystemInstruction   string   `json:"systemInstruction"`
	ResponseModalities  []string `json:"responseModalities"`
	InputTranscription  bool     `json:"inputAudioTranscription"`
	OutputTranscription bool     `json:"outputAudioTranscription"`
	InputSampleRate     int      `json:"inputSampleRate"`
}

// Handler receives channel lifecycle callbacks. Implementations of Channel
// call OnOpen once, then OnMessage in arrival order from a single goroutine,
// and finally at most one of OnError or OnClose.
type Handler interface {
	OnOpen()
	OnMessage(msg ServerMessage)
	OnError(err error)
	OnClose(err error)
}

// Channel is an open bidirectional connection to the tutoring service.
type Channel interface {
	SendAudio(ctx context.Context, blob audio.Blob) error
	// Close must not wait for the handler goroutine; it may be called from
	// inside a handler callback.
	Close() error
}

// Dialer opens channels to the remote service.
type Dialer interface {
	Dial(ctx context.Context, cfg ConnectConfig, h Handler) (Channel, error)
	Name() string
}

type EventType string

const (
	StatusChanged    EventType = "STATUS_CHANGED"
	InputTranscript  EventType = "INPUT_TRANSCRIPT"
	OutputTranscript EventType = "OUTPUT_TRANSCRIPT"
	TurnFinalized    EventType = "TURN_FINALIZED"
	// DecodeFailed carries the error for an inbound audio payload that was dropped.
	DecodeFailed EventType = "DECODE_FAILED"
	ErrorEvent   EventType = "ERROR"
)

type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
}

type Config struct {
	Model               string
	InstructionTemplate string
	Language            string
	OutputSampleRate    int
	OutputChannels      int
	EventBuffer         int
	Capture             capture.Config
}

func DefaultConfig() Config {
	return Config{
		Model:               "gemini-2.5-flash-native-audio-preview-09-2025",
		InstructionTemplate: DefaultInstructionTemplate,
		OutputSampleRate:    audio.OutputSampleRate,
		OutputChannels:      1,
		EventBuffer:         1024,
		Capture:             capture.DefaultConfig(),
	}
}

// Snapshot is a read-only copy of session state for rendering.
type Snapshot struct {
	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	History  []Turn  `json:"history"`
	Current  Turn    `json:"current"`
	MicLevel float64 `json:"micLevel"`
	Playing  int     `json:"playing"`
}
