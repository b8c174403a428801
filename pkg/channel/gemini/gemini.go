package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/lokutor-ai/lingua-voice/pkg/audio"
	"github.com/lokutor-ai/lingua-voice/pkg/live"
	"google.golang.org/genai"
)

var ErrMissingAPIKey = errors.New("gemini: API key is required")

// Dialer opens Gemini Live sessions.
type Dialer struct {
	client *genai.Client
	logger live.Logger
}

func NewDialer(ctx context.Context, apiKey string, logger live.Logger) (*Dialer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = &live.NoOpLogger{}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Dialer{client: client, logger: logger}, nil
}

func (d *Dialer) Name() string {
	return "gemini"
}

func (d *Dialer) Dial(ctx context.Context, cfg live.ConnectConfig, h live.Handler) (live.Channel, error) {
	session, err := d.client.Live.Connect(ctx, cfg.Model, connectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gemini live: %w", err)
	}

	ch := &channel{session: session, handler: h, logger: d.logger}
	go ch.receive()
	return ch, nil
}

// liveSession is the part of *genai.Session a channel drives.
type liveSession interface {
	Receive() (*genai.LiveServerMessage, error)
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Close() error
}

type channel struct {
	session liveSession
	handler live.Handler
	logger  live.Logger

	sendMu  sync.Mutex
	closing atomic.Bool
}

func (c *channel) receive() {
	c.handler.OnOpen()
	for {
		msg, err := c.session.Receive()
		if err != nil {
			c.logger.Debug("gemini live receive ended", "closing", c.closing.Load(), "error", err)
			if c.closing.Load() || isNormalClosure(err) {
				c.handler.OnClose(err)
			} else {
				c.handler.OnError(err)
			}
			return
		}
		if m, ok := convertMessage(msg); ok {
			c.handler.OnMessage(m)
		}
	}
}

func (c *channel) SendAudio(ctx context.Context, blob audio.Blob) error {
	if c.closing.Load() {
		return live.ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm, err := audio.DecodeBytes(blob.Data)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: blob.MIMEType, Data: pcm},
	})
}

func (c *channel) Close() error {
	if c.closing.Swap(true) {
		return nil
	}
	return c.session.Close()
}

func connectConfig(cfg live.ConnectConfig) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{}
	for _, m := range cfg.ResponseModalities {
		lc.ResponseModalities = append(lc.ResponseModalities, genai.Modality(m))
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if cfg.InputTranscription {
		lc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return lc
}

// convertMessage maps a server message onto the channel-neutral form. It
// reports false for messages that carry nothing the session consumes, such
// as setup acknowledgements.
func convertMessage(msg *genai.LiveServerMessage) (live.ServerMessage, bool) {
	if msg == nil || msg.ServerContent == nil {
		return live.ServerMessage{}, false
	}
	sc := msg.ServerContent

	out := live.ServerMessage{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.InputTranscription != nil {
		out.InputTranscription = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		out.OutputTranscription = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
				continue
			}
			out.Audio = &audio.Blob{
				MIMEType: part.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
			}
			break
		}
	}

	return out, !out.IsEmpty()
}

func isNormalClosure(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
