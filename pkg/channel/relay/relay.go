package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/lingua-voice/pkg/audio"
	"github.com/lokutor-ai/lingua-voice/pkg/live"
)

var ErrMissingURL = errors.New("relay: URL is required")

// Dialer connects to a websocket relay that speaks the live message format as
// JSON text frames.
type Dialer struct {
	url    string
	apiKey string
	logger live.Logger
}

func NewDialer(url, apiKey string, logger live.Logger) (*Dialer, error) {
	if url == "" {
		return nil, ErrMissingURL
	}
	if logger == nil {
		logger = &live.NoOpLogger{}
	}
	return &Dialer{url: url, apiKey: apiKey, logger: logger}, nil
}

func (d *Dialer) Name() string {
	return "relay"
}

type setupFrame struct {
	Setup live.ConnectConfig `json:"setup"`
}

type mediaFrame struct {
	Media audio.Blob `json:"media"`
}

func (d *Dialer) Dial(ctx context.Context, cfg live.ConnectConfig, h live.Handler) (live.Channel, error) {
	opts := &websocket.DialOptions{}
	if d.apiKey != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + d.apiKey}}
	}

	conn, _, err := websocket.Dial(ctx, d.url, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	conn.SetReadLimit(10 * 1024 * 1024)

	if err := wsjson.Write(ctx, conn, setupFrame{Setup: cfg}); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "failed to write setup")
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	ch := &channel{conn: conn, handler: h, logger: d.logger, ctx: readCtx, cancel: cancel}
	go ch.receive()
	return ch, nil
}

type channel struct {
	conn    *websocket.Conn
	handler live.Handler
	logger  live.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closing atomic.Bool
}

func (c *channel) receive() {
	c.handler.OnOpen()
	for {
		var msg live.ServerMessage
		if err := wsjson.Read(c.ctx, c.conn, &msg); err != nil {
			c.logger.Debug("relay read ended", "closing", c.closing.Load(), "error", err)
			if c.closing.Load() || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				c.handler.OnClose(err)
			} else {
				c.handler.OnError(err)
			}
			return
		}
		if msg.IsEmpty() {
			continue
		}
		c.handler.OnMessage(msg)
	}
}

func (c *channel) SendAudio(ctx context.Context, blob audio.Blob) error {
	if c.closing.Load() {
		return live.ErrNoChannel
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsjson.Write(ctx, c.conn, mediaFrame{Media: blob}); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (c *channel) Close() error {
	if c.closing.Swap(true) {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	return err
}
