package uiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lokutor-ai/lingua-voice/pkg/live"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the part of a session the UI may drive.
type Controller interface {
	Snapshot() live.Snapshot
	Start(ctx context.Context) error
	Stop()
	SetLanguage(language string)
}

type Options struct {
	// Interval between snapshot pushes. Unchanged snapshots are not resent.
	Interval     time.Duration
	WriteTimeout time.Duration
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   live.Logger
}

// Command is a client request received over the websocket.
type Command struct {
	Type     string `json:"type"` // start, stop, toggle or language
	Language string `json:"language,omitempty"`
}

type Server struct {
	ctrl     Controller
	opts     Options
	logger   live.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	// ctx is the lifetime handed to sessions started from the UI
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(ctrl Controller, opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = 200 * time.Millisecond
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = &live.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		ctrl:   ctrl,
		opts:   opts,
		logger: logger,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("/ws", s.handleWS)
	if opts.Gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close ends all websocket streams. Streams requested afterwards are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	s.writeJSON(w, map[string]string{
		"status":  "healthy",
		"session": string(snap.Status),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ctrl.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(4096)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readCommands(conn)
	}()

	s.pushSnapshots(conn, done)
	conn.Close()
	<-done
}

func (s *Server) pushSnapshots(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	var last []byte
	for {
		payload, err := json.Marshal(s.ctrl.Snapshot())
		if err != nil {
			s.logger.Error("failed to encode snapshot", "error", err)
			return
		}
		if !bytes.Equal(payload, last) {
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			last = payload
		}

		select {
		case <-s.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.opts.WriteTimeout))
			return
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn) {
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.apply(cmd)
	}
}

func (s *Server) apply(cmd Command) {
	switch cmd.Type {
	case "start":
		if err := s.ctrl.Start(s.ctx); err != nil {
			s.logger.Warn("start from ui failed", "error", err)
		}
	case "stop":
		s.ctrl.Stop()
	case "toggle":
		if s.ctrl.Snapshot().Status.Active() {
			s.ctrl.Stop()
		} else if err := s.ctrl.Start(s.ctx); err != nil {
			s.logger.Warn("start from ui failed", "error", err)
		}
	case "language":
		s.ctrl.SetLanguage(cmd.Language)
	default:
		s.logger.Debug("ignoring unknown ui command", "type", cmd.Type)
	}
}
