package live

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lokutor-ai/lingua-voice/pkg/audio"
	"github.com/lokutor-ai/lingua-voice/pkg/capture"
	"github.com/lokutor-ai/lingua-voice/pkg/playback"
)

// outboundQueue is how many encoded frames may wait for the socket writer.
const outboundQueue = 8

// Session owns one learner's conversation: the capture pipeline, the playback
// scheduler, the remote channel and the transcript. Start and Stop are the
// only mutating entry points for a UI; everything else is driven by channel
// and playback callbacks.
type Session struct {
	mu         sync.Mutex
	id         string
	cfg        Config
	dialer     Dialer
	capture    *capture.Pipeline
	scheduler  *playback.Scheduler
	openOutput playback.Opener
	logger     Logger
	metrics    Metrics

	language   string
	status     Status
	transcript *Transcript
	gen        uint64
	conn       *connection
	events     chan Event
	closed     bool
}

// connection is one dial of the remote channel. Callbacks carry their
// connection so that events from a connection that has since been stopped
// are ignored.
type connection struct {
	id       string
	session  *Session
	ctx      context.Context
	cancel   context.CancelFunc
	channel  Channel
	outbound chan audio.Blob
	ready    atomic.Bool

	// opened is set once the remote side acknowledged the channel; guarded
	// by the session mutex.
	opened bool
}

// NewSession creates an idle session.
func NewSession(dialer Dialer, mic capture.InputOpener, speaker playback.Opener, cfg Config) *Session {
	return NewSessionWithLogger(dialer, mic, speaker, cfg, &NoOpLogger{}, &NoOpMetrics{})
}

// NewSessionWithLogger creates an idle session with a custom logger and metrics sink.
func NewSessionWithLogger(dialer Dialer, mic capture.InputOpener, speaker playback.Opener, cfg Config, logger Logger, metrics Metrics) *Session {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = audio.OutputSampleRate
	}
	if cfg.OutputChannels <= 0 {
		cfg.OutputChannels = 1
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		dialer:     dialer,
		capture:    capture.NewPipeline(mic, cfg.Capture),
		scheduler:  playback.NewScheduler(),
		openOutput: speaker,
		logger:     logger,
		metrics:    metrics,
		language:   cfg.Language,
		status:     StatusIdle,
		transcript: NewTranscript(),
		events:     make(chan Event, cfg.EventBuffer),
	}
	s.scheduler.OnDrained(s.onPlaybackDrained)
	s.scheduler.OnScheduled(func(u *playback.Unit, lead time.Duration) {
		s.metrics.AudioScheduled(u.Duration, lead)
	})
	s.capture.Gate().Watch(func() bool { return s.scheduler.InFlight() > 0 })
	return s
}

// ID returns the session identifier used in events and logs.
func (s *Session) ID() string { return s.id }

// Events returns the event channel. It is closed by Close.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage stops any running session and selects the learner's native language.
func (s *Session) SetLanguage(language string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

// Snapshot returns a copy of everything a UI needs to render.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	status, language := s.status, s.language
	s.mu.Unlock()

	return Snapshot{
		ID:       s.id,
		Status:   status,
		Text:     status.Text(),
		Language: language,
		History:  s.transcript.History(),
		Current:  s.transcript.Current(),
		MicLevel: s.capture.Level(),
		Playing:  s.scheduler.InFlight(),
	}
}

// History returns the finalized turns.
func (s *Session) History() []Turn {
	return s.transcript.History()
}

// ClearHistory drops the finalized turns and the open turn.
func (s *Session) ClearHistory() {
	s.transcript.Clear()
}

// CaptureStats returns the capture pipeline counters.
func (s *Session) CaptureStats() capture.Stats {
	return s.capture.Stats()
}

// Toggle is the mic button: it stops an active session and starts otherwise.
func (s *Session) Toggle(ctx context.Context) error {
	if s.Status().Active() {
		s.Stop()
		return nil
	}
	return s.Start(ctx)
}

// Start acquires the microphone and speaker, then dials the remote channel in
// the background. It does nothing when no language is selected or a session
// is already active.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.language == "" {
		s.mu.Unlock()
		s.logger.Debug("start ignored: no language selected", "sessionID", s.id)
		return nil
	}
	if s.status.Active() {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.setStatusLocked(StatusConnecting)
	s.mu.Unlock()

	s.metrics.SessionStarted()

	// The microphone must be held before the channel is dialed so the first
	// captured frame is never lost to the open race.
	micErr := s.capture.Open()
	var out playback.Output
	var outErr error
	if micErr == nil {
		out, outErr = s.openOutput()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		// stopped while acquiring devices
		if out != nil {
			s.closeOutput(out)
		}
		if !s.status.Active() {
			s.stopCapture()
		}
		return nil
	}

	if micErr != nil {
		s.logger.Error("failed to start microphone", "sessionID", s.id, "error", micErr)
		s.failLocked(micErr)
		return micErr
	}
	if outErr != nil {
		err := fmt.Errorf("%w: %v", ErrOutput, outErr)
		s.logger.Error("failed to open audio output", "sessionID", s.id, "error", err)
		s.failLocked(err)
		return err
	}

	s.scheduler.Attach(out)

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn := &connection{
		id:       uuid.NewString(),
		session:  s,
		ctx:      connCtx,
		cancel:   cancel,
		outbound: make(chan audio.Blob, outboundQueue),
	}
	s.conn = conn

	cfg := ConnectConfig{
		Model:               s.cfg.Model,
		SystemInstruction:   RenderInstruction(s.cfg.InstructionTemplate, s.language),
		ResponseModalities:  []string{"AUDIO"},
		InputTranscription:  true,
		OutputTranscription: true,
		InputSampleRate:     s.cfg.Capture.SampleRate,
	}
	s.logger.Info("connecting", "sessionID", s.id, "connectionID", conn.id, "dialer", s.dialer.Name(), "language", s.language)

	go s.dial(conn, cfg)
	return nil
}

func (s *Session) dial(conn *connection, cfg ConnectConfig) {
	ch, err := s.dialer.Dial(conn.ctx, cfg, conn)

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		if ch != nil {
			s.closeChannel(ch)
		}
		return
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrConnect, err)
		s.logger.Error("failed to connect", "sessionID", s.id, "connectionID", conn.id, "error", err)
		s.failLocked(err)
		s.mu.Unlock()
		return
	}
	conn.channel = ch
	go conn.pump(s.logger)
	s.listenLocked(conn)
	s.mu.Unlock()
}

// listenLocked starts capture once the channel is both open and stored, in
// whichever order the dial and the open callback complete. Capture only
// produces frames after the connection is ready to accept them.
func (s *Session) listenLocked(conn *connection) {
	if !conn.opened || conn.channel == nil || conn.ready.Load() {
		return
	}
	if s.status == StatusConnecting {
		s.setStatusLocked(StatusListening)
	}
	conn.ready.Store(true)
	if err := s.capture.Activate(conn.offer); err != nil {
		s.logger.Error("failed to activate capture", "sessionID", s.id, "error", err)
		s.failLocked(fmt.Errorf("%w: %v", ErrPermission, err))
	}
}

// Stop ends the session from any state and returns to Idle. It is safe to
// call repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	s.gen++
	conn := s.teardownLocked()
	s.setStatusLocked(StatusIdle)
	s.mu.Unlock()

	if conn != nil && conn.channel != nil {
		s.closeChannel(conn.channel)
	}
}

// Close stops the session and closes the events channel.
func (s *Session) Close() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// teardownLocked releases capture, playback and the current connection. The
// returned connection's channel still has to be closed outside the lock.
func (s *Session) teardownLocked() *connection {
	s.stopCapture()
	if out := s.scheduler.Detach(); out != nil {
		s.closeOutput(out)
	}

	conn := s.conn
	s.conn = nil
	if conn != nil {
		conn.ready.Store(false)
		conn.cancel()
	}
	return conn
}

// failLocked moves to Error and tears everything down. The channel is closed
// asynchronously because failures are often reported from inside a channel
// callback.
func (s *Session) failLocked(err error) {
	s.setStatusLocked(StatusError)
	s.emitLocked(ErrorEvent, err.Error())
	conn := s.teardownLocked()
	if conn != nil && conn.channel != nil {
		go s.closeChannel(conn.channel)
	}
}

func (s *Session) stopCapture() {
	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("failed to release microphone", "sessionID", s.id, "error", err)
	}
}

func (s *Session) closeOutput(out playback.Output) {
	if err := out.Close(); err != nil {
		s.logger.Warn("failed to close audio output", "sessionID", s.id, "error", err)
	}
}

func (s *Session) closeChannel(ch Channel) {
	if err := ch.Close(); err != nil {
		s.logger.Warn("error closing channel", "sessionID", s.id, "error", err)
	}
}

func (s *Session) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	prev := s.status
	s.status = status
	s.metrics.StatusChanged(prev, status)
	s.logger.Debug("status changed", "sessionID", s.id, "from", prev, "to", status)
	s.emitLocked(StatusChanged, status)
}

func (s *Session) emitLocked(eventType EventType, data interface{}) {
	if s.closed {
		return
	}
	select {
	case s.events <- Event{Type: eventType, SessionID: s.id, Data: data}:
	default:
		s.logger.Warn("event dropped, consumer too slow", "sessionID", s.id, "type", eventType)
	}
}

func (s *Session) onOpen(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}
	s.logger.Info("channel open", "sessionID", s.id, "connectionID", conn.id)
	conn.opened = true
	s.listenLocked(conn)
}

func (s *Session) onMessage(conn *connection, msg ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}

	if msg.InputTranscription != "" {
		s.transcript.AppendInput(msg.InputTranscription)
		s.emitLocked(InputTranscript, msg.InputTranscription)
	}
	if msg.OutputTranscription != "" {
		s.transcript.AppendOutput(msg.OutputTranscription)
		s.emitLocked(OutputTranscript, msg.OutputTranscription)
		if s.status == StatusListening {
			s.setStatusLocked(StatusSpeaking)
		}
	}
	if msg.Interrupted {
		s.logger.Debug("model interrupted, cancelling playback", "sessionID", s.id)
		s.scheduler.Cancel()
		if s.status == StatusSpeaking {
			s.setStatusLocked(StatusListening)
		}
	}
	if msg.Audio != nil {
		s.playLocked(*msg.Audio)
	}
	if msg.TurnComplete {
		if turn, ok := s.transcript.Finalize(); ok {
			s.metrics.TurnFinalized()
			s.emitLocked(TurnFinalized, turn)
		}
	}
}

func (s *Session) playLocked(blob audio.Blob) {
	buf, err := audio.DecodeBlob(blob, s.cfg.OutputSampleRate, s.cfg.OutputChannels)
	if err != nil {
		// one bad payload is not worth ending the conversation over
		s.metrics.DecodeFailed()
		s.logger.Warn("dropping undecodable audio payload", "sessionID", s.id, "error", err)
		s.emitLocked(DecodeFailed, err.Error())
		return
	}
	if _, err := s.scheduler.Schedule(buf); err != nil {
		s.logger.Warn("failed to schedule audio", "sessionID", s.id, "error", err)
	}
}

func (s *Session) onError(conn *connection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}
	err = fmt.Errorf("%w: %v", ErrChannel, err)
	s.logger.Error("session error", "sessionID", s.id, "connectionID", conn.id, "error", err)
	s.failLocked(err)
}

func (s *Session) onClose(conn *connection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}
	s.logger.Info("channel closed", "sessionID", s.id, "connectionID", conn.id, "reason", err)
	closed := s.teardownLocked()
	if closed != nil && closed.channel != nil {
		go s.closeChannel(closed.channel)
	}
}

func (s *Session) onPlaybackDrained() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSpeaking && s.scheduler.InFlight() == 0 {
		s.setStatusLocked(StatusListening)
	}
}

// offer is the capture sink. It runs on the audio thread and never blocks:
// frames are dropped while the channel is not ready or the writer is behind.
func (c *connection) offer(blob audio.Blob) bool {
	if !c.ready.Load() {
		c.session.metrics.FrameDropped()
		return false
	}
	select {
	case c.outbound <- blob:
		c.session.metrics.FrameSent()
		return true
	default:
		c.session.metrics.FrameDropped()
		return false
	}
}

func (c *connection) pump(logger Logger) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case blob := <-c.outbound:
			if err := c.channel.SendAudio(c.ctx, blob); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				logger.Debug("failed to send audio frame", "connectionID", c.id, "error", err)
			}
		}
	}
}

func (c *connection) OnOpen()                     { c.session.onOpen(c) }
func (c *connection) OnMessage(msg ServerMessage) { c.session.onMessage(c, msg) }
func (c *connection) OnError(err error)           { c.session.onError(c, err) }
func (c *connection) OnClose(err error)           { c.session.onClose(c, err) }
