package observability

import (
	"time"

	"github.com/lokutor-ai/lingua-voice/pkg/live"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var statuses = []live.Status{
	live.StatusIdle,
	live.StatusConnecting,
	live.StatusListening,
	live.StatusSpeaking,
	live.StatusError,
}

// Metrics records session counters in Prometheus.
type Metrics struct {
	sessions     prometheus.Counter
	transitions  *prometheus.CounterVec
	status       *prometheus.GaugeVec
	frames       *prometheus.CounterVec
	scheduled    prometheus.Counter
	audioSeconds prometheus.Counter
	lead         prometheus.Histogram
	decodeErrors prometheus.Counter
	turns        prometheus.Counter
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "tutor_sessions_started_total",
			Help: "Total number of sessions started",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_status_transitions_total",
			Help: "Session status transitions",
		}, []string{"from", "to"}),
		status: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tutor_status",
			Help: "Current session status (1 for the active status)",
		}, []string{"status"}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_capture_frames_total",
			Help: "Captured microphone frames by outcome",
		}, []string{"outcome"}), // outcome: "sent" or "dropped"
		scheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "tutor_playback_units_total",
			Help: "Audio units scheduled for playback",
		}),
		audioSeconds: f.NewCounter(prometheus.CounterOpts{
			Name: "tutor_playback_audio_seconds_total",
			Help: "Seconds of tutor audio scheduled",
		}),
		lead: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tutor_playback_lead_seconds",
			Help:    "How far ahead of the output clock each unit was scheduled",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tutor_decode_errors_total",
			Help: "Inbound audio payloads that could not be decoded",
		}),
		turns: f.NewCounter(prometheus.CounterOpts{
			Name: "tutor_turns_total",
			Help: "Finalized conversation turns",
		}),
	}
	m.setStatus(live.StatusIdle)
	return m
}

func (m *Metrics) SessionStarted() {
	m.sessions.Inc()
}

func (m *Metrics) StatusChanged(from, to live.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
	m.setStatus(to)
}

func (m *Metrics) setStatus(current live.Status) {
	for _, s := range statuses {
		v := 0.0
		if s == current {
			v = 1
		}
		m.status.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) FrameSent() {
	m.frames.WithLabelValues("sent").Inc()
}

func (m *Metrics) FrameDropped() {
	m.frames.WithLabelValues("dropped").Inc()
}

func (m *Metrics) AudioScheduled(duration, lead time.Duration) {
	m.scheduled.Inc()
	m.audioSeconds.Add(duration.Seconds())
	m.lead.Observe(lead.Seconds())
}

func (m *Metrics) DecodeFailed() {
	m.decodeErrors.Inc()
}

func (m *Metrics) TurnFinalized() {
	m.turns.Inc()
}
