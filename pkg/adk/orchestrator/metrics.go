package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the turn loop collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	retries      *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	streamEvents *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_runs_total",
			Help: "Finished runs by terminal state.",
		}, []string{"state"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_run_retries_total",
			Help: "Request retries by failure reason.",
		}, []string{"reason"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_tool_calls_total",
			Help: "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentdesk_run_duration_seconds",
			Help:    "Wall time of finished runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		streamEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_stream_events_total",
			Help: "Transport stream events by type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) runFinished(state State, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(state)).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) retry(reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(reason).Inc()
}

func (m *Metrics) toolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) streamEvent(typ string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(typ).Inc()
}
