package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts session lifecycle events. All metrics are namespaced
// "tripgraph":
//
//   - sessions_started_total (counter): Start calls that passed validation and entered the workflow.
//   - responses_total (counter, labels operation, status): responses returned.
//   - session_conflicts_total (counter): resumes rejected by a concurrent one.
//   - sessions_expired_total (counter): resumes of unknown or expired sessions.
//   - sessions_swept_total (counter): sessions removed by Cleanup.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	started   prometheus.Counter
	responses *prometheus.CounterVec
	conflicts prometheus.Counter
	expired   prometheus.Counter
	swept     prometheus.Counter
}

// NewMetrics creates and registers the service metrics. A nil registry uses
// prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Metrics{
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "sessions_started_total",
			Help:      "Sessions that entered the workflow",
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "responses_total",
			Help:      "Responses returned by operation and status",
		}, []string{"operation", "status"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "session_conflicts_total",
			Help:      "Resumes rejected because another resume of the session was in progress",
		}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "sessions_expired_total",
			Help:      "Resumes of unknown or expired sessions",
		}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "sessions_swept_total",
			Help:      "Sessions removed by cleanup",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.started.Inc()
	}
}

func (m *Metrics) responded(op string, status Status) {
	if m != nil {
		m.responses.WithLabelValues(op, string(status)).Inc()
	}
}

func (m *Metrics) conflict() {
	if m != nil {
		m.conflicts.Inc()
	}
}

func (m *Metrics) sessionExpired() {
	if m != nil {
		m.expired.Inc()
	}
}

func (m *Metrics) sessionsSwept(n int) {
	if m != nil && n > 0 {
		m.swept.Add(float64(n))
	}
}
