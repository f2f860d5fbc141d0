package graph

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for graph
// execution. All metrics are namespaced "tripgraph":
//
//   - inflight_nodes (gauge): nodes currently executing, fan-out branches included.
//   - step_latency_ms (histogram, labels node_id, status): node execution time.
//     status is one of success, error, timeout.
//   - retries_total (counter, labels node_id, reason): retry attempts.
//   - fanout_branches_total (counter, label node_id): branches dispatched by
//     fan-outs, labelled with the node that requested the fan-out.
//   - interrupts_total (counter, label node_id): runs suspended at a node.
//
// Labels deliberately exclude run ids to keep cardinality bounded.
//
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	stepLatency   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	fanoutBranch  *prometheus.CounterVec
	interrupts    *prometheus.CounterVec

	disabled atomic.Bool
}

// NewPrometheusMetrics creates and registers all graph execution metrics
// with the provided registry. A nil registry uses prometheus.DefaultRegisterer.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := NewPrometheusMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tripgraph",
			Name:      "inflight_nodes",
			Help:      "Current number of nodes executing, fan-out branches included",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripgraph",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "retries_total",
			Help:      "Cumulative count of node retry attempts",
		}, []string{"node_id", "reason"}),
		fanoutBranch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "fanout_branches_total",
			Help:      "Branches dispatched by fan-outs",
		}, []string{"node_id"}),
		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgraph",
			Name:      "interrupts_total",
			Help:      "Runs suspended at an interrupt",
		}, []string{"node_id"}),
	}
}

func (pm *PrometheusMetrics) active() bool {
	return pm != nil && !pm.disabled.Load()
}

// RecordStepLatency records the execution duration of a node.
// status is one of "success", "error", "timeout".
func (pm *PrometheusMetrics) RecordStepLatency(nodeID string, latency time.Duration, status string) {
	if !pm.active() {
		return
	}
	pm.stepLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries increments the retry counter for a node.
// reason is one of "error", "timeout".
func (pm *PrometheusMetrics) IncrementRetries(nodeID, reason string) {
	if !pm.active() {
		return
	}
	pm.retries.WithLabelValues(nodeID, reason).Inc()
}

// RecordFanOut counts the branches dispatched by one fan-out.
func (pm *PrometheusMetrics) RecordFanOut(fromNode string, branches int) {
	if !pm.active() {
		return
	}
	pm.fanoutBranch.WithLabelValues(fromNode).Add(float64(branches))
}

// IncrementInterrupts counts a run suspended at nodeID.
func (pm *PrometheusMetrics) IncrementInterrupts(nodeID string) {
	if !pm.active() {
		return
	}
	pm.interrupts.WithLabelValues(nodeID).Inc()
}

func (pm *PrometheusMetrics) nodeStarted() {
	if pm.active() {
		pm.inflightNodes.Inc()
	}
}

func (pm *PrometheusMetrics) nodeFinished() {
	if pm.active() {
		pm.inflightNodes.Dec()
	}
}

// Disable stops metric recording. Useful in tests.
func (pm *PrometheusMetrics) Disable() {
	pm.disabled.Store(true)
}

// Enable resumes metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.disabled.Store(false)
}
