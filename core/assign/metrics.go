package assign

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentLatency  *prometheus.HistogramVec
	alertsAssigned     *prometheus.CounterVec
	alertsExpired      prometheus.Counter
	assignmentFailures prometheus.Counter
	queueDepth         prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assignment_latency_seconds",
			Help:    "Time between alert creation and unit assignment",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"priority"},
	)
	assigned := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_assigned_total",
			Help: "Number of alerts matched to a unit",
		},
		[]string{"priority"},
	)
	expired := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_expired_total",
			Help: "Number of alerts dropped after exceeding their maximum age",
		},
	)
	failures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_failures_total",
			Help: "Number of sweeps that found no eligible unit for an alert",
		},
	)
	depth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alert_queue_depth",
			Help: "Number of alerts waiting in the intake queue",
		},
	)
	return lat, assigned, expired, failures, depth
}

func init() {
	assignmentLatency, alertsAssigned, alertsExpired, assignmentFailures, queueDepth = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers assignment metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentLatency, alertsAssigned, alertsExpired, assignmentFailures, queueDepth)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentLatency, alertsAssigned, alertsExpired, assignmentFailures, queueDepth = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
