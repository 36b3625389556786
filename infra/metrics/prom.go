package metrics

import (
	coremetrics "github.com/kestrel-ops/kestrel/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records engine events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	fleet       prometheus.Gauge
}

// NewPromSink registers engine metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_assignments_total",
		Help: "Total number of committed unit/alert assignments",
	}, []string{"unit_id", "priority"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_outcomes_total",
		Help: "Total number of missions reaching a terminal state",
	}, []string{"status", "reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mission_duration_seconds",
		Help:    "Time from mission creation to terminal state",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	}, []string{"status"})
	fleet := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_units_total",
		Help: "Number of registered units",
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fleet); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fleet = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{assignments: assignments, outcomes: outcomes, duration: duration, fleet: fleet}, nil
}

// RecordAssignments increments the counter for each committed match.
func (s *PromSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.assignments.WithLabelValues(r.UnitID, r.Priority).Inc()
	}
	return nil
}

// RecordMissionOutcome counts the terminal state and observes the duration.
func (s *PromSink) RecordMissionOutcome(out coremetrics.MissionOutcome) error {
	s.outcomes.WithLabelValues(out.Status, out.Reason).Inc()
	s.duration.WithLabelValues(out.Status).Observe(out.Duration.Seconds())
	return nil
}

// RecordFleetSize sets the gauge to the number of registered units.
func (s *PromSink) RecordFleetSize(size int) error {
	if s.fleet != nil {
		s.fleet.Set(float64(size))
	}
	return nil
}
