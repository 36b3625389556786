// Package metrics defines the sink interfaces used to record engine
// observability events. Implementations live under infra/metrics.
package metrics

import "time"

// AssignmentRecord represents a committed (unit, alert) match.
type AssignmentRecord struct {
	MissionID string
	UnitID    string
	AlertID   string
	Priority  string
	Cost      float64
	At        time.Time
}

// MissionOutcome represents a mission reaching a terminal state.
type MissionOutcome struct {
	MissionID string
	UnitID    string
	AlertID   string
	Status    string
	Reason    string
	Duration  time.Duration
	At        time.Time
}

// MetricsSink records engine events for observability purposes.
type MetricsSink interface {
	RecordAssignments(recs []AssignmentRecord) error
	RecordMissionOutcome(out MissionOutcome) error
}

// FleetSizeRecorder is implemented by sinks that track the registered fleet.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordAssignments([]AssignmentRecord) error { return nil }
func (NopSink) RecordMissionOutcome(MissionOutcome) error  { return nil }
func (NopSink) RecordFleetSize(int) error                  { return nil }
