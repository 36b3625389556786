package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kestrel-ops/kestrel/core/metrics"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	fams, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, f := range fams {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	recs := []coremetrics.AssignmentRecord{
		{MissionID: "m1", UnitID: "u1", AlertID: "a1", Priority: "high", Cost: 0.4, At: time.Now()},
		{MissionID: "m2", UnitID: "u2", AlertID: "a2", Priority: "low", Cost: 0.9, At: time.Now()},
	}
	if err := sink.RecordAssignments(recs); err != nil {
		t.Fatalf("record assignments: %v", err)
	}
	if got := gatherValue(t, reg, "mission_assignments_total"); got != 2 {
		t.Fatalf("assignments total %v, want 2", got)
	}

	out := coremetrics.MissionOutcome{
		MissionID: "m1", UnitID: "u1", AlertID: "a1",
		Status: "completed", Reason: "target_confirmed",
		Duration: 3 * time.Minute, At: time.Now(),
	}
	if err := sink.RecordMissionOutcome(out); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if got := gatherValue(t, reg, "mission_outcomes_total"); got != 1 {
		t.Fatalf("outcomes total %v, want 1", got)
	}

	fs, ok := sink.(coremetrics.FleetSizeRecorder)
	if !ok {
		t.Fatalf("prom sink must record fleet size")
	}
	if err := fs.RecordFleetSize(7); err != nil {
		t.Fatalf("record fleet size: %v", err)
	}
	if got := gatherValue(t, reg, "fleet_units_total"); got != 7 {
		t.Fatalf("fleet gauge %v, want 7", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration must reuse collectors: %v", err)
	}
}

type failSink struct{ err error }

func (f failSink) RecordAssignments([]coremetrics.AssignmentRecord) error { return f.err }
func (f failSink) RecordMissionOutcome(coremetrics.MissionOutcome) error  { return f.err }

func TestMultiSinkForwardsAndJoinsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	multi := NewMultiSink(prom, coremetrics.NopSink{})
	if err := multi.RecordAssignments([]coremetrics.AssignmentRecord{{UnitID: "u1", Priority: "high"}}); err != nil {
		t.Fatalf("multi record: %v", err)
	}
	if got := gatherValue(t, reg, "mission_assignments_total"); got != 1 {
		t.Fatalf("assignments total %v, want 1", got)
	}

	boom := errors.New("sink down")
	failing := NewMultiSink(failSink{err: boom}, coremetrics.NopSink{})
	if err := failing.RecordAssignments(nil); !errors.Is(err, boom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if err := failing.RecordMissionOutcome(coremetrics.MissionOutcome{}); !errors.Is(err, boom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
}
