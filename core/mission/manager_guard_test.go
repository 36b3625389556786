package mission

import (
	"testing"
	"time"

	"github.com/kestrel-ops/kestrel/core/model"
	"github.com/kestrel-ops/kestrel/core/track"
)

func TestUnitCannotCarryTwoMissions(t *testing.T) {
	now := time.Now()
	f := newFixture(t, Config{}, track.Config{})
	m, a := testMission(now)
	if err := f.mgr.Start(m, a); err != nil {
		t.Fatalf("start: %v", err)
	}

	m2 := m
	m2.ID = "m2"
	m2.AlertID = "a2"
	a2 := a
	a2.ID = "a2"
	if err := f.mgr.Start(m2, a2); err == nil {
		t.Fatalf("second mission on a busy unit must be rejected")
	}
	if got := f.mgr.List(); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("active missions %+v, want only m1", got)
	}
}

func TestFinalizedUnitAcceptsNewMission(t *testing.T) {
	now := time.Now()
	f := newFixture(t, Config{}, track.Config{})
	m, a := testMission(now)
	if err := f.mgr.Start(m, a); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.mgr.HandleTelemetry(telemetry(alertPos, 0.8, now), now)
	if err := f.mgr.ResolveDetection("m1", true, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// idle again: re-arm the assignment precondition before the next mission
	if err := f.reg.Transition("u1", model.UnitIdle, model.UnitAssigned); err != nil {
		t.Fatalf("transition: %v", err)
	}
	m2 := m
	m2.ID = "m2"
	if err := f.mgr.Start(m2, a); err != nil {
		t.Fatalf("restart after terminal state: %v", err)
	}
}
