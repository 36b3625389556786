package assign

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrel-ops/kestrel/core/events"
	"github.com/kestrel-ops/kestrel/core/fleet"
	"github.com/kestrel-ops/kestrel/core/intake"
	"github.com/kestrel-ops/kestrel/core/model"
	"github.com/kestrel-ops/kestrel/core/track"
	"github.com/kestrel-ops/kestrel/infra/logger"
	"github.com/kestrel-ops/kestrel/internal/eventbus"
)

type fakeStarter struct {
	mu       sync.Mutex
	missions []model.Mission
	alerts   []model.Alert
	failFor  map[string]bool
}

func (f *fakeStarter) Start(m model.Mission, a model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[m.UnitID] {
		return fmt.Errorf("start rejected")
	}
	f.missions = append(f.missions, m)
	f.alerts = append(f.alerts, a)
	return nil
}

func newTestFleet(t *testing.T, units ...model.Unit) *fleet.Registry {
	t.Helper()
	reg := fleet.NewRegistry(track.Config{}, logger.NopLogger{})
	for _, u := range units {
		if err := reg.Register(u); err != nil {
			t.Fatalf("register %s: %v", u.ID, err)
		}
	}
	return reg
}

func testUnit(id string, lat, lon, battery float64) model.Unit {
	pos := model.Position{Lat: lat, Lon: lon}
	return model.Unit{
		ID:       id,
		Home:     pos,
		Position: pos,
		Battery:  battery,
		Status:   model.UnitIdle,
		Caps:     model.Capabilities{CruiseSpeedMS: 15},
	}
}

func testAlert(id string, lat, lon float64, p model.AlertPriority, created time.Time) model.Alert {
	return model.Alert{
		ID:         id,
		Lat:        lat,
		Lon:        lon,
		Priority:   p,
		Confidence: 0.9,
		Status:     model.AlertPending,
		CreatedAt:  created,
	}
}

func TestSweepPicksCheapestEligibleUnit(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	now := time.Now()
	// u-far is distant but healthy; u-near is close but below minimum battery.
	reg := newTestFleet(t,
		testUnit("u-far", 48.90, 2.35, 0.80),
		testUnit("u-near", 48.8501, 2.35, 0.15),
	)
	q := intake.New(intake.Config{})
	q.Push(testAlert("a1", 48.85, 2.35, model.PriorityHigh, now))

	starter := &fakeStarter{}
	e := NewEngine(Config{MinBattery: 0.2}, q, reg, starter, nil, nil, nil, logger.NopLogger{})
	e.Sweep(now)

	if len(starter.missions) != 1 {
		t.Fatalf("expected 1 mission, got %d", len(starter.missions))
	}
	m := starter.missions[0]
	if m.UnitID != "u-far" {
		t.Fatalf("expected disqualified u-near to be skipped, got %s", m.UnitID)
	}
	if m.Status != model.MissionAssigned || m.AlertID != "a1" {
		t.Fatalf("unexpected mission %+v", m)
	}
	u, _ := reg.Snapshot("u-far")
	if u.Status != model.UnitAssigned {
		t.Fatalf("winner not committed, status %s", u.Status)
	}
	if starter.alerts[0].Status != model.AlertAssigned {
		t.Fatalf("alert status not updated")
	}
}

func TestSweepTieBreaksByUnitID(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	now := time.Now()
	// identical position, battery and speed: identical cost.
	reg := newTestFleet(t,
		testUnit("u-b", 48.86, 2.35, 0.9),
		testUnit("u-a", 48.86, 2.35, 0.9),
		testUnit("u-c", 48.86, 2.35, 0.9),
	)
	q := intake.New(intake.Config{})
	q.Push(testAlert("a1", 48.85, 2.35, model.PriorityMedium, now))

	starter := &fakeStarter{}
	e := NewEngine(Config{}, q, reg, starter, nil, nil, nil, logger.NopLogger{})
	e.Sweep(now)

	if len(starter.missions) != 1 || starter.missions[0].UnitID != "u-a" {
		t.Fatalf("expected u-a to win the tie, got %+v", starter.missions)
	}
}

func TestSweepPriorityOrderAndBackoff(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	now := time.Now()
	reg := newTestFleet(t, testUnit("u1", 48.86, 2.35, 0.9))
	q := intake.New(intake.Config{BaseBackoff: time.Second})
	q.Push(testAlert("a-low", 48.85, 2.35, model.PriorityLow, now.Add(-time.Minute)))
	q.Push(testAlert("a-high", 48.85, 2.35, model.PriorityHigh, now))

	starter := &fakeStarter{}
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	e := NewEngine(Config{}, q, reg, starter, bus, nil, nil, logger.NopLogger{})
	e.Sweep(now)

	// single unit: high priority wins, low priority is requeued with backoff.
	if len(starter.missions) != 1 || starter.missions[0].AlertID != "a-high" {
		t.Fatalf("expected a-high assigned first, got %+v", starter.missions)
	}
	if q.Len() != 1 {
		t.Fatalf("expected a-low requeued, queue len %d", q.Len())
	}

	var sawFailure bool
	deadline := time.After(time.Second)
	for !sawFailure {
		select {
		case ev := <-sub:
			if f, ok := ev.(events.AssignmentFailureEvent); ok {
				if f.AlertID != "a-low" || f.Attempts != 1 {
					t.Fatalf("unexpected failure event %+v", f)
				}
				sawFailure = true
			}
		case <-deadline:
			t.Fatalf("no assignment failure event published")
		}
	}
}

func TestSweepExpiresOldAlerts(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	now := time.Now()
	q := intake.New(intake.Config{MaxAge: time.Minute})
	q.Push(testAlert("a-old", 48.85, 2.35, model.PriorityHigh, now.Add(-2*time.Minute)))

	reg := newTestFleet(t)
	starter := &fakeStarter{}
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	e := NewEngine(Config{}, q, reg, starter, bus, nil, nil, logger.NopLogger{})
	e.Sweep(now)

	if len(starter.missions) != 0 {
		t.Fatalf("expired alert must not be assigned")
	}
	if q.Len() != 0 {
		t.Fatalf("expired alert must leave the queue")
	}
	select {
	case ev := <-sub:
		ae, ok := ev.(events.AlertEvent)
		if !ok || ae.Alert.ID != "a-old" || ae.Alert.Status != model.AlertExpired {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no expiry event published")
	}
}

func TestSweepRollsBackWhenStartFails(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	now := time.Now()
	reg := newTestFleet(t,
		testUnit("u-a", 48.86, 2.35, 0.9),
		testUnit("u-b", 48.87, 2.35, 0.9),
	)
	q := intake.New(intake.Config{})
	q.Push(testAlert("a1", 48.85, 2.35, model.PriorityHigh, now))

	starter := &fakeStarter{failFor: map[string]bool{"u-a": true}}
	e := NewEngine(Config{}, q, reg, starter, nil, nil, nil, logger.NopLogger{})
	e.Sweep(now)

	// u-a is cheaper but its start fails; u-b takes the mission and u-a is
	// released back to idle.
	if len(starter.missions) != 1 || starter.missions[0].UnitID != "u-b" {
		t.Fatalf("expected fallback to u-b, got %+v", starter.missions)
	}
	ua, _ := reg.Snapshot("u-a")
	if ua.Status != model.UnitIdle {
		t.Fatalf("u-a not rolled back, status %s", ua.Status)
	}
}

func TestSweepUsesRiskFunc(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	now := time.Now()
	reg := newTestFleet(t,
		testUnit("u-a", 48.86, 2.35, 0.9),
		testUnit("u-b", 48.86, 2.35, 0.9),
	)
	q := intake.New(intake.Config{})
	q.Push(testAlert("a1", 48.85, 2.35, model.PriorityHigh, now))

	risk := func(u model.Unit, _ model.Alert) float64 {
		if u.ID == "u-a" {
			return 1
		}
		return 0
	}
	starter := &fakeStarter{}
	e := NewEngine(Config{}, q, reg, starter, nil, nil, risk, logger.NopLogger{})
	e.Sweep(now)

	if len(starter.missions) != 1 || starter.missions[0].UnitID != "u-b" {
		t.Fatalf("risk penalty ignored, got %+v", starter.missions)
	}
}
