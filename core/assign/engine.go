// Package assign matches pending alerts to available units. Each sweep pops
// the highest-priority eligible alert, scores every dispatchable unit with the
// cost evaluator and commits the cheapest candidate through a fleet CAS so two
// concurrent sweeps can never double-book a unit.
package assign

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-ops/kestrel/core/cost"
	"github.com/kestrel-ops/kestrel/core/events"
	"github.com/kestrel-ops/kestrel/core/fleet"
	"github.com/kestrel-ops/kestrel/core/intake"
	"github.com/kestrel-ops/kestrel/core/logger"
	coremetrics "github.com/kestrel-ops/kestrel/core/metrics"
	"github.com/kestrel-ops/kestrel/core/model"
	"github.com/kestrel-ops/kestrel/internal/eventbus"
)

// RiskFunc scores the hazard of sending the unit to the alert, in [0,1].
type RiskFunc func(model.Unit, model.Alert) float64

// MissionStarter receives committed missions, typically the mission manager.
// A returned error rolls the assignment back.
type MissionStarter interface {
	Start(m model.Mission, a model.Alert) error
}

// Config defines the cost weights used by the engine.
type Config struct {
	Alpha      float64 `json:"alpha"`
	Beta       float64 `json:"beta"`
	Gamma      float64 `json:"gamma"`
	MinBattery float64 `json:"min_battery"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Alpha == 0 {
		c.Alpha = 1
	}
	if c.Beta == 0 {
		c.Beta = 0.5
	}
	if c.Gamma == 0 {
		c.Gamma = 0.5
	}
	if c.MinBattery == 0 {
		c.MinBattery = 0.2
	}
}

// Engine drives alert-to-unit assignment sweeps.
type Engine struct {
	eval    cost.Evaluator
	queue   *intake.Queue
	fleet   *fleet.Registry
	starter MissionStarter
	bus     *eventbus.Bus
	sink    coremetrics.MetricsSink
	risk    RiskFunc
	log     logger.Logger
}

// NewEngine creates an assignment engine. A nil risk function scores every
// pair as zero risk; a nil sink discards records.
func NewEngine(cfg Config, q *intake.Queue, reg *fleet.Registry, starter MissionStarter, bus *eventbus.Bus, sink coremetrics.MetricsSink, risk RiskFunc, log logger.Logger) *Engine {
	cfg.SetDefaults()
	if risk == nil {
		risk = func(model.Unit, model.Alert) float64 { return 0 }
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Engine{
		eval:    cost.Evaluator{Alpha: cfg.Alpha, Beta: cfg.Beta, Gamma: cfg.Gamma, MinBattery: cfg.MinBattery},
		queue:   q,
		fleet:   reg,
		starter: starter,
		bus:     bus,
		sink:    sink,
		risk:    risk,
		log:     log,
	}
}

type candidate struct {
	unit model.Unit
	cost float64
}

// Sweep expires stale alerts, then assigns every eligible queued alert to the
// cheapest available unit. Alerts with no eligible unit are requeued with
// backoff; alerts past their maximum age are dropped as expired.
func (e *Engine) Sweep(now time.Time) {
	for _, a := range e.queue.ExpireStale(now) {
		e.expire(a)
	}

	for {
		entry, ok := e.queue.Pop(now)
		if !ok {
			break
		}
		e.dispatch(entry, now)
	}
	queueDepth.Set(float64(e.queue.Len()))
}

func (e *Engine) dispatch(entry intake.Entry, now time.Time) {
	alert := entry.Alert
	idle := e.fleet.Idle()
	cands := make([]candidate, 0, len(idle))
	for _, u := range idle {
		c, ok := e.eval.Evaluate(u, alert, e.risk(u, alert))
		if !ok {
			continue
		}
		cands = append(cands, candidate{unit: u, cost: c})
	}
	// Idle returns units sorted by id, so a stable sort keeps the
	// lexicographically smallest id first among equal costs.
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].cost < cands[j].cost })

	for _, cand := range cands {
		if err := e.fleet.Transition(cand.unit.ID, model.UnitIdle, model.UnitAssigned); err != nil {
			continue
		}
		m := model.Mission{
			ID:        uuid.NewString(),
			UnitID:    cand.unit.ID,
			AlertID:   alert.ID,
			Status:    model.MissionAssigned,
			Cost:      cand.cost,
			CreatedAt: now,
		}
		alert.Status = model.AlertAssigned
		if err := e.starter.Start(m, alert); err != nil {
			e.log.Errorf("mission start for alert %s on unit %s failed: %v", alert.ID, cand.unit.ID, err)
			if rbErr := e.fleet.Transition(cand.unit.ID, model.UnitAssigned, model.UnitIdle); rbErr != nil {
				e.log.Errorf("rollback of unit %s failed: %v", cand.unit.ID, rbErr)
			}
			continue
		}
		e.commit(m, alert, now)
		return
	}
	e.miss(entry, now)
}

func (e *Engine) commit(m model.Mission, alert model.Alert, now time.Time) {
	e.log.Infof("assigned alert %s to unit %s (mission %s, cost %.4f)", alert.ID, m.UnitID, m.ID, m.Cost)
	alertsAssigned.WithLabelValues(alert.Priority.String()).Inc()
	assignmentLatency.WithLabelValues(alert.Priority.String()).Observe(now.Sub(alert.CreatedAt).Seconds())
	if e.bus != nil {
		e.bus.Publish(events.AssignmentEvent{
			MissionID: m.ID,
			UnitID:    m.UnitID,
			AlertID:   alert.ID,
			Cost:      m.Cost,
			At:        now,
		})
	}
	rec := coremetrics.AssignmentRecord{
		MissionID: m.ID,
		UnitID:    m.UnitID,
		AlertID:   alert.ID,
		Priority:  alert.Priority.String(),
		Cost:      m.Cost,
		At:        now,
	}
	if err := e.sink.RecordAssignments([]coremetrics.AssignmentRecord{rec}); err != nil {
		e.log.Errorf("record assignment: %v", err)
	}
}

func (e *Engine) miss(entry intake.Entry, now time.Time) {
	if !e.queue.Requeue(entry, now) {
		a := entry.Alert
		a.Status = model.AlertExpired
		e.expire(a)
		return
	}
	assignmentFailures.Inc()
	e.log.Warnf("no eligible unit for alert %s (attempt %d), requeued", entry.Alert.ID, entry.Attempts+1)
	if e.bus != nil {
		e.bus.Publish(events.AssignmentFailureEvent{
			AlertID:  entry.Alert.ID,
			Attempts: entry.Attempts + 1,
			At:       now,
		})
	}
}

func (e *Engine) expire(a model.Alert) {
	alertsExpired.Inc()
	e.log.Warnf("alert %s expired unassigned", a.ID)
	if e.bus != nil {
		e.bus.Publish(events.AlertEvent{Alert: a})
	}
}
