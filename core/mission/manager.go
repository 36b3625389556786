// Package mission runs the lifecycle state machine for every active mission.
// The manager reacts to scheduler events: it plans the dispatch route when a
// mission starts, watches telemetry for arrival and battery interrupts, turns
// detection results into terminal states and enforces timeouts on each tick.
package mission

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kestrel-ops/kestrel/core/coverage"
	"github.com/kestrel-ops/kestrel/core/events"
	"github.com/kestrel-ops/kestrel/core/fleet"
	"github.com/kestrel-ops/kestrel/core/intake"
	"github.com/kestrel-ops/kestrel/core/logger"
	coremetrics "github.com/kestrel-ops/kestrel/core/metrics"
	"github.com/kestrel-ops/kestrel/core/model"
	coremqtt "github.com/kestrel-ops/kestrel/core/mqtt"
	"github.com/kestrel-ops/kestrel/core/planner"
	"github.com/kestrel-ops/kestrel/internal/eventbus"
)

// Config defines mission lifecycle thresholds.
type Config struct {
	// ArrivalRadiusM is the distance at which an enroute unit counts as onsite.
	ArrivalRadiusM float64 `json:"arrival_radius_m"`
	// BatteryCritical interrupts an active mission and forces return to base.
	BatteryCritical float64 `json:"battery_critical"`
	// BatteryRecovered is the charge at which a charging unit goes idle again.
	BatteryRecovered float64 `json:"battery_recovered"`
	// OnsiteTimeout fails missions that investigate for too long.
	OnsiteTimeout time.Duration `json:"onsite_timeout"`
	// AckTimeout bounds how long dispatched commands wait for a unit ack.
	AckTimeout time.Duration `json:"ack_timeout"`
	// SurveyRadiusM is the half-extent of the square searched around an alert.
	SurveyRadiusM float64 `json:"survey_radius_m"`
	// SurveySpacingM is the pass spacing of the investigation pattern.
	SurveySpacingM float64 `json:"survey_spacing_m"`
	// Pattern selects the investigation geometry.
	Pattern coverage.PatternKind `json:"pattern"`
	// Coverage holds shared pattern-generation parameters.
	Coverage coverage.Config `json:"coverage"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ArrivalRadiusM <= 0 {
		c.ArrivalRadiusM = 50
	}
	if c.BatteryCritical <= 0 {
		c.BatteryCritical = 0.15
	}
	if c.BatteryRecovered <= 0 {
		c.BatteryRecovered = 0.7
	}
	if c.OnsiteTimeout <= 0 {
		c.OnsiteTimeout = 10 * time.Minute
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.SurveyRadiusM <= 0 {
		c.SurveyRadiusM = 150
	}
	if c.SurveySpacingM <= 0 {
		c.SurveySpacingM = 60
	}
	c.Coverage.SetDefaults()
}

type active struct {
	mission  model.Mission
	alert    model.Alert
	abort    bool
	onsiteAt time.Time
}

// Manager owns all in-flight missions.
type Manager struct {
	cfg   Config
	fleet *fleet.Registry
	plan  *planner.Planner
	queue *intake.Queue
	pub   coremqtt.CommandPublisher
	bus   *eventbus.Bus
	sink  coremetrics.MetricsSink
	log   logger.Logger

	mu     sync.Mutex
	byID   map[string]*active
	byUnit map[string]string
}

// NewManager creates a mission manager. A nil sink discards outcome records.
func NewManager(cfg Config, reg *fleet.Registry, plan *planner.Planner, q *intake.Queue, pub coremqtt.CommandPublisher, bus *eventbus.Bus, sink coremetrics.MetricsSink, log logger.Logger) *Manager {
	cfg.SetDefaults()
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Manager{
		cfg:    cfg,
		fleet:  reg,
		plan:   plan,
		queue:  q,
		pub:    pub,
		bus:    bus,
		sink:   sink,
		log:    log,
		byID:   make(map[string]*active),
		byUnit: make(map[string]string),
	}
}

// Start accepts a freshly committed mission, plans the dispatch route and
// emits the command. An error leaves no trace in the manager; the caller owns
// rolling the unit back.
func (m *Manager) Start(ms model.Mission, a model.Alert) error {
	m.mu.Lock()
	if other, busy := m.byUnit[ms.UnitID]; busy {
		m.mu.Unlock()
		return fmt.Errorf("mission %s: unit %s already bound to mission %s", ms.ID, ms.UnitID, other)
	}
	m.mu.Unlock()

	u, ok := m.fleet.Snapshot(ms.UnitID)
	if !ok {
		return fmt.Errorf("mission %s: unknown unit %s", ms.ID, ms.UnitID)
	}
	wps, err := m.plan.Route(u, a.Position())
	if err != nil {
		return fmt.Errorf("mission %s: route: %w", ms.ID, err)
	}
	ms.Waypoints = wps
	if err := m.sendCommand(ms.ID, ms.UnitID, wps); err != nil {
		return fmt.Errorf("mission %s: dispatch command: %w", ms.ID, err)
	}

	m.transition(&ms, model.MissionEnroute, "dispatched")
	if err := m.fleet.Transition(ms.UnitID, model.UnitAssigned, model.UnitEnroute); err != nil {
		m.log.Errorf("unit %s enroute transition: %v", ms.UnitID, err)
	}

	m.mu.Lock()
	m.byID[ms.ID] = &active{mission: ms, alert: a}
	m.byUnit[ms.UnitID] = ms.ID
	m.mu.Unlock()
	return nil
}

// Abort requests a cooperative abort. The mission is finalized on the next
// telemetry update or tick.
func (m *Manager) Abort(missionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	am, ok := m.byID[missionID]
	if !ok {
		return false
	}
	am.abort = true
	return true
}

// AbortByAlert flags the mission investigating the given alert, if any.
func (m *Manager) AbortByAlert(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, am := range m.byID {
		if am.mission.AlertID == alertID {
			am.abort = true
			return true
		}
	}
	return false
}

// AbortAll flags every active mission for cooperative abort.
func (m *Manager) AbortAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, am := range m.byID {
		am.abort = true
	}
}

// Active returns the mission snapshot currently bound to the unit, if any.
func (m *Manager) Active(unitID string) (model.Mission, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUnit[unitID]
	if !ok {
		return model.Mission{}, false
	}
	return m.byID[id].mission, true
}

// List returns snapshots of all active missions ordered by id.
func (m *Manager) List() []model.Mission {
	m.mu.Lock()
	out := make([]model.Mission, 0, len(m.byID))
	for _, am := range m.byID {
		out = append(out, am.mission)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HandleTelemetry advances the mission bound to the reporting unit: abort
// flags and battery interrupts first, then the arrival check. Units without a
// mission are checked for recovery back to idle.
func (m *Manager) HandleTelemetry(tel model.Telemetry, now time.Time) {
	m.mu.Lock()
	id, ok := m.byUnit[tel.UnitID]
	if !ok {
		m.mu.Unlock()
		m.recoverUnit(tel)
		return
	}
	am := m.byID[id]

	if am.abort {
		m.finalizeLocked(am, model.MissionAborted, "abort_requested", model.UnitIdle, now)
		m.mu.Unlock()
		m.returnToBase(id, tel.UnitID)
		return
	}
	if tel.Battery < m.cfg.BatteryCritical {
		m.finalizeLocked(am, model.MissionAborted, "battery_critical", model.UnitCharging, now)
		m.mu.Unlock()
		m.returnToBase(id, tel.UnitID)
		return
	}

	if am.mission.Status == model.MissionEnroute {
		// Arrival is judged on the filtered track when one exists, so a single
		// noisy fix can neither trigger nor mask it.
		pos := tel.Position()
		if est, ok := m.fleet.Estimate(tel.UnitID, now); ok && !est.Stale {
			pos = est.Position
		}
		dist := model.Haversine(pos, am.alert.Position())
		if dist <= m.cfg.ArrivalRadiusM {
			m.transition(&am.mission, model.MissionOnsite, "arrived")
			am.onsiteAt = now
			if err := m.fleet.Transition(tel.UnitID, model.UnitEnroute, model.UnitOnsite); err != nil {
				m.log.Errorf("unit %s onsite transition: %v", tel.UnitID, err)
			}
			m.beginInvestigationLocked(am, now)
		}
	}
	m.mu.Unlock()
}

// beginInvestigationLocked generates the survey pattern around the alert and
// moves the mission to investigating. Pattern failure fails the mission.
func (m *Manager) beginInvestigationLocked(am *active, now time.Time) {
	wps, err := coverage.Generate(m.cfg.Coverage, coverage.Task{
		Polygon:  surveyPolygon(am.alert.Position(), m.cfg.SurveyRadiusM),
		Pattern:  m.cfg.Pattern,
		SpacingM: m.cfg.SurveySpacingM,
	})
	if err != nil {
		m.log.Errorf("mission %s: survey pattern: %v", am.mission.ID, err)
		m.finalizeLocked(am, model.MissionFailed, "survey_pattern", model.UnitIdle, now)
		return
	}
	if err := m.sendCommand(am.mission.ID, am.mission.UnitID, wps); err != nil {
		m.log.Errorf("mission %s: survey command: %v", am.mission.ID, err)
		m.finalizeLocked(am, model.MissionFailed, "survey_command", model.UnitIdle, now)
		return
	}
	m.transition(&am.mission, model.MissionInvestigating, "surveying")
}

// ResolveDetection records the investigation outcome. A confirmed detection
// completes the mission and resolves the alert; a negative sweep fails it and
// requeues the alert.
func (m *Manager) ResolveDetection(missionID string, confirmed bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	am, ok := m.byID[missionID]
	if !ok {
		return fmt.Errorf("mission: unknown mission %s", missionID)
	}
	if am.mission.Status != model.MissionInvestigating {
		return fmt.Errorf("mission %s: detection result in state %s", missionID, am.mission.Status)
	}
	if confirmed {
		m.finalizeLocked(am, model.MissionCompleted, "target_confirmed", model.UnitIdle, now)
	} else {
		m.finalizeLocked(am, model.MissionFailed, "target_not_found", model.UnitIdle, now)
	}
	return nil
}

// Tick enforces time- and track-based interrupts on every active mission.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	type rtb struct{ missionID, unitID string }
	var returns []rtb
	for _, am := range m.byID {
		switch {
		case am.abort:
			m.finalizeLocked(am, model.MissionAborted, "abort_requested", model.UnitIdle, now)
			returns = append(returns, rtb{am.mission.ID, am.mission.UnitID})
		case m.fleet.Degraded(am.mission.UnitID, now):
			if m.bus != nil {
				est, _ := m.fleet.Estimate(am.mission.UnitID, now)
				m.bus.Publish(events.TrackStaleEvent{UnitID: am.mission.UnitID, Gap: est.Gap, At: now})
			}
			m.finalizeLocked(am, model.MissionAborted, "track_lost", model.UnitReturning, now)
			returns = append(returns, rtb{am.mission.ID, am.mission.UnitID})
		case !am.onsiteAt.IsZero() && now.Sub(am.onsiteAt) > m.cfg.OnsiteTimeout:
			m.finalizeLocked(am, model.MissionFailed, "onsite_timeout", model.UnitIdle, now)
		}
	}
	m.mu.Unlock()
	for _, r := range returns {
		m.returnToBase(r.missionID, r.unitID)
	}
}

// finalizeLocked moves the mission to a terminal state, releases the unit and
// requeues the alert unless it was resolved. Caller holds m.mu.
func (m *Manager) finalizeLocked(am *active, status model.MissionStatus, reason string, unitStatus model.UnitStatus, now time.Time) {
	m.transition(&am.mission, status, reason)
	am.mission.TerminalAt = now
	delete(m.byID, am.mission.ID)
	delete(m.byUnit, am.mission.UnitID)

	if err := m.fleet.Apply(am.mission.UnitID, func(u *model.Unit) { u.Status = unitStatus }); err != nil {
		m.log.Errorf("release unit %s: %v", am.mission.UnitID, err)
	}

	switch status {
	case model.MissionCompleted:
		am.alert.Status = model.AlertResolved
	default:
		am.alert.Status = model.AlertPending
		m.queue.Push(am.alert)
	}
	if m.bus != nil {
		m.bus.Publish(events.AlertEvent{Alert: am.alert})
	}

	out := coremetrics.MissionOutcome{
		MissionID: am.mission.ID,
		UnitID:    am.mission.UnitID,
		AlertID:   am.mission.AlertID,
		Status:    status.String(),
		Reason:    reason,
		Duration:  now.Sub(am.mission.CreatedAt),
		At:        now,
	}
	if err := m.sink.RecordMissionOutcome(out); err != nil {
		m.log.Errorf("record outcome: %v", err)
	}
	m.log.Infof("mission %s %s (%s), unit %s released %s", am.mission.ID, status, reason, am.mission.UnitID, unitStatus)
}

// transition applies a state change and publishes the mission event. Illegal
// transitions are logged and skipped; the caller's terminal handling still
// proceeds so a mission can never wedge in a live state.
func (m *Manager) transition(ms *model.Mission, to model.MissionStatus, reason string) {
	from := ms.Status
	if !from.CanTransition(to) {
		m.log.Errorf("mission %s: illegal transition %s -> %s (%s)", ms.ID, from, to, reason)
	}
	ms.Status = to
	if m.bus != nil {
		m.bus.Publish(events.MissionEvent{
			MissionID: ms.ID,
			UnitID:    ms.UnitID,
			AlertID:   ms.AlertID,
			From:      from,
			To:        to,
			Reason:    reason,
			At:        time.Now(),
		})
	}
}

// returnToBase plans a route back to the unit's home and emits it. Failure is
// logged only; the unit-control layer owns its own failsafe return.
func (m *Manager) returnToBase(missionID, unitID string) {
	u, ok := m.fleet.Snapshot(unitID)
	if !ok {
		return
	}
	wps, err := m.plan.Route(u, u.Home)
	if err != nil {
		m.log.Errorf("unit %s: return route: %v", unitID, err)
		return
	}
	if err := m.sendCommand(missionID, unitID, wps); err != nil {
		m.log.Errorf("unit %s: return command: %v", unitID, err)
	}
}

func (m *Manager) sendCommand(missionID, unitID string, wps []model.Waypoint) error {
	cmd := model.MissionCommand{
		MissionID: missionID,
		UnitID:    unitID,
		Waypoints: wps,
		IssuedAt:  time.Now(),
	}
	cmdID, err := m.pub.SendCommand(cmd)
	if err != nil {
		return err
	}
	go m.awaitAck(missionID, unitID, cmdID)
	if m.bus != nil {
		m.bus.Publish(events.CommandEvent{Command: cmd})
	}
	return nil
}

// awaitAck consumes the acknowledgment for an emitted command. A missing ack
// is logged only; mission progress is driven by telemetry, not by acks.
func (m *Manager) awaitAck(missionID, unitID, cmdID string) {
	ok, err := m.pub.WaitForAck(cmdID, m.cfg.AckTimeout)
	if err != nil {
		m.log.Warnf("mission %s: ack wait for unit %s: %v", missionID, unitID, err)
		return
	}
	if !ok {
		m.log.Warnf("mission %s: unit %s rejected command %s", missionID, unitID, cmdID)
	}
}

// recoverUnit returns released units to the dispatch pool: a returning unit
// that reached home goes idle, a charging unit goes idle once its battery is
// back above the recovery threshold.
func (m *Manager) recoverUnit(tel model.Telemetry) {
	u, ok := m.fleet.Snapshot(tel.UnitID)
	if !ok {
		return
	}
	switch u.Status {
	case model.UnitReturning:
		if model.Haversine(tel.Position(), u.Home) <= m.cfg.ArrivalRadiusM {
			if err := m.fleet.Transition(tel.UnitID, model.UnitReturning, model.UnitIdle); err == nil {
				m.log.Infof("unit %s back at base, idle", tel.UnitID)
			}
		}
	case model.UnitCharging:
		if tel.Battery >= m.cfg.BatteryRecovered {
			if err := m.fleet.Transition(tel.UnitID, model.UnitCharging, model.UnitIdle); err == nil {
				m.log.Infof("unit %s recharged to %.2f, idle", tel.UnitID, tel.Battery)
			}
		}
	}
}

// surveyPolygon builds the axis-aligned square of half-extent r around p.
func surveyPolygon(p model.Position, r float64) model.Polygon {
	f := model.NewLocalFrame(p)
	out := make(model.Polygon, 0, 4)
	for _, c := range [][2]float64{{-r, -r}, {r, -r}, {r, r}, {-r, r}} {
		out = append(out, f.FromXY(c[0], c[1]))
	}
	return out
}
