// Package fleet holds the authoritative in-memory record of every unit. All
// mutation is funneled through a per-unit exclusive section so concurrent
// assignment attempts and telemetry updates never race on the same unit.
package fleet

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kestrel-ops/kestrel/core/logger"
	"github.com/kestrel-ops/kestrel/core/model"
	"github.com/kestrel-ops/kestrel/core/track"
)

var (
	// ErrUnknownUnit is returned for operations on unregistered units.
	ErrUnknownUnit = errors.New("fleet: unknown unit")
	// ErrConflict is returned when a compare-and-swap transition observes a
	// different status than expected.
	ErrConflict = errors.New("fleet: status conflict")
)

type entry struct {
	mu     sync.Mutex
	unit   model.Unit
	filter *track.Filter
}

// Registry is the fleet state arena. Units are registered once and never
// deleted, only toggled between statuses.
type Registry struct {
	mu       sync.RWMutex
	units    map[string]*entry
	trackCfg track.Config
	log      logger.Logger
}

// NewRegistry creates an empty registry. Telemetry routed through the
// registry is filtered with the given tracker configuration.
func NewRegistry(trackCfg track.Config, log logger.Logger) *Registry {
	trackCfg.SetDefaults()
	return &Registry{units: make(map[string]*entry), trackCfg: trackCfg, log: log}
}

// Register adds a unit to the fleet. Registering an existing id is an error.
func (r *Registry) Register(u model.Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[u.ID]; ok {
		return fmt.Errorf("fleet: unit %s already registered", u.ID)
	}
	r.units[u.ID] = &entry{unit: u, filter: track.NewFilter(r.trackCfg)}
	return nil
}

func (r *Registry) entry(id string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.units[id]
	r.mu.RUnlock()
	return e, ok
}

// Snapshot returns a copy of the unit record.
func (r *Registry) Snapshot(id string) (model.Unit, bool) {
	e, ok := r.entry(id)
	if !ok {
		return model.Unit{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unit, true
}

// List returns snapshots of all units ordered by id.
func (r *Registry) List() []model.Unit {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.units))
	for _, e := range r.units {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.Unit, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.unit)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Idle returns snapshots of units currently available for assignment,
// ordered by id for deterministic tie-breaking.
func (r *Registry) Idle() []model.Unit {
	all := r.List()
	out := all[:0]
	for _, u := range all {
		if u.Dispatchable() {
			out = append(out, u)
		}
	}
	return out
}

// Transition atomically moves the unit from one status to another. It fails
// with ErrConflict if the current status differs from the expected one, which
// is what prevents a unit from being double-booked.
func (r *Registry) Transition(id string, from, to model.UnitStatus) error {
	e, ok := r.entry(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unit.Status != from {
		return fmt.Errorf("%w: unit %s is %s, expected %s", ErrConflict, id, e.unit.Status, from)
	}
	e.unit.Status = to
	return nil
}

// Apply runs fn on the unit record under the per-unit lock.
func (r *Registry) Apply(id string, fn func(*model.Unit)) error {
	e, ok := r.entry(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	e.mu.Lock()
	fn(&e.unit)
	if e.unit.Battery < 0 {
		e.unit.Battery = 0
	}
	if e.unit.Battery > 1 {
		e.unit.Battery = 1
	}
	e.mu.Unlock()
	return nil
}

// ObserveTelemetry routes a validated telemetry event through the unit's
// filter and refreshes the record with the smoothed position.
func (r *Registry) ObserveTelemetry(tel model.Telemetry) (track.Estimate, error) {
	if err := tel.Validate(); err != nil {
		return track.Estimate{}, err
	}
	e, ok := r.entry(tel.UnitID)
	if !ok {
		return track.Estimate{}, fmt.Errorf("%w: %s", ErrUnknownUnit, tel.UnitID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter.Observe(tel.Position(), tel.Timestamp)
	est, _ := e.filter.Estimate(tel.UnitID, tel.Timestamp)

	b := tel.Battery
	if b < 0 {
		b = 0
	}
	if b > 1 {
		b = 1
	}
	e.unit.Battery = b
	e.unit.Position = est.Position
	e.unit.HeadingDeg = tel.HeadingDeg
	return est, nil
}

// Estimate returns the filtered track state for a unit, if any.
func (r *Registry) Estimate(id string, now time.Time) (track.Estimate, bool) {
	e, ok := r.entry(id)
	if !ok {
		return track.Estimate{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter.Estimate(id, now)
}

// Degraded reports whether the unit's track gap exceeds the hard limit.
func (r *Registry) Degraded(id string, now time.Time) bool {
	e, ok := r.entry(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter.Degraded(now)
}
