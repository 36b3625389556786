package model

import "fmt"

// UnitStatus tracks the operational state of a unit.
type UnitStatus int

const (
	UnitIdle UnitStatus = iota
	UnitAssigned
	UnitEnroute
	UnitOnsite
	UnitReturning
	UnitCharging
	UnitOffline
)

// String returns a human-readable representation of the status.
func (s UnitStatus) String() string {
	switch s {
	case UnitIdle:
		return "idle"
	case UnitAssigned:
		return "assigned"
	case UnitEnroute:
		return "enroute"
	case UnitOnsite:
		return "onsite"
	case UnitReturning:
		return "returning"
	case UnitCharging:
		return "charging"
	case UnitOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// OnMission reports whether the unit is bound to an active mission.
func (s UnitStatus) OnMission() bool {
	return s == UnitAssigned || s == UnitEnroute || s == UnitOnsite
}

// Capabilities describes the physical envelope of a unit.
type Capabilities struct {
	CruiseSpeedMS float64 // cruise speed in m/s
	TurnRadiusM   float64 // minimum turning radius; 0 means unconstrained
	Sensor        string  // sensor payload kind
}

// Unit is a mobile sensing platform capable of executing missions.
type Unit struct {
	ID         string
	Home       Position // base location used for return-to-base plans
	Position   Position
	HeadingDeg float64
	Battery    float64 // fraction in [0,1]
	Status     UnitStatus
	Caps       Capabilities
}

// Validate checks that the unit registration is sound.
func (u Unit) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("unit: id is required")
	}
	if !u.Position.Valid() || !u.Home.Valid() {
		return fmt.Errorf("unit %s: position out of range", u.ID)
	}
	if u.Battery < 0 || u.Battery > 1 {
		return fmt.Errorf("unit %s: battery %f out of [0,1]", u.ID, u.Battery)
	}
	if u.Caps.CruiseSpeedMS <= 0 {
		return fmt.Errorf("unit %s: cruise speed must be positive", u.ID)
	}
	return nil
}

// Dispatchable reports whether the unit can accept a new mission.
func (u Unit) Dispatchable() bool {
	return u.Status == UnitIdle
}
