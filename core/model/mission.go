package model

import "time"

// MissionStatus tracks a mission through its lifecycle. Transitions are
// monotonic except for the abort transition, which is reachable from any
// non-terminal state.
type MissionStatus int

const (
	MissionPending MissionStatus = iota
	MissionAssigned
	MissionEnroute
	MissionOnsite
	MissionInvestigating
	MissionCompleted
	MissionFailed
	MissionAborted
)

// String returns a human-readable representation of the status.
func (s MissionStatus) String() string {
	switch s {
	case MissionPending:
		return "pending"
	case MissionAssigned:
		return "assigned"
	case MissionEnroute:
		return "enroute"
	case MissionOnsite:
		return "onsite"
	case MissionInvestigating:
		return "investigating"
	case MissionCompleted:
		return "completed"
	case MissionFailed:
		return "failed"
	case MissionAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s MissionStatus) Terminal() bool {
	return s == MissionCompleted || s == MissionFailed || s == MissionAborted
}

// CanTransition reports whether moving from s to next is legal.
func (s MissionStatus) CanTransition(next MissionStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == MissionAborted {
		return true
	}
	switch s {
	case MissionPending:
		return next == MissionAssigned
	case MissionAssigned:
		return next == MissionEnroute || next == MissionFailed
	case MissionEnroute:
		return next == MissionOnsite || next == MissionFailed
	case MissionOnsite:
		return next == MissionInvestigating || next == MissionFailed
	case MissionInvestigating:
		return next == MissionCompleted || next == MissionFailed
	default:
		return false
	}
}

// Mission binds a unit to an alert with an associated route.
type Mission struct {
	ID         string
	UnitID     string
	AlertID    string
	Waypoints  []Waypoint
	Status     MissionStatus
	Cost       float64 // assignment cost at match time
	CreatedAt  time.Time
	TerminalAt time.Time
}

// MissionCommand is the outward command emitted for the unit-control layer.
type MissionCommand struct {
	MissionID string     `json:"mission_id"`
	UnitID    string     `json:"unit_id"`
	Waypoints []Waypoint `json:"waypoints"`
	IssuedAt  time.Time  `json:"issued_at"`
}
