// Package events defines the event types published on the engine bus for
// consumption by the external status layer.
package events

import (
	"time"

	"github.com/kestrel-ops/kestrel/core/model"
)

// AlertEvent is published when an alert changes status.
type AlertEvent struct {
	Alert model.Alert
}

// AssignmentEvent is published when the assignment engine commits a match.
type AssignmentEvent struct {
	MissionID string
	UnitID    string
	AlertID   string
	Cost      float64
	At        time.Time
}

// AssignmentFailureEvent is published when no eligible unit was found for an
// alert and it was requeued with backoff.
type AssignmentFailureEvent struct {
	AlertID  string
	Attempts int
	At       time.Time
}

// MissionEvent is published on every mission status transition.
type MissionEvent struct {
	MissionID string
	UnitID    string
	AlertID   string
	From      model.MissionStatus
	To        model.MissionStatus
	Reason    string
	At        time.Time
}

// CommandEvent is published when a mission command is emitted outward.
type CommandEvent struct {
	Command model.MissionCommand
}

// TrackStaleEvent is published when a unit's track exceeds the stale
// threshold while backing an active mission.
type TrackStaleEvent struct {
	UnitID string
	Gap    time.Duration
	At     time.Time
}
