package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AlertPriority orders alerts from least to most urgent.
type AlertPriority int

const (
	PriorityLow AlertPriority = iota
	PriorityMedium
	PriorityHigh
)

// String returns a human-readable representation of the priority.
func (p AlertPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseAlertPriority maps a priority name to its ordered value.
func ParseAlertPriority(s string) (AlertPriority, error) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("alert: unknown priority %q", s)
	}
}

// MarshalJSON emits the priority name.
func (p AlertPriority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either a priority name or its numeric value, since
// the intake layer is free to send either form.
func (p *AlertPriority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := ParseAlertPriority(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("alert: priority must be a name or a number")
	}
	*p = AlertPriority(n)
	return nil
}

// AlertStatus tracks an alert through its lifecycle.
type AlertStatus int

const (
	AlertPending AlertStatus = iota
	AlertAssigned
	AlertResolved
	AlertExpired
	AlertCanceled
)

// String returns a human-readable representation of the status.
func (s AlertStatus) String() string {
	switch s {
	case AlertPending:
		return "pending"
	case AlertAssigned:
		return "assigned"
	case AlertResolved:
		return "resolved"
	case AlertExpired:
		return "expired"
	case AlertCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertExpired || s == AlertCanceled
}

// Alert is a geotagged event requiring investigation. The JSON shape matches
// the intake wire contract: flat lat/lon, priority by name, created_at as
// RFC 3339. Status is engine-internal and never crosses the wire.
type Alert struct {
	ID         string        `json:"id"`
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	Priority   AlertPriority `json:"priority"`
	Confidence float64       `json:"confidence"` // detector confidence in [0,1]
	Status     AlertStatus   `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Position returns the reported event location.
func (a Alert) Position() Position { return Position{Lat: a.Lat, Lon: a.Lon} }

// Validate rejects malformed alerts before they enter core state.
func (a Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("alert: id is required")
	}
	if !a.Position().Valid() {
		return fmt.Errorf("alert %s: position out of range", a.ID)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("alert %s: confidence %f out of [0,1]", a.ID, a.Confidence)
	}
	if a.Priority < PriorityLow || a.Priority > PriorityHigh {
		return fmt.Errorf("alert %s: unknown priority %d", a.ID, a.Priority)
	}
	return nil
}
