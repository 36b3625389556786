package model

import (
	"fmt"
	"time"
)

// Telemetry is a single position report from a unit.
type Telemetry struct {
	UnitID     string    `json:"unit_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Battery    float64   `json:"battery_fraction"`
	SpeedMS    float64   `json:"speed"`
	HeadingDeg float64   `json:"heading"`
	Timestamp  time.Time `json:"timestamp"`
}

// Position returns the reported location.
func (t Telemetry) Position() Position { return Position{Lat: t.Lat, Lon: t.Lon} }

// Validate rejects malformed telemetry before it enters core state.
func (t Telemetry) Validate() error {
	if t.UnitID == "" {
		return fmt.Errorf("telemetry: unit_id is required")
	}
	if !t.Position().Valid() {
		return fmt.Errorf("telemetry %s: position out of range", t.UnitID)
	}
	if t.Battery < 0 || t.Battery > 1 {
		return fmt.Errorf("telemetry %s: battery %f out of [0,1]", t.UnitID, t.Battery)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("telemetry %s: timestamp is required", t.UnitID)
	}
	return nil
}
