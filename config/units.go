package config

import (
	"github.com/kestrel-ops/kestrel/core/model"
)

// UnitConfig declares one unit registered into the fleet at startup.
type UnitConfig struct {
	ID            string  `json:"id"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	HomeLat       float64 `json:"home_lat"`
	HomeLon       float64 `json:"home_lon"`
	Battery       float64 `json:"battery"`
	CruiseSpeedMS float64 `json:"cruise_speed_ms"`
	TurnRadiusM   float64 `json:"turn_radius_m"`
	Sensor        string  `json:"sensor"`
}

// ToModel converts the declaration into a fleet unit. An omitted home
// defaults to the starting position.
func (c UnitConfig) ToModel() model.Unit {
	home := model.Position{Lat: c.HomeLat, Lon: c.HomeLon}
	if c.HomeLat == 0 && c.HomeLon == 0 {
		home = model.Position{Lat: c.Lat, Lon: c.Lon}
	}
	return model.Unit{
		ID:       c.ID,
		Home:     home,
		Position: model.Position{Lat: c.Lat, Lon: c.Lon},
		Battery:  c.Battery,
		Status:   model.UnitIdle,
		Caps: model.Capabilities{
			CruiseSpeedMS: c.CruiseSpeedMS,
			TurnRadiusM:   c.TurnRadiusM,
			Sensor:        c.Sensor,
		},
	}
}

// Validate checks the declaration through the model rules.
func (c UnitConfig) Validate() error {
	return c.ToModel().Validate()
}
