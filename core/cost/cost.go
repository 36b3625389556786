// Package cost scores candidate (unit, alert) pairs for the assignment
// engine. The combined cost mixes quantities with different native units, so
// a fixed normalization is applied before weighting: travel time is expressed
// in hours, battery deficit (1 - fraction) and risk are unitless scalars in
// [0,1]. Weights therefore trade off "one hour of flight" against "a full
// battery" against "maximum zone hazard".
package cost

import "github.com/kestrel-ops/kestrel/core/model"

// Evaluator computes assignment costs. It is a pure value; Evaluate has no
// side effects and is safe for concurrent use.
type Evaluator struct {
	Alpha      float64 // weight of travel time (hours)
	Beta       float64 // weight of battery deficit
	Gamma      float64 // weight of caller-supplied risk
	MinBattery float64 // units below this fraction are ineligible
}

// Evaluate scores the unit against the alert. The returned bool is false when
// the unit is disqualified (battery below minimum); a disqualified unit has
// no meaningful cost.
func (e Evaluator) Evaluate(u model.Unit, a model.Alert, risk float64) (float64, bool) {
	return e.EvaluateWithDistance(u, a, model.Haversine(u.Position, a.Position()), risk)
}

// EvaluateWithDistance scores the unit using a caller-provided path length in
// meters, e.g. a planner-estimated route instead of the great-circle distance.
func (e Evaluator) EvaluateWithDistance(u model.Unit, a model.Alert, distanceM, risk float64) (float64, bool) {
	if u.Battery < e.MinBattery {
		return 0, false
	}
	speed := u.Caps.CruiseSpeedMS
	if speed <= 0 {
		return 0, false
	}
	travelHours := distanceM / speed / 3600
	c := e.Alpha*travelHours + e.Beta*(1-u.Battery) + e.Gamma*risk
	return c, true
}
