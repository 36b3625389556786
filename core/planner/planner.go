// Package planner computes feasible flight paths between two points. Two
// strategies exist: grid search for holonomic units and curvature-constrained
// paths for units with a minimum turning radius. The strategy is a tagged
// variant picked from unit capabilities at mission-creation time.
package planner

import "github.com/kestrel-ops/kestrel/core/model"

// Strategy identifies the path-generation algorithm for a unit.
type Strategy int

const (
	StrategyGrid Strategy = iota
	StrategyCurvature
)

// String returns a human-readable representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyGrid:
		return "grid"
	case StrategyCurvature:
		return "curvature"
	default:
		return "unknown"
	}
}

// StrategyFor selects the strategy from the unit's capabilities.
func StrategyFor(caps model.Capabilities) Strategy {
	if caps.TurnRadiusM > 0 {
		return StrategyCurvature
	}
	return StrategyGrid
}

// Config bundles planner parameters.
type Config struct {
	Grid GridConfig `json:"grid"`
	// SampleStepM is the waypoint spacing along curvature paths.
	SampleStepM float64 `json:"sample_step_m"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	c.Grid.SetDefaults()
	if c.SampleStepM <= 0 {
		c.SampleStepM = 50
	}
}

// Planner produces waypoint routes. Route calls are pure per invocation and
// safe to run in parallel across missions.
type Planner struct {
	cfg     Config
	blocked ObstacleFunc
}

// New creates a planner. blocked may be nil for free space.
func New(cfg Config, blocked ObstacleFunc) *Planner {
	cfg.SetDefaults()
	return &Planner{cfg: cfg, blocked: blocked}
}

// Route plans a path for the unit from its current position to the goal.
func (p *Planner) Route(u model.Unit, goal model.Position) ([]model.Waypoint, error) {
	switch StrategyFor(u.Caps) {
	case StrategyCurvature:
		return CurvaturePath(u.Position, u.HeadingDeg, goal, u.Caps.TurnRadiusM, p.cfg.SampleStepM)
	default:
		return GridSearch(p.cfg.Grid, u.Position, goal, p.blocked)
	}
}
