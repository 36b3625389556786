// Package coverage produces waypoint sequences that sweep a polygonal area
// without leaving gaps wider than the spacing parameter.
package coverage

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kestrel-ops/kestrel/core/model"
)

// ErrTooManyTurns is returned when a pattern would exceed the configured turn
// bound, which guards against degenerate oscillation near polygon boundaries.
var ErrTooManyTurns = errors.New("coverage: turn bound exceeded")

// ErrDegeneratePolygon is returned for polygons with fewer than three vertices.
var ErrDegeneratePolygon = errors.New("coverage: degenerate polygon")

// PatternKind selects the sweep geometry.
type PatternKind int

const (
	PatternSweep PatternKind = iota
	PatternSpiral
	PatternSector
)

// String returns a human-readable representation of the pattern kind.
func (k PatternKind) String() string {
	switch k {
	case PatternSweep:
		return "sweep"
	case PatternSpiral:
		return "spiral"
	case PatternSector:
		return "sector"
	default:
		return "unknown"
	}
}

// Config defines generation parameters shared by all patterns.
type Config struct {
	// OverlapFraction shrinks the effective pass spacing to spacing*(1-overlap).
	OverlapFraction float64 `json:"overlap_fraction"`
	// MaxTurns bounds the number of passes in a single pattern.
	MaxTurns int `json:"max_turns"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 {
		c.OverlapFraction = 0
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 200
	}
}

// Task describes one area-coverage request.
type Task struct {
	Polygon  model.Polygon
	Pattern  PatternKind
	SpacingM float64
}

// Generate produces the ordered waypoint sequence for the task.
func Generate(cfg Config, task Task) ([]model.Waypoint, error) {
	cfg.SetDefaults()
	if len(task.Polygon) < 3 {
		return nil, ErrDegeneratePolygon
	}
	if task.SpacingM <= 0 {
		return nil, fmt.Errorf("coverage: spacing must be positive, got %f", task.SpacingM)
	}
	switch task.Pattern {
	case PatternSweep:
		return sweep(cfg, task)
	case PatternSpiral:
		return spiral(cfg, task)
	case PatternSector:
		return sector(cfg, task)
	default:
		return nil, fmt.Errorf("coverage: unknown pattern %d", task.Pattern)
	}
}

// sweep generates a boustrophedon pattern: parallel scan lines spaced by
// spacing*(1-overlap), alternating direction. Each scan line is clipped to
// the polygon per crossing pair, so concave notches are skipped rather than
// flown through.
func sweep(cfg Config, task Task) ([]model.Waypoint, error) {
	frame := model.NewLocalFrame(task.Polygon.Centroid())
	xs := make([]float64, len(task.Polygon))
	ys := make([]float64, len(task.Polygon))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, p := range task.Polygon {
		xs[i], ys[i] = frame.ToXY(p)
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}

	step := task.SpacingM * (1 - cfg.OverlapFraction)
	lines := int(math.Ceil((maxY-minY)/step - 1e-9))
	if lines < 1 {
		lines = 1
	}
	if lines > cfg.MaxTurns {
		return nil, fmt.Errorf("%w: %d passes over limit %d", ErrTooManyTurns, lines, cfg.MaxTurns)
	}

	var wps []model.Waypoint
	pass := 0
	for i := 0; i < lines; i++ {
		y := minY + step/2 + float64(i)*step
		crossings := clipScanline(xs, ys, y)
		for s := 0; s+1 < len(crossings); s += 2 {
			if pass >= cfg.MaxTurns {
				return nil, fmt.Errorf("%w: over limit %d", ErrTooManyTurns, cfg.MaxTurns)
			}
			x0, x1 := crossings[s], crossings[s+1]
			if pass%2 == 1 {
				x0, x1 = x1, x0
			}
			a := frame.FromXY(x0, y)
			b := frame.FromXY(x1, y)
			wps = append(wps,
				model.Waypoint{Lat: a.Lat, Lon: a.Lon},
				model.Waypoint{Lat: b.Lat, Lon: b.Lon},
			)
			pass++
		}
	}
	return wps, nil
}

// clipScanline intersects the horizontal line at y with the polygon edges and
// returns the crossing x coordinates in ascending order.
func clipScanline(xs, ys []float64, y float64) []float64 {
	var crossings []float64
	n := len(xs)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		y1, y2 := ys[i], ys[j]
		if (y1 <= y && y2 > y) || (y2 <= y && y1 > y) {
			t := (y - y1) / (y2 - y1)
			crossings = append(crossings, xs[i]+t*(xs[j]-xs[i]))
		}
	}
	sort.Float64s(crossings)
	return crossings
}

// spiral generates an outward Archimedean spiral r = b*theta from the polygon
// centroid until the bounding radius is covered. Successive loops are spaced
// exactly one effective spacing apart.
func spiral(cfg Config, task Task) ([]model.Waypoint, error) {
	frame := model.NewLocalFrame(task.Polygon.Centroid())
	radius := task.Polygon.BoundRadiusM()
	step := task.SpacingM * (1 - cfg.OverlapFraction)
	b := step / (2 * math.Pi)

	turns := radius / step
	if int(math.Ceil(turns)) > cfg.MaxTurns {
		return nil, fmt.Errorf("%w: %.0f revolutions over limit %d", ErrTooManyTurns, math.Ceil(turns), cfg.MaxTurns)
	}

	// Sample so consecutive waypoints sit at most half a spacing apart.
	chord := step / 2
	var wps []model.Waypoint
	theta := 0.0
	for {
		r := b * theta
		p := frame.FromXY(r*math.Cos(theta), r*math.Sin(theta))
		wps = append(wps, model.Waypoint{Lat: p.Lat, Lon: p.Lon})
		if r >= radius {
			return wps, nil
		}
		dTheta := math.Pi / 8
		if r > chord {
			dTheta = chord / r
		}
		theta += dTheta
	}
}

// sector generates radial out-and-back passes from the polygon centroid. The
// sector count is chosen so the arc gap between adjacent passes at the
// bounding radius never exceeds the spacing.
func sector(cfg Config, task Task) ([]model.Waypoint, error) {
	frame := model.NewLocalFrame(task.Polygon.Centroid())
	radius := task.Polygon.BoundRadiusM()
	step := task.SpacingM * (1 - cfg.OverlapFraction)

	n := int(math.Ceil(2 * math.Pi * radius / step))
	if n < 3 {
		n = 3
	}
	if n > cfg.MaxTurns {
		return nil, fmt.Errorf("%w: %d sectors over limit %d", ErrTooManyTurns, n, cfg.MaxTurns)
	}

	center := frame.FromXY(0, 0)
	var wps []model.Waypoint
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		rim := frame.FromXY(radius*math.Cos(theta), radius*math.Sin(theta))
		wps = append(wps,
			model.Waypoint{Lat: center.Lat, Lon: center.Lon},
			model.Waypoint{Lat: rim.Lat, Lon: rim.Lon},
		)
	}
	wps = append(wps, model.Waypoint{Lat: center.Lat, Lon: center.Lon})
	return wps, nil
}
