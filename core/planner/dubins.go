package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/kestrel-ops/kestrel/core/model"
)

// ErrNoFeasiblePath is returned when no tangent/arc combination satisfies the
// turning-radius constraint.
var ErrNoFeasiblePath = errors.New("planner: no feasible path")

// Pose is a planar position with heading, in frame meters and radians.
type Pose struct {
	X, Y  float64
	Theta float64
}

type segKind int

const (
	segLeft segKind = iota
	segRight
	segStraight
)

type dubinsWord struct {
	name string
	segs [3]segKind
}

var dubinsWords = []dubinsWord{
	{"LSL", [3]segKind{segLeft, segStraight, segLeft}},
	{"RSR", [3]segKind{segRight, segStraight, segRight}},
	{"LSR", [3]segKind{segLeft, segStraight, segRight}},
	{"RSL", [3]segKind{segRight, segStraight, segLeft}},
	{"RLR", [3]segKind{segRight, segLeft, segRight}},
	{"LRL", [3]segKind{segLeft, segRight, segLeft}},
}

// dubinsPath holds the three normalized segment lengths (in turning-radius
// units) of one word.
type dubinsPath struct {
	word    dubinsWord
	lengths [3]float64
}

func (p dubinsPath) total() float64 { return p.lengths[0] + p.lengths[1] + p.lengths[2] }

func mod2pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// solveWord computes the normalized segment lengths of a single word for the
// canonical problem (start at origin heading alpha, goal at distance d
// heading beta). It returns false when the word is infeasible.
func solveWord(w dubinsWord, d, alpha, beta float64) ([3]float64, bool) {
	sa, ca := math.Sin(alpha), math.Cos(alpha)
	sb, cb := math.Sin(beta), math.Cos(beta)
	cab := math.Cos(alpha - beta)

	switch w.name {
	case "LSL":
		pSq := 2 + d*d - 2*cab + 2*d*(sa-sb)
		if pSq < 0 {
			return [3]float64{}, false
		}
		tmp := math.Atan2(cb-ca, d+sa-sb)
		return [3]float64{mod2pi(-alpha + tmp), math.Sqrt(pSq), mod2pi(beta - tmp)}, true
	case "RSR":
		pSq := 2 + d*d - 2*cab + 2*d*(sb-sa)
		if pSq < 0 {
			return [3]float64{}, false
		}
		tmp := math.Atan2(ca-cb, d-sa+sb)
		return [3]float64{mod2pi(alpha - tmp), math.Sqrt(pSq), mod2pi(-beta + tmp)}, true
	case "LSR":
		pSq := -2 + d*d + 2*cab + 2*d*(sa+sb)
		if pSq < 0 {
			return [3]float64{}, false
		}
		p := math.Sqrt(pSq)
		tmp := math.Atan2(-ca-cb, d+sa+sb) - math.Atan2(-2, p)
		return [3]float64{mod2pi(-alpha + tmp), p, mod2pi(-mod2pi(beta) + tmp)}, true
	case "RSL":
		pSq := -2 + d*d + 2*cab - 2*d*(sa+sb)
		if pSq < 0 {
			return [3]float64{}, false
		}
		p := math.Sqrt(pSq)
		tmp := math.Atan2(ca+cb, d-sa-sb) - math.Atan2(2, p)
		return [3]float64{mod2pi(alpha - tmp), p, mod2pi(beta - tmp)}, true
	case "RLR":
		tmp := (6 - d*d + 2*cab + 2*d*(sa-sb)) / 8
		if math.Abs(tmp) > 1 {
			return [3]float64{}, false
		}
		p := mod2pi(2*math.Pi - math.Acos(tmp))
		t := mod2pi(alpha - math.Atan2(ca-cb, d-sa+sb) + p/2)
		return [3]float64{t, p, mod2pi(alpha - beta - t + p)}, true
	case "LRL":
		tmp := (6 - d*d + 2*cab + 2*d*(sb-sa)) / 8
		if math.Abs(tmp) > 1 {
			return [3]float64{}, false
		}
		p := mod2pi(2*math.Pi - math.Acos(tmp))
		t := mod2pi(-alpha + math.Atan2(cb-ca, d+sa-sb) + p/2)
		return [3]float64{t, p, mod2pi(mod2pi(beta) - alpha - t + mod2pi(p))}, true
	}
	return [3]float64{}, false
}

// shortestDubins returns the minimum-length curvature-constrained path among
// the six canonical words connecting the two poses, with lengths normalized
// to turning-radius units.
func shortestDubins(start, goal Pose, radius float64) (dubinsPath, error) {
	if radius <= 0 {
		return dubinsPath{}, fmt.Errorf("%w: turning radius must be positive", ErrNoFeasiblePath)
	}
	dx := (goal.X - start.X) / radius
	dy := (goal.Y - start.Y) / radius
	d := math.Hypot(dx, dy)
	phi := math.Atan2(dy, dx)
	alpha := mod2pi(start.Theta - phi)
	beta := mod2pi(goal.Theta - phi)

	best := dubinsPath{}
	found := false
	for _, w := range dubinsWords {
		lengths, ok := solveWord(w, d, alpha, beta)
		if !ok {
			continue
		}
		p := dubinsPath{word: w, lengths: lengths}
		if !found || p.total() < best.total() {
			best = p
			found = true
		}
	}
	if !found {
		return dubinsPath{}, fmt.Errorf("%w: all six words infeasible", ErrNoFeasiblePath)
	}
	return best, nil
}

// stepPose advances a pose along one normalized segment.
func stepPose(p Pose, kind segKind, length float64) Pose {
	switch kind {
	case segLeft:
		return Pose{
			X:     p.X + math.Sin(p.Theta+length) - math.Sin(p.Theta),
			Y:     p.Y - math.Cos(p.Theta+length) + math.Cos(p.Theta),
			Theta: p.Theta + length,
		}
	case segRight:
		return Pose{
			X:     p.X - math.Sin(p.Theta-length) + math.Sin(p.Theta),
			Y:     p.Y + math.Cos(p.Theta-length) - math.Cos(p.Theta),
			Theta: p.Theta - length,
		}
	default:
		return Pose{
			X:     p.X + length*math.Cos(p.Theta),
			Y:     p.Y + length*math.Sin(p.Theta),
			Theta: p.Theta,
		}
	}
}

// SampleDubins computes the shortest Dubins path between two poses and
// samples it every stepM meters, returning planar poses from start to goal
// inclusive, plus the total path length in meters.
func SampleDubins(start, goal Pose, radius, stepM float64) ([]Pose, float64, error) {
	path, err := shortestDubins(start, goal, radius)
	if err != nil {
		return nil, 0, err
	}
	if stepM <= 0 {
		stepM = radius / 2
	}
	// Work in normalized units: start pose scaled by 1/radius.
	cur := Pose{X: start.X / radius, Y: start.Y / radius, Theta: start.Theta}
	step := stepM / radius

	poses := []Pose{start}
	for i, segLen := range path.lengths {
		kind := path.word.segs[i]
		for travelled := step; travelled < segLen; travelled += step {
			p := stepPose(cur, kind, travelled)
			poses = append(poses, Pose{X: p.X * radius, Y: p.Y * radius, Theta: p.Theta})
		}
		cur = stepPose(cur, kind, segLen)
		poses = append(poses, Pose{X: cur.X * radius, Y: cur.Y * radius, Theta: cur.Theta})
	}
	return poses, path.total() * radius, nil
}

// headingToTheta converts a compass heading in degrees to a math angle in
// radians (x east, counter-clockwise).
func headingToTheta(headingDeg float64) float64 {
	return (90 - headingDeg) * math.Pi / 180
}

// thetaToHeading is the inverse of headingToTheta.
func thetaToHeading(theta float64) float64 {
	h := 90 - theta*180/math.Pi
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// CurvaturePath plans a curvature-constrained route between two positions.
// The goal heading is the straight-line approach bearing from start to goal.
func CurvaturePath(start model.Position, startHeadingDeg float64, goal model.Position, radius, stepM float64) ([]model.Waypoint, error) {
	frame := model.NewLocalFrame(start)
	gx, gy := frame.ToXY(goal)
	goalTheta := math.Atan2(gy, gx)

	poses, _, err := SampleDubins(
		Pose{X: 0, Y: 0, Theta: headingToTheta(startHeadingDeg)},
		Pose{X: gx, Y: gy, Theta: goalTheta},
		radius, stepM,
	)
	if err != nil {
		return nil, err
	}
	wps := make([]model.Waypoint, 0, len(poses))
	for _, p := range poses {
		pos := frame.FromXY(p.X, p.Y)
		wps = append(wps, model.Waypoint{Lat: pos.Lat, Lon: pos.Lon, HeadingDeg: thetaToHeading(p.Theta)})
	}
	return wps, nil
}
