package planner

import (
	"errors"
	"testing"

	"github.com/kestrel-ops/kestrel/core/model"
)

func TestGridSearchStraightLine(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(500, 0)

	wps, err := GridSearch(GridConfig{ResolutionM: 25}, start, goal, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(wps) < 2 {
		t.Fatalf("expected a multi-waypoint route, got %d", len(wps))
	}
	last := wps[len(wps)-1]
	if d := model.Haversine(last.Position(), goal); d > 50 {
		t.Fatalf("route ends %f m from goal", d)
	}
}

func TestGridSearchAvoidsBlockedCells(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(600, 0)

	// Vertical wall at x in [250,300] with a gap above y=200.
	blocked := func(p model.Position) bool {
		x, y := frame.ToXY(p)
		return x > 250 && x < 300 && y < 200
	}
	wps, err := GridSearch(GridConfig{ResolutionM: 25}, start, goal, blocked)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for i, w := range wps {
		if blocked(w.Position()) {
			t.Fatalf("waypoint %d on blocked cell: %+v", i, w)
		}
	}
}

func TestGridSearchUnreachableGoal(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(600, 0)

	// Ring around the goal with no gap.
	blocked := func(p model.Position) bool {
		x, y := frame.ToXY(p)
		dx, dy := x-600, y
		r := dx*dx + dy*dy
		return r > 100*100 && r < 200*200
	}
	_, err := GridSearch(GridConfig{ResolutionM: 25}, start, goal, blocked)
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("expected ErrNoPathFound, got %v", err)
	}
}

func TestGridSearchDetourFitsGrid(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(600, 0)

	// Wall across the whole default margin; the only gap sits well above the
	// direct corridor, so the grid must be wide enough to admit the detour.
	blocked := func(p model.Position) bool {
		x, y := frame.ToXY(p)
		return x > 250 && x < 300 && y < 250
	}
	wps, err := GridSearch(GridConfig{ResolutionM: 25}, start, goal, blocked)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	reachedGap := false
	for _, w := range wps {
		x, y := frame.ToXY(w.Position())
		if x > 250 && x < 300 && y >= 250 {
			reachedGap = true
		}
	}
	if !reachedGap {
		t.Fatalf("route does not pass through the gap above the wall")
	}
}

func TestGridSearchBlockedStartCell(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(300, 0)
	blocked := func(p model.Position) bool {
		x, _ := frame.ToXY(p)
		return x < 50
	}
	_, err := GridSearch(GridConfig{ResolutionM: 25}, start, goal, blocked)
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("expected ErrNoPathFound for blocked start, got %v", err)
	}
}

func TestGridSearchBlockedGoalCell(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(300, 300)
	blocked := func(p model.Position) bool {
		x, y := frame.ToXY(p)
		return x > 250 && y > 250
	}
	_, err := GridSearch(GridConfig{ResolutionM: 25}, start, goal, blocked)
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("expected ErrNoPathFound for blocked goal, got %v", err)
	}
}

func TestGridSearchExpansionBound(t *testing.T) {
	start := model.Position{Lat: 45, Lon: 5}
	frame := model.NewLocalFrame(start)
	goal := frame.FromXY(5000, 5000)
	blocked := func(p model.Position) bool {
		x, _ := frame.ToXY(p)
		return x > 2000 // unreachable beyond the wall
	}
	_, err := GridSearch(GridConfig{ResolutionM: 25, MaxExpansions: 100}, start, goal, blocked)
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("expected bounded search to fail with ErrNoPathFound, got %v", err)
	}
}
