package planner

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/kestrel-ops/kestrel/core/model"
)

// ErrNoPathFound is returned when the goal is unreachable within the bounded
// expansion count.
var ErrNoPathFound = errors.New("planner: no path found")

// GridConfig defines the search grid built over the start/goal bounding box.
type GridConfig struct {
	// ResolutionM is the cell edge length in meters.
	ResolutionM float64 `json:"resolution_m"`
	// MarginM is the minimum bounding-box expansion on every side. The search
	// widens it to half the start-goal distance so detours around obstacles
	// that span the direct corridor stay inside the grid.
	MarginM float64 `json:"margin_m"`
	// MaxExpansions bounds the search before giving up.
	MaxExpansions int `json:"max_expansions"`
}

// SetDefaults applies sane defaults.
func (c *GridConfig) SetDefaults() {
	if c.ResolutionM <= 0 {
		c.ResolutionM = 25
	}
	if c.MarginM <= 0 {
		c.MarginM = 4 * c.ResolutionM
	}
	if c.MaxExpansions <= 0 {
		c.MaxExpansions = 200_000
	}
}

// ObstacleFunc reports whether the given position is blocked. A nil func
// means free space everywhere.
type ObstacleFunc func(model.Position) bool

type gridNode struct {
	cell  int // row*cols + col
	f     float64
	g     float64
	index int
}

type nodeHeap []*gridNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any)        { n := x.(*gridNode); n.index = len(*h); *h = append(*h, n) }
func (h *nodeHeap) Pop() any          { old := *h; n := old[len(old)-1]; *h = old[:len(old)-1]; return n }

var neighbors = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// GridSearch runs an 8-connected A* search between two positions. The grid
// spans the start/goal bounding box plus margin at the configured resolution;
// blocked cells are never entered. The returned waypoints are grid-cell
// centers including the start and goal cells.
func GridSearch(cfg GridConfig, start, goal model.Position, blocked ObstacleFunc) ([]model.Waypoint, error) {
	cfg.SetDefaults()
	frame := model.NewLocalFrame(start)
	gx, gy := frame.ToXY(goal)

	margin := cfg.MarginM
	if d := math.Hypot(gx, gy) / 2; d > margin {
		margin = d
	}
	minX := math.Min(0, gx) - margin
	maxX := math.Max(0, gx) + margin
	minY := math.Min(0, gy) - margin
	maxY := math.Max(0, gy) + margin
	res := cfg.ResolutionM
	cols := int(math.Ceil((maxX-minX)/res)) + 1
	rows := int(math.Ceil((maxY-minY)/res)) + 1

	center := func(cell int) (float64, float64) {
		r, c := cell/cols, cell%cols
		return minX + (float64(c)+0.5)*res, minY + (float64(r)+0.5)*res
	}
	cellOf := func(x, y float64) int {
		c := int((x - minX) / res)
		r := int((y - minY) / res)
		if c < 0 {
			c = 0
		}
		if c >= cols {
			c = cols - 1
		}
		if r < 0 {
			r = 0
		}
		if r >= rows {
			r = rows - 1
		}
		return r*cols + c
	}
	isBlocked := func(cell int) bool {
		if blocked == nil {
			return false
		}
		x, y := center(cell)
		return blocked(frame.FromXY(x, y))
	}

	startCell := cellOf(0, 0)
	goalCell := cellOf(gx, gy)
	if isBlocked(startCell) {
		return nil, fmt.Errorf("%w: start cell blocked", ErrNoPathFound)
	}
	if isBlocked(goalCell) {
		return nil, fmt.Errorf("%w: goal cell blocked", ErrNoPathFound)
	}

	hCost := func(cell int) float64 {
		x, y := center(cell)
		return math.Hypot(gx-x, gy-y)
	}

	gScore := map[int]float64{startCell: 0}
	cameFrom := map[int]int{}
	closed := map[int]bool{}
	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &gridNode{cell: startCell, g: 0, f: hCost(startCell)})

	expansions := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*gridNode)
		if closed[cur.cell] {
			continue
		}
		if cur.cell == goalCell {
			return reconstruct(cameFrom, cur.cell, frame, center), nil
		}
		closed[cur.cell] = true
		expansions++
		if expansions > cfg.MaxExpansions {
			return nil, fmt.Errorf("%w: expansion bound %d reached", ErrNoPathFound, cfg.MaxExpansions)
		}

		r, c := cur.cell/cols, cur.cell%cols
		for _, d := range neighbors {
			nr, nc := r+d[0], c+d[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			next := nr*cols + nc
			if closed[next] || isBlocked(next) {
				continue
			}
			step := res
			if d[0] != 0 && d[1] != 0 {
				step = res * math.Sqrt2
			}
			g := cur.g + step
			if prev, ok := gScore[next]; ok && g >= prev {
				continue
			}
			gScore[next] = g
			cameFrom[next] = cur.cell
			heap.Push(open, &gridNode{cell: next, g: g, f: g + hCost(next)})
		}
	}
	return nil, fmt.Errorf("%w: frontier exhausted", ErrNoPathFound)
}

func reconstruct(cameFrom map[int]int, cell int, frame model.LocalFrame, center func(int) (float64, float64)) []model.Waypoint {
	var cells []int
	for {
		cells = append(cells, cell)
		prev, ok := cameFrom[cell]
		if !ok {
			break
		}
		cell = prev
	}
	wps := make([]model.Waypoint, 0, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		x, y := center(cells[i])
		p := frame.FromXY(x, y)
		wps = append(wps, model.Waypoint{Lat: p.Lat, Lon: p.Lon})
	}
	return wps
}
