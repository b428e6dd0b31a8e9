package scene

import (
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
)

// Placement is an automatic placement strategy for nodes without a
// position.
type Placement int

const (
	PlaceGrid Placement = iota
	PlaceLayered
)

// PlacementFor maps a scene layout name to a strategy. Unknown names use
// the grid.
func PlacementFor(name string) Placement {
	if name == "layered" {
		return PlaceLayered
	}
	return PlaceGrid
}

// DefaultSize sizes a node body to fit its slot rows and widgets.
func DefaultSize(spec NodeSpec, m graph.Metrics) geom.Size {
	rows := math.Max(float64(len(spec.Inputs)), float64(len(spec.Outputs)))
	h := rows*m.SlotHeight + float64(len(spec.Widgets))*m.WidgetHeight
	h = math.Max(h, m.SlotHeight)

	// Room for the longest input and output names side by side.
	longest := func(slots []SlotSpec) int {
		return lo.Max(lo.Map(slots, func(s SlotSpec, _ int) int { return len(s.Name) }))
	}
	title := lo.Ternary(spec.Title != "", spec.Title, spec.ID)
	chars := math.Max(float64(len(title)), float64(longest(spec.Inputs)+longest(spec.Outputs)+2))
	w := math.Max(chars*m.SlotHeight/2+2*m.SlotInset, 4*m.SlotHeight)
	return geom.Size{Width: math.Ceil(w), Height: math.Ceil(h)}
}

// Place returns a position for every node. Nodes with an explicit position
// keep it; the others are placed by strategy p below the explicit ones.
func Place(s *Scene, p Placement, m graph.Metrics) map[string]geom.Point {
	positions := make(map[string]geom.Point, len(s.Nodes))
	var free []NodeSpec
	bottom := math.Inf(-1)
	for _, n := range s.Nodes {
		if n.Pos != nil {
			positions[n.ID] = n.Pos.geom()
			bottom = math.Max(bottom, n.Pos.Y+nodeExtent(n, m).Height)
			continue
		}
		free = append(free, n)
	}
	if len(free) == 0 {
		return positions
	}
	_, gapY := spacing(m)
	origin := geom.Point{Y: m.TitleHeight}
	if !math.IsInf(bottom, -1) {
		origin.Y = bottom + gapY
	}

	var placed map[string]geom.Point
	switch p {
	case PlaceLayered:
		placed = placeLayered(s, free, m)
	default:
		placed = placeGrid(free, m)
	}
	for id, pos := range placed {
		positions[id] = pos.Add(origin)
	}
	return positions
}

func nodeExtent(n NodeSpec, m graph.Metrics) geom.Size {
	if n.Size != nil {
		return geom.Size{Width: n.Size.Width, Height: n.Size.Height}
	}
	return DefaultSize(n, m)
}

// gaps between placed nodes
func spacing(m graph.Metrics) (float64, float64) {
	return 3 * m.SlotHeight, m.TitleHeight + m.SlotHeight
}

// placeGrid arranges nodes row by row in a roughly square grid.
func placeGrid(nodes []NodeSpec, m graph.Metrics) map[string]geom.Point {
	positions := make(map[string]geom.Point, len(nodes))
	cols := int(math.Ceil(math.Sqrt(float64(len(nodes)))))
	if cols < 1 {
		cols = 1
	}
	gapX, gapY := spacing(m)

	cellW, cellH := 0.0, 0.0
	for _, n := range nodes {
		sz := nodeExtent(n, m)
		cellW = math.Max(cellW, sz.Width)
		cellH = math.Max(cellH, sz.Height)
	}
	for i, n := range nodes {
		col, row := i%cols, i/cols
		positions[n.ID] = geom.Point{
			X: float64(col) * (cellW + gapX),
			Y: float64(row) * (cellH + gapY),
		}
	}
	return positions
}

// placeLayered puts each node one column right of the furthest node that
// feeds it. Nodes in a cycle or without inputs start in column zero.
func placeLayered(s *Scene, nodes []NodeSpec, m graph.Metrics) map[string]geom.Point {
	feeds := make(map[string][]string)
	for _, l := range s.Links {
		from, to := endpointNode(l.From), endpointNode(l.To)
		if from != "" && to != "" && from != to {
			feeds[to] = append(feeds[to], from)
		}
	}

	layer := make(map[string]int, len(nodes))
	visiting := make(map[string]bool)
	var depth func(id string) int
	depth = func(id string) int {
		if d, ok := layer[id]; ok {
			return d
		}
		if visiting[id] {
			return 0
		}
		visiting[id] = true
		d := 0
		for _, src := range feeds[id] {
			d = max(d, depth(src)+1)
		}
		visiting[id] = false
		layer[id] = d
		return d
	}

	columns := make(map[int][]NodeSpec)
	maxLayer := 0
	for _, n := range nodes {
		d := depth(n.ID)
		columns[d] = append(columns[d], n)
		maxLayer = max(maxLayer, d)
	}

	gapX, gapY := spacing(m)
	positions := make(map[string]geom.Point, len(nodes))
	x := 0.0
	for c := 0; c <= maxLayer; c++ {
		col := columns[c]
		if len(col) == 0 {
			continue
		}
		y, width := 0.0, 0.0
		for _, n := range col {
			sz := nodeExtent(n, m)
			positions[n.ID] = geom.Point{X: x, Y: y}
			y += sz.Height + gapY
			width = math.Max(width, sz.Width)
		}
		x += width + gapX
	}
	return positions
}

func endpointNode(ref string) string {
	i := strings.LastIndex(ref, ":")
	if i <= 0 {
		return ""
	}
	return ref[:i]
}
