package main

import (
	"math"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
)

// view maps terminal cells to canvas units. One row holds one slot row;
// a column is half as wide, the usual terminal cell aspect.
type view struct {
	scaleX, scaleY float64 // canvas units per cell
	offX, offY     int     // canvas cell shown at the top-left corner
}

func newView(m graph.Metrics) view {
	return view{scaleX: m.SlotHeight / 2, scaleY: m.SlotHeight}
}

// toCanvas returns the canvas point at the centre of a screen cell.
func (v view) toCanvas(cx, cy int) geom.Point {
	return geom.Point{
		X: (float64(cx+v.offX) + 0.5) * v.scaleX,
		Y: (float64(cy+v.offY) + 0.5) * v.scaleY,
	}
}

// toCell returns the screen cell containing p.
func (v view) toCell(p geom.Point) (int, int) {
	return int(math.Floor(p.X/v.scaleX)) - v.offX, int(math.Floor(p.Y/v.scaleY)) - v.offY
}

// cellRect returns the cells covered by b, inclusive.
func (v view) cellRect(b geom.Bounds) (x0, y0, x1, y1 int) {
	x0, y0 = v.toCell(b.Pos())
	x1, y1 = v.toCell(geom.Point{X: b.Right() - 1e-9, Y: b.Bottom() - 1e-9})
	return
}

// fit scrolls so that b starts one cell in from the top-left corner.
func (v *view) fit(b geom.Bounds) {
	v.offX = int(math.Floor(b.X/v.scaleX)) - 1
	v.offY = int(math.Floor(b.Y/v.scaleY)) - 1
}

// cellLine returns the cells on the straight line between two cells.
func cellLine(x0, y0, x1, y1 int) [][2]int {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		return [][2]int{{x0, y0}}
	}
	cells := make([][2]int, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		cells = append(cells, [2]int{
			x0 + int(math.Round(float64(dx)*t)),
			y0 + int(math.Round(float64(dy)*t)),
		})
	}
	return cells
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
