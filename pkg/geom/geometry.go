// Geometric primitives for canvas-space hit testing.
// Bounds are top-left anchored; all edges are inclusive.

package geom

import "math"

// Point represents a 2D canvas coordinate.
type Point struct {
	X, Y float64
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{p.X + d.X, p.Y + d.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Size is a width/height pair.
type Size struct {
	Width, Height float64
}

// Bounds represents an axis-aligned rectangle anchored at its top-left corner.
type Bounds struct {
	X, Y          float64 // Top-left
	Width, Height float64
}

// BoundsAt builds bounds from a position and a size.
func BoundsAt(pos Point, size Size) Bounds {
	return Bounds{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}
}

// BoundsAround returns a square of half-size r centred on p.
func BoundsAround(p Point, r float64) Bounds {
	return Bounds{X: p.X - r, Y: p.Y - r, Width: 2 * r, Height: 2 * r}
}

// BoundsOf returns the smallest bounds containing every point.
func BoundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (b Bounds) Right() float64  { return b.X + b.Width }
func (b Bounds) Bottom() float64 { return b.Y + b.Height }

// Pos returns the top-left corner.
func (b Bounds) Pos() Point { return Point{b.X, b.Y} }

// Size returns the width and height.
func (b Bounds) Size() Size { return Size{b.Width, b.Height} }

// Center returns the centre point.
func (b Bounds) Center() Point {
	return Point{b.X + b.Width/2, b.Y + b.Height/2}
}

// Contains checks if a point is inside the bounds.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.Right() &&
		p.Y >= b.Y && p.Y <= b.Bottom()
}

// Intersects reports whether two bounds share at least one point.
func (b Bounds) Intersects(o Bounds) bool {
	return b.X <= o.Right() && o.X <= b.Right() &&
		b.Y <= o.Bottom() && o.Y <= b.Bottom()
}

// ContainsBounds reports whether o lies entirely inside b.
func (b Bounds) ContainsBounds(o Bounds) bool {
	return o.X >= b.X && o.Right() <= b.Right() &&
		o.Y >= b.Y && o.Bottom() <= b.Bottom()
}

// Union returns the smallest bounds containing both.
func (b Bounds) Union(o Bounds) Bounds {
	x := math.Min(b.X, o.X)
	y := math.Min(b.Y, o.Y)
	r := math.Max(b.Right(), o.Right())
	btm := math.Max(b.Bottom(), o.Bottom())
	return Bounds{X: x, Y: y, Width: r - x, Height: btm - y}
}

// Expand grows the bounds by d on every side.
func (b Bounds) Expand(d float64) Bounds {
	return Bounds{X: b.X - d, Y: b.Y - d, Width: b.Width + 2*d, Height: b.Height + 2*d}
}

// Translate moves the bounds by d.
func (b Bounds) Translate(d Point) Bounds {
	b.X += d.X
	b.Y += d.Y
	return b
}

// Direction is the direction a link leaves or enters a slot.
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
	DirCenter
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirCenter:
		return "center"
	}
	return "none"
}

// Offset returns the unit vector for the direction, zero for none/center.
func (d Direction) Offset() Point {
	switch d {
	case DirUp:
		return Point{0, -1}
	case DirDown:
		return Point{0, 1}
	case DirLeft:
		return Point{-1, 0}
	case DirRight:
		return Point{1, 0}
	}
	return Point{}
}
