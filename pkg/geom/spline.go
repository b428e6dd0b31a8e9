// Spline evaluation for link paths.
// Spline format: [P0, C1, C2, P1, C3, C4, P2, ...]; anything shorter than a
// full cubic segment is treated as a polyline.

package geom

import "math"

// pathSamples is the number of samples per cubic segment used when a
// spline is flattened for distance tests.
const pathSamples = 24

// LinkSpline builds the cubic segment a link is drawn with between two
// points. Control points are pushed a quarter of the distance along each
// end's direction, so slots on the right produce horizontal tangents.
func LinkSpline(start Point, startDir Direction, end Point, endDir Direction) []Point {
	dist := start.Dist(end) * 0.25
	so := startDir.Offset()
	eo := endDir.Offset()
	return []Point{
		start,
		{start.X + so.X*dist, start.Y + so.Y*dist},
		{end.X + eo.X*dist, end.Y + eo.Y*dist},
		end,
	}
}

func isCubic(spline []Point) bool {
	return len(spline) >= 4 && (len(spline)-1)%3 == 0
}

// EvaluateSpline computes the point on a spline at parameter t ∈ [0,1].
func EvaluateSpline(spline []Point, t float64) Point {
	if len(spline) == 0 {
		return Point{0, 0}
	}
	if len(spline) == 1 {
		return spline[0]
	}
	if !isCubic(spline) {
		// Linear interpolation for simple paths
		idx := int(t * float64(len(spline)-1))
		if idx >= len(spline)-1 {
			return spline[len(spline)-1]
		}
		localT := t*float64(len(spline)-1) - float64(idx)
		return Point{
			X: spline[idx].X*(1-localT) + spline[idx+1].X*localT,
			Y: spline[idx].Y*(1-localT) + spline[idx+1].Y*localT,
		}
	}

	numSegments := (len(spline) - 1) / 3
	segment := int(t * float64(numSegments))
	if segment >= numSegments {
		segment = numSegments - 1
	}
	localT := math.Max(0, math.Min(1, t*float64(numSegments)-float64(segment)))

	i := segment * 3
	p0, p1, p2, p3 := spline[i], spline[i+1], spline[i+2], spline[i+3]

	mt := 1 - localT
	mt2 := mt * mt
	mt3 := mt2 * mt
	t2 := localT * localT
	t3 := t2 * localT

	return Point{
		X: mt3*p0.X + 3*mt2*localT*p1.X + 3*mt*t2*p2.X + t3*p3.X,
		Y: mt3*p0.Y + 3*mt2*localT*p1.Y + 3*mt*t2*p2.Y + t3*p3.Y,
	}
}

// EvaluateSplineTangent computes the tangent vector at parameter t.
func EvaluateSplineTangent(spline []Point, t float64) Point {
	if !isCubic(spline) {
		if len(spline) >= 2 {
			return spline[len(spline)-1].Sub(spline[0])
		}
		return Point{1, 0}
	}

	numSegments := (len(spline) - 1) / 3
	segment := int(t * float64(numSegments))
	if segment >= numSegments {
		segment = numSegments - 1
	}
	localT := t*float64(numSegments) - float64(segment)

	i := segment * 3
	p0, p1, p2, p3 := spline[i], spline[i+1], spline[i+2], spline[i+3]

	// Derivative of cubic Bézier
	mt := 1 - localT
	mt2 := mt * mt
	t2 := localT * localT

	return Point{
		X: 3*mt2*(p1.X-p0.X) + 6*mt*localT*(p2.X-p1.X) + 3*t2*(p3.X-p2.X),
		Y: 3*mt2*(p1.Y-p0.Y) + 6*mt*localT*(p2.Y-p1.Y) + 3*t2*(p3.Y-p2.Y),
	}
}

// Flatten returns the polyline approximation of a spline. Polylines are
// returned unchanged.
func Flatten(spline []Point) []Point {
	if !isCubic(spline) {
		return spline
	}
	numSegments := (len(spline) - 1) / 3
	n := numSegments * pathSamples
	out := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, EvaluateSpline(spline, float64(i)/float64(n)))
	}
	return out
}

// SplineLength approximates the length of a spline by sampling.
func SplineLength(spline []Point) float64 {
	pts := Flatten(spline)
	length := 0.0
	for i := 1; i < len(pts); i++ {
		length += pts[i].Dist(pts[i-1])
	}
	return length
}

// SplineMidpoint returns the point at the middle of the spline (t=0.5).
func SplineMidpoint(spline []Point) Point {
	return EvaluateSpline(spline, 0.5)
}

// SplineBounds returns bounds containing the whole curve. A cubic Bézier
// stays inside the hull of its control points.
func SplineBounds(spline []Point) Bounds {
	return BoundsOf(spline)
}

// DistanceToPath returns the shortest distance from p to the path.
func DistanceToPath(spline []Point, p Point) float64 {
	pts := Flatten(spline)
	switch len(pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return p.Dist(pts[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		best = math.Min(best, distanceToSegment(p, pts[i-1], pts[i]))
	}
	return best
}

func distanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Dist(Point{a.X + t*dx, a.Y + t*dy})
}
