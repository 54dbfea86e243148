package vectra

import "math"

// PathElement represents a single element in a vector path.
//
// PathElement is a closed sum type: MoveTo, LineTo, CubicTo and ClosePath
// are the only implementations.
type PathElement interface {
	isPathElement()
}

// MoveTo starts a new subpath at a point.
type MoveTo struct {
	Point Point
}

func (MoveTo) isPathElement() {}

// LineTo draws a line to a point.
type LineTo struct {
	Point Point
}

func (LineTo) isPathElement() {}

// CubicTo draws a cubic Bezier curve.
type CubicTo struct {
	Control1 Point
	Control2 Point
	Point    Point
}

func (CubicTo) isPathElement() {}

// ClosePath closes the current subpath.
type ClosePath struct{}

func (ClosePath) isPathElement() {}

// StrokeStyle describes an optional stroke applied to a path.
// A zero Width means the path is not stroked.
type StrokeStyle struct {
	Width float64
	Color [4]uint8 // RGBA
}

// VectorPath is the unit of output: an ordered element list plus its fill.
//
// Invariants: a well-formed path starts with a MoveTo, and all paths in a
// Document share one fill rule (even-odd) for holes.
type VectorPath struct {
	Elements []PathElement
	Fill     Fill
	Stroke   StrokeStyle

	// area is the absolute enclosed area, cached at assembly time and used
	// for draw ordering and refinement targeting.
	area float64
	// order is the discovery index, the deterministic tie-breaker.
	order int
	// region links the path back to its source region for refinement
	// actions, or -1 when the backend has no region table.
	region int32
}

// WellFormed reports whether the path starts with a MoveTo and is non-empty.
func (p *VectorPath) WellFormed() bool {
	if len(p.Elements) == 0 {
		return false
	}
	_, ok := p.Elements[0].(MoveTo)
	return ok
}

// NodeCount returns the number of elements in the path.
func (p *VectorPath) NodeCount() int { return len(p.Elements) }

// Area returns the cached absolute enclosed area of the path.
func (p *VectorPath) Area() float64 { return p.area }

// Bounds returns the control-point bounding box of the path.
// Cubic control points are included, so the box may be slightly loose.
func (p *VectorPath) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	grow := func(pt Point) {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxX = math.Max(maxX, pt.X)
		maxY = math.Max(maxY, pt.Y)
	}
	for _, el := range p.Elements {
		switch el := el.(type) {
		case MoveTo:
			grow(el.Point)
		case LineTo:
			grow(el.Point)
		case CubicTo:
			grow(el.Control1)
			grow(el.Control2)
			grow(el.Point)
		case ClosePath:
		}
	}
	return minX, minY, maxX, maxY
}

// computeArea returns the absolute area enclosed by the path using the
// shoelace formula over a coarse flattening. Open paths contribute the area
// of their implicit closure, which is what draw ordering wants.
func (p *VectorPath) computeArea() float64 {
	var sum float64
	var start, cur Point
	flat := func(a, b Point) {
		sum += a.Cross(b)
	}
	for _, el := range p.Elements {
		switch el := el.(type) {
		case MoveTo:
			start = el.Point
			cur = el.Point
		case LineTo:
			flat(cur, el.Point)
			cur = el.Point
		case CubicTo:
			// Four chords approximate the cubic well enough for ordering.
			prev := cur
			for i := 1; i <= 4; i++ {
				t := float64(i) / 4
				pt := evalCubic(cur, el.Control1, el.Control2, el.Point, t)
				flat(prev, pt)
				prev = pt
			}
			cur = el.Point
		case ClosePath:
			flat(cur, start)
			cur = start
		}
	}
	return math.Abs(sum) / 2
}

// evalCubic evaluates a cubic Bezier at parameter t.
func evalCubic(p0, p1, p2, p3 Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// splitCubic subdivides a cubic Bezier at parameter t using de Casteljau's
// construction, returning the two halves. The join point is shared, so C0
// continuity is exact and the tangent at the join is preserved.
func splitCubic(p0, p1, p2, p3 Point, t float64) (a [4]Point, b [4]Point) {
	p01 := p0.Lerp(p1, t)
	p12 := p1.Lerp(p2, t)
	p23 := p2.Lerp(p3, t)
	p012 := p01.Lerp(p12, t)
	p123 := p12.Lerp(p23, t)
	mid := p012.Lerp(p123, t)
	return [4]Point{p0, p01, p012, mid}, [4]Point{mid, p123, p23, p3}
}
