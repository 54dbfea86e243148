package fit

import (
	"math"

	"github.com/gogpu/vectra/internal/geom"
)

// Cubic is one cubic Bezier segment: endpoints at [0] and [3], control
// points at [1] and [2].
type Cubic [4]geom.Point

// Eval returns the curve position at t in [0, 1].
func (c Cubic) Eval(t float64) geom.Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	d := 3 * mt * t * t
	e := t * t * t
	return geom.Point{
		X: a*c[0].X + b*c[1].X + d*c[2].X + e*c[3].X,
		Y: a*c[0].Y + b*c[1].Y + d*c[2].Y + e*c[3].Y,
	}
}

// Options bounds the fit.
type Options struct {
	MaxError float64 // maximum perpendicular deviation in pixels
	MaxDepth int     // recursion limit for subdivision
}

// CurveChain fits a run of points with cubic segments whose deviation from
// the input stays within opts.MaxError. The chain is split at the worst
// point and refit when a single cubic cannot meet the bound, down to
// opts.MaxDepth levels; at the depth limit the best attempt is kept so the
// output never exceeds 2^MaxDepth segments per run.
func CurveChain(pts []geom.Point, opts Options) []Cubic {
	if len(pts) < 2 {
		return nil
	}
	if len(pts) == 2 {
		return []Cubic{lineCubic(pts[0], pts[1])}
	}
	t1 := tangent(pts, 0, 1)
	t2 := tangent(pts, len(pts)-1, -1)
	return fitRange(pts, t1, t2, opts, 0)
}

func fitRange(pts []geom.Point, t1, t2 geom.Point, opts Options, depth int) []Cubic {
	if len(pts) == 2 {
		return []Cubic{lineCubic(pts[0], pts[1])}
	}
	u := chordParams(pts)
	c := fitLeastSquares(pts, u, t1, t2)
	errMax, split := maxDeviation(pts, u, c)

	if errMax <= opts.MaxError || depth >= opts.MaxDepth {
		return []Cubic{c}
	}
	// A couple of reparameterization rounds often rescue a near fit
	// without splitting.
	if errMax <= 4*opts.MaxError {
		for i := 0; i < 2; i++ {
			u = reparameterize(pts, u, c)
			c = fitLeastSquares(pts, u, t1, t2)
			errMax, split = maxDeviation(pts, u, c)
			if errMax <= opts.MaxError {
				return []Cubic{c}
			}
		}
	}

	if split <= 0 || split >= len(pts)-1 {
		split = len(pts) / 2
	}
	center := tangent(pts, split, -1)
	left := fitRange(pts[:split+1], t1, center, opts, depth+1)
	right := fitRange(pts[split:], center.Mul(-1), t2, opts, depth+1)
	return append(left, right...)
}

// lineCubic builds the degenerate cubic along a straight segment.
func lineCubic(a, b geom.Point) Cubic {
	return Cubic{a, a.Lerp(b, 1.0/3), a.Lerp(b, 2.0/3), b}
}

// tangent estimates the unit tangent at index i pointing in direction dir.
func tangent(pts []geom.Point, i, dir int) geom.Point {
	j := i + dir
	if j < 0 {
		j = 0
	}
	if j >= len(pts) {
		j = len(pts) - 1
	}
	t := pts[j].Sub(pts[i]).Normalize()
	if t.Length() == 0 && len(pts) > 2 {
		// Coincident neighbor, look one further.
		k := j + dir
		if k >= 0 && k < len(pts) {
			t = pts[k].Sub(pts[i]).Normalize()
		}
	}
	return t
}

// chordParams assigns each point a parameter by normalized arc length.
func chordParams(pts []geom.Point) []float64 {
	u := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		u[i] = u[i-1] + pts[i].Distance(pts[i-1])
	}
	total := u[len(u)-1]
	if total == 0 {
		for i := range u {
			u[i] = float64(i) / float64(len(u)-1)
		}
		return u
	}
	for i := range u {
		u[i] /= total
	}
	return u
}

// fitLeastSquares solves for the two free control point distances along the
// end tangents, minimizing squared deviation over the sampled parameters.
func fitLeastSquares(pts []geom.Point, u []float64, t1, t2 geom.Point) Cubic {
	first := pts[0]
	last := pts[len(pts)-1]

	var c00, c01, c11, x0, x1 float64
	for i, p := range pts {
		t := u[i]
		mt := 1 - t
		b0 := mt * mt * mt
		b1 := 3 * mt * mt * t
		b2 := 3 * mt * t * t
		b3 := t * t * t

		a1 := t1.Mul(b1)
		a2 := t2.Mul(b2)

		c00 += a1.Dot(a1)
		c01 += a1.Dot(a2)
		c11 += a2.Dot(a2)

		tmp := p.Sub(first.Mul(b0 + b1)).Sub(last.Mul(b2 + b3))
		x0 += a1.Dot(tmp)
		x1 += a2.Dot(tmp)
	}

	det := c00*c11 - c01*c01
	var alpha1, alpha2 float64
	if math.Abs(det) > 1e-12 {
		alpha1 = (x0*c11 - x1*c01) / det
		alpha2 = (c00*x1 - c01*x0) / det
	}
	segLen := first.Distance(last)
	// Negative or tiny alphas mean the system degenerated; fall back to a
	// third of the chord.
	if alpha1 <= 1e-6*segLen || alpha2 <= 1e-6*segLen {
		alpha1 = segLen / 3
		alpha2 = segLen / 3
	}
	return Cubic{first, first.Add(t1.Mul(alpha1)), last.Add(t2.Mul(alpha2)), last}
}

// maxDeviation returns the largest point-to-curve distance and the index
// where it occurs.
func maxDeviation(pts []geom.Point, u []float64, c Cubic) (float64, int) {
	var worst float64
	split := len(pts) / 2
	for i := 1; i < len(pts)-1; i++ {
		d := pts[i].Distance(c.Eval(u[i]))
		if d > worst {
			worst = d
			split = i
		}
	}
	return worst, split
}

// reparameterize nudges each parameter toward the curve's nearest point by
// one Newton-Raphson step.
func reparameterize(pts []geom.Point, u []float64, c Cubic) []float64 {
	out := make([]float64, len(u))
	for i, p := range pts {
		out[i] = newtonStep(c, p, u[i])
	}
	return out
}

func newtonStep(c Cubic, p geom.Point, t float64) float64 {
	q := c.Eval(t)
	d1 := cubicDeriv(c, t)
	d2 := cubicDeriv2(c, t)

	diff := q.Sub(p)
	num := diff.Dot(d1)
	den := d1.Dot(d1) + diff.Dot(d2)
	if math.Abs(den) < 1e-12 {
		return t
	}
	nt := t - num/den
	return math.Max(0, math.Min(1, nt))
}

func cubicDeriv(c Cubic, t float64) geom.Point {
	mt := 1 - t
	p := c[1].Sub(c[0]).Mul(3 * mt * mt)
	p = p.Add(c[2].Sub(c[1]).Mul(6 * mt * t))
	return p.Add(c[3].Sub(c[2]).Mul(3 * t * t))
}

func cubicDeriv2(c Cubic, t float64) geom.Point {
	mt := 1 - t
	a := c[2].Sub(c[1].Mul(2)).Add(c[0]).Mul(6 * mt)
	b := c[3].Sub(c[2].Mul(2)).Add(c[1]).Mul(6 * t)
	return a.Add(b)
}

// FitPolyline runs the full pipeline on an open or closed chain: simplify,
// break at corners, and fit each run. Closed chains get their closing
// segment fitted too by wrapping the final corner run around index 0.
func FitPolyline(pts []geom.Point, closed bool, simplifyEps float64, effectiveArea bool, cornerDeg float64, opts Options) []Cubic {
	if len(pts) < 2 {
		return nil
	}
	var simple []geom.Point
	if effectiveArea {
		simple = SimplifyVW(pts, simplifyEps)
	} else {
		simple = SimplifyDP(pts, simplifyEps)
	}
	if closed && len(simple) >= 3 && simple[0] != simple[len(simple)-1] {
		simple = append(simple, simple[0])
	}
	if len(simple) < 2 {
		return nil
	}

	corners := Corners(simple, closed, cornerDeg)
	breaks := append([]int{0}, corners...)
	breaks = append(breaks, len(simple)-1)

	var out []Cubic
	for i := 0; i+1 < len(breaks); i++ {
		lo, hi := breaks[i], breaks[i+1]
		if hi <= lo {
			continue
		}
		out = append(out, CurveChain(simple[lo:hi+1], opts)...)
	}
	return out
}
