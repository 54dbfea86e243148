// Package rasterize renders filled polygons and stroked polylines into an
// RGBA buffer. It exists so vector output can be compared against the
// source image; it favors determinism and simplicity over raw speed.
package rasterize

import (
	"math"
	"sort"

	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
)

// Paint returns the sRGB color of a shape at a point.
type Paint interface {
	ColorAt(x, y float64) [4]uint8
}

// FlatPaint is a single color.
type FlatPaint [4]uint8

func (p FlatPaint) ColorAt(x, y float64) [4]uint8 { return [4]uint8(p) }

// Stop is one gradient stop.
type Stop struct {
	Offset float64
	RGBA   [4]uint8
}

// LinearPaint interpolates stops along an axis, clamping beyond the ends.
type LinearPaint struct {
	Start, End geom.Point
	Stops      []Stop
}

func (p LinearPaint) ColorAt(x, y float64) [4]uint8 {
	d := p.End.Sub(p.Start)
	l2 := d.LengthSquared()
	t := 0.0
	if l2 > 0 {
		t = geom.Pt(x, y).Sub(p.Start).Dot(d) / l2
	}
	return colorAtOffset(p.Stops, t)
}

// RadialPaint interpolates stops by distance from a center.
type RadialPaint struct {
	Center geom.Point
	Radius float64
	Stops  []Stop
}

func (p RadialPaint) ColorAt(x, y float64) [4]uint8 {
	t := 0.0
	if p.Radius > 0 {
		t = geom.Pt(x, y).Distance(p.Center) / p.Radius
	}
	return colorAtOffset(p.Stops, t)
}

func colorAtOffset(stops []Stop, t float64) [4]uint8 {
	if len(stops) == 0 {
		return [4]uint8{0, 0, 0, 255}
	}
	if t <= stops[0].Offset {
		return stops[0].RGBA
	}
	last := stops[len(stops)-1]
	if t >= last.Offset {
		return last.RGBA
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].Offset {
			a, b := stops[i-1], stops[i]
			span := b.Offset - a.Offset
			f := 0.0
			if span > 0 {
				f = (t - a.Offset) / span
			}
			var out [4]uint8
			for k := 0; k < 4; k++ {
				out[k] = uint8(float64(a.RGBA[k]) + f*(float64(b.RGBA[k])-float64(a.RGBA[k])) + 0.5)
			}
			return out
		}
	}
	return last.RGBA
}

const subsamples = 4

// FillPolygons renders the polygons as one even-odd filled shape with
// antialiased edges, blending source-over into dst.
func FillPolygons(dst *imaging.Raster, polys [][]geom.Point, paint Paint) {
	if len(polys) == 0 {
		return
	}
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, poly := range polys {
		for _, p := range poly {
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
	}
	y0 := clampInt(int(math.Floor(minY)), 0, dst.H-1)
	y1 := clampInt(int(math.Ceil(maxY)), 0, dst.H-1)

	cov := make([]float64, dst.W)
	var xs []float64
	for y := y0; y <= y1; y++ {
		for i := range cov {
			cov[i] = 0
		}
		for s := 0; s < subsamples; s++ {
			sy := float64(y) + (float64(s)+0.5)/subsamples
			xs = xs[:0]
			for _, poly := range polys {
				n := len(poly)
				for i := 0; i < n; i++ {
					a := poly[i]
					b := poly[(i+1)%n]
					if (a.Y <= sy) == (b.Y <= sy) {
						continue
					}
					t := (sy - a.Y) / (b.Y - a.Y)
					xs = append(xs, a.X+t*(b.X-a.X))
				}
			}
			sort.Float64s(xs)
			for i := 0; i+1 < len(xs); i += 2 {
				addSpan(cov, xs[i], xs[i+1], 1.0/subsamples, dst.W)
			}
		}
		for x := 0; x < dst.W; x++ {
			if cov[x] <= 0 {
				continue
			}
			c := paint.ColorAt(float64(x)+0.5, float64(y)+0.5)
			blend(dst, x, y, c, math.Min(1, cov[x]))
		}
	}
}

// addSpan accumulates coverage for the horizontal span [x0, x1).
func addSpan(cov []float64, x0, x1, weight float64, w int) {
	if x1 <= x0 {
		return
	}
	x0 = math.Max(x0, 0)
	x1 = math.Min(x1, float64(w))
	if x1 <= x0 {
		return
	}
	i0 := int(x0)
	i1 := int(x1)
	if i0 == i1 {
		cov[i0] += (x1 - x0) * weight
		return
	}
	cov[i0] += (float64(i0+1) - x0) * weight
	for i := i0 + 1; i < i1; i++ {
		cov[i] += weight
	}
	if i1 < w {
		cov[i1] += (x1 - float64(i1)) * weight
	}
}

// StrokePolyline draws the polyline with round caps by stamping discs at
// half-pixel intervals. Coverage saturates, so overlapping stamps do not
// darken the line.
func StrokePolyline(dst *imaging.Raster, pts []geom.Point, width float64, color [4]uint8, closed bool) {
	if len(pts) == 0 || width <= 0 {
		return
	}
	r := width / 2
	pad := int(math.Ceil(r)) + 1

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	bx0 := clampInt(int(minX)-pad, 0, dst.W-1)
	by0 := clampInt(int(minY)-pad, 0, dst.H-1)
	bx1 := clampInt(int(maxX)+pad, 0, dst.W-1)
	by1 := clampInt(int(maxY)+pad, 0, dst.H-1)
	bw := bx1 - bx0 + 1
	bh := by1 - by0 + 1
	if bw <= 0 || bh <= 0 {
		return
	}
	cov := make([]float64, bw*bh)

	stamp := func(c geom.Point) {
		x0 := clampInt(int(c.X-r-1), bx0, bx1)
		x1 := clampInt(int(c.X+r+1), bx0, bx1)
		y0 := clampInt(int(c.Y-r-1), by0, by1)
		y1 := clampInt(int(c.Y+r+1), by0, by1)
		for py := y0; py <= y1; py++ {
			for px := x0; px <= x1; px++ {
				d := math.Hypot(float64(px)+0.5-c.X, float64(py)+0.5-c.Y)
				// 1px antialiasing band around the disc edge.
				a := r + 0.5 - d
				if a <= 0 {
					continue
				}
				if a > 1 {
					a = 1
				}
				i := (py-by0)*bw + (px - bx0)
				if a > cov[i] {
					cov[i] = a
				}
			}
		}
	}

	n := len(pts)
	segs := n - 1
	if closed {
		segs = n
	}
	for i := 0; i < segs; i++ {
		a := pts[i]
		b := pts[(i+1)%n]
		dist := a.Distance(b)
		steps := int(dist*2) + 1
		for k := 0; k <= steps; k++ {
			stamp(a.Lerp(b, float64(k)/float64(steps)))
		}
	}

	for py := by0; py <= by1; py++ {
		for px := bx0; px <= bx1; px++ {
			if a := cov[(py-by0)*bw+(px-bx0)]; a > 0 {
				blend(dst, px, py, color, a)
			}
		}
	}
}

// blend composites c over dst at (x, y) with extra coverage alpha.
func blend(dst *imaging.Raster, x, y int, c [4]uint8, cover float64) {
	i := (y*dst.W + x) * 4
	a := float64(c[3]) / 255 * cover
	if a <= 0 {
		return
	}
	for k := 0; k < 3; k++ {
		old := float64(dst.Pix[i+k])
		dst.Pix[i+k] = uint8(float64(c[k])*a + old*(1-a) + 0.5)
	}
	oldA := float64(dst.Pix[i+3]) / 255
	na := a + oldA*(1-a)
	dst.Pix[i+3] = uint8(na*255 + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
