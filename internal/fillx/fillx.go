// Package fillx estimates paint for a traced region: a flat color when the
// region is uniform, or a linear/radial gradient when color varies smoothly
// along a principal axis.
package fillx

import (
	"math"
	"sort"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
)

// Kind discriminates the analysis result.
type Kind int

const (
	Flat Kind = iota
	Linear
	Radial
)

// Stop is one gradient stop with a premixed sRGB color.
type Stop struct {
	Offset float64
	RGBA   [4]uint8
}

// Result describes the paint chosen for a region.
type Result struct {
	Kind  Kind
	RGBA  [4]uint8 // flat color
	Start geom.Point
	End   geom.Point
	// Radial axis.
	Center geom.Point
	Radius float64
	Stops  []Stop
}

// Options tunes gradient detection.
type Options struct {
	EnableGradients bool
	MaxStops        int
	// ElongationThreshold selects linear over radial when the region's
	// principal spread exceeds the secondary by this ratio.
	ElongationThreshold float64
	// MinSpan is the minimum color distance between the extreme stops
	// for a gradient to beat a flat fill.
	MinSpan float64
}

// pixelFn yields region pixels: the callback receives pixel coordinates.
// Iteration order must be deterministic.
type pixelFn func(yield func(x, y int))

// Analyze picks paint for the region whose pixels are enumerated by each.
// The decision is made in Lab space; emitted colors are sRGB.
func Analyze(img *imaging.Raster, lab *imaging.LabImage, each pixelFn, opts Options) Result {
	// First pass: mean color and spatial moments.
	var n float64
	var sr, sg, sb, sa float64
	var sx, sy float64
	each(func(x, y int) {
		r, g, b, a := img.At(x, y)
		sr += float64(r)
		sg += float64(g)
		sb += float64(b)
		sa += float64(a)
		sx += float64(x)
		sy += float64(y)
		n++
	})
	if n == 0 {
		return Result{Kind: Flat, RGBA: [4]uint8{0, 0, 0, 255}}
	}
	flat := [4]uint8{
		uint8(sr/n + 0.5), uint8(sg/n + 0.5), uint8(sb/n + 0.5), uint8(sa/n + 0.5),
	}
	if !opts.EnableGradients || n < 16 {
		return Result{Kind: Flat, RGBA: flat}
	}
	cx, cy := sx/n, sy/n

	// Second pass: spatial covariance.
	var cxx, cxy, cyy float64
	each(func(x, y int) {
		dx := float64(x) - cx
		dy := float64(y) - cy
		cxx += dx * dx
		cxy += dx * dy
		cyy += dy * dy
	})
	cxx /= n
	cxy /= n
	cyy /= n

	l1, l2, ax, ay := eigen2(cxx, cxy, cyy)
	if l1 < 1e-9 {
		return Result{Kind: Flat, RGBA: flat}
	}
	elongation := math.Inf(1)
	if l2 > 1e-9 {
		elongation = math.Sqrt(l1 / l2)
	}

	radial := elongation < opts.ElongationThreshold

	// Third pass: project pixels and collect samples along the axis.
	type sample struct {
		t   float64
		lab colorspace.Lab
		i   int
	}
	var samples []sample
	idx := 0
	each(func(x, y int) {
		var t float64
		if radial {
			t = math.Hypot(float64(x)-cx, float64(y)-cy)
		} else {
			t = (float64(x)-cx)*ax + (float64(y)-cy)*ay
		}
		samples = append(samples, sample{t: t, lab: lab.At(x, y), i: idx})
		idx++
	})
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].t != samples[j].t {
			return samples[i].t < samples[j].t
		}
		return samples[i].i < samples[j].i
	})

	// Stops at the 5%, 50% and 95% projection quantiles, each colored by
	// the mean of its surrounding 10% band.
	quants := []float64{0.05, 0.50, 0.95}
	if opts.MaxStops == 2 {
		quants = []float64{0.05, 0.95}
	}
	lo := samples[0].t
	hi := samples[len(samples)-1].t
	if hi-lo < 1e-9 {
		return Result{Kind: Flat, RGBA: flat}
	}

	stops := make([]Stop, 0, len(quants))
	var labStops []colorspace.Lab
	for _, q := range quants {
		l := bandMean(samples, q, func(s sample) colorspace.Lab { return s.lab })
		labStops = append(labStops, l)
		r, g, b := colorspace.LabToRGB(l)
		stops = append(stops, Stop{
			Offset: q,
			RGBA:   [4]uint8{r, g, b, flat[3]},
		})
	}
	if colorspace.DeltaE(labStops[0], labStops[len(labStops)-1]) < opts.MinSpan {
		return Result{Kind: Flat, RGBA: flat}
	}

	// Map quantile offsets back onto geometry.
	tAt := func(q float64) float64 {
		return samples[int(q*float64(len(samples)-1))].t
	}
	t0, t1 := tAt(0.05), tAt(0.95)
	for i := range stops {
		stops[i].Offset = float64(i) / float64(len(stops)-1)
	}

	if radial {
		return Result{
			Kind:   Radial,
			RGBA:   flat,
			Center: geom.Pt(cx, cy),
			Radius: t1,
			Stops:  stops,
		}
	}
	return Result{
		Kind:  Linear,
		RGBA:  flat,
		Start: geom.Pt(cx+ax*t0, cy+ay*t0),
		End:   geom.Pt(cx+ax*t1, cy+ay*t1),
		Stops: stops,
	}
}

// bandMean averages the Lab color in a 10% band around quantile q.
func bandMean[T any](samples []T, q float64, labOf func(T) colorspace.Lab) colorspace.Lab {
	n := len(samples)
	lo := int((q - 0.05) * float64(n))
	hi := int((q + 0.05) * float64(n))
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if hi <= lo {
		hi = lo + 1
	}
	var sl, sa, sb float64
	for _, s := range samples[lo:hi] {
		l := labOf(s)
		sl += float64(l.L)
		sa += float64(l.A)
		sb += float64(l.B)
	}
	c := float64(hi - lo)
	return colorspace.Lab{L: float32(sl / c), A: float32(sa / c), B: float32(sb / c)}
}

// eigen2 returns the eigenvalues (l1 >= l2) and the unit eigenvector of l1
// for the symmetric matrix [[a, b], [b, c]].
func eigen2(a, b, c float64) (l1, l2, vx, vy float64) {
	tr := a + c
	det := a*c - b*b
	disc := math.Sqrt(math.Max(0, tr*tr/4-det))
	l1 = tr/2 + disc
	l2 = tr/2 - disc

	if math.Abs(b) > 1e-12 {
		vx, vy = l1-c, b
	} else if a >= c {
		vx, vy = 1, 0
	} else {
		vx, vy = 0, 1
	}
	l := math.Hypot(vx, vy)
	if l > 0 {
		vx /= l
		vy /= l
	}
	return l1, l2, vx, vy
}
