package vectra

import (
	"image/color"
	"math"
	"sort"

	"github.com/gogpu/vectra/internal/colorspace"
)

// Document is the assembled vector output: a fixed canvas plus an ordered
// path list. Paths are drawn first to last, all with the even-odd fill
// rule, so order fully determines occlusion.
type Document struct {
	Width, Height int

	// Background, when present, is painted as a full-canvas rect before
	// any path.
	Background    color.NRGBA
	HasBackground bool

	Paths []VectorPath
}

// NodeCount returns the total element count across all paths.
func (d *Document) NodeCount() int {
	n := 0
	for i := range d.Paths {
		n += d.Paths[i].NodeCount()
	}
	return n
}

// assemble orders, cleans and caps the raw path list into a Document.
// Assembly is deterministic: sorting uses the configured key with the
// discovery index as the final tie-breaker, and all coordinates are
// rounded to the configured precision.
func assemble(paths []VectorPath, width, height int, cfg AssemblyConfig) *Document {
	kept := paths[:0]
	for i := range paths {
		p := &paths[i]
		p.order = i
		p.area = p.computeArea()
		if p.Stroke.Width == 0 && p.area < cfg.MinFeatureArea {
			continue
		}
		simplifyElements(p)
		roundElements(p, cfg.Precision)
		dropDegenerate(p)
		kept = append(kept, *p)
	}
	paths = kept

	sort.SliceStable(paths, func(i, j int) bool {
		a, b := &paths[i], &paths[j]
		var ka, kb float64
		switch cfg.Order {
		case OrderByLuminance:
			ka, kb = fillLuminance(a.Fill), fillLuminance(b.Fill)
		default:
			// Larger areas first so small detail paints on top.
			ka, kb = -a.area, -b.area
		}
		if cfg.Ascending {
			ka, kb = -ka, -kb
		}
		if ka != kb {
			return ka < kb
		}
		return a.order < b.order
	})

	// Node cap: drop the smallest features until the document fits.
	total := 0
	for i := range paths {
		total += paths[i].NodeCount()
	}
	for total > cfg.MaxNodes && len(paths) > 0 {
		drop := 0
		for i := 1; i < len(paths); i++ {
			if paths[i].area < paths[drop].area ||
				(paths[i].area == paths[drop].area && paths[i].order > paths[drop].order) {
				drop = i
			}
		}
		total -= paths[drop].NodeCount()
		paths = append(paths[:drop], paths[drop+1:]...)
	}

	return &Document{Width: width, Height: height, Paths: paths}
}

// simplifyElements merges runs of collinear LineTo elements in place.
func simplifyElements(p *VectorPath) {
	const collinearEps = 1e-6
	out := p.Elements[:0]
	// anchor is the endpoint of the last emitted element; prevAnchor the
	// endpoint before it, valid when the last element is a mergeable LineTo.
	var anchor, prevAnchor Point
	mergeable := false
	for _, el := range p.Elements {
		switch el := el.(type) {
		case MoveTo:
			out = append(out, el)
			anchor = el.Point
			mergeable = false
		case LineTo:
			if mergeable && collinear(prevAnchor, anchor, el.Point, collinearEps) {
				out[len(out)-1] = LineTo{Point: el.Point}
				anchor = el.Point
				continue
			}
			out = append(out, el)
			prevAnchor = anchor
			anchor = el.Point
			mergeable = true
		case CubicTo:
			out = append(out, el)
			anchor = el.Point
			mergeable = false
		case ClosePath:
			out = append(out, el)
			mergeable = false
		}
	}
	p.Elements = out
}

// collinear reports whether b lies on the segment direction a->c.
func collinear(a, b, c Point, eps float64) bool {
	area := (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
	return math.Abs(area) <= eps*(1+a.Distance(c))
}

// roundElements snaps all coordinates to the configured decimal precision.
func roundElements(p *VectorPath, precision int) {
	scale := math.Pow(10, float64(precision))
	r := func(v float64) float64 { return math.Round(v*scale) / scale }
	rp := func(pt Point) Point { return Point{X: r(pt.X), Y: r(pt.Y)} }
	for i, el := range p.Elements {
		switch el := el.(type) {
		case MoveTo:
			p.Elements[i] = MoveTo{Point: rp(el.Point)}
		case LineTo:
			p.Elements[i] = LineTo{Point: rp(el.Point)}
		case CubicTo:
			p.Elements[i] = CubicTo{
				Control1: rp(el.Control1),
				Control2: rp(el.Control2),
				Point:    rp(el.Point),
			}
		}
	}
}

// dropDegenerate removes segments that rounding collapsed onto the current
// point. Runs after roundElements; nearby coordinates can snap together at
// low precision.
func dropDegenerate(p *VectorPath) {
	out := p.Elements[:0]
	var pen, start Point
	for _, el := range p.Elements {
		switch el := el.(type) {
		case MoveTo:
			out = append(out, el)
			pen = el.Point
			start = pen
		case LineTo:
			if el.Point == pen {
				continue
			}
			out = append(out, el)
			pen = el.Point
		case CubicTo:
			if el.Point == pen && el.Control1 == pen && el.Control2 == pen {
				continue
			}
			out = append(out, el)
			pen = el.Point
		case ClosePath:
			out = append(out, el)
			pen = start
		}
	}
	p.Elements = out
}

// fillLuminance returns the perceived lightness of a fill for ordering.
// Gradients average their stops.
func fillLuminance(f Fill) float64 {
	lum := func(c color.NRGBA) float64 { return colorspace.Luminance(c.R, c.G, c.B) }
	switch f := f.(type) {
	case FlatFill:
		return lum(f.Color)
	case LinearGradientFill:
		return stopsLuminance(f.Stops)
	case RadialGradientFill:
		return stopsLuminance(f.Stops)
	default:
		return 0
	}
}

func stopsLuminance(stops []GradientStop) float64 {
	if len(stops) == 0 {
		return 0
	}
	var s float64
	for _, st := range stops {
		s += colorspace.Luminance(st.Color.R, st.Color.G, st.Color.B)
	}
	return s / float64(len(stops))
}
