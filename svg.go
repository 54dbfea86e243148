package vectra

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// WriteSVG serializes the document as SVG. Output is deterministic: paths
// are emitted in document order, gradient ids derive from path position,
// and coordinates carry exactly the precision set at assembly time.
func (d *Document) WriteSVG(w io.Writer) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(d.Width, d.Height)

	// Gradient definitions first, in path order.
	defs := false
	for i := range d.Paths {
		p := &d.Paths[i]
		switch f := p.Fill.(type) {
		case LinearGradientFill:
			if !defs {
				canvas.Def()
				defs = true
			}
			writeLinearGradient(canvas, p, f, gradientID(i))
		case RadialGradientFill:
			if !defs {
				canvas.Def()
				defs = true
			}
			writeRadialGradient(canvas, p, f, gradientID(i))
		}
	}
	if defs {
		canvas.DefEnd()
	}

	if d.HasBackground {
		canvas.Rect(0, 0, d.Width, d.Height,
			fmt.Sprintf(`fill="#%02x%02x%02x"`, d.Background.R, d.Background.G, d.Background.B))
	}

	for i := range d.Paths {
		p := &d.Paths[i]
		canvas.Path(pathData(p), pathStyle(p, i))
	}

	canvas.End()
	return ew.err
}

func gradientID(i int) string { return "g" + strconv.Itoa(i) }

// pathData builds the d attribute from the element list.
func pathData(p *VectorPath) string {
	var b strings.Builder
	num := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	pt := func(q Point) {
		b.WriteString(num(q.X))
		b.WriteByte(' ')
		b.WriteString(num(q.Y))
	}
	for _, el := range p.Elements {
		switch el := el.(type) {
		case MoveTo:
			b.WriteString("M")
			pt(el.Point)
		case LineTo:
			b.WriteString("L")
			pt(el.Point)
		case CubicTo:
			b.WriteString("C")
			pt(el.Control1)
			b.WriteByte(' ')
			pt(el.Control2)
			b.WriteByte(' ')
			pt(el.Point)
		case ClosePath:
			b.WriteString("Z")
		}
	}
	return b.String()
}

// pathStyle builds the style attributes for one path.
func pathStyle(p *VectorPath, i int) string {
	var parts []string
	switch f := p.Fill.(type) {
	case FlatFill:
		parts = append(parts, fmt.Sprintf(`fill="#%02x%02x%02x"`, f.Color.R, f.Color.G, f.Color.B))
		if f.Color.A < 255 {
			parts = append(parts, fmt.Sprintf(`fill-opacity="%s"`, opacity(f.Color.A)))
		}
	case LinearGradientFill, RadialGradientFill:
		parts = append(parts, fmt.Sprintf(`fill="url(#%s)"`, gradientID(i)))
	default:
		parts = append(parts, `fill="none"`)
	}
	if p.Fill != nil {
		parts = append(parts, `fill-rule="evenodd"`)
	}
	if p.Stroke.Width > 0 {
		c := p.Stroke.Color
		parts = append(parts,
			fmt.Sprintf(`stroke="#%02x%02x%02x"`, c[0], c[1], c[2]),
			fmt.Sprintf(`stroke-width="%s"`, strconv.FormatFloat(p.Stroke.Width, 'f', -1, 64)),
			`stroke-linecap="round"`)
		if c[3] < 255 {
			parts = append(parts, fmt.Sprintf(`stroke-opacity="%s"`, opacity(c[3])))
		}
	}
	return strings.Join(parts, " ")
}

func opacity(a uint8) string {
	return strconv.FormatFloat(float64(a)/255, 'f', 3, 64)
}

// writeLinearGradient emits the axis as percentages of the path bounding
// box, which is how the SVG painter resolves gradient units.
func writeLinearGradient(canvas *svg.SVG, p *VectorPath, f LinearGradientFill, id string) {
	minX, minY, maxX, maxY := p.Bounds()
	x1 := bboxPercent(f.Start.X, minX, maxX)
	y1 := bboxPercent(f.Start.Y, minY, maxY)
	x2 := bboxPercent(f.End.X, minX, maxX)
	y2 := bboxPercent(f.End.Y, minY, maxY)
	canvas.LinearGradient(id, x1, y1, x2, y2, offcolors(f.Stops))
}

func writeRadialGradient(canvas *svg.SVG, p *VectorPath, f RadialGradientFill, id string) {
	minX, minY, maxX, maxY := p.Bounds()
	cx := bboxPercent(f.Center.X, minX, maxX)
	cy := bboxPercent(f.Center.Y, minY, maxY)
	r := uint8(50)
	if span := math.Max(maxX-minX, maxY-minY); span > 0 {
		r = clampPercent(f.Radius / span * 100)
	}
	canvas.RadialGradient(id, cx, cy, r, cx, cy, offcolors(f.Stops))
}

func bboxPercent(v, lo, hi float64) uint8 {
	if hi <= lo {
		return 0
	}
	return clampPercent((v - lo) / (hi - lo) * 100)
}

func clampPercent(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v + 0.5)
}

func offcolors(stops []GradientStop) []svg.Offcolor {
	out := make([]svg.Offcolor, len(stops))
	for i, s := range stops {
		out[i] = svg.Offcolor{
			Offset:  clampPercent(s.Offset * 100),
			Color:   fmt.Sprintf("#%02x%02x%02x", s.Color.R, s.Color.G, s.Color.B),
			Opacity: float64(s.Color.A) / 255,
		}
	}
	return out
}

// errWriter remembers the first write error so WriteSVG can report it; the
// svg canvas itself writes fire-and-forget.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
