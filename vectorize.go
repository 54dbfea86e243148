package vectra

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/fillx"
	"github.com/gogpu/vectra/internal/fit"
	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/parallel"
	"github.com/gogpu/vectra/internal/segment"
	"github.com/gogpu/vectra/internal/trace"
)

// backgroundTolerance is the Lab distance within which border pixels count
// as part of the dominant background color.
const backgroundTolerance = 8.0

// maxInputPixels caps the input size the pipeline will process at full
// fidelity. Larger inputs are still accepted; they are downscaled, never
// truncated.
const maxInputPixels = 1 << 26

// Vectorize converts a raw RGBA buffer (4 bytes per pixel, row-major) into
// a vector document. Identical input, configuration and seed produce a
// byte-identical document on every run and machine.
func Vectorize(pix []uint8, width, height int, cfg Config) (*Document, Stats, error) {
	return VectorizeContext(context.Background(), pix, width, height, cfg)
}

// VectorizeImage is a convenience wrapper converting any image.Image.
func VectorizeImage(img image.Image, cfg Config) (*Document, Stats, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			pix[i+0] = uint8(r >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(bl >> 8)
			pix[i+3] = uint8(a >> 8)
		}
	}
	return Vectorize(pix, w, h, cfg)
}

// VectorizeContext is Vectorize with cancellation between stages. A
// cancelled context aborts before the next stage starts; the refinement
// loop additionally honors it between iterations.
func VectorizeContext(ctx context.Context, pix []uint8, width, height int, cfg Config) (*Document, Stats, error) {
	stats := Stats{
		Backend:     cfg.Backend.String(),
		InputWidth:  width,
		InputHeight: height,
	}
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	src, err := imaging.FromRGBA(pix, width, height)
	if err != nil {
		return nil, stats, err
	}

	log := Logger()
	clock := newStageClock(&stats)
	workers := parallel.Workers(0)

	st := &pipeState{cfg: cfg, workers: workers, timing: NewSpeedupTable()}

	// Preprocess: bound size, optionally denoise.
	st.img = imaging.Resize(src, cfg.Preprocess.MaxDimension)
	if d := budgetDimension(st.img.W, st.img.H, maxInputPixels); d > 0 {
		log.Warn("input exceeds processing budget, downscaling",
			"err", fmt.Errorf("%d pixels: %w", st.img.W*st.img.H, ErrResourceExhausted),
			"maxDimension", d)
		st.img = imaging.Resize(st.img, d)
	}
	if cfg.Preprocess.Denoise {
		st.img = imaging.BilateralDenoise(st.img, 25)
	}
	stats.Width, stats.Height = st.img.W, st.img.H
	st.gray = st.img.Gray()
	st.lab = st.img.Lab()
	clock.lap("preprocess")
	log.Debug("preprocessed", "width", st.img.W, "height", st.img.H,
		"backend", cfg.Backend.String())

	if cfg.Preprocess.RemoveBackground {
		bg, inlier := imaging.DetectBackground(st.lab, backgroundTolerance)
		if inlier >= 0.5 {
			r, g, b := colorspace.LabToRGB(bg)
			st.bg = bg
			st.hasBG = true
			st.bgColor = color.NRGBA{R: r, G: g, B: b, A: 255}
			log.Debug("background detected", "inlier", inlier)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	var paths []VectorPath
	switch cfg.Backend {
	case BackendSegmentation:
		paths = st.runSegmentation(&stats)
	case BackendContour:
		paths = st.runContour()
	case BackendCenterline:
		paths = st.runCenterline()
	case BackendEdge:
		paths = st.runEdge()
	case BackendDots:
		paths = st.runDots()
	}
	clock.lap("trace")
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	doc := assemble(paths, st.img.W, st.img.H, cfg.Assembly)
	if st.hasBG {
		doc.Background = st.bgColor
		doc.HasBackground = true
	}
	clock.lap("assemble")

	if cfg.Refine.Enabled {
		st.refineDocument(ctx, doc, &stats)
		clock.lap("refine")
	}

	stats.Paths = len(doc.Paths)
	stats.Nodes = doc.NodeCount()
	log.Info("vectorized", "paths", stats.Paths, "nodes", stats.Nodes,
		"backend", stats.Backend)
	return doc, stats, nil
}

// pipeState carries the per-call working set through the stages.
type pipeState struct {
	cfg     Config
	workers int
	// timing is the call-scoped kernel speedup history.
	timing SpeedupTable

	img  *imaging.Raster
	gray []float32
	lab  *imaging.LabImage

	bg      colorspace.Lab
	hasBG   bool
	bgColor color.NRGBA

	// segMap survives until refinement so split actions can reuse it.
	segMap *segment.Map
	grad   *imaging.GradientField
}

func (st *pipeState) fitOpts() fit.Options {
	return fit.Options{
		MaxError: st.cfg.Fit.MaxError,
		MaxDepth: st.cfg.Fit.MaxSubdivisionDepth,
	}
}

// binarize produces the ink bitmap for the binary backends.
func (st *pipeState) binarize() *imaging.Bitmap {
	var b *imaging.Bitmap
	switch st.cfg.Preprocess.Threshold {
	case ThresholdFixed:
		b = imaging.ThresholdGlobal(st.gray, st.img.W, st.img.H,
			float64(st.cfg.Preprocess.FixedThreshold)/255)
	case ThresholdAdaptive:
		b = imaging.ThresholdAdaptive(st.gray, st.img.W, st.img.H, 15, 0.02)
	default:
		b = imaging.ThresholdGlobal(st.gray, st.img.W, st.img.H, imaging.OtsuThreshold(st.gray))
	}
	if st.hasBG {
		// Ink matching the detected background is paper texture, not strokes.
		mask := imaging.BackgroundMask(st.lab, st.bg, backgroundTolerance)
		for i := range b.Bits {
			if mask.Bits[i] {
				b.Bits[i] = false
			}
		}
	}
	if r := st.cfg.Preprocess.MorphologyRadius; r > 0 {
		b = imaging.Close(imaging.Open(b, r), r)
	}
	if st.cfg.Preprocess.MinComponentArea > 0 {
		imaging.FilterComponents(b, st.cfg.Preprocess.MinComponentArea)
	}
	return b
}

// contourElements converts fitted closed chains to path elements.
func contourElements(chains [][]fit.Cubic) []PathElement {
	var els []PathElement
	for _, cs := range chains {
		if len(cs) == 0 {
			continue
		}
		els = append(els, MoveTo{Point: fromGeom(cs[0][0])})
		for _, c := range cs {
			els = append(els, CubicTo{
				Control1: fromGeom(c[1]),
				Control2: fromGeom(c[2]),
				Point:    fromGeom(c[3]),
			})
		}
		els = append(els, ClosePath{})
	}
	return els
}

// openElements converts one fitted open chain to path elements.
func openElements(cs []fit.Cubic) []PathElement {
	if len(cs) == 0 {
		return nil
	}
	els := []PathElement{MoveTo{Point: fromGeom(cs[0][0])}}
	for _, c := range cs {
		els = append(els, CubicTo{
			Control1: fromGeom(c[1]),
			Control2: fromGeom(c[2]),
			Point:    fromGeom(c[3]),
		})
	}
	return els
}

func fromGeom(p geom.Point) Point { return Point{X: p.X, Y: p.Y} }

// runSegmentation clusters the image into regions and emits one filled
// path per surviving region.
func (st *pipeState) runSegmentation(stats *Stats) []VectorPath {
	cfg := st.cfg
	st.grad = dispatchGradient(st.gray, st.img.W, st.img.H, st.workers, st.timing)

	maxArea := cfg.Segment.MaxRegionArea
	if maxArea == 0 {
		maxArea = st.img.W * st.img.H / 4
	}
	m := segment.Superpixels(st.lab, segment.Options{
		TargetRegions:  cfg.Segment.TargetRegions,
		Compactness:    cfg.Segment.Compactness,
		MaxIterations:  cfg.Segment.MaxIterations,
		ConvergenceEps: cfg.Segment.ConvergenceEps,
		Seeds:          segment.SeedMode(cfg.Segment.Seeds),
		Seed:           cfg.Seed,
		MinRegionArea:  cfg.Segment.MinRegionArea,
		Workers:        st.workers,
	})
	g := segment.BuildGraph(m, st.grad)
	segment.MergeSimilar(g, segment.MergeOptions{
		Threshold:     cfg.Segment.MergeThreshold,
		MaxRegionArea: maxArea,
	})
	st.segMap = m
	stats.Regions = m.AliveCount()
	Logger().Debug("segmented", "regions", stats.Regions)

	var paths []VectorPath
	for id := range m.Regions {
		if p, ok := st.regionPath(int32(id)); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// regionPath traces and fits one region into a filled path.
func (st *pipeState) regionPath(id int32) (VectorPath, bool) {
	m := st.segMap
	reg := m.Region(id)
	if !reg.Alive || reg.Area == 0 {
		return VectorPath{}, false
	}
	if st.hasBG && colorspace.DeltaE(reg.MeanLab, st.bg) < backgroundTolerance {
		return VectorPath{}, false
	}

	// Region mask over its bounding box, traced in full-image coordinates.
	bw := reg.MaxX - reg.MinX + 3
	bh := reg.MaxY - reg.MinY + 3
	mask := imaging.NewBitmap(bw, bh)
	for y := reg.MinY; y <= reg.MaxY; y++ {
		for x := reg.MinX; x <= reg.MaxX; x++ {
			if m.Labels[y*m.W+x] == id {
				mask.Set(x-reg.MinX+1, y-reg.MinY+1, true)
			}
		}
	}
	contours := trace.Contours(mask)
	if len(contours) == 0 {
		// Degenerate mask; the region is dropped rather than failing the
		// whole call.
		Logger().Warn("region tracing degraded",
			"err", processingErr("trace", "no closed contour for region %d", id))
		return VectorPath{}, false
	}

	offX := float64(reg.MinX - 1)
	offY := float64(reg.MinY - 1)
	var chains [][]fit.Cubic
	for _, c := range contours {
		if len(c.Points) < 4 {
			continue
		}
		pts := make([]geom.Point, len(c.Points))
		for i, p := range c.Points {
			pts[i] = geom.Pt(p.X+offX, p.Y+offY)
		}
		cs := fit.FitPolyline(pts, true,
			st.cfg.Fit.SimplifyEpsilon, st.cfg.Fit.UseEffectiveArea,
			st.cfg.Fit.CornerDegrees, st.fitOpts())
		if len(cs) > 0 {
			chains = append(chains, cs)
		}
	}
	if len(chains) == 0 {
		return VectorPath{}, false
	}

	res := fillx.Analyze(st.img, st.lab, st.regionPixels(id), fillx.Options{
		EnableGradients:     st.cfg.Fill.EnableGradients,
		MaxStops:            st.cfg.Fill.MaxStops,
		ElongationThreshold: st.cfg.Fill.ElongationThreshold,
		MinSpan:             2 * st.cfg.Segment.MergeThreshold,
	})
	return VectorPath{
		Elements: contourElements(chains),
		Fill:     fillFromResult(res),
		region:   id,
	}, true
}

// regionPixels enumerates a region's pixels in row-major order.
func (st *pipeState) regionPixels(id int32) func(func(x, y int)) {
	m := st.segMap
	reg := m.Region(id)
	return func(yield func(x, y int)) {
		for y := reg.MinY; y <= reg.MaxY; y++ {
			for x := reg.MinX; x <= reg.MaxX; x++ {
				if m.Labels[y*m.W+x] == id {
					yield(x, y)
				}
			}
		}
	}
}

// fillFromResult converts the analysis result into the document fill type.
func fillFromResult(res fillx.Result) Fill {
	toStops := func(in []fillx.Stop) []GradientStop {
		out := make([]GradientStop, len(in))
		for i, s := range in {
			out[i] = GradientStop{
				Offset: s.Offset,
				Color:  color.NRGBA{R: s.RGBA[0], G: s.RGBA[1], B: s.RGBA[2], A: s.RGBA[3]},
			}
		}
		return out
	}
	switch res.Kind {
	case fillx.Linear:
		return LinearGradientFill{
			Start: Point{X: res.Start.X, Y: res.Start.Y},
			End:   Point{X: res.End.X, Y: res.End.Y},
			Stops: toStops(res.Stops),
		}
	case fillx.Radial:
		return RadialGradientFill{
			Center: Point{X: res.Center.X, Y: res.Center.Y},
			Radius: res.Radius,
			Stops:  toStops(res.Stops),
		}
	default:
		return FlatFill{Color: color.NRGBA{
			R: res.RGBA[0], G: res.RGBA[1], B: res.RGBA[2], A: res.RGBA[3],
		}}
	}
}

// runContour binarizes the image and emits one filled path per connected
// ink component, holes included.
func (st *pipeState) runContour() []VectorPath {
	b := st.binarize()
	labels, comps := imaging.LabelComponents(b)

	var paths []VectorPath
	for _, comp := range comps {
		bw := comp.MaxX - comp.MinX + 3
		bh := comp.MaxY - comp.MinY + 3
		mask := imaging.NewBitmap(bw, bh)
		for y := comp.MinY; y <= comp.MaxY; y++ {
			for x := comp.MinX; x <= comp.MaxX; x++ {
				if b.Get(x, y) && labels[y*b.W+x] == int32(comp.Label) {
					mask.Set(x-comp.MinX+1, y-comp.MinY+1, true)
				}
			}
		}
		contours := trace.Contours(mask)
		offX := float64(comp.MinX - 1)
		offY := float64(comp.MinY - 1)
		var chains [][]fit.Cubic
		for _, c := range contours {
			if len(c.Points) < 4 {
				continue
			}
			pts := make([]geom.Point, len(c.Points))
			for i, p := range c.Points {
				pts[i] = geom.Pt(p.X+offX, p.Y+offY)
			}
			cs := fit.FitPolyline(pts, true,
				st.cfg.Fit.SimplifyEpsilon, st.cfg.Fit.UseEffectiveArea,
				st.cfg.Fit.CornerDegrees, st.fitOpts())
			if len(cs) > 0 {
				chains = append(chains, cs)
			}
		}
		if len(chains) == 0 {
			continue
		}
		res := fillx.Analyze(st.img, st.lab, componentPixels(b, labels, comp), fillx.Options{
			EnableGradients:     st.cfg.Fill.EnableGradients,
			MaxStops:            st.cfg.Fill.MaxStops,
			ElongationThreshold: st.cfg.Fill.ElongationThreshold,
			MinSpan:             5,
		})
		paths = append(paths, VectorPath{
			Elements: contourElements(chains),
			Fill:     fillFromResult(res),
			region:   -1,
		})
	}
	return paths
}

func componentPixels(b *imaging.Bitmap, labels []int32, comp imaging.Component) func(func(x, y int)) {
	return func(yield func(x, y int)) {
		for y := comp.MinY; y <= comp.MaxY; y++ {
			for x := comp.MinX; x <= comp.MaxX; x++ {
				if b.Get(x, y) && labels[y*b.W+x] == int32(comp.Label) {
					yield(x, y)
				}
			}
		}
	}
}

// runCenterline thins the ink to a skeleton and emits stroked open paths.
func (st *pipeState) runCenterline() []VectorPath {
	b := st.binarize()
	inkArea := b.Count()
	sk := trace.Thin(b)
	trace.PruneBranches(sk, st.cfg.Trace.MinBranchLength)
	lines := trace.Centerlines(sk)

	// Stroke width from ink mass over skeleton length.
	var skLen float64
	for i := range lines {
		skLen += lines[i].Length()
	}
	width := 2.0
	if skLen > 0 {
		width = math.Max(1, math.Min(8, float64(inkArea)/skLen))
	}
	strokeColor := st.meanInkColor(b)

	var paths []VectorPath
	for i := range lines {
		ln := &lines[i]
		if len(ln.Points) < 2 || float64(len(ln.Points)) < float64(st.cfg.Trace.MinBranchLength) {
			continue
		}
		cs := fit.FitPolyline(ln.Points, ln.Closed,
			st.cfg.Fit.SimplifyEpsilon, st.cfg.Fit.UseEffectiveArea,
			st.cfg.Fit.CornerDegrees, st.fitOpts())
		els := openElements(cs)
		if els == nil {
			continue
		}
		if ln.Closed {
			els = append(els, ClosePath{})
		}
		paths = append(paths, VectorPath{
			Elements: els,
			Stroke:   StrokeStyle{Width: width, Color: strokeColor},
			region:   -1,
		})
	}
	return paths
}

// meanInkColor averages the source color under the ink mask.
func (st *pipeState) meanInkColor(b *imaging.Bitmap) [4]uint8 {
	var sr, sg, sb, n float64
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if !b.Get(x, y) {
				continue
			}
			r, g, bl, _ := st.img.At(x, y)
			sr += float64(r)
			sg += float64(g)
			sb += float64(bl)
			n++
		}
	}
	if n == 0 {
		return [4]uint8{0, 0, 0, 255}
	}
	return [4]uint8{uint8(sr/n + 0.5), uint8(sg/n + 0.5), uint8(sb/n + 0.5), 255}
}

// runEdge walks flow-guided polylines along detected edges and emits them
// as thin strokes.
// edgeBlurSigma is the Gaussian support applied before the edge gradient.
// Single-pixel noise otherwise seeds spurious one-step walks.
const edgeBlurSigma = 1.0

func (st *pipeState) runEdge() []VectorPath {
	cfg := st.cfg
	gray := imaging.GaussianBlur(st.gray, st.img.W, st.img.H, edgeBlurSigma)
	st.grad = dispatchGradient(gray, st.img.W, st.img.H, st.workers, st.timing)
	flow := trace.TangentFlow(st.grad, cfg.Trace.FlowSmoothingIterations,
		cfg.Trace.FlowRadius, st.workers)
	lines := trace.EdgePolylines(flow, trace.WalkOptions{
		Low:        cfg.Trace.EdgeLowThreshold,
		High:       cfg.Trace.EdgeHighThreshold,
		MaxTurnDeg: cfg.Trace.MaxTurnDegrees,
		Multipass:  cfg.Trace.Multipass,
		DedupDist:  cfg.Trace.DedupProximity,
		DedupAngle: cfg.Trace.DedupAngleDegrees,
	})

	var paths []VectorPath
	for i := range lines {
		ln := &lines[i]
		if len(ln.Points) < 2 {
			continue
		}
		cs := fit.FitPolyline(ln.Points, false,
			cfg.Fit.SimplifyEpsilon, cfg.Fit.UseEffectiveArea,
			cfg.Fit.CornerDegrees, st.fitOpts())
		els := openElements(cs)
		if els == nil {
			continue
		}
		paths = append(paths, VectorPath{
			Elements: els,
			Stroke:   StrokeStyle{Width: 1.5, Color: st.polylineColor(ln.Points)},
			region:   -1,
		})
	}
	return paths
}

// polylineColor samples the source color along the line.
func (st *pipeState) polylineColor(pts []geom.Point) [4]uint8 {
	var sr, sg, sb, n float64
	for _, p := range pts {
		x := clampToRange(int(p.X), 0, st.img.W-1)
		y := clampToRange(int(p.Y), 0, st.img.H-1)
		r, g, b, _ := st.img.At(x, y)
		sr += float64(r)
		sg += float64(g)
		sb += float64(b)
		n++
	}
	if n == 0 {
		return [4]uint8{0, 0, 0, 255}
	}
	return [4]uint8{uint8(sr/n + 0.5), uint8(sg/n + 0.5), uint8(sb/n + 0.5), 255}
}

// runDots places darkness-weighted stipples and emits one small filled
// circle per dot.
func (st *pipeState) runDots() []VectorPath {
	cfg := st.cfg
	accept := dispatchDots(st.gray, st.img.W, st.img.H, imaging.DotParams{
		Seed:      uint32(cfg.Seed),
		Density:   cfg.Trace.DotDensity,
		Gamma:     1.8,
		MinRadius: cfg.Trace.DotMinRadius,
		MaxRadius: cfg.Trace.DotMaxRadius,
	}, st.workers, st.timing)
	dots := imaging.CollectDots(accept, st.img.W, st.img.H, cfg.Trace.DotMaxRadius*2)

	paths := make([]VectorPath, 0, len(dots))
	for _, d := range dots {
		x := clampToRange(int(d.X), 0, st.img.W-1)
		y := clampToRange(int(d.Y), 0, st.img.H-1)
		r, g, b, _ := st.img.At(x, y)
		paths = append(paths, VectorPath{
			Elements: circleElements(Point{X: d.X, Y: d.Y}, d.Radius),
			Fill:     FlatFill{Color: color.NRGBA{R: r, G: g, B: b, A: 255}},
			region:   -1,
		})
	}
	return paths
}

// circleKappa is the control distance factor approximating a quarter
// circle with one cubic.
const circleKappa = 0.5522847498307936

// circleElements builds a four-cubic circle path.
func circleElements(c Point, r float64) []PathElement {
	k := r * circleKappa
	return []PathElement{
		MoveTo{Point: Point{X: c.X + r, Y: c.Y}},
		CubicTo{
			Control1: Point{X: c.X + r, Y: c.Y + k},
			Control2: Point{X: c.X + k, Y: c.Y + r},
			Point:    Point{X: c.X, Y: c.Y + r},
		},
		CubicTo{
			Control1: Point{X: c.X - k, Y: c.Y + r},
			Control2: Point{X: c.X - r, Y: c.Y + k},
			Point:    Point{X: c.X - r, Y: c.Y},
		},
		CubicTo{
			Control1: Point{X: c.X - r, Y: c.Y - k},
			Control2: Point{X: c.X - k, Y: c.Y - r},
			Point:    Point{X: c.X, Y: c.Y - r},
		},
		CubicTo{
			Control1: Point{X: c.X + k, Y: c.Y - r},
			Control2: Point{X: c.X + r, Y: c.Y - k},
			Point:    Point{X: c.X + r, Y: c.Y},
		},
		ClosePath{},
	}
}

// budgetDimension returns the longest-side bound that keeps a w by h image
// within budget pixels after resizing, or 0 when it already fits. The
// returned bound accounts for the rounding Resize applies to the short side.
func budgetDimension(w, h, budget int) int {
	if w*h <= budget {
		return 0
	}
	long := max(w, h)
	d := int(float64(long) * math.Sqrt(float64(budget)/float64(w*h)))
	if d < 1 {
		d = 1
	}
	for d > 1 {
		s := float64(d) / float64(long)
		nw := max(1, int(float64(w)*s+0.5))
		nh := max(1, int(float64(h)*s+0.5))
		if nw*nh <= budget {
			break
		}
		d--
	}
	return d
}

func clampToRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
