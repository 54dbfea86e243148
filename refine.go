package vectra

import (
	"context"
	"math"
	"time"

	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/rasterize"
	"github.com/gogpu/vectra/internal/refine"
)

// refineDocument runs the perceptual refinement loop: render, score against
// the preprocessed source, act on the worst tiles, repeat. The best-scoring
// path set seen is what the document keeps, so refinement can only improve
// the result. Budget exhaustion is a stop condition, never an error.
func (st *pipeState) refineDocument(ctx context.Context, doc *Document, stats *Stats) {
	cfg := st.cfg.Refine
	log := Logger()
	start := time.Now()

	state := refine.State{
		MaxIterations: cfg.MaxIterations,
		TargetDeltaE:  cfg.TargetDeltaE,
		TargetSSIM:    cfg.TargetSSIM,
		Plateau:       cfg.PlateauThreshold,
	}

	var bestPaths []VectorPath
	bestScore := math.Inf(1)
	stop := refine.ReasonNone

	for {
		// A zero budget is exhausted before the first iteration.
		if time.Since(start) >= cfg.TimeBudget {
			stop = refine.ReasonBudget
			break
		}
		if ctx.Err() != nil {
			stop = refine.ReasonBudget
			break
		}

		render := st.renderDocument(doc)
		tiles := refine.ScoreTiles(st.img, render, cfg.TileSize,
			cfg.TargetDeltaE, cfg.TargetSSIM, st.workers)
		score := refine.GlobalScore(tiles)
		if score < bestScore {
			bestScore = score
			bestPaths = snapshotPaths(doc.Paths)
		}
		recordTileStats(tiles, stats)

		reason := state.Observe(tiles)
		if reason != refine.ReasonNone {
			stop = reason
			break
		}

		worst := refine.SelectWorst(tiles, cfg.TargetDeltaE, cfg.TargetSSIM,
			cfg.MaxTilesPerIteration)
		actions := st.planActions(doc, worst)
		if len(actions) == 0 {
			stop = refine.ReasonPlateau
			break
		}
		applied := 0
		for _, a := range actions {
			if st.applyAction(doc, a) {
				applied++
			}
		}
		log.Debug("refine iteration", "n", state.Iterations(),
			"score", score, "actions", applied)
		if applied == 0 {
			stop = refine.ReasonPlateau
			break
		}
	}

	if bestPaths != nil {
		doc.Paths = bestPaths
	}
	stats.RefineIterations = state.Iterations()
	stats.RefineStop = stop.String()
	log.Debug("refine done", "iterations", stats.RefineIterations,
		"stop", stats.RefineStop, "score", bestScore)
}

// snapshotPaths copies the path slice. Actions replace element slices and
// fills instead of mutating them, so copying the headers is enough.
func snapshotPaths(paths []VectorPath) []VectorPath {
	out := make([]VectorPath, len(paths))
	copy(out, paths)
	return out
}

// recordTileStats folds the tile scores into the run stats.
func recordTileStats(tiles []refine.TileScore, stats *Stats) {
	if len(tiles) == 0 {
		return
	}
	var de, ssim float64
	for _, t := range tiles {
		de += t.MeanDeltaE
		ssim += t.SSIM
	}
	stats.MeanDeltaE = de / float64(len(tiles))
	stats.MeanSSIM = ssim / float64(len(tiles))
}

// renderDocument rasterizes the document at working resolution for scoring.
func (st *pipeState) renderDocument(doc *Document) *imaging.Raster {
	w, h := st.img.W, st.img.H
	dst := &imaging.Raster{W: w, H: h, Pix: make([]uint8, w*h*4)}
	bg := [4]uint8{255, 255, 255, 255}
	if doc.HasBackground {
		bg = [4]uint8{doc.Background.R, doc.Background.G, doc.Background.B, doc.Background.A}
	}
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = bg[0]
		dst.Pix[i+1] = bg[1]
		dst.Pix[i+2] = bg[2]
		dst.Pix[i+3] = bg[3]
	}

	for i := range doc.Paths {
		p := &doc.Paths[i]
		polys := flattenPath(p)
		if p.Fill != nil && len(polys) > 0 {
			rasterize.FillPolygons(dst, polys, paintFor(p.Fill))
		}
		if p.Stroke.Width > 0 {
			for _, poly := range polys {
				rasterize.StrokePolyline(dst, poly, p.Stroke.Width, p.Stroke.Color, false)
			}
		}
	}
	return dst
}

// flattenSteps picks the segment count for one cubic from its control
// polygon length.
func flattenSteps(p0, p1, p2, p3 Point) int {
	l := math.Hypot(p1.X-p0.X, p1.Y-p0.Y) +
		math.Hypot(p2.X-p1.X, p2.Y-p1.Y) +
		math.Hypot(p3.X-p2.X, p3.Y-p2.Y)
	n := int(l / 3)
	if n < 4 {
		n = 4
	}
	if n > 24 {
		n = 24
	}
	return n
}

// flattenPath converts the element list to polygons, one per subpath.
func flattenPath(p *VectorPath) [][]geom.Point {
	var polys [][]geom.Point
	var cur []geom.Point
	var pen Point
	flush := func() {
		if len(cur) >= 2 {
			polys = append(polys, cur)
		}
		cur = nil
	}
	for _, el := range p.Elements {
		switch e := el.(type) {
		case MoveTo:
			flush()
			pen = e.Point
			cur = append(cur, geom.Pt(pen.X, pen.Y))
		case LineTo:
			pen = e.Point
			cur = append(cur, geom.Pt(pen.X, pen.Y))
		case CubicTo:
			n := flattenSteps(pen, e.Control1, e.Control2, e.Point)
			for i := 1; i <= n; i++ {
				q := evalCubic(pen, e.Control1, e.Control2, e.Point, float64(i)/float64(n))
				cur = append(cur, geom.Pt(q.X, q.Y))
			}
			pen = e.Point
		case ClosePath:
			flush()
		}
	}
	flush()
	return polys
}

// paintFor maps a document fill to a rasterizer paint.
func paintFor(f Fill) rasterize.Paint {
	toStops := func(in []GradientStop) []rasterize.Stop {
		out := make([]rasterize.Stop, len(in))
		for i, s := range in {
			out[i] = rasterize.Stop{
				Offset: s.Offset,
				RGBA:   [4]uint8{s.Color.R, s.Color.G, s.Color.B, s.Color.A},
			}
		}
		return out
	}
	switch v := f.(type) {
	case FlatFill:
		return rasterize.FlatPaint{v.Color.R, v.Color.G, v.Color.B, v.Color.A}
	case LinearGradientFill:
		return rasterize.LinearPaint{
			Start: geom.Pt(v.Start.X, v.Start.Y),
			End:   geom.Pt(v.End.X, v.End.Y),
			Stops: toStops(v.Stops),
		}
	case RadialGradientFill:
		return rasterize.RadialPaint{
			Center: geom.Pt(v.Center.X, v.Center.Y),
			Radius: v.Radius,
			Stops:  toStops(v.Stops),
		}
	default:
		return rasterize.FlatPaint{0, 0, 0, 255}
	}
}
