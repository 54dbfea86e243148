package vectra

import (
	"math"

	"github.com/gogpu/vectra/internal/fillx"
	"github.com/gogpu/vectra/internal/refine"
	"github.com/gogpu/vectra/internal/segment"
)

// RefinementAction is one local edit the refinement loop can apply to a
// path. The set is closed; the loop picks at most one action per path per
// iteration.
type RefinementAction interface {
	isRefinementAction()
	// PathIndex returns the target path in Document.Paths.
	PathIndex() int
}

// UpgradeFill replaces a flat fill with a gradient when the region's color
// drifts smoothly but its shape already matches.
type UpgradeFill struct {
	Path int
}

func (UpgradeFill) isRefinementAction() {}

// PathIndex implements RefinementAction.
func (a UpgradeFill) PathIndex() int { return a.Path }

// SplitRegion divides the path's source region in two and re-traces both
// halves when the local structure disagrees with the render.
type SplitRegion struct {
	Path int
}

func (SplitRegion) isRefinementAction() {}

// PathIndex implements RefinementAction.
func (a SplitRegion) PathIndex() int { return a.Path }

// AddControlPoint subdivides the path's curve segment nearest the failing
// tile so the next iterations have a finer geometry to work with.
type AddControlPoint struct {
	Path int
	// X, Y is the center of the tile that triggered the action.
	X, Y float64
}

func (AddControlPoint) isRefinementAction() {}

// PathIndex implements RefinementAction.
func (a AddControlPoint) PathIndex() int { return a.Path }

// Heuristic cutoffs for picking an action from a tile's scores. High
// structural agreement with large color error means the shape is right and
// the fill is wrong; low structural agreement means the geometry is wrong.
const (
	upgradeSSIM   = 0.90
	upgradeDeltaE = 8.0
	splitSSIM     = 0.85
	controlDeltaE = 6.0
)

// planActions maps the worst tiles to concrete actions. Each tile targets
// the topmost path overlapping it; a path receives at most one action per
// iteration, and the first selection wins.
func (st *pipeState) planActions(doc *Document, worst []refine.TileScore) []RefinementAction {
	var actions []RefinementAction
	taken := make(map[int]bool)
	for _, t := range worst {
		pi := topmostPathAt(doc, t)
		if pi < 0 || taken[pi] {
			continue
		}
		a := st.pickAction(doc, pi, t)
		if a == nil {
			continue
		}
		taken[pi] = true
		actions = append(actions, a)
	}
	return actions
}

// topmostPathAt finds the last-drawn path whose bounds overlap the tile.
func topmostPathAt(doc *Document, t refine.TileScore) int {
	for i := len(doc.Paths) - 1; i >= 0; i-- {
		minX, minY, maxX, maxY := doc.Paths[i].Bounds()
		if maxX < float64(t.X0) || minX > float64(t.X1) ||
			maxY < float64(t.Y0) || minY > float64(t.Y1) {
			continue
		}
		return i
	}
	return -1
}

// pickAction chooses the cheapest fix matching the tile's failure mode.
func (st *pipeState) pickAction(doc *Document, pi int, t refine.TileScore) RefinementAction {
	p := &doc.Paths[pi]
	hasRegion := p.region >= 0 && st.segMap != nil

	if t.SSIM > upgradeSSIM && t.MeanDeltaE > upgradeDeltaE && hasRegion {
		if _, flat := p.Fill.(FlatFill); flat {
			return UpgradeFill{Path: pi}
		}
	}
	if t.SSIM < splitSSIM && hasRegion {
		return SplitRegion{Path: pi}
	}
	cx := float64(t.X0+t.X1) / 2
	cy := float64(t.Y0+t.Y1) / 2
	if t.MeanDeltaE > controlDeltaE && hasCubic(p) {
		return AddControlPoint{Path: pi, X: cx, Y: cy}
	}
	if hasCubic(p) {
		return AddControlPoint{Path: pi, X: cx, Y: cy}
	}
	return nil
}

func hasCubic(p *VectorPath) bool {
	for _, el := range p.Elements {
		if _, ok := el.(CubicTo); ok {
			return true
		}
	}
	return false
}

// applyAction mutates the document in place. It reports whether the action
// changed anything; a false return leaves the document untouched.
func (st *pipeState) applyAction(doc *Document, a RefinementAction) bool {
	switch act := a.(type) {
	case UpgradeFill:
		return st.applyUpgradeFill(doc, act.Path)
	case SplitRegion:
		return st.applySplitRegion(doc, act.Path)
	case AddControlPoint:
		return applyAddControlPoint(doc, act.Path, act.X, act.Y)
	}
	return false
}

// applyUpgradeFill re-analyzes the region with gradients enabled.
func (st *pipeState) applyUpgradeFill(doc *Document, pi int) bool {
	p := &doc.Paths[pi]
	if p.region < 0 || st.segMap == nil {
		return false
	}
	res := fillx.Analyze(st.img, st.lab, st.regionPixels(p.region), fillx.Options{
		EnableGradients:     true,
		MaxStops:            st.cfg.Fill.MaxStops,
		ElongationThreshold: st.cfg.Fill.ElongationThreshold,
		MinSpan:             st.cfg.Refine.TargetDeltaE / 2,
	})
	if res.Kind == fillx.Flat {
		return false
	}
	p.Fill = fillFromResult(res)
	Logger().Debug("fill upgraded", "path", pi, "fill", fillString(p.Fill))
	return true
}

// applySplitRegion splits the source region and re-traces both halves. The
// original path is replaced by the first half; the second half is appended
// so it draws above its sibling.
func (st *pipeState) applySplitRegion(doc *Document, pi int) bool {
	p := &doc.Paths[pi]
	if p.region < 0 || st.segMap == nil || st.grad == nil {
		return false
	}
	id := p.region
	newID, ok := segment.Split(st.segMap, st.lab, st.grad, id, st.cfg.Segment.MinRegionArea)
	if !ok {
		return false
	}
	first, okA := st.regionPath(id)
	second, okB := st.regionPath(newID)
	if !okA && !okB {
		return false
	}
	order := p.order
	if okA {
		first.area = first.computeArea()
		first.order = order
		doc.Paths[pi] = first
	}
	if okB {
		second.area = second.computeArea()
		second.order = len(doc.Paths)
		if okA {
			doc.Paths = append(doc.Paths, second)
		} else {
			doc.Paths[pi] = second
		}
	}
	return true
}

// applyAddControlPoint splits the path's cubic nearest the failing area at
// the parameter where it deviates most from its chord.
func applyAddControlPoint(doc *Document, pi int, cx, cy float64) bool {
	p := &doc.Paths[pi]
	nearest := -1
	nearestDist := math.Inf(1)
	var nearestStart Point
	var pen, start Point
	for i, el := range p.Elements {
		switch e := el.(type) {
		case MoveTo:
			pen = e.Point
			start = pen
		case LineTo:
			pen = e.Point
		case CubicTo:
			mid := evalCubic(pen, e.Control1, e.Control2, e.Point, 0.5)
			d := math.Hypot(mid.X-cx, mid.Y-cy)
			if d < nearestDist {
				nearestDist = d
				nearest = i
				nearestStart = pen
			}
			pen = e.Point
		case ClosePath:
			pen = start
		}
	}
	if nearest < 0 {
		return false
	}

	c := p.Elements[nearest].(CubicTo)
	t := splitParameter(nearestStart, c.Control1, c.Control2, c.Point)
	left, right := splitCubic(nearestStart, c.Control1, c.Control2, c.Point, t)

	els := make([]PathElement, 0, len(p.Elements)+1)
	els = append(els, p.Elements[:nearest]...)
	els = append(els,
		CubicTo{Control1: left[1], Control2: left[2], Point: left[3]},
		CubicTo{Control1: right[1], Control2: right[2], Point: right[3]},
	)
	els = append(els, p.Elements[nearest+1:]...)
	p.Elements = els
	return true
}

// splitParameter finds the parameter of maximum deviation between the cubic
// and its chord, clamped away from the endpoints so both halves stay
// substantial. A degenerate chord or a near-straight segment splits at the
// middle.
func splitParameter(p0, p1, p2, p3 Point) float64 {
	chordX := p3.X - p0.X
	chordY := p3.Y - p0.Y
	l := math.Hypot(chordX, chordY)
	if l < 1e-9 {
		return 0.5
	}
	best, bestDev := 0.5, 0.0
	for k := 1; k < 16; k++ {
		t := float64(k) / 16
		q := evalCubic(p0, p1, p2, p3, t)
		dev := math.Abs((q.X-p0.X)*chordY-(q.Y-p0.Y)*chordX) / l
		if dev > bestDev {
			bestDev = dev
			best = t
		}
	}
	if bestDev < 1e-6 {
		return 0.5
	}
	return math.Min(0.75, math.Max(0.25, best))
}
