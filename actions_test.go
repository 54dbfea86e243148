package vectra

import (
	"image/color"
	"math"
	"testing"

	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/refine"
)

func blankRaster(w, h int) *imaging.Raster {
	return &imaging.Raster{W: w, H: h, Pix: make([]uint8, w*h*4)}
}

// twoCubicPath has a small cubic near the origin and a wide symmetric one
// spanning x in [3,30] with its apex around (16.5, 9).
func twoCubicPath() VectorPath {
	return VectorPath{
		Elements: []PathElement{
			MoveTo{Point: Point{X: 0, Y: 0}},
			CubicTo{
				Control1: Point{X: 1, Y: 1},
				Control2: Point{X: 2, Y: 1},
				Point:    Point{X: 3, Y: 0}},
			CubicTo{
				Control1: Point{X: 12, Y: 12},
				Control2: Point{X: 21, Y: 12},
				Point:    Point{X: 30, Y: 0}},
		},
		Fill: FlatFill{Color: color.NRGBA{A: 255}},
	}
}

func TestAddControlPointSplitsNearestCubic(t *testing.T) {
	doc := &Document{Width: 32, Height: 32, Paths: []VectorPath{twoCubicPath()}}
	before := len(doc.Paths[0].Elements)

	// The failing area sits over the wide cubic's apex.
	if !applyAddControlPoint(doc, 0, 16, 8) {
		t.Fatal("action should apply")
	}
	els := doc.Paths[0].Elements
	if len(els) != before+1 {
		t.Fatalf("elements = %d, want %d", len(els), before+1)
	}
	// The wide cubic at index 2 became two; the symmetric curve deviates
	// most at its middle, so they must join at the curve's midpoint.
	left, lok := els[2].(CubicTo)
	right, rok := els[3].(CubicTo)
	if !lok || !rok {
		t.Fatalf("expected two cubics at 2 and 3, got %T %T", els[2], els[3])
	}
	mid := evalCubic(Point{X: 3, Y: 0}, Point{X: 12, Y: 12}, Point{X: 21, Y: 12}, Point{X: 30, Y: 0}, 0.5)
	if math.Abs(left.Point.X-mid.X) > 1e-9 || math.Abs(left.Point.Y-mid.Y) > 1e-9 {
		t.Errorf("join at %v, want %v", left.Point, mid)
	}
	if right.Point != (Point{X: 30, Y: 0}) {
		t.Errorf("split must preserve the segment endpoint, got %v", right.Point)
	}
	if first, ok := els[1].(CubicTo); !ok || first.Point != (Point{X: 3, Y: 0}) {
		t.Errorf("the small cubic far from the tile must stay intact, got %v", els[1])
	}
}

func TestAddControlPointPicksByTileDistance(t *testing.T) {
	doc := &Document{Width: 32, Height: 32, Paths: []VectorPath{twoCubicPath()}}

	// Same path, failing area over the small cubic this time.
	if !applyAddControlPoint(doc, 0, 1, 1) {
		t.Fatal("action should apply")
	}
	els := doc.Paths[0].Elements
	if len(els) != 4 {
		t.Fatalf("elements = %d, want 4", len(els))
	}
	left, ok := els[1].(CubicTo)
	if !ok {
		t.Fatalf("expected a cubic at 1, got %T", els[1])
	}
	if left.Point.X >= 3 {
		t.Errorf("split landed at x=%g, want inside the small cubic", left.Point.X)
	}
	if wide, ok := els[3].(CubicTo); !ok || wide.Point != (Point{X: 30, Y: 0}) {
		t.Errorf("the wide cubic far from the tile must stay intact, got %v", els[3])
	}
}

func TestSplitParameterMaxDeviation(t *testing.T) {
	// Straight segments and degenerate chords fall back to the middle.
	if got := splitParameter(Point{}, Point{X: 1}, Point{X: 2}, Point{X: 3}); got != 0.5 {
		t.Errorf("straight cubic splits at %g, want 0.5", got)
	}
	if got := splitParameter(Point{}, Point{X: 1}, Point{X: 2}, Point{}); got != 0.5 {
		t.Errorf("degenerate chord splits at %g, want 0.5", got)
	}
	// A front-loaded curve deviates most before the middle.
	got := splitParameter(Point{}, Point{X: 2, Y: 20}, Point{X: 4, Y: 4}, Point{X: 30})
	if math.Abs(got-0.375) > 1e-9 {
		t.Errorf("split parameter = %g, want 0.375", got)
	}
}

func TestAddControlPointNoCubics(t *testing.T) {
	doc := &Document{Paths: []VectorPath{squarePath(0, 0, 10)}}
	if applyAddControlPoint(doc, 0, 5, 5) {
		t.Error("a pure polygon has nothing to subdivide")
	}
}

func TestTopmostPathAt(t *testing.T) {
	doc := &Document{Paths: []VectorPath{
		filled(squarePath(0, 0, 30), color.NRGBA{A: 255}),  // bottom, covers tile
		filled(squarePath(0, 0, 10), color.NRGBA{A: 255}),  // top, covers tile
		filled(squarePath(50, 50, 8), color.NRGBA{A: 255}), // elsewhere
	}}
	tile := refine.TileScore{X0: 0, Y0: 0, X1: 8, Y1: 8}
	if got := topmostPathAt(doc, tile); got != 1 {
		t.Errorf("topmost = %d, want the last-drawn overlapping path 1", got)
	}
	far := refine.TileScore{X0: 100, Y0: 100, X1: 108, Y1: 108}
	if got := topmostPathAt(doc, far); got != -1 {
		t.Errorf("no overlap should report -1, got %d", got)
	}
}

func TestPlanActionsOnePerPath(t *testing.T) {
	st := &pipeState{cfg: DefaultConfig()}
	doc := &Document{Paths: []VectorPath{
		func() VectorPath {
			p := filled(squarePath(0, 0, 60), color.NRGBA{A: 255})
			p.Elements = append(p.Elements[:len(p.Elements)-1],
				CubicTo{Control1: Point{X: 0, Y: 40}, Control2: Point{X: 0, Y: 20}, Point: Point{X: 0, Y: 0}},
				ClosePath{})
			p.region = -1
			return p
		}(),
	}}
	// Two bad tiles over the same path must collapse to one action.
	tiles := []refine.TileScore{
		{X0: 0, Y0: 0, X1: 32, Y1: 32, MeanDeltaE: 12, SSIM: 0.95},
		{X0: 32, Y0: 0, X1: 60, Y1: 32, MeanDeltaE: 12, SSIM: 0.95},
	}
	actions := st.planActions(doc, tiles)
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1 (one per path per iteration)", len(actions))
	}
	act, ok := actions[0].(AddControlPoint)
	if !ok {
		// No region table, so the fill upgrade is unavailable and the
		// geometry action is the only option.
		t.Fatalf("action = %T, want AddControlPoint", actions[0])
	}
	if act.X != 16 || act.Y != 16 {
		t.Errorf("action carries tile center %g,%g, want 16,16", act.X, act.Y)
	}
	if actions[0].PathIndex() != 0 {
		t.Errorf("path index = %d, want 0", actions[0].PathIndex())
	}
}

func TestFlattenPathClosesSubpaths(t *testing.T) {
	p := squarePath(0, 0, 10)
	polys := flattenPath(&p)
	if len(polys) != 1 {
		t.Fatalf("polys = %d, want 1", len(polys))
	}
	if len(polys[0]) != 4 {
		t.Errorf("square flattens to %d points, want 4", len(polys[0]))
	}
}

func TestFlattenPathCubicResolution(t *testing.T) {
	p := VectorPath{Elements: []PathElement{
		MoveTo{Point: Point{X: 0, Y: 0}},
		CubicTo{
			Control1: Point{X: 10, Y: 20},
			Control2: Point{X: 30, Y: 20},
			Point:    Point{X: 40, Y: 0}},
	}}
	polys := flattenPath(&p)
	if len(polys) != 1 || len(polys[0]) < 5 {
		t.Fatalf("a 40px curve should flatten to several segments, got %v", polys)
	}
	// Flattened points stay near the curve.
	for _, q := range polys[0] {
		if q.Y < -0.5 || q.Y > 16 {
			t.Errorf("flattened point %v far from curve", q)
		}
	}
}

func TestRenderDocumentBackground(t *testing.T) {
	st := &pipeState{cfg: DefaultConfig()}
	st.img = blankRaster(16, 16)
	doc := &Document{
		Width: 16, Height: 16,
		Background:    color.NRGBA{R: 10, G: 200, B: 30, A: 255},
		HasBackground: true,
	}
	out := st.renderDocument(doc)
	r, g, b, _ := out.At(8, 8)
	if r != 10 || g != 200 || b != 30 {
		t.Errorf("background pixel = %d,%d,%d", r, g, b)
	}
}

func TestRenderDocumentFlatFill(t *testing.T) {
	st := &pipeState{cfg: DefaultConfig()}
	st.img = blankRaster(32, 32)
	doc := &Document{Width: 32, Height: 32, Paths: []VectorPath{
		filled(squarePath(4, 4, 20), color.NRGBA{R: 200, G: 10, B: 10, A: 255}),
	}}
	out := st.renderDocument(doc)
	r, _, _, _ := out.At(14, 14)
	if r != 200 {
		t.Errorf("interior red = %d, want 200", r)
	}
	r, g, b, _ := out.At(30, 30)
	if r != 255 || g != 255 || b != 255 {
		t.Errorf("exterior should stay white, got %d,%d,%d", r, g, b)
	}
}
