package vectra

import (
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func defaultAssembly() AssemblyConfig {
	return AssemblyConfig{
		Order:          OrderByArea,
		Precision:      2,
		MaxNodes:       10000,
		MinFeatureArea: 0,
	}
}

func filled(p VectorPath, c color.NRGBA) VectorPath {
	p.Fill = FlatFill{Color: c}
	return p
}

func TestAssembleAreaOrder(t *testing.T) {
	small := filled(squarePath(0, 0, 2), color.NRGBA{R: 10, A: 255})
	large := filled(squarePath(0, 0, 20), color.NRGBA{R: 20, A: 255})
	doc := assemble([]VectorPath{small, large}, 32, 32, defaultAssembly())
	if len(doc.Paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(doc.Paths))
	}
	// Large areas draw first so detail paints on top.
	if doc.Paths[0].Area() < doc.Paths[1].Area() {
		t.Errorf("large path should come first: %v then %v",
			doc.Paths[0].Area(), doc.Paths[1].Area())
	}
}

func TestAssembleAscendingReverses(t *testing.T) {
	small := filled(squarePath(0, 0, 2), color.NRGBA{A: 255})
	large := filled(squarePath(0, 0, 20), color.NRGBA{A: 255})
	cfg := defaultAssembly()
	cfg.Ascending = true
	doc := assemble([]VectorPath{small, large}, 32, 32, cfg)
	if doc.Paths[0].Area() > doc.Paths[1].Area() {
		t.Error("ascending order should put the small path first")
	}
}

func TestAssembleLuminanceOrder(t *testing.T) {
	dark := filled(squarePath(0, 0, 10), color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	light := filled(squarePath(12, 0, 10), color.NRGBA{R: 240, G: 240, B: 240, A: 255})
	cfg := defaultAssembly()
	cfg.Order = OrderByLuminance
	doc := assemble([]VectorPath{light, dark}, 32, 32, cfg)
	first, ok := doc.Paths[0].Fill.(FlatFill)
	if !ok || first.Color.R != 10 {
		t.Errorf("dark path should draw first, got fill %v", doc.Paths[0].Fill)
	}
}

func TestAssembleStableTies(t *testing.T) {
	a := filled(squarePath(0, 0, 10), color.NRGBA{R: 1, A: 255})
	b := filled(squarePath(12, 0, 10), color.NRGBA{R: 2, A: 255})
	doc := assemble([]VectorPath{a, b}, 32, 32, defaultAssembly())
	// Equal areas keep discovery order.
	if doc.Paths[0].Fill.(FlatFill).Color.R != 1 {
		t.Error("equal-area tie should preserve input order")
	}
}

func TestAssembleMinFeatureArea(t *testing.T) {
	tiny := filled(squarePath(0, 0, 1), color.NRGBA{A: 255})
	big := filled(squarePath(0, 0, 10), color.NRGBA{A: 255})
	cfg := defaultAssembly()
	cfg.MinFeatureArea = 4
	doc := assemble([]VectorPath{tiny, big}, 32, 32, cfg)
	if len(doc.Paths) != 1 {
		t.Fatalf("paths = %d, want 1 (tiny dropped)", len(doc.Paths))
	}
}

func TestAssembleStrokedPathsSurviveAreaFilter(t *testing.T) {
	line := VectorPath{
		Elements: []PathElement{
			MoveTo{Point: Point{X: 0, Y: 0}},
			LineTo{Point: Point{X: 10, Y: 0}},
		},
		Stroke: StrokeStyle{Width: 2, Color: [4]uint8{0, 0, 0, 255}},
	}
	cfg := defaultAssembly()
	cfg.MinFeatureArea = 4
	doc := assemble([]VectorPath{line}, 32, 32, cfg)
	if len(doc.Paths) != 1 {
		t.Fatal("open stroked paths enclose no area and must not be dropped")
	}
}

func TestAssembleNodeCap(t *testing.T) {
	var paths []VectorPath
	for i := 0; i < 10; i++ {
		paths = append(paths, filled(squarePath(float64(i), 0, float64(i+2)), color.NRGBA{A: 255}))
	}
	cfg := defaultAssembly()
	cfg.MaxNodes = 30 // each square has 5 elements
	doc := assemble(paths, 64, 64, cfg)
	if doc.NodeCount() > 30 {
		t.Errorf("node count %d exceeds cap 30", doc.NodeCount())
	}
	// Survivors should be the largest squares.
	for i := range doc.Paths {
		if doc.Paths[i].Area() < 36 {
			t.Errorf("path %d with area %v survived; smaller paths drop first",
				i, doc.Paths[i].Area())
		}
	}
}

func TestSimplifyElementsMergesCollinearRuns(t *testing.T) {
	p := VectorPath{Elements: []PathElement{
		MoveTo{Point: Point{X: 0, Y: 0}},
		LineTo{Point: Point{X: 1, Y: 0}},
		LineTo{Point: Point{X: 2, Y: 0}},
		LineTo{Point: Point{X: 3, Y: 0}},
		LineTo{Point: Point{X: 3, Y: 5}},
		ClosePath{},
	}}
	simplifyElements(&p)
	want := []PathElement{
		MoveTo{Point: Point{X: 0, Y: 0}},
		LineTo{Point: Point{X: 3, Y: 0}},
		LineTo{Point: Point{X: 3, Y: 5}},
		ClosePath{},
	}
	if diff := cmp.Diff(want, p.Elements); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundElementsPrecision(t *testing.T) {
	p := VectorPath{Elements: []PathElement{
		MoveTo{Point: Point{X: 1.23456, Y: 2.34567}},
		CubicTo{
			Control1: Point{X: 0.005, Y: 0},
			Control2: Point{X: 1, Y: 1},
			Point:    Point{X: 9.999, Y: 0.004},
		},
	}}
	roundElements(&p, 2)
	want := []PathElement{
		MoveTo{Point: Point{X: 1.23, Y: 2.35}},
		CubicTo{
			Control1: Point{X: 0.01, Y: 0},
			Control2: Point{X: 1, Y: 1},
			Point:    Point{X: 10, Y: 0}, // 0.004 rounds to 0
		},
	}
	if diff := cmp.Diff(want, p.Elements); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}

func TestDropDegenerateAfterRounding(t *testing.T) {
	p := VectorPath{Elements: []PathElement{
		MoveTo{Point: Point{X: 0, Y: 0}},
		LineTo{Point: Point{X: 0, Y: 0}},
		LineTo{Point: Point{X: 5, Y: 3}},
		CubicTo{
			Control1: Point{X: 5, Y: 3},
			Control2: Point{X: 5, Y: 3},
			Point:    Point{X: 5, Y: 3},
		},
		ClosePath{},
	}}
	dropDegenerate(&p)
	want := []PathElement{
		MoveTo{Point: Point{X: 0, Y: 0}},
		LineTo{Point: Point{X: 5, Y: 3}},
		ClosePath{},
	}
	if diff := cmp.Diff(want, p.Elements); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleDropsRoundingCollapsedSegments(t *testing.T) {
	// The second point is off-axis, so the collinear merge leaves it alone;
	// only rounding to two decimals snaps it onto the start.
	line := VectorPath{
		Elements: []PathElement{
			MoveTo{Point: Point{X: 0, Y: 0}},
			LineTo{Point: Point{X: 0.001, Y: 0.002}},
			LineTo{Point: Point{X: 5, Y: 3}},
		},
		Stroke: StrokeStyle{Width: 2, Color: [4]uint8{0, 0, 0, 255}},
	}
	doc := assemble([]VectorPath{line}, 32, 32, defaultAssembly())
	if len(doc.Paths) != 1 {
		t.Fatalf("paths = %d, want 1", len(doc.Paths))
	}
	want := []PathElement{
		MoveTo{Point: Point{X: 0, Y: 0}},
		LineTo{Point: Point{X: 5, Y: 3}},
	}
	if diff := cmp.Diff(want, doc.Paths[0].Elements); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}
