package trace

import (
	"math"
	"testing"

	"github.com/gogpu/vectra/internal/imaging"
)

func bitmapFrom(rows []string) *imaging.Bitmap {
	h := len(rows)
	w := len(rows[0])
	b := &imaging.Bitmap{W: w, H: h, Bits: make([]bool, w*h)}
	for y, row := range rows {
		for x := 0; x < w; x++ {
			if row[x] == '#' {
				b.Bits[y*w+x] = true
			}
		}
	}
	return b
}

func TestContoursFilledRect(t *testing.T) {
	b := bitmapFrom([]string{
		"........",
		".#####..",
		".#####..",
		".#####..",
		"........",
	})
	cs := Contours(b)
	if len(cs) != 1 {
		t.Fatalf("got %d contours, want 1", len(cs))
	}
	c := cs[0]
	if c.Hole {
		t.Error("outer contour flagged as hole")
	}
	// The border of a 5x3 rectangle has 12 pixels.
	if len(c.Points) != 12 {
		t.Errorf("contour has %d points, want 12", len(c.Points))
	}
	for _, p := range c.Points {
		if p.X < 1 || p.X > 5 || p.Y < 1 || p.Y > 3 {
			t.Fatalf("contour point (%v, %v) outside the rectangle", p.X, p.Y)
		}
	}
}

func TestContoursRingHasHole(t *testing.T) {
	b := bitmapFrom([]string{
		".......",
		".#####.",
		".#...#.",
		".#...#.",
		".#####.",
		".......",
	})
	cs := Contours(b)
	outer, holes := 0, 0
	for _, c := range cs {
		if c.Hole {
			holes++
		} else {
			outer++
		}
	}
	if outer != 1 || holes != 1 {
		t.Errorf("got %d outer and %d hole contours, want 1 and 1", outer, holes)
	}
}

func TestContoursIsolatedPixel(t *testing.T) {
	b := bitmapFrom([]string{
		"...",
		".#.",
		"...",
	})
	cs := Contours(b)
	if len(cs) != 1 || len(cs[0].Points) != 1 {
		t.Fatalf("isolated pixel: got %+v", cs)
	}
}

func TestThinThickLine(t *testing.T) {
	b := bitmapFrom([]string{
		"............",
		".##########.",
		".##########.",
		".##########.",
		"............",
	})
	sk := Thin(b)
	if sk.Count() == 0 {
		t.Fatal("thinning removed everything")
	}
	// No interior pixels may remain: every skeleton pixel has at most two
	// skeleton neighbors on a simple stroke.
	for y := 0; y < sk.H; y++ {
		for x := 0; x < sk.W; x++ {
			if sk.Bits[y*sk.W+x] && neighborCount(sk, x, y) > 2 {
				t.Fatalf("pixel (%d, %d) has %d neighbors after thinning", x, y, neighborCount(sk, x, y))
			}
		}
	}
	if sk.Count() > 12 {
		t.Errorf("skeleton kept %d pixels for a 10-long stroke", sk.Count())
	}
}

func TestPruneBranchesRemovesSpur(t *testing.T) {
	// Horizontal stroke with a short vertical spur off its middle.
	b := bitmapFrom([]string{
		"...........",
		".....#.....",
		".....#.....",
		".#########.",
		"...........",
	})
	before := b.Count()
	PruneBranches(b, 4)
	if b.Count() != before-2 {
		t.Errorf("pruning removed %d pixels, want 2", before-b.Count())
	}
	// The main stroke survives untouched.
	for x := 1; x <= 9; x++ {
		if !b.Get(x, 3) {
			t.Fatalf("main stroke lost pixel (%d, 3)", x)
		}
	}
}

func TestPruneBranchesKeepsLongStroke(t *testing.T) {
	b := bitmapFrom([]string{
		"...........",
		".#########.",
		"...........",
	})
	PruneBranches(b, 4)
	if b.Count() != 9 {
		t.Errorf("pruning touched an unbranched stroke, %d pixels remain", b.Count())
	}
}

func TestCenterlinesTracesOpenStroke(t *testing.T) {
	b := bitmapFrom([]string{
		".......",
		".#####.",
		".......",
	})
	ps := Centerlines(b)
	if len(ps) != 1 {
		t.Fatalf("got %d polylines, want 1", len(ps))
	}
	p := ps[0]
	if p.Closed {
		t.Error("open stroke traced as closed")
	}
	if len(p.Points) != 5 {
		t.Fatalf("traced %d points, want 5", len(p.Points))
	}
	if p.Points[0].X != 1 || p.Points[len(p.Points)-1].X != 5 {
		t.Errorf("stroke endpoints at x=%v and x=%v, want 1 and 5", p.Points[0].X, p.Points[len(p.Points)-1].X)
	}
}

func TestCenterlinesClosedLoop(t *testing.T) {
	b := bitmapFrom([]string{
		".......",
		".#####.",
		".#...#.",
		".#####.",
		".......",
	})
	ps := Centerlines(b)
	if len(ps) != 1 {
		t.Fatalf("got %d polylines, want 1", len(ps))
	}
	if !ps[0].Closed {
		t.Error("loop traced as open")
	}
	if got := len(ps[0].Points); got != 12 {
		t.Errorf("loop traced %d points, want 12", got)
	}
}

// stepEdgeGradient builds a gradient field for a vertical step at x=w/2.
func stepEdgeGradient(w, h int) *imaging.GradientField {
	gray := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= w/2 {
				gray[y*w+x] = 1
			}
		}
	}
	return imaging.SobelGradient(gray, w, h)
}

func TestTangentFlowAlignsAlongEdge(t *testing.T) {
	g := stepEdgeGradient(16, 16)
	f := TangentFlow(g, 3, 4, 1)

	// On the step the tangent must run vertically.
	i := 8*16 + 8
	if math.Abs(float64(f.Ty[i])) < 0.9 {
		t.Errorf("tangent at the edge is (%v, %v), want near-vertical", f.Tx[i], f.Ty[i])
	}
}

func TestEdgePolylinesTracesStep(t *testing.T) {
	g := stepEdgeGradient(24, 24)
	f := TangentFlow(g, 3, 4, 1)
	ps := EdgePolylines(f, WalkOptions{
		Low: 0.1, High: 0.5,
		MaxTurnDeg: 45,
		DedupDist:  3, DedupAngle: 15,
	})
	if len(ps) == 0 {
		t.Fatal("no polylines traced along a strong step edge")
	}
	// The longest trace should span most of the image height.
	best := 0.0
	for i := range ps {
		if l := ps[i].Length(); l > best {
			best = l
		}
	}
	if best < 12 {
		t.Errorf("longest edge trace is %.1f px, want most of the column", best)
	}
}

func TestEdgePolylinesMultipassDedup(t *testing.T) {
	g := stepEdgeGradient(24, 24)
	f := TangentFlow(g, 3, 4, 1)
	single := EdgePolylines(f, WalkOptions{
		Low: 0.1, High: 0.5, MaxTurnDeg: 45, DedupDist: 3, DedupAngle: 15,
	})
	multi := EdgePolylines(f, WalkOptions{
		Low: 0.1, High: 0.5, MaxTurnDeg: 45, DedupDist: 3, DedupAngle: 15,
		Multipass: true,
	})
	// Extra passes may add traces but must not duplicate the same edge
	// many times over.
	if len(multi) > len(single)+4 {
		t.Errorf("multipass grew %d traces to %d, dedup is not holding", len(single), len(multi))
	}
}
