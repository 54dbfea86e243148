package segment

import (
	"testing"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/imaging"
)

// twoToneLab builds a w x h image whose left half is one color and right
// half another.
func twoToneLab(w, h int, left, right [3]uint8) *imaging.LabImage {
	img := &imaging.LabImage{W: w, H: h, Pix: make([]colorspace.Lab, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := left
			if x >= w/2 {
				c = right
			}
			img.Pix[y*w+x] = colorspace.RGBToLab(c[0], c[1], c[2])
		}
	}
	return img
}

func flatLab(w, h int, c [3]uint8) *imaging.LabImage {
	return twoToneLab(w, h, c, c)
}

func defaultOpts() Options {
	return Options{
		TargetRegions:  16,
		Compactness:    10,
		MaxIterations:  10,
		ConvergenceEps: 0.5,
		MinRegionArea:  4,
		Workers:        1,
	}
}

func TestSuperpixelsCoverEveryPixel(t *testing.T) {
	lab := twoToneLab(32, 32, [3]uint8{20, 20, 20}, [3]uint8{230, 230, 230})
	m := Superpixels(lab, defaultOpts())

	if len(m.Labels) != 32*32 {
		t.Fatalf("label map size = %d, want %d", len(m.Labels), 32*32)
	}
	areas := make(map[int32]int)
	for i, l := range m.Labels {
		if l < 0 || int(l) >= len(m.Regions) {
			t.Fatalf("pixel %d has out-of-range label %d", i, l)
		}
		if !m.Regions[l].Alive {
			t.Fatalf("pixel %d labeled with dead region %d", i, l)
		}
		areas[l]++
	}
	total := 0
	for id, a := range areas {
		if m.Regions[id].Area != a {
			t.Errorf("region %d: recorded area %d, counted %d", id, m.Regions[id].Area, a)
		}
		total += a
	}
	if total != 32*32 {
		t.Errorf("areas sum to %d, want %d", total, 32*32)
	}
}

func TestSuperpixelsDeterministic(t *testing.T) {
	lab := twoToneLab(24, 24, [3]uint8{200, 40, 40}, [3]uint8{40, 40, 200})
	opts := defaultOpts()
	opts.Seeds = SeedJitter
	opts.Seed = 7
	opts.Workers = 4

	a := Superpixels(lab, opts)
	b := Superpixels(lab, opts)
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatalf("label mismatch at pixel %d: %d vs %d", i, a.Labels[i], b.Labels[i])
		}
	}
}

func TestSuperpixelsRegionsContiguous(t *testing.T) {
	lab := twoToneLab(20, 20, [3]uint8{10, 10, 10}, [3]uint8{245, 245, 245})
	m := Superpixels(lab, defaultOpts())

	// Flood from one pixel of each region must reach the full recorded area.
	seen := make([]bool, len(m.Labels))
	for start, l := range m.Labels {
		if seen[start] {
			continue
		}
		count := 0
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			count++
			x, y := i%m.W, i/m.W
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= m.W || ny < 0 || ny >= m.H {
					continue
				}
				j := ny*m.W + nx
				if !seen[j] && m.Labels[j] == l {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		if count != m.Regions[l].Area {
			t.Fatalf("region %d: flood reached %d pixels, area is %d", l, count, m.Regions[l].Area)
		}
	}
}

func TestMergeSimilarCollapsesFlatImage(t *testing.T) {
	lab := flatLab(32, 32, [3]uint8{128, 128, 128})
	m := Superpixels(lab, defaultOpts())
	if m.AliveCount() < 2 {
		t.Skip("clustering produced a single region before merging")
	}

	g := BuildGraph(m, nil)
	MergeSimilar(g, MergeOptions{Threshold: 2.5})
	if got := m.AliveCount(); got != 1 {
		t.Errorf("flat image merged to %d regions, want 1", got)
	}
}

func TestMergeSimilarKeepsDistinctColors(t *testing.T) {
	lab := twoToneLab(32, 32, [3]uint8{20, 20, 20}, [3]uint8{230, 230, 230})
	m := Superpixels(lab, defaultOpts())

	g := BuildGraph(m, nil)
	MergeSimilar(g, MergeOptions{Threshold: 2.5})
	if got := m.AliveCount(); got != 2 {
		t.Errorf("two-tone image merged to %d regions, want 2", got)
	}
}

// gradientLab builds a photo-like field: color varies smoothly across the
// canvas with deterministic per-pixel noise on top.
func gradientLab(w, h int) *imaging.LabImage {
	img := &imaging.LabImage{W: w, H: h, Pix: make([]colorspace.Lab, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := int((uint32(x)*374761393+uint32(y)*668265263)>>28) - 8
			r := uint8(clampInt(x+n, 0, 255))
			g := uint8(clampInt(y+n, 0, 255))
			img.Pix[y*w+x] = colorspace.RGBToLab(r, g, 128)
		}
	}
	return img
}

func TestMergeSimilarHoldsTargetOnPhotoLikeInput(t *testing.T) {
	lab := gradientLab(256, 256)
	opts := defaultOpts()
	opts.TargetRegions = 50
	opts.MinRegionArea = 16
	m := Superpixels(lab, opts)

	g := BuildGraph(m, nil)
	MergeSimilar(g, MergeOptions{Threshold: 2.5})

	if got := m.AliveCount(); got < 40 || got > 60 {
		t.Errorf("regions = %d, want within [40,60] of the target 50", got)
	}
	// Merging must not orphan a pixel: every label points at a live region
	// and the live areas still tile the canvas.
	for i, l := range m.Labels {
		if l < 0 || int(l) >= len(m.Regions) || !m.Regions[l].Alive {
			t.Fatalf("pixel %d labeled %d, which is not a live region", i, l)
		}
	}
	total := 0
	for i := range m.Regions {
		if m.Regions[i].Alive {
			total += m.Regions[i].Area
		}
	}
	if total != 256*256 {
		t.Errorf("live areas sum to %d, want %d", total, 256*256)
	}
}

func TestMergeSimilarRespectsMaxArea(t *testing.T) {
	lab := flatLab(32, 32, [3]uint8{90, 90, 90})
	m := Superpixels(lab, defaultOpts())
	before := m.AliveCount()
	if before < 2 {
		t.Skip("clustering produced a single region before merging")
	}

	g := BuildGraph(m, nil)
	MergeSimilar(g, MergeOptions{Threshold: 2.5, MaxRegionArea: 100})
	for i := range m.Regions {
		if m.Regions[i].Alive && m.Regions[i].Area > 200 {
			t.Errorf("region %d grew to %d pixels past the area guard", i, m.Regions[i].Area)
		}
	}
}

func TestSplitSeparatesBimodalRegion(t *testing.T) {
	// One region spanning two colors; the split should cut at the seam.
	lab := twoToneLab(16, 16, [3]uint8{30, 30, 30}, [3]uint8{220, 220, 220})
	m := &Map{W: 16, H: 16, Labels: make([]int32, 16*16)}
	var sl, sa, sb float64
	for _, p := range lab.Pix {
		sl += float64(p.L)
		sa += float64(p.A)
		sb += float64(p.B)
	}
	n := float64(len(lab.Pix))
	m.Regions = []Region{{
		ID: 0, Alive: true, Area: 16 * 16, MaxX: 15, MaxY: 15,
		MeanLab: colorspace.Lab{L: float32(sl / n), A: float32(sa / n), B: float32(sb / n)},
	}}

	newID, ok := Split(m, lab, nil, 0, 8)
	if !ok {
		t.Fatal("split rejected a clearly bimodal region")
	}
	if newID != 1 {
		t.Fatalf("new region id = %d, want 1", newID)
	}
	// Each side should hold one half.
	if m.Regions[0].Area+m.Regions[1].Area != 16*16 {
		t.Fatalf("areas %d + %d do not cover the region", m.Regions[0].Area, m.Regions[1].Area)
	}
	// The two halves should be strongly separated in color.
	d := colorspace.DeltaE(m.Regions[0].MeanLab, m.Regions[1].MeanLab)
	if d < 20 {
		t.Errorf("split halves differ by only %.1f deltaE", d)
	}
}

func TestSplitRejectsSmallRegion(t *testing.T) {
	lab := flatLab(8, 8, [3]uint8{100, 100, 100})
	m := &Map{W: 8, H: 8, Labels: make([]int32, 64)}
	m.Regions = []Region{{ID: 0, Alive: true, Area: 64, MaxX: 7, MaxY: 7, MeanLab: lab.Pix[0]}}

	if _, ok := Split(m, lab, nil, 0, 40); ok {
		t.Error("split succeeded where both halves cannot meet the minimum area")
	}
}
