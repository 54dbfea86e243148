package fillx

import (
	"math"
	"testing"

	"github.com/gogpu/vectra/internal/imaging"
)

func rasterOf(w, h int, px func(x, y int) [4]uint8) *imaging.Raster {
	buf := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := px(x, y)
			copy(buf[(y*w+x)*4:], c[:])
		}
	}
	r, _ := imaging.FromRGBA(buf, w, h)
	return r
}

func allPixels(w, h int) pixelFn {
	return func(yield func(x, y int)) {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yield(x, y)
			}
		}
	}
}

func defaultOpts() Options {
	return Options{
		EnableGradients:     true,
		MaxStops:            3,
		ElongationThreshold: 1.8,
		MinSpan:             4,
	}
}

func TestAnalyzeFlatRegion(t *testing.T) {
	img := rasterOf(20, 20, func(x, y int) [4]uint8 { return [4]uint8{180, 40, 40, 255} })
	res := Analyze(img, img.Lab(), allPixels(20, 20), defaultOpts())
	if res.Kind != Flat {
		t.Fatalf("uniform region classified as %v, want Flat", res.Kind)
	}
	if res.RGBA != [4]uint8{180, 40, 40, 255} {
		t.Errorf("flat color = %v", res.RGBA)
	}
}

func TestAnalyzeGradientsDisabled(t *testing.T) {
	img := rasterOf(20, 20, func(x, y int) [4]uint8 {
		v := uint8(x * 12)
		return [4]uint8{v, v, v, 255}
	})
	opts := defaultOpts()
	opts.EnableGradients = false
	res := Analyze(img, img.Lab(), allPixels(20, 20), opts)
	if res.Kind != Flat {
		t.Errorf("gradients disabled but got kind %v", res.Kind)
	}
}

func TestAnalyzeLinearRamp(t *testing.T) {
	// A wide ramp from dark to light along x.
	w, h := 40, 10
	img := rasterOf(w, h, func(x, y int) [4]uint8 {
		v := uint8(20 + x*5)
		return [4]uint8{v, v, v, 255}
	})
	res := Analyze(img, img.Lab(), allPixels(w, h), defaultOpts())
	if res.Kind != Linear {
		t.Fatalf("ramp classified as %v, want Linear", res.Kind)
	}
	if len(res.Stops) != 3 {
		t.Fatalf("got %d stops, want 3", len(res.Stops))
	}
	if res.Stops[0].Offset != 0 || res.Stops[len(res.Stops)-1].Offset != 1 {
		t.Errorf("stop offsets = %v .. %v, want 0 .. 1",
			res.Stops[0].Offset, res.Stops[len(res.Stops)-1].Offset)
	}
	// The axis must run along x and darker colors come first.
	dx := math.Abs(res.End.X - res.Start.X)
	dy := math.Abs(res.End.Y - res.Start.Y)
	if dx < 5*dy {
		t.Errorf("gradient axis (%v)-(%v) is not horizontal", res.Start, res.End)
	}
	if res.Stops[0].RGBA[0] >= res.Stops[2].RGBA[0] {
		t.Errorf("stops not ordered dark to light: %v", res.Stops)
	}
}

func TestAnalyzeRadialOnCompactRegion(t *testing.T) {
	// A square region shaded by distance from its center.
	w, h := 31, 31
	img := rasterOf(w, h, func(x, y int) [4]uint8 {
		d := math.Hypot(float64(x-15), float64(y-15))
		v := uint8(math.Min(255, 40+d*10))
		return [4]uint8{v, v, v, 255}
	})
	res := Analyze(img, img.Lab(), allPixels(w, h), defaultOpts())
	if res.Kind != Radial {
		t.Fatalf("centered shading classified as %v, want Radial", res.Kind)
	}
	if math.Abs(res.Center.X-15) > 1 || math.Abs(res.Center.Y-15) > 1 {
		t.Errorf("radial center = %v, want near (15, 15)", res.Center)
	}
	if res.Radius <= 0 {
		t.Errorf("radial radius = %v", res.Radius)
	}
}

func TestAnalyzeWeakVariationStaysFlat(t *testing.T) {
	// Variation far below the minimum span.
	img := rasterOf(40, 10, func(x, y int) [4]uint8 {
		v := uint8(128 + x%2)
		return [4]uint8{v, v, v, 255}
	})
	res := Analyze(img, img.Lab(), allPixels(40, 10), defaultOpts())
	if res.Kind != Flat {
		t.Errorf("near-uniform region classified as %v, want Flat", res.Kind)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	w, h := 24, 24
	img := rasterOf(w, h, func(x, y int) [4]uint8 {
		return [4]uint8{uint8(x * 10), uint8(y * 10), 90, 255}
	})
	a := Analyze(img, img.Lab(), allPixels(w, h), defaultOpts())
	b := Analyze(img, img.Lab(), allPixels(w, h), defaultOpts())
	if a.Kind != b.Kind || a.Start != b.Start || a.End != b.End || len(a.Stops) != len(b.Stops) {
		t.Fatal("repeated analysis disagrees")
	}
	for i := range a.Stops {
		if a.Stops[i] != b.Stops[i] {
			t.Fatalf("stop %d differs: %v vs %v", i, a.Stops[i], b.Stops[i])
		}
	}
}
