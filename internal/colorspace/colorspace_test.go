package colorspace

import (
	"math"
	"testing"
)

func TestSRGBLinearRoundTrip(t *testing.T) {
	for s := 0.0; s <= 1.0; s += 0.05 {
		got := LinearToSRGB(SRGBToLinear(s))
		if math.Abs(got-s) > 1e-9 {
			t.Errorf("round trip %f -> %f", s, got)
		}
	}
}

func TestRGBToLabKnownValues(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    Lab
		tol     float32
	}{
		{"white", 255, 255, 255, Lab{L: 100, A: 0, B: 0}, 0.01},
		{"black", 0, 0, 0, Lab{L: 0, A: 0, B: 0}, 0.01},
		{"red", 255, 0, 0, Lab{L: 53.24, A: 80.09, B: 67.20}, 0.05},
		{"green", 0, 255, 0, Lab{L: 87.74, A: -86.18, B: 83.18}, 0.05},
		{"mid gray", 119, 119, 119, Lab{L: 50.03, A: 0, B: 0}, 0.05},
	}
	for _, tt := range tests {
		got := RGBToLab(tt.r, tt.g, tt.b)
		if absf(got.L-tt.want.L) > tt.tol ||
			absf(got.A-tt.want.A) > tt.tol ||
			absf(got.B-tt.want.B) > tt.tol {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestLabToRGBRoundTrip(t *testing.T) {
	colors := [][3]uint8{
		{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0},
		{0, 0, 255}, {128, 64, 200}, {17, 230, 99},
	}
	for _, c := range colors {
		r, g, b := LabToRGB(RGBToLab(c[0], c[1], c[2]))
		if r != c[0] || g != c[1] || b != c[2] {
			t.Errorf("round trip %v -> %d,%d,%d", c, r, g, b)
		}
	}
}

func TestLabToRGBClampsOutOfGamut(t *testing.T) {
	// A saturated Lab point outside sRGB must clamp, not wrap.
	r, g, b := LabToRGB(Lab{L: 50, A: 120, B: -120})
	_ = g
	if r == 0 && b == 0 {
		t.Error("expected some channel to survive clamping")
	}
}

func TestDeltaE(t *testing.T) {
	a := Lab{L: 50, A: 10, B: -10}
	if d := DeltaE(a, a); d != 0 {
		t.Errorf("identical colors deltaE = %f", d)
	}
	b := Lab{L: 53, A: 14, B: -10}
	if d := DeltaE(a, b); math.Abs(d-5) > 1e-6 {
		t.Errorf("deltaE = %f, want 5", d)
	}
	if DeltaE(a, b) != DeltaE(b, a) {
		t.Error("deltaE must be symmetric")
	}
}

func TestLuminanceOrdering(t *testing.T) {
	if Luminance(0, 0, 0) != 0 {
		t.Error("black luminance must be 0")
	}
	if math.Abs(Luminance(255, 255, 255)-1) > 1e-9 {
		t.Error("white luminance must be 1")
	}
	// Green carries more weight than red, red more than blue.
	if !(Luminance(0, 255, 0) > Luminance(255, 0, 0) &&
		Luminance(255, 0, 0) > Luminance(0, 0, 255)) {
		t.Error("channel weights out of order")
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
