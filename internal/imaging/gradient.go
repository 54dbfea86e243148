package imaging

import "math"

// GradientField holds per-pixel gradient magnitude and direction.
// Magnitude is normalized to [0,1]; direction is radians in (-π, π].
type GradientField struct {
	W, H int
	Mag  []float32
	Dir  []float32
}

// SobelGradient computes the gradient field of a grayscale buffer with the
// 3x3 Sobel operator. This is the CPU reference kernel mirrored by the
// accelerated layer: the neighborhood formula here defines correctness, the
// accelerated path may only differ in throughput.
func SobelGradient(gray []float32, w, h int) *GradientField {
	mag := make([]float32, w*h)
	dir := make([]float32, w*h)
	SobelGradientRows(gray, w, h, 0, h, mag, dir)

	// Normalize magnitude to [0,1]. The Sobel response on a [0,1] input is
	// bounded by 4√2, but normalizing by the observed maximum keeps weak
	// images usable.
	var peak float32
	for _, m := range mag {
		if m > peak {
			peak = m
		}
	}
	if peak > 0 {
		inv := 1 / peak
		for i := range mag {
			mag[i] *= inv
		}
	}
	return &GradientField{W: w, H: h, Mag: mag, Dir: dir}
}

// SobelGradientRows computes the raw (unnormalized) Sobel response for rows
// [y0, y1) into mag and dir. Rows are independent, so callers may partition
// the range across workers; writes are disjoint.
func SobelGradientRows(gray []float32, w, h, y0, y1 int, mag, dir []float32) {
	at := func(x, y int) float32 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return gray[y*w+x]
	}
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			i := y*w + x
			mag[i] = float32(math.Hypot(float64(gx), float64(gy)))
			dir[i] = float32(math.Atan2(float64(gy), float64(gx)))
		}
	}
}
