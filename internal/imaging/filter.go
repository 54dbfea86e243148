package imaging

import "math"

// GaussianBlur blurs a grayscale buffer with a separable Gaussian kernel.
// Sigma <= 0 returns the input unchanged.
func GaussianBlur(src []float32, w, h int, sigma float64) []float32 {
	if sigma <= 0 {
		return src
	}
	radius := int(math.Ceil(sigma * 3))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	tmp := make([]float32, len(src))
	out := make([]float32, len(src))

	// Horizontal pass with edge clamping.
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				sx := clampInt(x+k, 0, w-1)
				acc += float64(src[row+sx]) * kernel[k+radius]
			}
			tmp[row+x] = float32(acc)
		}
	}
	// Vertical pass.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				sy := clampInt(y+k, 0, h-1)
				acc += float64(tmp[sy*w+x]) * kernel[k+radius]
			}
			out[y*w+x] = float32(acc)
		}
	}
	return out
}

// BilateralDenoise applies an edge-preserving bilateral filter to the raster.
// Spatial support is a fixed 5x5 window; rangeSigma is measured in Lab
// lightness units so edges (large color steps) survive while flat areas
// smooth out.
func BilateralDenoise(src *Raster, rangeSigma float64) *Raster {
	const radius = 2
	const spatialSigma = 1.5
	if rangeSigma <= 0 {
		rangeSigma = 10
	}

	out := make([]uint8, len(src.Pix))
	copy(out, src.Pix)

	spatial := make([]float64, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*(2*radius+1)+(dx+radius)] = math.Exp(-d2 / (2 * spatialSigma * spatialSigma))
		}
	}

	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			ci := (y*src.W + x) * 4
			cr, cg, cb := float64(src.Pix[ci]), float64(src.Pix[ci+1]), float64(src.Pix[ci+2])

			var sr, sg, sb, wsum float64
			for dy := -radius; dy <= radius; dy++ {
				sy := clampInt(y+dy, 0, src.H-1)
				for dx := -radius; dx <= radius; dx++ {
					sx := clampInt(x+dx, 0, src.W-1)
					ni := (sy*src.W + sx) * 4
					nr, ng, nb := float64(src.Pix[ni]), float64(src.Pix[ni+1]), float64(src.Pix[ni+2])

					dr := nr - cr
					dg := ng - cg
					db := nb - cb
					rangeW := math.Exp(-(dr*dr + dg*dg + db*db) / (2 * rangeSigma * rangeSigma * 3))
					w := spatial[(dy+radius)*(2*radius+1)+(dx+radius)] * rangeW

					sr += nr * w
					sg += ng * w
					sb += nb * w
					wsum += w
				}
			}
			out[ci] = uint8(sr/wsum + 0.5)
			out[ci+1] = uint8(sg/wsum + 0.5)
			out[ci+2] = uint8(sb/wsum + 0.5)
		}
	}
	return &Raster{W: src.W, H: src.H, Pix: out}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
