package imaging

import "github.com/gogpu/vectra/internal/colorspace"

// DetectBackground samples the border pixels and returns the dominant border
// color together with the fraction of border pixels within tolerance ΔE of
// it. A high fraction means the image sits on a uniform background that can
// be suppressed before tracing.
func DetectBackground(img *LabImage, tolerance float64) (colorspace.Lab, float64) {
	if tolerance <= 0 {
		tolerance = 8
	}
	var border []colorspace.Lab
	for x := 0; x < img.W; x++ {
		border = append(border, img.At(x, 0), img.At(x, img.H-1))
	}
	for y := 1; y < img.H-1; y++ {
		border = append(border, img.At(0, y), img.At(img.W-1, y))
	}
	if len(border) == 0 {
		return colorspace.Lab{}, 0
	}

	// Mean border color, then refine once against inliers. Two passes are
	// enough: the background either dominates the border or it doesn't.
	mean := meanLab(border)
	for pass := 0; pass < 2; pass++ {
		var inliers []colorspace.Lab
		for _, c := range border {
			if colorspace.DeltaE(c, mean) <= tolerance {
				inliers = append(inliers, c)
			}
		}
		if len(inliers) == 0 {
			return mean, 0
		}
		mean = meanLab(inliers)
	}

	n := 0
	for _, c := range border {
		if colorspace.DeltaE(c, mean) <= tolerance {
			n++
		}
	}
	return mean, float64(n) / float64(len(border))
}

// BackgroundMask marks pixels within tolerance ΔE of the background color.
func BackgroundMask(img *LabImage, bg colorspace.Lab, tolerance float64) *Bitmap {
	mask := NewBitmap(img.W, img.H)
	for i, c := range img.Pix {
		mask.Bits[i] = colorspace.DeltaE(c, bg) <= tolerance
	}
	return mask
}

func meanLab(cs []colorspace.Lab) colorspace.Lab {
	var l, a, b float64
	for _, c := range cs {
		l += float64(c.L)
		a += float64(c.A)
		b += float64(c.B)
	}
	n := float64(len(cs))
	return colorspace.Lab{L: float32(l / n), A: float32(a / n), B: float32(b / n)}
}
