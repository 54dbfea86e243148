// Package colorspace converts between sRGB and the CIE Lab color space and
// provides the perceptual-difference primitives used throughout the pipeline.
//
// All downstream distance math runs in Lab so that numeric distance tracks
// visual distinctness.
package colorspace

import "math"

// Lab is a color in the CIE L*a*b* space (D65 white point).
// L is lightness in [0,100]; a and b are the opponent axes.
type Lab struct {
	L, A, B float32
}

// SRGBToLinear converts an sRGB component to linear light.
// Formula: if s <= 0.04045: s/12.92; else: pow((s+0.055)/1.055, 2.4)
// Input and output are in range [0,1].
func SRGBToLinear(s float64) float64 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return math.Pow((s+0.055)/1.055, 2.4)
}

// LinearToSRGB converts a linear component to sRGB.
// Formula: if l <= 0.0031308: l*12.92; else: 1.055*pow(l, 1/2.4)-0.055
// Input and output are in range [0,1].
func LinearToSRGB(l float64) float64 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math.Pow(l, 1.0/2.4) - 0.055
}

// D65 reference white in XYZ.
const (
	whiteX = 0.95047
	whiteY = 1.00000
	whiteZ = 1.08883
)

// RGBToLab converts 8-bit sRGB components to Lab.
func RGBToLab(r, g, b uint8) Lab {
	rl := SRGBToLinear(float64(r) / 255)
	gl := SRGBToLinear(float64(g) / 255)
	bl := SRGBToLinear(float64(b) / 255)

	// Linear sRGB to XYZ (D65).
	x := 0.4124564*rl + 0.3575761*gl + 0.1804375*bl
	y := 0.2126729*rl + 0.7151522*gl + 0.0721750*bl
	z := 0.0193339*rl + 0.1191920*gl + 0.9503041*bl

	fx := labF(x / whiteX)
	fy := labF(y / whiteY)
	fz := labF(z / whiteZ)

	return Lab{
		L: float32(116*fy - 16),
		A: float32(500 * (fx - fy)),
		B: float32(200 * (fy - fz)),
	}
}

// LabToRGB converts Lab back to 8-bit sRGB, clamping out-of-gamut values.
func LabToRGB(c Lab) (uint8, uint8, uint8) {
	fy := (float64(c.L) + 16) / 116
	fx := fy + float64(c.A)/500
	fz := fy - float64(c.B)/200

	x := whiteX * labFInv(fx)
	y := whiteY * labFInv(fy)
	z := whiteZ * labFInv(fz)

	rl := 3.2404542*x - 1.5371385*y - 0.4985314*z
	gl := -0.9692660*x + 1.8760108*y + 0.0415560*z
	bl := 0.0556434*x - 0.2040259*y + 1.0572252*z

	return clamp255(LinearToSRGB(rl)), clamp255(LinearToSRGB(gl)), clamp255(LinearToSRGB(bl))
}

const (
	labEps   = 216.0 / 24389.0 // (6/29)^3
	labKappa = 24389.0 / 27.0
)

func labF(t float64) float64 {
	if t > labEps {
		return math.Cbrt(t)
	}
	return (labKappa*t + 16) / 116
}

func labFInv(f float64) float64 {
	f3 := f * f * f
	if f3 > labEps {
		return f3
	}
	return (116*f - 16) / labKappa
}

func clamp255(v float64) uint8 {
	v *= 255
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// DeltaE returns the CIE76 perceptual color difference between two Lab
// colors: the Euclidean distance in Lab space. Values above roughly 2.3 are
// a just-noticeable difference; the refinement loop targets an average of 6.
func DeltaE(p, q Lab) float64 {
	dl := float64(p.L - q.L)
	da := float64(p.A - q.A)
	db := float64(p.B - q.B)
	return math.Sqrt(dl*dl + da*da + db*db)
}

// Luminance returns the relative luminance [0,1] of 8-bit sRGB components.
func Luminance(r, g, b uint8) float64 {
	rl := SRGBToLinear(float64(r) / 255)
	gl := SRGBToLinear(float64(g) / 255)
	bl := SRGBToLinear(float64(b) / 255)
	return 0.2126729*rl + 0.7151522*gl + 0.0721750*bl
}
