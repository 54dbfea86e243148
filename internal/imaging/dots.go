package imaging

import "math"

// Dot placement is position-seeded: the decision for pixel (x, y) depends
// only on (x, y, seed), never on evaluation order. The accelerated kernel
// mirrors Hash2D and PlaceDotsRows exactly (u32 arithmetic only), so CPU and
// GPU paths agree bit for bit.

// Hash2D mixes pixel coordinates with the seed into a well-distributed u32.
// The finalizer is the murmur3-style avalanche, expressible in WGSL.
func Hash2D(x, y, seed uint32) uint32 {
	h := x*0x9E3779B1 ^ y*0x85EBCA77 ^ seed*0xC2B2AE3D
	h ^= h >> 16
	h *= 0x7FEB352D
	h ^= h >> 15
	h *= 0x846CA68B
	h ^= h >> 16
	return h
}

// hashUnit maps a hash to [0,1).
func hashUnit(h uint32) float64 {
	return float64(h>>8) / float64(1<<24)
}

// DotParams is the parameter block shared by the CPU and accelerated dot
// kernels.
type DotParams struct {
	Seed      uint32
	Density   float64 // acceptance scale (0,1]
	Gamma     float64 // darkness emphasis; typical 1.8
	MinRadius float64
	MaxRadius float64
}

// PlaceDotsRows evaluates the acceptance kernel for rows [y0, y1): accept[i]
// holds the dot radius at pixel i, or 0 when no dot is placed. Rows are
// independent; writes are disjoint, so the range may be partitioned across
// workers.
func PlaceDotsRows(luma []float32, w, h, y0, y1 int, p DotParams, accept []float32) {
	gamma := p.Gamma
	if gamma <= 0 {
		gamma = 1.8
	}
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			darkness := 1 - float64(luma[i])
			if darkness <= 0 {
				accept[i] = 0
				continue
			}
			prob := math.Pow(darkness, gamma) * p.Density
			if hashUnit(Hash2D(uint32(x), uint32(y), p.Seed)) >= prob {
				accept[i] = 0
				continue
			}
			r := p.MinRadius + (p.MaxRadius-p.MinRadius)*darkness
			accept[i] = float32(r)
		}
	}
}

// Dot is one placed stipple.
type Dot struct {
	X, Y   float64
	Radius float64
}

// CollectDots scans the acceptance buffer in row-major order and builds the
// dot list, spacing dots by rejecting any within minGap of an earlier one on
// the same coarse grid cell. Scanning order is fixed, so output order is
// deterministic.
func CollectDots(accept []float32, w, h int, minGap float64) []Dot {
	var dots []Dot
	if minGap < 1 {
		minGap = 1
	}
	cell := int(minGap)
	if cell < 1 {
		cell = 1
	}
	gw := (w + cell - 1) / cell
	gh := (h + cell - 1) / cell
	occupied := make([]int32, gw*gh) // 1-based index into dots, 0 = empty

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := accept[y*w+x]
			if r <= 0 {
				continue
			}
			cx, cy := x/cell, y/cell
			conflict := false
		scan:
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if nx < 0 || nx >= gw || ny < 0 || ny >= gh {
						continue
					}
					if di := occupied[ny*gw+nx]; di != 0 {
						d := dots[di-1]
						ddx := d.X - float64(x)
						ddy := d.Y - float64(y)
						if ddx*ddx+ddy*ddy < minGap*minGap {
							conflict = true
							break scan
						}
					}
				}
			}
			if conflict {
				continue
			}
			dots = append(dots, Dot{X: float64(x) + 0.5, Y: float64(y) + 0.5, Radius: float64(r)})
			occupied[cy*gw+cx] = int32(len(dots))
		}
	}
	return dots
}
