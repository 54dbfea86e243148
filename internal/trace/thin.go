package trace

import "github.com/gogpu/vectra/internal/imaging"

// Thin reduces ink to a one-pixel-wide skeleton by iterative two-pass
// thinning. Each pass removes boundary pixels that keep the skeleton
// connected; the loop ends when a full double pass removes nothing.
func Thin(b *imaging.Bitmap) *imaging.Bitmap {
	sk := b.Clone()
	w, h := sk.W, sk.H
	var toClear []int

	on := func(x, y int) int {
		if x < 0 || x >= w || y < 0 || y >= h || !sk.Bits[y*w+x] {
			return 0
		}
		return 1
	}

	pass := func(phase int) bool {
		toClear = toClear[:0]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !sk.Bits[y*w+x] {
					continue
				}
				// Neighbors clockwise from north.
				p2 := on(x, y-1)
				p3 := on(x+1, y-1)
				p4 := on(x+1, y)
				p5 := on(x+1, y+1)
				p6 := on(x, y+1)
				p7 := on(x-1, y+1)
				p8 := on(x-1, y)
				p9 := on(x-1, y-1)

				bsum := p2 + p3 + p4 + p5 + p6 + p7 + p8 + p9
				if bsum < 2 || bsum > 6 {
					continue
				}
				// Transitions from 0 to 1 around the ring.
				seq := [9]int{p2, p3, p4, p5, p6, p7, p8, p9, p2}
				a := 0
				for i := 0; i < 8; i++ {
					if seq[i] == 0 && seq[i+1] == 1 {
						a++
					}
				}
				if a != 1 {
					continue
				}
				if phase == 0 {
					if p2*p4*p6 != 0 || p4*p6*p8 != 0 {
						continue
					}
				} else {
					if p2*p4*p8 != 0 || p2*p6*p8 != 0 {
						continue
					}
				}
				toClear = append(toClear, y*w+x)
			}
		}
		for _, i := range toClear {
			sk.Bits[i] = false
		}
		return len(toClear) > 0
	}

	for {
		removedA := pass(0)
		removedB := pass(1)
		if !removedA && !removedB {
			break
		}
	}
	return sk
}
