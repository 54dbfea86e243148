package trace

import (
	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
)

// dir8 enumerates the 8-neighborhood clockwise starting east, with image
// y growing downward.
var dir8 = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

// Contours traces every border in the bitmap by border following, emitting
// outer boundaries and hole boundaries with the hole flag set. Total work
// is bounded: each border pixel is visited a constant number of times, and
// a hard step cap of 4*W*H+8 guards against marker corruption.
func Contours(b *imaging.Bitmap) []Contour {
	w, h := b.W, b.H
	f := make([]int32, w*h)
	for i, v := range b.Bits {
		if v {
			f[i] = 1
		}
	}
	at := func(x, y int) int32 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return f[y*w+x]
	}

	maxSteps := 4*w*h + 8
	steps := 0
	nbd := int32(1)
	var out []Contour

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fp := f[y*w+x]
			var start int
			hole := false
			switch {
			case fp == 1 && at(x-1, y) == 0:
				start = 4 // enter from the west
			case fp >= 1 && at(x+1, y) == 0:
				start = 0 // enter from the east
				hole = true
			default:
				continue
			}
			nbd++
			pts := followBorder(f, w, h, x, y, start, nbd, &steps, maxSteps)
			out = append(out, Contour{Points: pts, Hole: hole})
			if steps > maxSteps {
				return out
			}
		}
	}
	return out
}

// followBorder walks one border starting at (x, y) and marks visited pixels
// with +/-nbd so the raster scan never restarts the same border.
func followBorder(f []int32, w, h, x, y, start int, nbd int32, steps *int, maxSteps int) []geom.Point {
	at := func(px, py int) int32 {
		if px < 0 || px >= w || py < 0 || py >= h {
			return 0
		}
		return f[py*w+px]
	}

	// Clockwise scan for the first neighbor on the border.
	found := -1
	for k := 0; k < 8; k++ {
		d := (start + k) % 8
		if at(x+dir8[d][0], y+dir8[d][1]) != 0 {
			found = d
			break
		}
	}
	if found < 0 {
		// Isolated pixel.
		f[y*w+x] = -nbd
		return []geom.Point{{X: float64(x), Y: float64(y)}}
	}

	px, py := x+dir8[found][0], y+dir8[found][1]
	cx, cy := x, y
	prevDir := found // direction from the current pixel back onto the border
	var pts []geom.Point

	for {
		*steps++
		if *steps > maxSteps {
			return pts
		}
		// Counterclockwise scan around the current pixel, starting just
		// past the previous border pixel.
		eastSeenZero := false
		d := -1
		for k := 1; k <= 8; k++ {
			cand := (prevDir - k + 16) % 8
			nx, ny := cx+dir8[cand][0], cy+dir8[cand][1]
			if at(nx, ny) != 0 {
				d = cand
				break
			}
			if cand == 0 {
				eastSeenZero = true
			}
		}

		if eastSeenZero {
			f[cy*w+cx] = -nbd
		} else if f[cy*w+cx] == 1 {
			f[cy*w+cx] = nbd
		}
		pts = append(pts, geom.Point{X: float64(cx), Y: float64(cy)})

		nx, ny := cx+dir8[d][0], cy+dir8[d][1]
		if nx == x && ny == y && cx == px && cy == py {
			return pts
		}
		prevDir = (d + 4) % 8
		cx, cy = nx, ny
	}
}
