package trace

import (
	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
)

// neighborCount returns the number of 8-connected skeleton neighbors.
func neighborCount(sk *imaging.Bitmap, x, y int) int {
	n := 0
	for _, d := range dir8 {
		nx, ny := x+d[0], y+d[1]
		if nx >= 0 && nx < sk.W && ny >= 0 && ny < sk.H && sk.Bits[ny*sk.W+nx] {
			n++
		}
	}
	return n
}

// PruneBranches removes endpoint spurs shorter than minLen pixels. A spur
// is a chain from an endpoint to the first junction; chains that end at
// another endpoint are whole strokes and stay. Pruning repeats until no
// spur qualifies, since removing one spur can expose another.
func PruneBranches(sk *imaging.Bitmap, minLen int) {
	if minLen < 2 {
		return
	}
	w, h := sk.W, sk.H
	for {
		removed := false
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !sk.Bits[y*w+x] || neighborCount(sk, x, y) != 1 {
					continue
				}
				if pruneSpur(sk, x, y, minLen) {
					removed = true
				}
			}
		}
		if !removed {
			break
		}
	}
}

// pruneSpur walks from an endpoint and clears the chain up to the branch
// point when one is reached within minLen steps. Chains that run to another
// endpoint are whole strokes and stay.
func pruneSpur(sk *imaging.Bitmap, x, y, minLen int) bool {
	w := sk.W
	inChain := map[int]bool{y*w + x: true}
	chain := []int{y*w + x}
	cx, cy := x, y

	for len(chain) <= minLen {
		next := -1
		fanout := 0
		for _, d := range dir8 {
			qx, qy := cx+d[0], cy+d[1]
			if qx < 0 || qx >= sk.W || qy < 0 || qy >= sk.H {
				continue
			}
			i := qy*w + qx
			if !sk.Bits[i] || inChain[i] {
				continue
			}
			fanout++
			if next < 0 {
				next = i
			}
		}
		switch {
		case fanout == 0:
			return false
		case fanout == 1:
			chain = append(chain, next)
			inChain[next] = true
			cx, cy = next%w, next/w
		default:
			// The chain hangs off a branch point: it is a spur.
			for _, i := range chain {
				sk.Bits[i] = false
			}
			return true
		}
	}
	return false
}

// Centerlines converts a thinned bitmap into polylines. Open strokes are
// walked endpoint to endpoint first, then leftover closed loops are walked
// from their row-major first pixel. Every skeleton pixel lands in exactly
// one polyline.
func Centerlines(sk *imaging.Bitmap) []Polyline {
	w, h := sk.W, sk.H
	visited := make([]bool, w*h)
	var out []Polyline

	walk := func(x, y int, closed bool) Polyline {
		var pts []geom.Point
		px, py := -1, -1
		cx, cy := x, y
		for {
			visited[cy*w+cx] = true
			pts = append(pts, geom.Point{X: float64(cx), Y: float64(cy)})
			nx, ny := -1, -1
			for _, d := range dir8 {
				qx, qy := cx+d[0], cy+d[1]
				if qx < 0 || qx >= w || qy < 0 || qy >= h {
					continue
				}
				if (qx == px && qy == py) || !sk.Bits[qy*w+qx] || visited[qy*w+qx] {
					continue
				}
				nx, ny = qx, qy
				break
			}
			if nx < 0 {
				break
			}
			px, py = cx, cy
			cx, cy = nx, ny
		}
		return Polyline{Points: pts, Closed: closed}
	}

	// Endpoints and junction arms first.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if sk.Bits[y*w+x] && !visited[y*w+x] && neighborCount(sk, x, y) == 1 {
				out = append(out, walk(x, y, false))
			}
		}
	}
	// Remaining pixels belong to closed loops.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if sk.Bits[y*w+x] && !visited[y*w+x] {
				p := walk(x, y, false)
				if len(p.Points) > 2 {
					p.Closed = true
				}
				out = append(out, p)
			}
		}
	}
	return out
}
