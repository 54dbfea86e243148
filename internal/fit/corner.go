package fit

import (
	"math"

	"github.com/gogpu/vectra/internal/geom"
)

// Corners returns indices of points where the chain turns more sharply
// than thresholdDeg. Fitting restarts at corners so they stay crisp
// instead of being rounded into a curve.
//
// For closed chains the first point is also a corner candidate; for open
// chains the two endpoints are implicit breaks and never reported.
func Corners(pts []geom.Point, closed bool, thresholdDeg float64) []int {
	n := len(pts)
	if n < 3 {
		return nil
	}
	maxTurn := thresholdDeg * math.Pi / 180
	var out []int

	lo, hi := 1, n-1
	if closed {
		lo, hi = 0, n
	}
	for i := lo; i < hi; i++ {
		a := pts[(i-1+n)%n]
		b := pts[i]
		c := pts[(i+1)%n]
		if turn := geom.TurnAngle(a, b, c); turn > maxTurn {
			out = append(out, i)
		}
	}
	return out
}
