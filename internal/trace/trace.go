// Package trace extracts geometry from bitmaps and gradient fields:
// region contours, stroke centerlines, and flow-guided edge polylines.
package trace

import "github.com/gogpu/vectra/internal/geom"

// Contour is a closed boundary in pixel coordinates. Hole contours wind
// around background enclosed by ink.
type Contour struct {
	Points []geom.Point
	Hole   bool
}

// Polyline is an open traced path.
type Polyline struct {
	Points []geom.Point
	Closed bool
}

// Len returns the point count.
func (p *Polyline) Len() int { return len(p.Points) }

// Length returns the polyline arc length.
func (p *Polyline) Length() float64 {
	var l float64
	for i := 1; i < len(p.Points); i++ {
		l += p.Points[i].Distance(p.Points[i-1])
	}
	if p.Closed && len(p.Points) > 1 {
		l += p.Points[0].Distance(p.Points[len(p.Points)-1])
	}
	return l
}
