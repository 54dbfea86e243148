// Package fit turns traced pixel chains into compact cubic Bezier curves:
// polyline simplification, corner detection, and bounded-error fitting.
package fit

import (
	"container/heap"

	"github.com/gogpu/vectra/internal/geom"
)

// SimplifyDP reduces a polyline so no dropped point deviates more than eps
// from the simplified chain. Endpoints always survive.
func SimplifyDP(pts []geom.Point, eps float64) []geom.Point {
	if len(pts) <= 2 {
		return pts
	}
	keep := make([]bool, len(pts))
	keep[0] = true
	keep[len(pts)-1] = true
	dpMark(pts, 0, len(pts)-1, eps, keep)

	out := make([]geom.Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func dpMark(pts []geom.Point, lo, hi int, eps float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	worst := -1
	var worstD float64
	for i := lo + 1; i < hi; i++ {
		d := geom.PerpDistance(pts[i], pts[lo], pts[hi])
		if d > worstD {
			worstD = d
			worst = i
		}
	}
	if worst < 0 || worstD <= eps {
		return
	}
	keep[worst] = true
	dpMark(pts, lo, worst, eps, keep)
	dpMark(pts, worst, hi, eps, keep)
}

// vwNode is one point in the Visvalingam doubly linked list.
type vwNode struct {
	idx        int
	prev, next int
	area       float64
	heapPos    int
	gone       bool
}

type vwHeap struct{ nodes []*vwNode }

func (h vwHeap) Len() int { return len(h.nodes) }
func (h vwHeap) Less(i, j int) bool {
	if h.nodes[i].area != h.nodes[j].area {
		return h.nodes[i].area < h.nodes[j].area
	}
	return h.nodes[i].idx < h.nodes[j].idx
}
func (h vwHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].heapPos = i
	h.nodes[j].heapPos = j
}
func (h *vwHeap) Push(x any) {
	n := x.(*vwNode)
	n.heapPos = len(h.nodes)
	h.nodes = append(h.nodes, n)
}
func (h *vwHeap) Pop() any {
	old := h.nodes
	n := len(old)
	v := old[n-1]
	h.nodes = old[:n-1]
	return v
}

func triArea(a, b, c geom.Point) float64 {
	v := (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
	if v < 0 {
		v = -v
	}
	return v / 2
}

// SimplifyVW removes points by smallest effective area until every
// remaining interior point spans a triangle of at least minArea. This
// keeps visually significant wiggles that a distance test would flatten.
func SimplifyVW(pts []geom.Point, minArea float64) []geom.Point {
	n := len(pts)
	if n <= 2 {
		return pts
	}
	nodes := make([]vwNode, n)
	for i := range nodes {
		nodes[i] = vwNode{idx: i, prev: i - 1, next: i + 1}
	}
	h := &vwHeap{}
	for i := 1; i < n-1; i++ {
		nodes[i].area = triArea(pts[i-1], pts[i], pts[i+1])
		heap.Push(h, &nodes[i])
	}

	alive := n
	for h.Len() > 0 && alive > 2 {
		nd := heap.Pop(h).(*vwNode)
		if nd.gone {
			continue
		}
		if nd.area >= minArea {
			break
		}
		nd.gone = true
		alive--
		p, q := nd.prev, nd.next
		nodes[p].next = q
		nodes[q].prev = p
		// Recompute the neighbors' areas against their new triangles.
		for _, j := range [2]int{p, q} {
			if j <= 0 || j >= n-1 || nodes[j].gone {
				continue
			}
			a := triArea(pts[nodes[j].prev], pts[j], pts[nodes[j].next])
			nodes[j].area = a
			heap.Fix(h, nodes[j].heapPos)
		}
	}

	out := make([]geom.Point, 0, alive)
	for i := 0; i < n; i++ {
		if !nodes[i].gone {
			out = append(out, pts[i])
		}
	}
	return out
}
