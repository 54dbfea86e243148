package segment

import (
	"container/heap"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/imaging"
)

// Split divides one region into two along the strongest interior gradient
// ridge. Two seeds are chosen at the color extremes of the region, then a
// two-source shortest-path transform assigns every region pixel to the
// cheaper seed, with step cost dominated by the local gradient so the
// frontier settles on the ridge.
//
// Returns the new region id and true on success. The split is rejected, and
// the map left untouched, when either side would fall below minArea.
func Split(m *Map, lab *imaging.LabImage, grad *imaging.GradientField, id int32, minArea int) (int32, bool) {
	reg := &m.Regions[id]
	if !reg.Alive || reg.Area < 2*minArea {
		return 0, false
	}

	seedA, seedB, ok := splitSeeds(m, lab, reg)
	if !ok {
		return 0, false
	}

	side := assignSides(m, lab, grad, reg, seedA, seedB)

	// Count the B side before committing.
	areaB := 0
	for y := reg.MinY; y <= reg.MaxY; y++ {
		for x := reg.MinX; x <= reg.MaxX; x++ {
			if m.Labels[y*m.W+x] == id && side[y*m.W+x] == 2 {
				areaB++
			}
		}
	}
	if areaB < minArea || reg.Area-areaB < minArea {
		return 0, false
	}

	newID := int32(len(m.Regions))
	m.Regions = append(m.Regions, Region{ID: newID, Alive: true,
		MinX: m.W, MinY: m.H, MaxX: -1, MaxY: -1})
	reg = &m.Regions[id] // reacquire, append may have moved the arena

	var sal, saa, sab float64
	var sbl, sba, sbb float64
	nb := &m.Regions[newID]
	minX, minY, maxX, maxY := m.W, m.H, -1, -1
	for y := reg.MinY; y <= reg.MaxY; y++ {
		for x := reg.MinX; x <= reg.MaxX; x++ {
			i := y*m.W + x
			if m.Labels[i] != id {
				continue
			}
			p := lab.Pix[i]
			if side[i] == 2 {
				m.Labels[i] = newID
				sbl += float64(p.L)
				sba += float64(p.A)
				sbb += float64(p.B)
				nb.MinX = min(nb.MinX, x)
				nb.MinY = min(nb.MinY, y)
				nb.MaxX = max(nb.MaxX, x)
				nb.MaxY = max(nb.MaxY, y)
			} else {
				sal += float64(p.L)
				saa += float64(p.A)
				sab += float64(p.B)
				minX = min(minX, x)
				minY = min(minY, y)
				maxX = max(maxX, x)
				maxY = max(maxY, y)
			}
		}
	}
	areaA := reg.Area - areaB
	reg.Area = areaA
	reg.MinX, reg.MinY, reg.MaxX, reg.MaxY = minX, minY, maxX, maxY
	reg.MeanLab = colorspace.Lab{
		L: float32(sal / float64(areaA)),
		A: float32(saa / float64(areaA)),
		B: float32(sab / float64(areaA)),
	}
	nb.Area = areaB
	nb.MeanLab = colorspace.Lab{
		L: float32(sbl / float64(areaB)),
		A: float32(sba / float64(areaB)),
		B: float32(sbb / float64(areaB)),
	}
	return newID, true
}

// splitSeeds picks the pixel farthest in color from the region mean, then
// the pixel farthest in color from that first seed. Row-major scan order
// with strict improvement keeps the choice deterministic.
func splitSeeds(m *Map, lab *imaging.LabImage, reg *Region) (a, b int, ok bool) {
	a, b = -1, -1
	bestA := -1.0
	for y := reg.MinY; y <= reg.MaxY; y++ {
		for x := reg.MinX; x <= reg.MaxX; x++ {
			i := y*m.W + x
			if m.Labels[i] != reg.ID {
				continue
			}
			if d := colorspace.DeltaE(lab.Pix[i], reg.MeanLab); d > bestA {
				bestA = d
				a = i
			}
		}
	}
	if a < 0 {
		return 0, 0, false
	}
	bestB := -1.0
	for y := reg.MinY; y <= reg.MaxY; y++ {
		for x := reg.MinX; x <= reg.MaxX; x++ {
			i := y*m.W + x
			if m.Labels[i] != reg.ID || i == a {
				continue
			}
			if d := colorspace.DeltaE(lab.Pix[i], lab.Pix[a]); d > bestB {
				bestB = d
				b = i
			}
		}
	}
	return a, b, b >= 0
}

type pathNode struct {
	idx  int
	cost float64
	side uint8
	seq  int
}

type pathHeap []pathNode

func (h pathHeap) Len() int { return len(h) }
func (h pathHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}
func (h pathHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)   { *h = append(*h, x.(pathNode)) }
func (h *pathHeap) Pop() any     { old := *h; n := len(old); v := old[n-1]; *h = old[:n-1]; return v }

// assignSides runs two-source Dijkstra inside the region. Step cost rises
// with the destination gradient and the color jump, so paths avoid crossing
// the ridge and the cut lands on it.
func assignSides(m *Map, lab *imaging.LabImage, grad *imaging.GradientField, reg *Region, seedA, seedB int) []uint8 {
	side := make([]uint8, m.W*m.H)
	cost := make(map[int]float64, reg.Area)

	h := pathHeap{
		{idx: seedA, cost: 0, side: 1, seq: 0},
		{idx: seedB, cost: 0, side: 2, seq: 1},
	}
	heap.Init(&h)
	seq := 2
	cost[seedA] = 0
	cost[seedB] = 0

	for h.Len() > 0 {
		n := heap.Pop(&h).(pathNode)
		if side[n.idx] != 0 {
			continue
		}
		side[n.idx] = n.side

		x, y := n.idx%m.W, n.idx/m.W
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || nx >= m.W || ny < 0 || ny >= m.H {
				continue
			}
			j := ny*m.W + nx
			if m.Labels[j] != reg.ID || side[j] != 0 {
				continue
			}
			step := 1.0 + colorspace.DeltaE(lab.Pix[n.idx], lab.Pix[j])
			if grad != nil {
				step += 10 * float64(grad.Mag[j])
			}
			nc := n.cost + step
			if prev, seen := cost[j]; !seen || nc < prev {
				cost[j] = nc
				heap.Push(&h, pathNode{idx: j, cost: nc, side: n.side, seq: seq})
				seq++
			}
		}
	}
	return side
}
