// Package segment implements superpixel clustering, the region adjacency
// graph, and the merge/split operations over it.
//
// The label map is the source of truth for membership: every pixel belongs
// to exactly one region at all times, and merge/split are index rewrites
// over that map (regions are arena-indexed, never pointer-linked).
package segment

import (
	"math"
	"math/rand"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/parallel"
)

// SeedMode selects how cluster centers are distributed.
type SeedMode int

const (
	// SeedGrid places centers on a regular grid.
	SeedGrid SeedMode = iota
	// SeedJitter perturbs the grid with seeded noise.
	SeedJitter
	// SeedHalton uses a low-discrepancy Halton sequence.
	SeedHalton
)

// Options controls superpixel clustering.
type Options struct {
	TargetRegions  int
	Compactness    float64
	MaxIterations  int
	ConvergenceEps float64
	Seeds          SeedMode
	Seed           int64
	MinRegionArea  int
	Workers        int
}

// Region is one contiguous pixel cluster. Membership lives in Map.Labels;
// the region records aggregates only.
type Region struct {
	ID      int32
	Area    int
	MeanLab colorspace.Lab
	// Bounding box, inclusive pixel coordinates.
	MinX, MinY, MaxX, MaxY int
	// Alive is false once the region has been merged away or split.
	Alive bool
}

// Map is a full segmentation: a label per pixel plus the region arena.
// Region IDs index the arena directly.
type Map struct {
	W, H    int
	Labels  []int32
	Regions []Region
}

// Region returns the arena entry for id.
func (m *Map) Region(id int32) *Region { return &m.Regions[id] }

// AliveCount returns the number of live regions.
func (m *Map) AliveCount() int {
	n := 0
	for i := range m.Regions {
		if m.Regions[i].Alive {
			n++
		}
	}
	return n
}

// cluster is the working state of one superpixel center.
type cluster struct {
	x, y float64
	lab  colorspace.Lab
}

// Superpixels clusters the image into approximately opts.TargetRegions
// contiguous regions using spatial+color distance with bounded windows.
// The result covers every pixel exactly once.
func Superpixels(lab *imaging.LabImage, opts Options) *Map {
	w, h := lab.W, lab.H
	n := w * h
	k := opts.TargetRegions
	if k > n {
		k = n
	}
	// Seed spacing.
	s := math.Sqrt(float64(n) / float64(k))
	if s < 1 {
		s = 1
	}

	clusters := seedClusters(lab, k, s, opts)
	labels := make([]int32, n)
	dists := make([]float64, n)

	invS := opts.Compactness / s
	window := int(s) + 1

	for iter := 0; iter < opts.MaxIterations; iter++ {
		// Assignment: each pixel scans clusters whose center lies within a
		// 2S window. Candidates are visited in ascending cluster order with
		// strict improvement, so ties resolve to the lowest cluster id.
		for i := range dists {
			dists[i] = math.Inf(1)
		}
		grid := bucketClusters(clusters, w, h, window)
		parallel.ForRows(h, opts.Workers, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := 0; x < w; x++ {
					i := y*w + x
					p := lab.Pix[i]
					for _, ci := range grid.candidates(x, y) {
						c := &clusters[ci]
						dx := float64(x) - c.x
						dy := float64(y) - c.y
						if dx < -2*s || dx > 2*s || dy < -2*s || dy > 2*s {
							continue
						}
						dl := float64(p.L - c.lab.L)
						da := float64(p.A - c.lab.A)
						db := float64(p.B - c.lab.B)
						spatial := (dx*dx + dy*dy) * invS * invS
						d := dl*dl + da*da + db*db + spatial
						if d < dists[i] {
							dists[i] = d
							labels[i] = int32(ci)
						}
					}
				}
			}
		})

		// Centroid recompute needs the full assignment, hence after the join.
		moved := recomputeCenters(lab, labels, clusters)
		if moved < opts.ConvergenceEps {
			break
		}
	}

	return connectAndBuild(lab, labels, len(clusters), opts.MinRegionArea)
}

// seedClusters places the initial centers.
func seedClusters(lab *imaging.LabImage, k int, s float64, opts Options) []cluster {
	w, h := lab.W, lab.H
	var pts [][2]float64
	switch opts.Seeds {
	case SeedHalton:
		for i := 0; len(pts) < k; i++ {
			pts = append(pts, [2]float64{halton(i+1, 2) * float64(w), halton(i+1, 3) * float64(h)})
		}
	default:
		rng := rand.New(rand.NewSource(opts.Seed))
		for y := s / 2; y < float64(h); y += s {
			for x := s / 2; x < float64(w); x += s {
				px, py := x, y
				if opts.Seeds == SeedJitter {
					px += (rng.Float64() - 0.5) * s * 0.5
					py += (rng.Float64() - 0.5) * s * 0.5
				}
				pts = append(pts, [2]float64{px, py})
			}
		}
	}

	clusters := make([]cluster, 0, len(pts))
	for _, p := range pts {
		x := clampInt(int(p[0]), 0, w-1)
		y := clampInt(int(p[1]), 0, h-1)
		clusters = append(clusters, cluster{x: float64(x), y: float64(y), lab: lab.At(x, y)})
	}
	return clusters
}

// halton returns element i of the base-b Halton sequence in [0,1).
func halton(i, b int) float64 {
	f := 1.0
	r := 0.0
	for i > 0 {
		f /= float64(b)
		r += f * float64(i%b)
		i /= b
	}
	return r
}

// clusterGrid buckets cluster indices by coarse cell so a pixel only visits
// nearby clusters.
type clusterGrid struct {
	cell, gw, gh int
	buckets      [][]int
}

func bucketClusters(clusters []cluster, w, h, cell int) *clusterGrid {
	if cell < 1 {
		cell = 1
	}
	gw := (w + cell - 1) / cell
	gh := (h + cell - 1) / cell
	g := &clusterGrid{cell: cell, gw: gw, gh: gh, buckets: make([][]int, gw*gh)}
	for i := range clusters {
		cx := clampInt(int(clusters[i].x)/cell, 0, gw-1)
		cy := clampInt(int(clusters[i].y)/cell, 0, gh-1)
		g.buckets[cy*gw+cx] = append(g.buckets[cy*gw+cx], i)
	}
	return g
}

// candidates returns cluster indices near (x, y), in ascending order within
// each bucket scan (buckets are filled in ascending cluster order).
func (g *clusterGrid) candidates(x, y int) []int {
	cx, cy := x/g.cell, y/g.cell
	var out []int
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			nx, ny := cx+dx, cy+dy
			if nx < 0 || nx >= g.gw || ny < 0 || ny >= g.gh {
				continue
			}
			out = append(out, g.buckets[ny*g.gw+nx]...)
		}
	}
	return out
}

// recomputeCenters moves every center to its members' mean and returns the
// maximum center movement in pixels.
func recomputeCenters(lab *imaging.LabImage, labels []int32, clusters []cluster) float64 {
	type acc struct {
		x, y, l, a, b float64
		n             int
	}
	accs := make([]acc, len(clusters))
	for i, ci := range labels {
		a := &accs[ci]
		x := i % lab.W
		y := i / lab.W
		p := lab.Pix[i]
		a.x += float64(x)
		a.y += float64(y)
		a.l += float64(p.L)
		a.a += float64(p.A)
		a.b += float64(p.B)
		a.n++
	}
	var moved float64
	for i := range clusters {
		a := &accs[i]
		if a.n == 0 {
			continue
		}
		nx := a.x / float64(a.n)
		ny := a.y / float64(a.n)
		moved = math.Max(moved, math.Hypot(nx-clusters[i].x, ny-clusters[i].y))
		clusters[i] = cluster{
			x: nx, y: ny,
			lab: colorspace.Lab{
				L: float32(a.l / float64(a.n)),
				A: float32(a.a / float64(a.n)),
				B: float32(a.b / float64(a.n)),
			},
		}
	}
	return moved
}

// connectAndBuild enforces region contiguity: connected components of equal
// cluster label become regions, and components below minArea are absorbed by
// the neighbor sharing the longest boundary (ties to the lowest region id).
// The result covers every pixel exactly once.
func connectAndBuild(lab *imaging.LabImage, clusterLabels []int32, _ int, minArea int) *Map {
	w, h := lab.W, lab.H
	n := w * h
	labels := make([]int32, n)
	for i := range labels {
		labels[i] = -1
	}

	var regions []Region
	stack := make([]int, 0, 256)

	for start := 0; start < n; start++ {
		if labels[start] != -1 {
			continue
		}
		id := int32(len(regions))
		cl := clusterLabels[start]
		reg := Region{ID: id, Alive: true,
			MinX: start % w, MinY: start / w, MaxX: start % w, MaxY: start / w}
		var sl, sa, sb float64

		stack = append(stack[:0], start)
		labels[start] = id
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			reg.Area++
			reg.MinX = min(reg.MinX, x)
			reg.MinY = min(reg.MinY, y)
			reg.MaxX = max(reg.MaxX, x)
			reg.MaxY = max(reg.MaxY, y)
			p := lab.Pix[i]
			sl += float64(p.L)
			sa += float64(p.A)
			sb += float64(p.B)

			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if labels[j] == -1 && clusterLabels[j] == cl {
					labels[j] = id
					stack = append(stack, j)
				}
			}
		}
		fn := float64(reg.Area)
		reg.MeanLab = colorspace.Lab{L: float32(sl / fn), A: float32(sa / fn), B: float32(sb / fn)}
		regions = append(regions, reg)
	}

	m := &Map{W: w, H: h, Labels: labels, Regions: regions}
	absorbSmall(m, lab, minArea)
	return m
}

// absorbSmall merges regions under minArea into the neighbor with the
// longest shared boundary. Processed in ascending region id for
// determinism.
func absorbSmall(m *Map, lab *imaging.LabImage, minArea int) {
	if minArea <= 1 {
		return
	}
	for id := range m.Regions {
		reg := &m.Regions[id]
		if !reg.Alive || reg.Area >= minArea {
			continue
		}
		// Count boundary contact per neighbor.
		contact := map[int32]int{}
		for y := reg.MinY; y <= reg.MaxY; y++ {
			for x := reg.MinX; x <= reg.MaxX; x++ {
				if m.Labels[y*m.W+x] != reg.ID {
					continue
				}
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := x+d[0], y+d[1]
					if nx < 0 || nx >= m.W || ny < 0 || ny >= m.H {
						continue
					}
					if l := m.Labels[ny*m.W+nx]; l != reg.ID && m.Regions[l].Alive {
						contact[l]++
					}
				}
			}
		}
		var best int32 = -1
		bestContact := -1
		for nid, c := range contact {
			if c > bestContact || (c == bestContact && nid < best) {
				best, bestContact = nid, c
			}
		}
		if best < 0 {
			continue
		}
		mergeInto(m, reg.ID, best)
	}
}

// mergeInto rewrites src's pixels to dst and folds aggregates.
func mergeInto(m *Map, src, dst int32) {
	s := &m.Regions[src]
	d := &m.Regions[dst]
	for y := s.MinY; y <= s.MaxY; y++ {
		for x := s.MinX; x <= s.MaxX; x++ {
			if m.Labels[y*m.W+x] == src {
				m.Labels[y*m.W+x] = dst
			}
		}
	}
	total := float64(s.Area + d.Area)
	ws, wd := float64(s.Area)/total, float64(d.Area)/total
	d.MeanLab = colorspace.Lab{
		L: float32(ws*float64(s.MeanLab.L) + wd*float64(d.MeanLab.L)),
		A: float32(ws*float64(s.MeanLab.A) + wd*float64(d.MeanLab.A)),
		B: float32(ws*float64(s.MeanLab.B) + wd*float64(d.MeanLab.B)),
	}
	d.Area += s.Area
	d.MinX = min(d.MinX, s.MinX)
	d.MinY = min(d.MinY, s.MinY)
	d.MaxX = max(d.MaxX, s.MaxX)
	d.MaxY = max(d.MaxY, s.MaxY)
	s.Alive = false
	s.Area = 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
