package segment

import (
	"container/heap"
	"sort"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/imaging"
)

// gradientScale maps the normalized boundary gradient [0,1] into units
// comparable to Lab distance, so a sharp boundary resists merging.
const gradientScale = 20.0

// edgeKey identifies an undirected adjacency, lower id first.
type edgeKey struct{ a, b int32 }

func keyOf(a, b int32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// edgeStat accumulates boundary statistics between two regions.
type edgeStat struct {
	length  int
	gradSum float64
}

// Graph is the region adjacency graph over a Map. Edges carry the boundary
// length and mean boundary gradient used for merge weights.
type Graph struct {
	m     *Map
	edges map[edgeKey]*edgeStat
	grad  *imaging.GradientField
}

// BuildGraph scans the label map once and records every 4-adjacency between
// distinct regions. grad may be nil, in which case the gradient term is zero.
func BuildGraph(m *Map, grad *imaging.GradientField) *Graph {
	g := &Graph{m: m, edges: map[edgeKey]*edgeStat{}, grad: grad}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			i := y*m.W + x
			a := m.Labels[i]
			if x+1 < m.W {
				g.addBoundary(a, m.Labels[i+1], x, y)
			}
			if y+1 < m.H {
				g.addBoundary(a, m.Labels[i+m.W], x, y)
			}
		}
	}
	return g
}

func (g *Graph) addBoundary(a, b int32, x, y int) {
	if a == b {
		return
	}
	k := keyOf(a, b)
	s := g.edges[k]
	if s == nil {
		s = &edgeStat{}
		g.edges[k] = s
	}
	s.length++
	if g.grad != nil {
		s.gradSum += float64(g.grad.Mag[y*g.grad.W+x])
	}
}

// weight is the merge cost between two live regions.
func (g *Graph) weight(k edgeKey, s *edgeStat) float64 {
	de := colorspace.DeltaE(g.m.Regions[k.a].MeanLab, g.m.Regions[k.b].MeanLab)
	grad := 0.0
	if s.length > 0 {
		grad = s.gradSum / float64(s.length)
	}
	return 0.7*de + 0.3*grad*gradientScale
}

// mergeCand is a heap entry. Stale entries are detected by comparing the
// recorded epoch of both endpoints against the union-find state.
type mergeCand struct {
	key    edgeKey
	weight float64
	epochA int
	epochB int
}

type candHeap []mergeCand

func (h candHeap) Len() int { return len(h) }
func (h candHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	if h[i].key.a != h[j].key.a {
		return h[i].key.a < h[j].key.a
	}
	return h[i].key.b < h[j].key.b
}
func (h candHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candHeap) Push(x any)   { *h = append(*h, x.(mergeCand)) }
func (h *candHeap) Pop() any     { old := *h; n := len(old); v := old[n-1]; *h = old[:n-1]; return v }

// MergeOptions bounds the greedy merge pass.
type MergeOptions struct {
	Threshold     float64
	MaxRegionArea int
}

// MergeSimilar greedily merges the cheapest adjacent pair while its weight
// stays under the threshold. Merging is lowest-weight first with ties broken
// by region ids, so the result is independent of map iteration order.
func MergeSimilar(g *Graph, opts MergeOptions) {
	m := g.m
	epochs := make([]int, len(m.Regions))

	// Adjacency sets per region so a merge can refresh its neighborhood.
	adj := make([]map[int32]*edgeStat, len(m.Regions))
	for i := range adj {
		adj[i] = map[int32]*edgeStat{}
	}
	for k, s := range g.edges {
		adj[k.a][k.b] = s
		adj[k.b][k.a] = s
	}

	h := make(candHeap, 0, len(g.edges))
	// Seed the heap in sorted key order for a reproducible initial layout.
	keys := make([]edgeKey, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
	for _, k := range keys {
		h = append(h, mergeCand{key: k, weight: g.weight(k, g.edges[k])})
	}
	heap.Init(&h)

	for h.Len() > 0 {
		c := heap.Pop(&h).(mergeCand)
		a, b := c.key.a, c.key.b
		if !m.Regions[a].Alive || !m.Regions[b].Alive {
			continue
		}
		if c.epochA != epochs[a] || c.epochB != epochs[b] {
			continue // stale entry, a fresher one was pushed after a merge
		}
		if c.weight > opts.Threshold {
			break
		}
		if opts.MaxRegionArea > 0 && m.Regions[a].Area+m.Regions[b].Area > opts.MaxRegionArea {
			continue
		}

		// Fold b into a (a has the lower id).
		mergeInto(m, b, a)
		epochs[a]++

		// Rewire b's neighbors onto a and refresh candidates.
		for nid, s := range adj[b] {
			if nid == a {
				continue
			}
			delete(adj[nid], b)
			if prev, ok := adj[a][nid]; ok {
				prev.length += s.length
				prev.gradSum += s.gradSum
			} else {
				adj[a][nid] = s
				adj[nid][a] = s
			}
		}
		adj[b] = nil
		delete(adj[a], b)

		// Push refreshed candidates for a's whole neighborhood in id order.
		nids := make([]int32, 0, len(adj[a]))
		for nid := range adj[a] {
			nids = append(nids, nid)
		}
		sort.Slice(nids, func(i, j int) bool { return nids[i] < nids[j] })
		for _, nid := range nids {
			if !m.Regions[nid].Alive {
				continue
			}
			k := keyOf(a, nid)
			cand := mergeCand{key: k, weight: g.weight(k, adj[a][nid])}
			cand.epochA = epochs[k.a]
			cand.epochB = epochs[k.b]
			heap.Push(&h, cand)
		}
	}
}
