package trace

import (
	"math"

	"github.com/gogpu/vectra/internal/geom"
	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/parallel"
)

// FlowField holds a smoothed tangent per pixel, perpendicular to the local
// gradient, plus the gradient magnitude it was derived from.
type FlowField struct {
	W, H   int
	Tx, Ty []float32
	Mag    []float32
}

// TangentFlow builds an edge tangent flow field from image gradients.
// Each iteration replaces a pixel's tangent with the magnitude- and
// alignment-weighted average of its neighborhood, which straightens the
// field along coherent edges while strong edges dominate weak ones.
func TangentFlow(grad *imaging.GradientField, iterations, radius, workers int) *FlowField {
	w, h := grad.W, grad.H
	f := &FlowField{W: w, H: h,
		Tx: make([]float32, w*h), Ty: make([]float32, w*h),
		Mag: grad.Mag,
	}
	for i := range f.Tx {
		// Tangent is the gradient rotated a quarter turn.
		d := float64(grad.Dir[i])
		f.Tx[i] = float32(-math.Sin(d))
		f.Ty[i] = float32(math.Cos(d))
	}

	nx := make([]float32, w*h)
	ny := make([]float32, w*h)
	for it := 0; it < iterations; it++ {
		parallel.ForRows(h, workers, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := 0; x < w; x++ {
					i := y*w + x
					tx, ty := f.Tx[i], f.Ty[i]
					mp := f.Mag[i]
					var sx, sy float32
					for dy := -radius; dy <= radius; dy++ {
						qy := y + dy
						if qy < 0 || qy >= h {
							continue
						}
						for dx := -radius; dx <= radius; dx++ {
							qx := x + dx
							if qx < 0 || qx >= w {
								continue
							}
							j := qy*w + qx
							dot := tx*f.Tx[j] + ty*f.Ty[j]
							wm := (f.Mag[j] - mp + 1) * 0.5
							wd := dot
							if wd < 0 {
								wd = -wd
							}
							wq := wm * wd
							if dot < 0 {
								wq = -wq
							}
							sx += wq * f.Tx[j]
							sy += wq * f.Ty[j]
						}
					}
					l := float32(math.Hypot(float64(sx), float64(sy)))
					if l > 1e-6 {
						nx[i] = sx / l
						ny[i] = sy / l
					} else {
						nx[i] = tx
						ny[i] = ty
					}
				}
			}
		})
		f.Tx, nx = nx, f.Tx
		f.Ty, ny = ny, f.Ty
	}
	return f
}

// tangentAt bilinearly samples the flow field, flipping samples to agree
// with the reference direction before blending.
func (f *FlowField) tangentAt(x, y, refX, refY float64) (float64, float64) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var sx, sy float64
	for _, c := range [4][3]float64{
		{0, 0, (1 - fx) * (1 - fy)},
		{1, 0, fx * (1 - fy)},
		{0, 1, (1 - fx) * fy},
		{1, 1, fx * fy},
	} {
		px := x0 + int(c[0])
		py := y0 + int(c[1])
		if px < 0 || px >= f.W || py < 0 || py >= f.H || c[2] == 0 {
			continue
		}
		i := py*f.W + px
		tx, ty := float64(f.Tx[i]), float64(f.Ty[i])
		if tx*refX+ty*refY < 0 {
			tx, ty = -tx, -ty
		}
		sx += c[2] * tx
		sy += c[2] * ty
	}
	l := math.Hypot(sx, sy)
	if l < 1e-9 {
		return refX, refY
	}
	return sx / l, sy / l
}

func (f *FlowField) magAt(x, y int) float64 {
	if x < 0 || x >= f.W || y < 0 || y >= f.H {
		return 0
	}
	return float64(f.Mag[y*f.W+x])
}

// WalkOptions controls flow-guided edge tracing.
type WalkOptions struct {
	Low, High  float64 // hysteresis thresholds on gradient magnitude
	MaxTurnDeg float64
	Multipass  bool
	DedupDist  float64
	DedupAngle float64 // degrees
}

const maxWalkSteps = 100000

// EdgePolylines walks the flow field from strong-edge seeds and returns the
// traced polylines. Seeds are visited in a fixed scan order per pass, walks
// extend in both directions until the magnitude drops below the low
// threshold or the path turns too sharply, and near-duplicate traces from
// later passes are dropped.
func EdgePolylines(f *FlowField, opts WalkOptions) []Polyline {
	covered := make([]bool, f.W*f.H)
	idx := newDedupIndex(math.Max(opts.DedupDist, 1))
	cosMax := math.Cos(opts.MaxTurnDeg * math.Pi / 180)

	var out []Polyline
	emit := func(x, y int) {
		i := y*f.W + x
		if covered[i] || f.magAt(x, y) < opts.High {
			return
		}
		p := walkBoth(f, float64(x), float64(y), opts.Low, cosMax)
		if len(p.Points) < 3 {
			return
		}
		if idx.isDuplicate(p, opts.DedupDist, opts.DedupAngle) {
			return
		}
		idx.add(p)
		out = append(out, p)
		for _, pt := range p.Points {
			cx := int(pt.X + 0.5)
			cy := int(pt.Y + 0.5)
			if cx >= 0 && cx < f.W && cy >= 0 && cy < f.H {
				covered[cy*f.W+cx] = true
			}
		}
	}

	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			emit(x, y)
		}
	}
	if opts.Multipass {
		// A reverse pass and a column-major pass pick up traces the first
		// scan truncated at junctions.
		for y := f.H - 1; y >= 0; y-- {
			for x := f.W - 1; x >= 0; x-- {
				emit(x, y)
			}
		}
		for x := 0; x < f.W; x++ {
			for y := 0; y < f.H; y++ {
				emit(x, y)
			}
		}
	}
	return out
}

// walkBoth traces from the seed along the tangent in both directions and
// stitches the halves into one polyline.
func walkBoth(f *FlowField, sx, sy, low, cosMax float64) Polyline {
	i := int(sy)*f.W + int(sx)
	tx, ty := float64(f.Tx[i]), float64(f.Ty[i])

	fwd := walkOne(f, sx, sy, tx, ty, low, cosMax)
	bwd := walkOne(f, sx, sy, -tx, -ty, low, cosMax)

	pts := make([]geom.Point, 0, len(fwd)+len(bwd)+1)
	for k := len(bwd) - 1; k >= 0; k-- {
		pts = append(pts, bwd[k])
	}
	pts = append(pts, geom.Point{X: sx, Y: sy})
	pts = append(pts, fwd...)
	return Polyline{Points: pts}
}

func walkOne(f *FlowField, x, y, dx, dy, low, cosMax float64) []geom.Point {
	var pts []geom.Point
	for step := 0; step < maxWalkSteps; step++ {
		ndx, ndy := f.tangentAt(x, y, dx, dy)
		if ndx*dx+ndy*dy < cosMax {
			break
		}
		x += ndx
		y += ndy
		dx, dy = ndx, ndy
		if x < 0 || y < 0 || x >= float64(f.W) || y >= float64(f.H) {
			break
		}
		if f.magAt(int(x), int(y)) < low {
			break
		}
		pts = append(pts, geom.Point{X: x, Y: y})
	}
	return pts
}

// dedupIndex hashes polyline samples with their local direction so later
// passes can recognize a retrace of an existing line.
type dedupIndex struct {
	cell    float64
	buckets map[[2]int][]dedupSample
}

type dedupSample struct{ x, y, dx, dy float64 }

func newDedupIndex(cell float64) *dedupIndex {
	return &dedupIndex{cell: cell, buckets: map[[2]int][]dedupSample{}}
}

func (d *dedupIndex) add(p Polyline) {
	for i, pt := range p.Points {
		dx, dy := localDir(p.Points, i)
		k := [2]int{int(pt.X / d.cell), int(pt.Y / d.cell)}
		d.buckets[k] = append(d.buckets[k], dedupSample{pt.X, pt.Y, dx, dy})
	}
}

// isDuplicate reports whether most of p lies on already-recorded samples
// with matching orientation.
func (d *dedupIndex) isDuplicate(p Polyline, dist, angleDeg float64) bool {
	if len(d.buckets) == 0 || len(p.Points) == 0 {
		return false
	}
	cosMin := math.Cos(angleDeg * math.Pi / 180)
	matched := 0
	for i, pt := range p.Points {
		dx, dy := localDir(p.Points, i)
		cx := int(pt.X / d.cell)
		cy := int(pt.Y / d.cell)
	cellScan:
		for oy := -1; oy <= 1; oy++ {
			for ox := -1; ox <= 1; ox++ {
				for _, s := range d.buckets[[2]int{cx + ox, cy + oy}] {
					if math.Hypot(s.x-pt.X, s.y-pt.Y) > dist {
						continue
					}
					c := s.dx*dx + s.dy*dy
					if c < 0 {
						c = -c
					}
					if c >= cosMin {
						matched++
						break cellScan
					}
				}
			}
		}
	}
	return float64(matched) >= 0.7*float64(len(p.Points))
}

// localDir returns the unit direction at sample i.
func localDir(pts []geom.Point, i int) (float64, float64) {
	j := i + 1
	if j >= len(pts) {
		j = i
		i--
	}
	if i < 0 {
		return 1, 0
	}
	dx := pts[j].X - pts[i].X
	dy := pts[j].Y - pts[i].Y
	l := math.Hypot(dx, dy)
	if l < 1e-9 {
		return 1, 0
	}
	return dx / l, dy / l
}
