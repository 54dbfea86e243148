// Package refine scores a rendered approximation against the source image
// in perceptual terms: per-tile color error and structural similarity,
// plus the convergence bookkeeping for the iterative improvement loop.
package refine

import (
	"sort"

	"github.com/gogpu/vectra/internal/colorspace"
	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/parallel"
)

// TileScore is the perceptual error of one image tile.
type TileScore struct {
	// Pixel bounds, X1/Y1 exclusive.
	X0, Y0, X1, Y1 int
	MeanDeltaE     float64
	MaxDeltaE      float64
	SSIM           float64
	Priority       float64
}

// ssim stabilization constants for luminance in [0, 1].
const (
	ssimC1 = 0.01 * 0.01
	ssimC2 = 0.03 * 0.03
)

// ScoreTiles compares render against src tile by tile. Priority grows with
// the tile's mean color error relative to targetDeltaE and with its SSIM
// shortfall below targetSSIM. Tiles are returned in row-major grid order.
func ScoreTiles(src, render *imaging.Raster, tileSize int, targetDeltaE, targetSSIM float64, workers int) []TileScore {
	w, h := src.W, src.H
	tx := (w + tileSize - 1) / tileSize
	ty := (h + tileSize - 1) / tileSize
	tiles := make([]TileScore, tx*ty)

	parallel.For(tx*ty, workers, func(start, end int) {
		for ti := start; ti < end; ti++ {
			gx := ti % tx
			gy := ti / tx
			t := &tiles[ti]
			t.X0 = gx * tileSize
			t.Y0 = gy * tileSize
			t.X1 = min(t.X0+tileSize, w)
			t.Y1 = min(t.Y0+tileSize, h)
			scoreTile(src, render, t)
			t.Priority = t.MeanDeltaE / targetDeltaE
			if t.SSIM < targetSSIM {
				t.Priority += (targetSSIM - t.SSIM) * 10
			}
		}
	})
	return tiles
}

func scoreTile(src, render *imaging.Raster, t *TileScore) {
	var sumDE, maxDE float64
	var ma, mb float64
	n := float64((t.X1 - t.X0) * (t.Y1 - t.Y0))

	lumA := make([]float64, 0, int(n))
	lumB := make([]float64, 0, int(n))
	for y := t.Y0; y < t.Y1; y++ {
		for x := t.X0; x < t.X1; x++ {
			ar, ag, ab, _ := src.At(x, y)
			br, bg, bb, _ := render.At(x, y)
			de := colorspace.DeltaE(colorspace.RGBToLab(ar, ag, ab), colorspace.RGBToLab(br, bg, bb))
			sumDE += de
			if de > maxDE {
				maxDE = de
			}
			la := colorspace.Luminance(ar, ag, ab)
			lb := colorspace.Luminance(br, bg, bb)
			lumA = append(lumA, la)
			lumB = append(lumB, lb)
			ma += la
			mb += lb
		}
	}
	ma /= n
	mb /= n

	var va, vb, cov float64
	for i := range lumA {
		da := lumA[i] - ma
		db := lumB[i] - mb
		va += da * da
		vb += db * db
		cov += da * db
	}
	va /= n
	vb /= n
	cov /= n

	t.MeanDeltaE = sumDE / n
	t.MaxDeltaE = maxDE
	t.SSIM = ((2*ma*mb + ssimC1) * (2*cov + ssimC2)) /
		((ma*ma + mb*mb + ssimC1) * (va + vb + ssimC2))
}

// SelectWorst filters tiles that miss either target and returns at most
// limit of them, worst first. Equal priorities fall back to grid order so
// the selection is stable.
func SelectWorst(tiles []TileScore, targetDeltaE, targetSSIM float64, limit int) []TileScore {
	var bad []TileScore
	for _, t := range tiles {
		if t.MeanDeltaE > targetDeltaE || t.SSIM < targetSSIM {
			bad = append(bad, t)
		}
	}
	sort.SliceStable(bad, func(i, j int) bool {
		return bad[i].Priority > bad[j].Priority
	})
	if limit > 0 && len(bad) > limit {
		bad = bad[:limit]
	}
	return bad
}

// GlobalScore folds tile scores into one scalar, lower is better. Color
// error counts directly; SSIM shortfall is scaled into comparable units.
func GlobalScore(tiles []TileScore) float64 {
	if len(tiles) == 0 {
		return 0
	}
	var de, ssim float64
	for _, t := range tiles {
		de += t.MeanDeltaE
		ssim += t.SSIM
	}
	de /= float64(len(tiles))
	ssim /= float64(len(tiles))
	return de + (1-ssim)*20
}

// Reason explains why the refinement loop stopped.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTargetsMet
	ReasonPlateau
	ReasonMaxIterations
	ReasonBudget
)

func (r Reason) String() string {
	switch r {
	case ReasonTargetsMet:
		return "targets met"
	case ReasonPlateau:
		return "plateau"
	case ReasonMaxIterations:
		return "max iterations"
	case ReasonBudget:
		return "time budget"
	default:
		return "running"
	}
}

// State tracks loop convergence across iterations.
type State struct {
	MaxIterations int
	TargetDeltaE  float64
	TargetSSIM    float64
	// Plateau is the minimum score improvement per iteration; anything
	// smaller ends the loop.
	Plateau float64

	iterations int
	lastScore  float64
	hasLast    bool
	BestScore  float64
	BestValid  bool
}

// Observe records one finished iteration and reports whether the loop
// should stop. The best score seen is retained so callers can keep the
// best result rather than the last.
func (s *State) Observe(tiles []TileScore) Reason {
	s.iterations++
	score := GlobalScore(tiles)
	improved := !s.hasLast || s.lastScore-score > s.Plateau

	if !s.BestValid || score < s.BestScore {
		s.BestScore = score
		s.BestValid = true
	}

	if targetsMet(tiles, s.TargetDeltaE, s.TargetSSIM) {
		return ReasonTargetsMet
	}
	if s.hasLast && !improved {
		return ReasonPlateau
	}
	s.lastScore = score
	s.hasLast = true
	if s.iterations >= s.MaxIterations {
		return ReasonMaxIterations
	}
	return ReasonNone
}

// Iterations returns how many observations have been made.
func (s *State) Iterations() int { return s.iterations }

func targetsMet(tiles []TileScore, targetDeltaE, targetSSIM float64) bool {
	for _, t := range tiles {
		if t.MeanDeltaE > targetDeltaE || t.SSIM < targetSSIM {
			return false
		}
	}
	return len(tiles) > 0
}

// Improved reports whether candidate beats baseline by more than eps.
func Improved(baseline, candidate float64, eps float64) bool {
	return baseline-candidate > eps
}
