package vectra

import "time"

// StageTime records wall-clock time spent in one pipeline stage.
type StageTime struct {
	Stage    string
	Duration time.Duration
}

// Stats summarizes one Vectorize call. It is diagnostic output only and
// never feeds back into processing, so timing jitter cannot affect the
// document.
type Stats struct {
	Backend string

	// InputWidth and InputHeight are the caller-supplied dimensions;
	// Width and Height are the processed (possibly downscaled) ones.
	InputWidth, InputHeight int
	Width, Height           int

	// Regions is the live region count after merging (segmentation
	// backend only).
	Regions int

	// Paths and Nodes describe the assembled document.
	Paths int
	Nodes int

	// Refinement outcome. Iterations is zero when the loop is disabled.
	RefineIterations int
	RefineStop       string
	MeanDeltaE       float64
	MeanSSIM         float64

	// Stages lists per-stage timings in execution order.
	Stages []StageTime
}

// stageClock accumulates named stage timings.
type stageClock struct {
	stats *Stats
	start time.Time
}

func newStageClock(s *Stats) *stageClock {
	return &stageClock{stats: s, start: time.Now()}
}

// lap closes the current stage and starts the next.
func (c *stageClock) lap(stage string) {
	now := time.Now()
	c.stats.Stages = append(c.stats.Stages, StageTime{Stage: stage, Duration: now.Sub(c.start)})
	c.start = now
}
