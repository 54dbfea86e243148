package vectra

import "time"

// Backend selects the tracing strategy for a pipeline invocation.
type Backend int

const (
	// BackendSegmentation clusters the image into superpixel regions and
	// emits one filled path per merged region.
	BackendSegmentation Backend = iota
	// BackendContour traces binary contours of the thresholded image.
	BackendContour
	// BackendCenterline extracts skeletons and traces open centerlines.
	BackendCenterline
	// BackendEdge walks flow-guided polylines along detected edges.
	BackendEdge
	// BackendDots places seeded stochastic dots weighted by local darkness.
	BackendDots
)

// String returns the backend name used in Stats and logs.
func (b Backend) String() string {
	switch b {
	case BackendSegmentation:
		return "segmentation"
	case BackendContour:
		return "contour"
	case BackendCenterline:
		return "centerline"
	case BackendEdge:
		return "edge"
	case BackendDots:
		return "dots"
	default:
		return "unknown"
	}
}

// ThresholdMethod selects how the image is binarized for the contour and
// centerline backends.
type ThresholdMethod int

const (
	// ThresholdOtsu computes a global threshold from the histogram.
	ThresholdOtsu ThresholdMethod = iota
	// ThresholdFixed uses Preprocess.FixedThreshold directly.
	ThresholdFixed
	// ThresholdAdaptive uses a local mean-offset threshold per pixel.
	ThresholdAdaptive
)

// SeedPattern selects how segmentation cluster centers are distributed.
type SeedPattern int

const (
	// SeedGrid places centers on a regular grid.
	SeedGrid SeedPattern = iota
	// SeedJitter perturbs the grid with seeded noise.
	SeedJitter
	// SeedHalton uses a low-discrepancy Halton sequence.
	SeedHalton
)

// DrawOrderKey selects the primary sort key for emitted paths.
type DrawOrderKey int

const (
	// OrderByArea sorts paths by enclosed area.
	OrderByArea DrawOrderKey = iota
	// OrderByLuminance sorts paths by fill luminance.
	OrderByLuminance
)

// PreprocessConfig controls resize, denoise, threshold and cleanup.
type PreprocessConfig struct {
	// MaxDimension bounds the longer image side; larger inputs are
	// downscaled with area averaging, preserving aspect ratio.
	MaxDimension int
	// Denoise enables edge-preserving bilateral smoothing.
	Denoise bool
	// Threshold selects the binarization method for binary backends.
	Threshold ThresholdMethod
	// FixedThreshold is the cut value for ThresholdFixed (0-255).
	FixedThreshold uint8
	// MorphologyRadius is the structuring-element radius for the open and
	// close passes. Zero disables morphology.
	MorphologyRadius int
	// MinComponentArea drops connected components below this pixel count.
	MinComponentArea int
	// RemoveBackground suppresses the dominant border color region before
	// tracing.
	RemoveBackground bool
}

// SegmentConfig controls superpixel clustering and region merging.
type SegmentConfig struct {
	// TargetRegions is the requested cluster count k.
	TargetRegions int
	// Compactness weighs spatial against color distance; higher values
	// produce squarer superpixels.
	Compactness float64
	// MaxIterations caps clustering rounds.
	MaxIterations int
	// ConvergenceEps stops iteration when the max centroid move (in pixels)
	// falls below it.
	ConvergenceEps float64
	// Seeds selects the cluster seeding pattern.
	Seeds SeedPattern
	// MergeThreshold merges adjacent regions whose RAG edge weight is below
	// it (in Lab distance units).
	MergeThreshold float64
	// MaxRegionArea guards merged regions from swallowing the image;
	// zero means one quarter of the pixel count.
	MaxRegionArea int
	// MinRegionArea rejects split results smaller than this.
	MinRegionArea int
}

// TraceConfig controls the contour, centerline and edge backends.
type TraceConfig struct {
	// MinBranchLength prunes skeleton branches shorter than this (pixels).
	MinBranchLength int
	// Multipass enables the reverse and diagonal edge-walk passes.
	Multipass bool
	// FlowSmoothingIterations is the tangent-flow smoothing round count.
	FlowSmoothingIterations int
	// FlowRadius is the tangent-flow neighborhood radius in pixels.
	FlowRadius int
	// MaxTurnDegrees bounds the per-step turn during flow-guided walking.
	MaxTurnDegrees float64
	// DedupProximity merges polylines whose midpoints are closer than this.
	DedupProximity float64
	// DedupAngleDegrees merges polylines whose orientations differ less.
	DedupAngleDegrees float64
	// EdgeLowThreshold and EdgeHighThreshold are the hysteresis bounds on
	// normalized gradient magnitude (0-1).
	EdgeLowThreshold  float64
	EdgeHighThreshold float64
	// DotDensity scales stochastic dot placement (0-1].
	DotDensity float64
	// DotMinRadius and DotMaxRadius bound emitted dot radii in pixels.
	DotMinRadius float64
	DotMaxRadius float64
}

// FitConfig controls polyline simplification and Bezier fitting.
type FitConfig struct {
	// SimplifyEpsilon is the max-deviation tolerance in pixels.
	SimplifyEpsilon float64
	// UseEffectiveArea selects Visvalingam point removal instead of
	// recursive max-deviation splitting.
	UseEffectiveArea bool
	// CornerDegrees marks a vertex as a corner when the local turn angle
	// exceeds it; corners become segment boundaries and stay C0.
	CornerDegrees float64
	// MaxError bounds the perpendicular deviation of a fitted cubic.
	MaxError float64
	// MaxSubdivisionDepth stops recursive bisection on pathological input.
	MaxSubdivisionDepth int
}

// FillConfig controls fill assignment.
type FillConfig struct {
	// EnableGradients allows PCA gradient upgrades outside refinement.
	EnableGradients bool
	// MaxStops caps gradient stops (2 or 3).
	MaxStops int
	// ElongationThreshold classifies a fill as linear when the region
	// footprint's major/minor axis ratio is at least this value.
	ElongationThreshold float64
}

// AssemblyConfig controls document assembly.
type AssemblyConfig struct {
	// Order is the primary draw-order key.
	Order DrawOrderKey
	// Ascending reverses the default large-to-small (or dark-to-light)
	// ordering.
	Ascending bool
	// Precision is the number of decimals kept in emitted coordinates.
	Precision int
	// MaxNodes bounds the total element count of the document.
	MaxNodes int
	// MinFeatureArea drops paths enclosing less than this area (px²).
	MinFeatureArea float64
}

// RefineConfig controls the optional perceptual refinement loop.
type RefineConfig struct {
	// Enabled turns the loop on.
	Enabled bool
	// TimeBudget is the wall-clock budget for the whole loop. A zero
	// budget stops before the first iteration; the document is returned
	// unchanged with the budget termination reason.
	TimeBudget time.Duration
	// MaxIterations caps loop iterations.
	MaxIterations int
	// TargetDeltaE is the average perceptual color difference target.
	TargetDeltaE float64
	// TargetSSIM is the structural similarity target.
	TargetSSIM float64
	// TileSize is the scoring tile edge in pixels.
	TileSize int
	// MaxTilesPerIteration bounds actions per iteration.
	MaxTilesPerIteration int
	// PlateauThreshold stops the loop when per-iteration improvement in
	// average color error falls below it.
	PlateauThreshold float64
}

// Config is the full configuration record for one pipeline invocation.
// Validate is called at the start of Vectorize; any out-of-range value
// rejects the whole call before processing starts.
type Config struct {
	Backend Backend
	// Seed drives every sampled decision (jittered seeding, dot placement)
	// so identical input and config produce byte-identical output.
	Seed int64

	Preprocess PreprocessConfig
	Segment    SegmentConfig
	Trace      TraceConfig
	Fit        FitConfig
	Fill       FillConfig
	Assembly   AssemblyConfig
	Refine     RefineConfig
}

// DefaultConfig returns a configuration tuned for general imagery.
func DefaultConfig() Config {
	return Config{
		Backend: BackendSegmentation,
		Seed:    1,
		Preprocess: PreprocessConfig{
			MaxDimension:     512,
			Denoise:          false,
			Threshold:        ThresholdOtsu,
			FixedThreshold:   128,
			MorphologyRadius: 1,
			MinComponentArea: 25,
		},
		Segment: SegmentConfig{
			TargetRegions:  50,
			Compactness:    10,
			MaxIterations:  10,
			ConvergenceEps: 0.5,
			Seeds:          SeedGrid,
			MergeThreshold: 2.5,
			MinRegionArea:  16,
		},
		Trace: TraceConfig{
			MinBranchLength:         8,
			Multipass:               false,
			FlowSmoothingIterations: 3,
			FlowRadius:              4,
			MaxTurnDegrees:          45,
			DedupProximity:          3,
			DedupAngleDegrees:       15,
			EdgeLowThreshold:        0.1,
			EdgeHighThreshold:       0.25,
			DotDensity:              0.3,
			DotMinRadius:            0.5,
			DotMaxRadius:            2.5,
		},
		Fit: FitConfig{
			SimplifyEpsilon:     1.0,
			CornerDegrees:       60,
			MaxError:            2.0,
			MaxSubdivisionDepth: 16,
		},
		Fill: FillConfig{
			EnableGradients:     false,
			MaxStops:            3,
			ElongationThreshold: 1.8,
		},
		Assembly: AssemblyConfig{
			Order:          OrderByArea,
			Precision:      2,
			MaxNodes:       10000,
			MinFeatureArea: 4,
		},
		Refine: RefineConfig{
			Enabled:              false,
			TimeBudget:           600 * time.Millisecond,
			MaxIterations:        2,
			TargetDeltaE:         6.0,
			TargetSSIM:           0.93,
			TileSize:             32,
			MaxTilesPerIteration: 5,
			PlateauThreshold:     0.5,
		},
	}
}

// Validate checks every recognized option atomically. The first violation is
// returned as a *ValidationError and nothing has been processed.
func (c *Config) Validate() error {
	if c.Backend < BackendSegmentation || c.Backend > BackendDots {
		return validationErr("Backend", "unknown backend %d", int(c.Backend))
	}
	if c.Preprocess.MaxDimension < 16 {
		return validationErr("Preprocess.MaxDimension", "must be at least 16, got %d", c.Preprocess.MaxDimension)
	}
	if c.Preprocess.Threshold < ThresholdOtsu || c.Preprocess.Threshold > ThresholdAdaptive {
		return validationErr("Preprocess.Threshold", "unknown method %d", int(c.Preprocess.Threshold))
	}
	if c.Preprocess.MorphologyRadius < 0 || c.Preprocess.MorphologyRadius > 8 {
		return validationErr("Preprocess.MorphologyRadius", "must be in [0,8], got %d", c.Preprocess.MorphologyRadius)
	}
	if c.Preprocess.MinComponentArea < 0 {
		return validationErr("Preprocess.MinComponentArea", "must be non-negative, got %d", c.Preprocess.MinComponentArea)
	}
	if c.Segment.TargetRegions < 2 {
		return validationErr("Segment.TargetRegions", "must be at least 2, got %d", c.Segment.TargetRegions)
	}
	if c.Segment.Compactness <= 0 {
		return validationErr("Segment.Compactness", "must be positive, got %g", c.Segment.Compactness)
	}
	if c.Segment.MaxIterations < 1 || c.Segment.MaxIterations > 100 {
		return validationErr("Segment.MaxIterations", "must be in [1,100], got %d", c.Segment.MaxIterations)
	}
	if c.Segment.ConvergenceEps < 0 {
		return validationErr("Segment.ConvergenceEps", "must be non-negative, got %g", c.Segment.ConvergenceEps)
	}
	if c.Segment.Seeds < SeedGrid || c.Segment.Seeds > SeedHalton {
		return validationErr("Segment.Seeds", "unknown pattern %d", int(c.Segment.Seeds))
	}
	if c.Segment.MergeThreshold < 0 {
		return validationErr("Segment.MergeThreshold", "must be non-negative, got %g", c.Segment.MergeThreshold)
	}
	if c.Segment.MinRegionArea < 1 {
		return validationErr("Segment.MinRegionArea", "must be at least 1, got %d", c.Segment.MinRegionArea)
	}
	if c.Trace.MinBranchLength < 1 {
		return validationErr("Trace.MinBranchLength", "must be at least 1, got %d", c.Trace.MinBranchLength)
	}
	if c.Trace.FlowRadius < 1 || c.Trace.FlowRadius > 32 {
		return validationErr("Trace.FlowRadius", "must be in [1,32], got %d", c.Trace.FlowRadius)
	}
	if c.Trace.MaxTurnDegrees <= 0 || c.Trace.MaxTurnDegrees > 180 {
		return validationErr("Trace.MaxTurnDegrees", "must be in (0,180], got %g", c.Trace.MaxTurnDegrees)
	}
	if c.Trace.EdgeLowThreshold < 0 || c.Trace.EdgeHighThreshold > 1 ||
		c.Trace.EdgeLowThreshold >= c.Trace.EdgeHighThreshold {
		return validationErr("Trace.EdgeThresholds", "need 0 <= low < high <= 1, got low=%g high=%g",
			c.Trace.EdgeLowThreshold, c.Trace.EdgeHighThreshold)
	}
	if c.Trace.DotDensity <= 0 || c.Trace.DotDensity > 1 {
		return validationErr("Trace.DotDensity", "must be in (0,1], got %g", c.Trace.DotDensity)
	}
	if c.Trace.DotMinRadius <= 0 || c.Trace.DotMaxRadius < c.Trace.DotMinRadius {
		return validationErr("Trace.DotRadius", "need 0 < min <= max, got min=%g max=%g",
			c.Trace.DotMinRadius, c.Trace.DotMaxRadius)
	}
	if c.Fit.SimplifyEpsilon < 0 {
		return validationErr("Fit.SimplifyEpsilon", "must be non-negative, got %g", c.Fit.SimplifyEpsilon)
	}
	if c.Fit.CornerDegrees <= 0 || c.Fit.CornerDegrees > 180 {
		return validationErr("Fit.CornerDegrees", "must be in (0,180], got %g", c.Fit.CornerDegrees)
	}
	if c.Fit.MaxError <= 0 {
		return validationErr("Fit.MaxError", "must be positive, got %g", c.Fit.MaxError)
	}
	if c.Fit.MaxSubdivisionDepth < 1 || c.Fit.MaxSubdivisionDepth > 32 {
		return validationErr("Fit.MaxSubdivisionDepth", "must be in [1,32], got %d", c.Fit.MaxSubdivisionDepth)
	}
	if c.Fill.MaxStops < 2 || c.Fill.MaxStops > 3 {
		return validationErr("Fill.MaxStops", "must be 2 or 3, got %d", c.Fill.MaxStops)
	}
	if c.Fill.ElongationThreshold < 1 {
		return validationErr("Fill.ElongationThreshold", "must be at least 1, got %g", c.Fill.ElongationThreshold)
	}
	if c.Assembly.Order < OrderByArea || c.Assembly.Order > OrderByLuminance {
		return validationErr("Assembly.Order", "unknown key %d", int(c.Assembly.Order))
	}
	if c.Assembly.Precision < 0 || c.Assembly.Precision > 6 {
		return validationErr("Assembly.Precision", "must be in [0,6], got %d", c.Assembly.Precision)
	}
	if c.Assembly.MaxNodes < 16 {
		return validationErr("Assembly.MaxNodes", "must be at least 16, got %d", c.Assembly.MaxNodes)
	}
	if c.Assembly.MinFeatureArea < 0 {
		return validationErr("Assembly.MinFeatureArea", "must be non-negative, got %g", c.Assembly.MinFeatureArea)
	}
	if c.Refine.Enabled {
		if c.Refine.TimeBudget < 0 {
			return validationErr("Refine.TimeBudget", "must be non-negative, got %v", c.Refine.TimeBudget)
		}
		if c.Refine.MaxIterations < 1 || c.Refine.MaxIterations > 10 {
			return validationErr("Refine.MaxIterations", "must be in [1,10], got %d", c.Refine.MaxIterations)
		}
		if c.Refine.TargetDeltaE <= 0 {
			return validationErr("Refine.TargetDeltaE", "must be positive, got %g", c.Refine.TargetDeltaE)
		}
		if c.Refine.TargetSSIM <= 0 || c.Refine.TargetSSIM >= 1 {
			return validationErr("Refine.TargetSSIM", "must be in (0,1), got %g", c.Refine.TargetSSIM)
		}
		if c.Refine.TileSize < 4 || c.Refine.TileSize > 128 {
			return validationErr("Refine.TileSize", "must be in [4,128], got %d", c.Refine.TileSize)
		}
		if c.Refine.MaxTilesPerIteration < 1 {
			return validationErr("Refine.MaxTilesPerIteration", "must be at least 1, got %d", c.Refine.MaxTilesPerIteration)
		}
		if c.Refine.PlateauThreshold < 0 {
			return validationErr("Refine.PlateauThreshold", "must be non-negative, got %g", c.Refine.PlateauThreshold)
		}
	}
	return nil
}
