package vectra

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown backend", func(c *Config) { c.Backend = Backend(99) }, "Backend"},
		{"tiny max dimension", func(c *Config) { c.Preprocess.MaxDimension = 8 }, "Preprocess.MaxDimension"},
		{"bad threshold method", func(c *Config) { c.Preprocess.Threshold = ThresholdMethod(7) }, "Preprocess.Threshold"},
		{"negative morphology", func(c *Config) { c.Preprocess.MorphologyRadius = -1 }, "Preprocess.MorphologyRadius"},
		{"one region", func(c *Config) { c.Segment.TargetRegions = 1 }, "Segment.TargetRegions"},
		{"zero compactness", func(c *Config) { c.Segment.Compactness = 0 }, "Segment.Compactness"},
		{"bad seed pattern", func(c *Config) { c.Segment.Seeds = SeedPattern(5) }, "Segment.Seeds"},
		{"inverted hysteresis", func(c *Config) {
			c.Trace.EdgeLowThreshold = 0.5
			c.Trace.EdgeHighThreshold = 0.2
		}, "Trace.EdgeThresholds"},
		{"zero dot density", func(c *Config) { c.Trace.DotDensity = 0 }, "Trace.DotDensity"},
		{"inverted dot radii", func(c *Config) {
			c.Trace.DotMinRadius = 3
			c.Trace.DotMaxRadius = 1
		}, "Trace.DotRadius"},
		{"zero fit error", func(c *Config) { c.Fit.MaxError = 0 }, "Fit.MaxError"},
		{"deep subdivision", func(c *Config) { c.Fit.MaxSubdivisionDepth = 64 }, "Fit.MaxSubdivisionDepth"},
		{"too many stops", func(c *Config) { c.Fill.MaxStops = 4 }, "Fill.MaxStops"},
		{"excess precision", func(c *Config) { c.Assembly.Precision = 9 }, "Assembly.Precision"},
		{"tiny node cap", func(c *Config) { c.Assembly.MaxNodes = 4 }, "Assembly.MaxNodes"},
		{"bad ssim target", func(c *Config) {
			c.Refine.Enabled = true
			c.Refine.TargetSSIM = 1.5
		}, "Refine.TargetSSIM"},
		{"huge tile", func(c *Config) {
			c.Refine.Enabled = true
			c.Refine.TileSize = 512
		}, "Refine.TileSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type %T, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestRefineBoundsIgnoredWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refine.Enabled = false
	cfg.Refine.TileSize = 999
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled refinement options should not be validated, got %v", err)
	}
}

func TestBackendString(t *testing.T) {
	for b, want := range map[Backend]string{
		BackendSegmentation: "segmentation",
		BackendContour:      "contour",
		BackendCenterline:   "centerline",
		BackendEdge:         "edge",
		BackendDots:         "dots",
		Backend(42):         "unknown",
	} {
		if got := b.String(); got != want {
			t.Errorf("Backend(%d).String() = %q, want %q", int(b), got, want)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Segment.TargetRegions = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Segment.TargetRegions") {
		t.Errorf("error should name the offending field, got %v", err)
	}
}
