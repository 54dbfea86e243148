// Command vectorize converts a raster image (PNG or JPEG) to an SVG.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/vectra"
	_ "github.com/gogpu/vectra/gpu" // GPU kernels when a device is available
)

func main() {
	var (
		output    = flag.String("o", "out.svg", "output SVG file")
		backend   = flag.String("backend", "segmentation", "tracing backend: segmentation, contour, centerline, edge, dots")
		maxDim    = flag.Int("max-dim", 512, "downscale the longer side to this many pixels")
		regions   = flag.Int("regions", 50, "target region count (segmentation backend)")
		merge     = flag.Float64("merge", 2.5, "region merge threshold in Lab distance")
		seed      = flag.Int64("seed", 1, "seed for sampled decisions")
		denoise   = flag.Bool("denoise", false, "apply edge-preserving denoise before tracing")
		removeBG  = flag.Bool("remove-bg", false, "detect and drop the dominant background")
		gradients = flag.Bool("gradients", false, "allow gradient fills")
		refine    = flag.Bool("refine", false, "run the perceptual refinement loop")
		budget    = flag.Duration("budget", 600*time.Millisecond, "refinement time budget")
		precision = flag.Int("precision", 2, "coordinate decimals in the output")
		verbose   = flag.Bool("v", false, "log pipeline progress to stderr")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: vectorize [flags] input.png\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *verbose {
		vectra.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := vectra.DefaultConfig()
	cfg.Seed = *seed
	cfg.Preprocess.MaxDimension = *maxDim
	cfg.Preprocess.Denoise = *denoise
	cfg.Preprocess.RemoveBackground = *removeBG
	cfg.Segment.TargetRegions = *regions
	cfg.Segment.MergeThreshold = *merge
	cfg.Fill.EnableGradients = *gradients
	cfg.Assembly.Precision = *precision
	cfg.Refine.Enabled = *refine
	cfg.Refine.TimeBudget = *budget

	switch *backend {
	case "segmentation":
		cfg.Backend = vectra.BackendSegmentation
	case "contour":
		cfg.Backend = vectra.BackendContour
	case "centerline":
		cfg.Backend = vectra.BackendCenterline
	case "edge":
		cfg.Backend = vectra.BackendEdge
	case "dots":
		cfg.Backend = vectra.BackendDots
	default:
		log.Fatalf("unknown backend %q", *backend)
	}

	in, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		log.Fatalf("decode %s: %v", flag.Arg(0), err)
	}

	doc, stats, err := vectra.VectorizeImage(img, cfg)
	if err != nil {
		log.Fatalf("vectorize: %v", err)
	}

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	if err := doc.WriteSVG(out); err != nil {
		out.Close()
		log.Fatalf("write SVG: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("close output: %v", err)
	}

	log.Printf("%s: %d paths, %d nodes (%s backend, %dx%d)",
		*output, stats.Paths, stats.Nodes, stats.Backend, stats.Width, stats.Height)
}
