// Package vectra converts raster images into vector documents.
//
// The pipeline takes an 8-bit RGBA pixel buffer and a Config, and produces a
// single immutable Document (an ordered list of filled vector paths) plus a
// Stats record. Five tracing backends are available:
//
//   - BackendSegmentation: superpixel clustering, one filled path per region
//   - BackendContour: binary contour tracing for logos and line art
//   - BackendCenterline: skeleton extraction for engraving/sketch output
//   - BackendEdge: flow-guided edge tracing for sparse outlines
//   - BackendDots: seeded stochastic dot placement for stippling
//
// An optional refinement loop rasterizes the emitted document, scores it
// against the source image tile by tile (perceptual color difference and
// structural similarity), and applies bounded local fixes until quality
// targets are met or the time budget expires.
//
// Basic usage:
//
//	doc, stats, err := vectra.Vectorize(pix, width, height, vectra.DefaultConfig())
//	if err != nil { ... }
//	if err := doc.WriteSVG(os.Stdout); err != nil { ... }
//
// The package performs no filesystem or network access and keeps no state
// between invocations. All randomness is seeded from Config, so identical
// input bytes and configuration always produce byte-identical output.
//
// GPU acceleration for the gradient and dot-placement kernels is opt-in via
// blank import:
//
//	import _ "github.com/gogpu/vectra/gpu"
//
// If no GPU is available the import is harmless; kernels run on the CPU.
package vectra
