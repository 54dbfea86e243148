// Package imaging holds the raster image types and the classical
// image-processing passes that feed the tracing backends: resize, denoise,
// thresholding, morphology, connected components, gradients and seeded dot
// sampling.
package imaging

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/vectra/internal/colorspace"
)

// ErrEmptyImage is returned when a dimension is zero.
var ErrEmptyImage = errors.New("imaging: image has zero dimension")

// Raster is an immutable 8-bit interleaved RGBA pixel buffer.
type Raster struct {
	W, H int
	Pix  []uint8 // len == W*H*4, row-major
}

// FromRGBA validates and wraps a raw pixel buffer. The buffer is not copied;
// the caller must not mutate it afterwards.
func FromRGBA(pix []uint8, w, h int) (*Raster, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("imaging: buffer length %d does not match %dx%dx4", len(pix), w, h)
	}
	return &Raster{W: w, H: h, Pix: pix}, nil
}

// At returns the RGBA components of the pixel at (x, y).
func (r *Raster) At(x, y int) (uint8, uint8, uint8, uint8) {
	i := (y*r.W + x) * 4
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3]
}

// Resize downscales so the longer side is at most maxDim, preserving aspect
// ratio. Upscaling never happens. Catmull-Rom resampling averages source
// areas, so the result is anti-aliased and fully deterministic.
func Resize(src *Raster, maxDim int) *Raster {
	long := max(src.W, src.H)
	if long <= maxDim {
		return src
	}
	scale := float64(maxDim) / float64(long)
	nw := max(1, int(float64(src.W)*scale+0.5))
	nh := max(1, int(float64(src.H)*scale+0.5))

	srcImg := &image.RGBA{Pix: src.Pix, Stride: src.W * 4, Rect: image.Rect(0, 0, src.W, src.H)}
	dstImg := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)
	return &Raster{W: nw, H: nh, Pix: dstImg.Pix}
}

// Gray returns the relative luminance of every pixel in [0,1], row-major.
func (r *Raster) Gray() []float32 {
	out := make([]float32, r.W*r.H)
	for i := 0; i < len(out); i++ {
		p := i * 4
		out[i] = float32(colorspace.Luminance(r.Pix[p], r.Pix[p+1], r.Pix[p+2]))
	}
	return out
}

// LabImage is the derived perceptual representation of a Raster.
// It is ephemeral: recomputed per invocation, never shared.
type LabImage struct {
	W, H int
	Pix  []colorspace.Lab
}

// Lab converts the raster into Lab space.
func (r *Raster) Lab() *LabImage {
	out := make([]colorspace.Lab, r.W*r.H)
	for i := 0; i < len(out); i++ {
		p := i * 4
		out[i] = colorspace.RGBToLab(r.Pix[p], r.Pix[p+1], r.Pix[p+2])
	}
	return &LabImage{W: r.W, H: r.H, Pix: out}
}

// At returns the Lab color at (x, y).
func (l *LabImage) At(x, y int) colorspace.Lab {
	return l.Pix[y*l.W+x]
}

// Bitmap is a binary image produced by thresholding. Set pixels are "ink".
type Bitmap struct {
	W, H int
	Bits []bool
}

// NewBitmap allocates a cleared bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, Bits: make([]bool, w*h)}
}

// Get returns the bit at (x, y); out-of-bounds reads are false.
func (b *Bitmap) Get(x, y int) bool {
	if x < 0 || x >= b.W || y < 0 || y >= b.H {
		return false
	}
	return b.Bits[y*b.W+x]
}

// Set sets the bit at (x, y). Out-of-bounds writes are dropped.
func (b *Bitmap) Set(x, y int, v bool) {
	if x < 0 || x >= b.W || y < 0 || y >= b.H {
		return
	}
	b.Bits[y*b.W+x] = v
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	n := 0
	for _, v := range b.Bits {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	out := NewBitmap(b.W, b.H)
	copy(out.Bits, b.Bits)
	return out
}
