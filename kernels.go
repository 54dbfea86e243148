package vectra

import (
	"errors"
	"math/bits"
	"sync"
	"time"

	"github.com/gogpu/vectra/internal/imaging"
	"github.com/gogpu/vectra/internal/parallel"
)

// KernelOp describes kernel types for capability checking.
type KernelOp uint32

const (
	// KernelGradient computes per-pixel gradient magnitude and direction.
	KernelGradient KernelOp = 1 << iota

	// KernelDots evaluates position-seeded stochastic dot placement.
	KernelDots
)

// KernelDispatcher is an optional compute acceleration provider.
//
// When registered via RegisterKernels, the pipeline tries the dispatcher
// first for supported kernels. If the dispatcher returns ErrFallbackToCPU
// or any error, the stage transparently recomputes on the CPU reference
// kernel and the result is identical either way: accelerated kernels must
// be bit-exact mirrors of their CPU counterparts.
//
// Implementations are provided by backend packages (e.g. vectra/gpu).
// Users opt in via blank import:
//
//	import _ "github.com/gogpu/vectra/gpu" // enables GPU kernels
type KernelDispatcher interface {
	// Name returns the dispatcher name (e.g., "wgpu", "vulkan").
	Name() string

	// Init initializes device resources. Called once during registration.
	Init() error

	// Close releases device resources.
	Close()

	// CanDispatch reports whether the dispatcher supports the given kernel.
	// This is a fast check used to skip dispatch entirely.
	CanDispatch(op KernelOp) bool

	// Gradient fills mag and dir (len w*h each) with the raw 3x3 Sobel
	// response of the grayscale image; normalization happens caller-side.
	// Returns ErrFallbackToCPU when the input cannot be dispatched.
	Gradient(gray []float32, w, h int, mag, dir []float32) error

	// Dots fills accept (len w*h) with a dot radius per pixel, zero where
	// no dot is placed, using the same position-seeded hash as the CPU
	// reference. Returns ErrFallbackToCPU when not dispatchable.
	Dots(luma []float32, w, h int, p imaging.DotParams, accept []float32) error
}

// DeviceProviderAware is an optional interface for dispatchers that can
// share GPU resources with an external provider (e.g. a gogpu window).
// When SetDeviceProvider is called, the dispatcher reuses the provided
// device instead of creating its own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	kernelMu         sync.RWMutex
	kernelDispatcher KernelDispatcher
)

// RegisterKernels registers a kernel dispatcher for optional acceleration.
//
// Only one dispatcher can be registered. Subsequent calls replace the
// previous one. The dispatcher's Init() method is called during
// registration; if Init() fails, the dispatcher is not registered and the
// error is returned.
//
// Typical usage via blank import in backend packages:
//
//	func init() {
//	    vectra.RegisterKernels(NewWGPUDispatcher())
//	}
func RegisterKernels(d KernelDispatcher) error {
	if d == nil {
		return errors.New("vectra: dispatcher must not be nil")
	}
	if err := d.Init(); err != nil {
		return err
	}
	kernelMu.Lock()
	old := kernelDispatcher
	kernelDispatcher = d
	kernelMu.Unlock()
	if old != nil {
		old.Close()
	}
	propagateLogger(d, Logger())
	return nil
}

// Kernels returns the currently registered dispatcher, or nil if none.
func Kernels() KernelDispatcher {
	kernelMu.RLock()
	d := kernelDispatcher
	kernelMu.RUnlock()
	return d
}

// SetKernelDeviceProvider passes a device provider to the registered
// dispatcher, enabling device sharing. If no dispatcher is registered or
// it doesn't support device sharing, this is a no-op.
func SetKernelDeviceProvider(provider any) error {
	d := Kernels()
	if d == nil {
		return nil
	}
	if dpa, ok := d.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}

// minDispatchPixels gates dispatch: below this size the transfer overhead
// outweighs any speedup and the CPU kernel wins.
const minDispatchPixels = 64 * 64

// SpeedupTable tracks measured kernel timings per (kernel, size bucket) and
// answers whether the accelerated path has been worth it for a workload of
// that size. One Vectorize call owns one table; nothing persists across
// calls. Tests substitute their own implementation to force either path.
type SpeedupTable interface {
	// Speedup returns the measured accelerated-vs-CPU speedup for the
	// kernel at the given pixel count. When either side is unmeasured the
	// return is > 1 so the accelerated path gets tried and timed.
	Speedup(op KernelOp, pixels int) float64

	// Record stores one measured kernel run.
	Record(op KernelOp, pixels int, accelerated bool, d time.Duration)
}

// NewSpeedupTable returns the default in-memory table.
func NewSpeedupTable() SpeedupTable {
	return &timingTable{
		cpu:   make(map[timingKey]time.Duration),
		accel: make(map[timingKey]time.Duration),
	}
}

// timingKey buckets pixel counts by bit length so one measurement covers
// workloads of similar size.
type timingKey struct {
	op     KernelOp
	bucket int
}

type timingTable struct {
	mu    sync.Mutex
	cpu   map[timingKey]time.Duration
	accel map[timingKey]time.Duration
}

// untriedSpeedup is returned before both paths have been measured.
const untriedSpeedup = 2.0

func (t *timingTable) Speedup(op KernelOp, pixels int) float64 {
	k := timingKey{op: op, bucket: bits.Len(uint(pixels))}
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.accel[k]
	c := t.cpu[k]
	if a <= 0 || c <= 0 {
		return untriedSpeedup
	}
	return float64(c) / float64(a)
}

func (t *timingTable) Record(op KernelOp, pixels int, accelerated bool, d time.Duration) {
	k := timingKey{op: op, bucket: bits.Len(uint(pixels))}
	t.mu.Lock()
	if accelerated {
		t.accel[k] = d
	} else {
		t.cpu[k] = d
	}
	t.mu.Unlock()
}

// useKernels reports whether the accelerated path should be tried for this
// workload. A nil table means no history gating.
func useKernels(d KernelDispatcher, op KernelOp, pixels int, tbl SpeedupTable) bool {
	if d == nil || pixels < minDispatchPixels || !d.CanDispatch(op) {
		return false
	}
	return tbl == nil || tbl.Speedup(op, pixels) > 1
}

// dispatchGradient computes the gradient field, trying the registered
// dispatcher first and falling back to the CPU kernel silently.
func dispatchGradient(gray []float32, w, h, workers int, tbl SpeedupTable) *imaging.GradientField {
	pixels := w * h
	if d := Kernels(); useKernels(d, KernelGradient, pixels, tbl) {
		g := &imaging.GradientField{W: w, H: h,
			Mag: make([]float32, pixels), Dir: make([]float32, pixels)}
		start := time.Now()
		err := d.Gradient(gray, w, h, g.Mag, g.Dir)
		if err == nil {
			if tbl != nil {
				tbl.Record(KernelGradient, pixels, true, time.Since(start))
			}
			normalizeGradient(g)
			return g
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			Logger().Warn("gradient kernel failed, using CPU",
				"dispatcher", d.Name(), "error", err)
		}
	}
	g := &imaging.GradientField{W: w, H: h,
		Mag: make([]float32, pixels), Dir: make([]float32, pixels)}
	start := time.Now()
	parallel.ForRows(h, workers, func(y0, y1 int) {
		imaging.SobelGradientRows(gray, w, h, y0, y1, g.Mag, g.Dir)
	})
	if tbl != nil {
		tbl.Record(KernelGradient, pixels, false, time.Since(start))
	}
	normalizeGradient(g)
	return g
}

// normalizeGradient rescales magnitudes to [0, 1] by the observed peak.
func normalizeGradient(g *imaging.GradientField) {
	var peak float32
	for _, m := range g.Mag {
		if m > peak {
			peak = m
		}
	}
	if peak <= 0 {
		return
	}
	inv := 1 / peak
	for i := range g.Mag {
		g.Mag[i] *= inv
	}
}

// dispatchDots evaluates dot placement, trying the registered dispatcher
// first and falling back to the CPU kernel silently.
func dispatchDots(luma []float32, w, h int, p imaging.DotParams, workers int, tbl SpeedupTable) []float32 {
	pixels := w * h
	accept := make([]float32, pixels)
	if d := Kernels(); useKernels(d, KernelDots, pixels, tbl) {
		start := time.Now()
		err := d.Dots(luma, w, h, p, accept)
		if err == nil {
			if tbl != nil {
				tbl.Record(KernelDots, pixels, true, time.Since(start))
			}
			return accept
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			Logger().Warn("dots kernel failed, using CPU",
				"dispatcher", d.Name(), "error", err)
		}
		for i := range accept {
			accept[i] = 0
		}
	}
	start := time.Now()
	parallel.ForRows(h, workers, func(y0, y1 int) {
		imaging.PlaceDotsRows(luma, w, h, y0, y1, p, accept)
	})
	if tbl != nil {
		tbl.Record(KernelDots, pixels, false, time.Since(start))
	}
	return accept
}
