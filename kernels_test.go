package vectra

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/vectra/internal/imaging"
)

// mockDispatcher implements KernelDispatcher for testing.
type mockDispatcher struct {
	name    string
	initErr error
	ops     KernelOp
	gradErr error
	dotsErr error

	mu        sync.Mutex
	closed    bool
	gradCalls int
}

func (m *mockDispatcher) Name() string { return m.name }
func (m *mockDispatcher) Init() error  { return m.initErr }

func (m *mockDispatcher) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockDispatcher) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockDispatcher) CanDispatch(op KernelOp) bool { return m.ops&op != 0 }

func (m *mockDispatcher) Gradient(gray []float32, w, h int, mag, dir []float32) error {
	m.mu.Lock()
	m.gradCalls++
	m.mu.Unlock()
	if m.gradErr != nil {
		return m.gradErr
	}
	// Mirror the CPU reference exactly: raw Sobel response.
	imaging.SobelGradientRows(gray, w, h, 0, h, mag, dir)
	return nil
}

func (m *mockDispatcher) Dots(luma []float32, w, h int, p imaging.DotParams, accept []float32) error {
	if m.dotsErr != nil {
		// Leave garbage behind to prove the fallback clears it.
		for i := range accept {
			accept[i] = 99
		}
		return m.dotsErr
	}
	imaging.PlaceDotsRows(luma, w, h, 0, h, p, accept)
	return nil
}

func resetKernels() {
	kernelMu.Lock()
	kernelDispatcher = nil
	kernelMu.Unlock()
}

func rampGray(w, h int) []float32 {
	g := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g[y*w+x] = float32(x) / float32(w-1)
		}
	}
	return g
}

func TestRegisterKernelsNil(t *testing.T) {
	resetKernels()
	if err := RegisterKernels(nil); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
	if Kernels() != nil {
		t.Error("dispatcher should remain nil after failed registration")
	}
}

func TestRegisterKernelsInitError(t *testing.T) {
	resetKernels()
	mock := &mockDispatcher{name: "failing", initErr: errors.New("no device")}
	if err := RegisterKernels(mock); err == nil {
		t.Fatal("expected init error to propagate")
	}
	if Kernels() != nil {
		t.Error("failed dispatcher must not be registered")
	}
}

func TestRegisterKernelsReplacesAndCloses(t *testing.T) {
	resetKernels()
	first := &mockDispatcher{name: "first"}
	second := &mockDispatcher{name: "second"}
	if err := RegisterKernels(first); err != nil {
		t.Fatal(err)
	}
	if err := RegisterKernels(second); err != nil {
		t.Fatal(err)
	}
	if !first.isClosed() {
		t.Error("replaced dispatcher should be closed")
	}
	if Kernels().Name() != "second" {
		t.Errorf("active dispatcher = %q, want second", Kernels().Name())
	}
	resetKernels()
}

func TestDispatchGradientParity(t *testing.T) {
	resetKernels()
	w, h := 64, 64
	gray := rampGray(w, h)

	cpu := dispatchGradient(gray, w, h, 1, nil)

	mock := &mockDispatcher{name: "mock", ops: KernelGradient}
	if err := RegisterKernels(mock); err != nil {
		t.Fatal(err)
	}
	accel := dispatchGradient(gray, w, h, 1, nil)
	resetKernels()

	if mock.gradCalls != 1 {
		t.Fatalf("dispatcher called %d times, want 1", mock.gradCalls)
	}
	for i := range cpu.Mag {
		if cpu.Mag[i] != accel.Mag[i] || cpu.Dir[i] != accel.Dir[i] {
			t.Fatalf("pixel %d: cpu (%v,%v) vs accel (%v,%v)",
				i, cpu.Mag[i], cpu.Dir[i], accel.Mag[i], accel.Dir[i])
		}
	}
	// Normalization happened caller-side for both.
	var peak float32
	for _, m := range accel.Mag {
		if m > peak {
			peak = m
		}
	}
	if math.Abs(float64(peak)-1) > 1e-6 {
		t.Errorf("normalized peak = %v, want 1", peak)
	}
}

func TestDispatchGradientFallback(t *testing.T) {
	resetKernels()
	w, h := 64, 64
	gray := rampGray(w, h)
	cpu := dispatchGradient(gray, w, h, 1, nil)

	mock := &mockDispatcher{name: "mock", ops: KernelGradient, gradErr: ErrFallbackToCPU}
	if err := RegisterKernels(mock); err != nil {
		t.Fatal(err)
	}
	got := dispatchGradient(gray, w, h, 1, nil)
	resetKernels()

	for i := range cpu.Mag {
		if cpu.Mag[i] != got.Mag[i] {
			t.Fatalf("fallback result differs at %d", i)
		}
	}
}

func TestDispatchSkipsSmallInputs(t *testing.T) {
	resetKernels()
	mock := &mockDispatcher{name: "mock", ops: KernelGradient | KernelDots}
	if err := RegisterKernels(mock); err != nil {
		t.Fatal(err)
	}
	dispatchGradient(rampGray(16, 16), 16, 16, 1, nil)
	resetKernels()
	if mock.gradCalls != 0 {
		t.Error("inputs under the dispatch floor must stay on the CPU")
	}
}

func TestDispatchDotsFallbackClearsBuffer(t *testing.T) {
	resetKernels()
	w, h := 64, 64
	luma := make([]float32, w*h) // all black, maximum dot probability
	p := imaging.DotParams{Seed: 7, Density: 0.5, MinRadius: 1, MaxRadius: 2}

	cpu := dispatchDots(luma, w, h, p, 1, nil)

	mock := &mockDispatcher{name: "mock", ops: KernelDots, dotsErr: errors.New("device lost")}
	if err := RegisterKernels(mock); err != nil {
		t.Fatal(err)
	}
	got := dispatchDots(luma, w, h, p, 1, nil)
	resetKernels()

	for i := range cpu {
		if cpu[i] != got[i] {
			t.Fatalf("fallback dots differ at %d: %v vs %v", i, cpu[i], got[i])
		}
	}
}

// vetoTable forbids the accelerated path regardless of history.
type vetoTable struct{}

func (vetoTable) Speedup(KernelOp, int) float64             { return 0.5 }
func (vetoTable) Record(KernelOp, int, bool, time.Duration) {}

func TestSpeedupTableGatesDispatch(t *testing.T) {
	resetKernels()
	mock := &mockDispatcher{name: "mock", ops: KernelGradient}
	if err := RegisterKernels(mock); err != nil {
		t.Fatal(err)
	}
	dispatchGradient(rampGray(64, 64), 64, 64, 1, vetoTable{})
	resetKernels()
	if mock.gradCalls != 0 {
		t.Error("a recorded speedup below 1 must keep the kernel on the CPU")
	}
}

func TestSpeedupTableLearns(t *testing.T) {
	tbl := NewSpeedupTable()
	if s := tbl.Speedup(KernelGradient, 1<<16); s <= 1 {
		t.Fatalf("untried speedup = %f, must invite a measurement", s)
	}
	tbl.Record(KernelGradient, 1<<16, true, 20*time.Millisecond)
	tbl.Record(KernelGradient, 1<<16, false, 10*time.Millisecond)
	if s := tbl.Speedup(KernelGradient, 1<<16); s >= 1 {
		t.Errorf("accelerated path twice as slow, speedup = %f", s)
	}
	// A different size bucket is unaffected.
	if s := tbl.Speedup(KernelGradient, 1<<20); s <= 1 {
		t.Errorf("other bucket speedup = %f", s)
	}
	// So is the other kernel.
	if s := tbl.Speedup(KernelDots, 1<<16); s <= 1 {
		t.Errorf("other kernel speedup = %f", s)
	}
}

func TestSetKernelDeviceProviderNoDispatcher(t *testing.T) {
	resetKernels()
	if err := SetKernelDeviceProvider(struct{}{}); err != nil {
		t.Errorf("no-op without a dispatcher, got %v", err)
	}
}
