//go:build !nogpu

// Package gpu implements the wgpu/hal kernel dispatcher behind the public
// vectra/gpu registration package.
package gpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vectra"
	"github.com/gogpu/vectra/internal/imaging"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

const gpuWait = 5 * time.Second

// pipeline groups the HAL objects of one compute kernel.
type pipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	compute    hal.ComputePipeline
}

// Dispatcher runs the gradient and dot kernels as wgpu/hal compute passes.
// It implements vectra.KernelDispatcher; any failure surfaces as
// vectra.ErrFallbackToCPU or a wrapped dispatch error, and the pipeline
// recomputes on the CPU either way.
type Dispatcher struct {
	mu  sync.Mutex
	log *slog.Logger

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	gradient pipeline
	dots     pipeline

	ready          bool
	externalDevice bool
}

var (
	_ vectra.KernelDispatcher    = (*Dispatcher)(nil)
	_ vectra.DeviceProviderAware = (*Dispatcher)(nil)
)

// New returns an uninitialized dispatcher; Init acquires the device.
func New() *Dispatcher {
	return &Dispatcher{log: slog.New(slog.DiscardHandler)}
}

// Name implements vectra.KernelDispatcher.
func (d *Dispatcher) Name() string { return "wgpu" }

// SetLogger routes dispatcher diagnostics to the given logger.
func (d *Dispatcher) SetLogger(l *slog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l != nil {
		d.log = l
	}
}

// Init opens a Vulkan device and builds both compute pipelines. An error
// means no usable GPU; the caller then skips registration entirely.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("gpu: create instance: %w", err)
	}
	d.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		d.instance = nil
		return fmt.Errorf("gpu: no adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		d.instance = nil
		return fmt.Errorf("gpu: open device: %w", err)
	}
	d.device = openDev.Device
	d.queue = openDev.Queue

	if err := d.createPipelines(); err != nil {
		d.teardownLocked()
		return err
	}
	d.ready = true
	d.log.Info("gpu kernels initialized", "adapter", selected.Info.Name)
	return nil
}

// SetDeviceProvider switches to a shared device from an external provider
// (e.g. a gogpu context). The provider must expose HalDevice() and
// HalQueue() returning hal types.
func (d *Dispatcher) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.destroyPipelines()
	if !d.externalDevice && d.device != nil {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.device = device
	d.queue = queue
	d.externalDevice = true

	if err := d.createPipelines(); err != nil {
		d.ready = false
		return fmt.Errorf("gpu: create pipelines with shared device: %w", err)
	}
	d.ready = true
	d.log.Info("gpu kernels switched to shared device")
	return nil
}

// Close implements vectra.KernelDispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardownLocked()
}

func (d *Dispatcher) teardownLocked() {
	d.destroyPipelines()
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	d.ready = false
	d.externalDevice = false
}

// CanDispatch implements vectra.KernelDispatcher.
func (d *Dispatcher) CanDispatch(op vectra.KernelOp) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready && op&(vectra.KernelGradient|vectra.KernelDots) != 0
}

// Gradient implements vectra.KernelDispatcher.
func (d *Dispatcher) Gradient(gray []float32, w, h int, mag, dir []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return vectra.ErrFallbackToCPU
	}

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:], uint32(w))
	binary.LittleEndian.PutUint32(params[4:], uint32(h))

	n := uint64(w * h * 4)
	bufs, err := d.makeBuffers([]bufferSpec{
		{"grad_params", 16, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{"grad_gray", n, gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst},
		{"grad_mag", n, gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc},
		{"grad_dir", n, gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc},
		{"grad_mag_staging", n, gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
		{"grad_dir_staging", n, gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	})
	if err != nil {
		return err
	}
	defer d.destroyBuffers(bufs)

	d.queue.WriteBuffer(bufs[0], 0, params)
	d.queue.WriteBuffer(bufs[1], 0, floatBytes(gray))

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "grad_bind", Layout: d.gradient.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: bufs[0].NativeHandle(), Offset: 0, Size: 16}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: bufs[1].NativeHandle(), Offset: 0, Size: n}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: bufs[2].NativeHandle(), Offset: 0, Size: n}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: bufs[3].NativeHandle(), Offset: 0, Size: n}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create gradient bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	copies := []bufferCopy{{bufs[2], bufs[4], n}, {bufs[3], bufs[5], n}}
	if err := d.runPass("gradient", d.gradient.compute, bg, uint32(w), uint32(h), copies); err != nil {
		return err
	}

	out := make([]byte, n)
	if err := d.queue.ReadBuffer(bufs[4], 0, out); err != nil {
		return fmt.Errorf("gpu: read mag: %w", err)
	}
	bytesToFloats(out, mag)
	if err := d.queue.ReadBuffer(bufs[5], 0, out); err != nil {
		return fmt.Errorf("gpu: read dir: %w", err)
	}
	bytesToFloats(out, dir)
	return nil
}

// Dots implements vectra.KernelDispatcher.
func (d *Dispatcher) Dots(luma []float32, w, h int, p imaging.DotParams, accept []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return vectra.ErrFallbackToCPU
	}

	gamma := p.Gamma
	if gamma <= 0 {
		gamma = 1.8
	}
	params := make([]byte, 32)
	binary.LittleEndian.PutUint32(params[0:], uint32(w))
	binary.LittleEndian.PutUint32(params[4:], uint32(h))
	binary.LittleEndian.PutUint32(params[8:], p.Seed)
	binary.LittleEndian.PutUint32(params[16:], math.Float32bits(float32(p.Density)))
	binary.LittleEndian.PutUint32(params[20:], math.Float32bits(float32(gamma)))
	binary.LittleEndian.PutUint32(params[24:], math.Float32bits(float32(p.MinRadius)))
	binary.LittleEndian.PutUint32(params[28:], math.Float32bits(float32(p.MaxRadius)))

	n := uint64(w * h * 4)
	bufs, err := d.makeBuffers([]bufferSpec{
		{"dots_params", 32, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{"dots_luma", n, gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst},
		{"dots_accept", n, gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc},
		{"dots_staging", n, gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	})
	if err != nil {
		return err
	}
	defer d.destroyBuffers(bufs)

	d.queue.WriteBuffer(bufs[0], 0, params)
	d.queue.WriteBuffer(bufs[1], 0, floatBytes(luma))

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "dots_bind", Layout: d.dots.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: bufs[0].NativeHandle(), Offset: 0, Size: 32}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: bufs[1].NativeHandle(), Offset: 0, Size: n}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: bufs[2].NativeHandle(), Offset: 0, Size: n}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create dots bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	copies := []bufferCopy{{bufs[2], bufs[3], n}}
	if err := d.runPass("dots", d.dots.compute, bg, uint32(w), uint32(h), copies); err != nil {
		return err
	}

	out := make([]byte, n)
	if err := d.queue.ReadBuffer(bufs[3], 0, out); err != nil {
		return fmt.Errorf("gpu: read accept: %w", err)
	}
	bytesToFloats(out, accept)
	return nil
}

type bufferSpec struct {
	label string
	size  uint64
	usage gputypes.BufferUsage
}

type bufferCopy struct {
	src, dst hal.Buffer
	size     uint64
}

func (d *Dispatcher) makeBuffers(specs []bufferSpec) ([]hal.Buffer, error) {
	bufs := make([]hal.Buffer, 0, len(specs))
	for _, s := range specs {
		b, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: s.label, Size: s.size, Usage: s.usage,
		})
		if err != nil {
			d.destroyBuffers(bufs)
			return nil, fmt.Errorf("gpu: create %s: %w", s.label, err)
		}
		bufs = append(bufs, b)
	}
	return bufs, nil
}

func (d *Dispatcher) destroyBuffers(bufs []hal.Buffer) {
	for _, b := range bufs {
		if b != nil {
			d.device.DestroyBuffer(b)
		}
	}
}

// runPass encodes one compute pass over a w x h grid, copies outputs to
// staging and waits for the fence.
func (d *Dispatcher) runPass(label string, pipe hal.ComputePipeline, bg hal.BindGroup, w, h uint32, copies []bufferCopy) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label + "_pass"})
	pass.SetPipeline(pipe)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((w+7)/8, (h+7)/8, 1)
	pass.End()

	for _, c := range copies {
		encoder.CopyBufferToBuffer(c.src, c.dst, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: c.size},
		})
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, gpuWait)
	if err != nil || !ok {
		return fmt.Errorf("gpu: wait: ok=%v err=%w", ok, err)
	}
	return nil
}

func (d *Dispatcher) createPipelines() error {
	var err error
	d.gradient, err = d.buildPipeline("gradient", gradientShaderSource, []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
	})
	if err != nil {
		return err
	}
	d.dots, err = d.buildPipeline("dots", dotsShaderSource, []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
	})
	return err
}

// buildPipeline compiles WGSL to SPIR-V through naga and assembles the HAL
// objects for one kernel.
func (d *Dispatcher) buildPipeline(label, wgsl string, entries []gputypes.BindGroupLayoutEntry) (pipeline, error) {
	var p pipeline

	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return p, fmt.Errorf("gpu: compile %s shader: %w", label, err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}

	p.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label, Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return p, fmt.Errorf("gpu: create %s shader module: %w", label, err)
	}
	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout", Entries: entries,
	})
	if err != nil {
		p.destroy(d.device)
		return p, fmt.Errorf("gpu: create %s bind layout: %w", label, err)
	}
	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(d.device)
		return p, fmt.Errorf("gpu: create %s pipeline layout: %w", label, err)
	}
	p.compute, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		p.destroy(d.device)
		return p, fmt.Errorf("gpu: create %s pipeline: %w", label, err)
	}
	return p, nil
}

func (p *pipeline) destroy(device hal.Device) {
	if device == nil {
		return
	}
	if p.compute != nil {
		device.DestroyComputePipeline(p.compute)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
	}
	*p = pipeline{}
}

func (d *Dispatcher) destroyPipelines() {
	if d.device == nil {
		return
	}
	d.gradient.destroy(d.device)
	d.dots.destroy(d.device)
}

func floatBytes(src []float32) []byte {
	out := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bytesToFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
