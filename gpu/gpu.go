//go:build !nogpu

// Package gpu registers the wgpu kernel dispatcher for accelerated
// gradient and dot kernels.
//
// Import this package to let the pipeline run its data-parallel stages on
// the GPU. If GPU initialization fails (no Vulkan available), registration
// is silently skipped and every stage runs on the CPU reference kernels;
// output is identical either way.
//
// Usage:
//
//	import _ "github.com/gogpu/vectra/gpu" // enable GPU kernels
package gpu

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/vectra"
	gpuimpl "github.com/gogpu/vectra/internal/gpu"
)

func init() {
	if err := vectra.RegisterKernels(gpuimpl.New()); err != nil {
		vectra.Logger().Warn("GPU kernels not available", "err", err)
	}
}

// SetDeviceProvider points the registered dispatcher at a shared GPU
// device instead of the one it created, avoiding a second instance when
// the host application already drives the GPU. The provider should also
// implement HAL access (HalDevice/HalQueue) for direct dispatch.
//
// Call this after import registration, typically from the host's GPU
// setup code.
func SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	return vectra.SetKernelDeviceProvider(provider)
}
