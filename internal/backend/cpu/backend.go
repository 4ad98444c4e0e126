// Package cpu implements the pure-Go CPU backend for tensor operations.
package cpu

import (
	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host CPU.
// Matrix products are parallelized across output rows via internal/parallel;
// everything else is a straight loop over the flat buffers.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
}

// NewSequential creates a CPU backend with parallel execution disabled.
// Useful for deterministic profiling and for tests that care about
// goroutine counts.
func NewSequential() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.Config{},
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}
