package cpu

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// Softmax computes softmax along the given dimension.
//
// The row maximum is subtracted before exponentiating. This is a correctness
// requirement, not an optimization: without it, large attention scores (or
// the -1e9 fill used for masking) overflow exp and poison the whole stack
// with Inf/NaN.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim))
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32 supported)", x.DType()))
	}

	result, err := tensor.NewRaw(shape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	src := x.AsFloat32()
	dst := result.AsFloat32()

	// Decompose the index space into [outer, dim, inner].
	dimSize := shape[dim]
	inner := 1
	for i := dim + 1; i < ndim; i++ {
		inner *= shape[i]
	}
	outer := x.NumElements() / (dimSize * inner)

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*dimSize*inner + in

			// 1. Row max for numerical stability.
			maxVal := src[base]
			for d := 1; d < dimSize; d++ {
				if v := src[base+d*inner]; v > maxVal {
					maxVal = v
				}
			}

			// 2. exp(x - max) and sum.
			sum := float32(0)
			for d := 0; d < dimSize; d++ {
				idx := base + d*inner
				e := float32(math.Exp(float64(src[idx] - maxVal)))
				dst[idx] = e
				sum += e
			}

			// 3. Normalize.
			inv := 1.0 / sum
			for d := 0; d < dimSize; d++ {
				dst[base+d*inner] *= inv
			}
		}
	}

	return result
}
