package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Reshape returns a view of the same data under a new shape.
// Zero-copy: the buffer is shared with the input.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes the tensor's dimensions.
// With no axes, all dimensions are reversed (standard transpose for 2D).
// The result is materialized contiguously.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes permutation %v for rank %d", axes, ndim))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("transpose: unsupported dtype %s (only float32 supported)", t.DType()))
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: failed to create result tensor: %v", err))
	}

	src := t.AsFloat32()
	dst := result.AsFloat32()

	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	// Walk the output linearly; recover the source index through the
	// permuted strides.
	srcStrides := make([]int, ndim)
	for i, ax := range axes {
		srcStrides[i] = inStrides[ax]
	}

	for i := range dst {
		dst[i] = src[sourceIndex(i, outStrides, srcStrides)]
	}

	return result
}

// Unsqueeze inserts a dimension of size 1 at the given position.
// Zero-copy: only the shape metadata changes.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + 1 + dim
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for rank %d", dim, ndim))
	}

	newShape := make(tensor.Shape, 0, ndim+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	result, err := x.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("unsqueeze: %v", err))
	}
	return result
}

// ApplyMask keeps x where the boolean mask is true and writes value where it
// is false. The mask is broadcast to x's shape; typical use is filling
// forbidden attention scores with a large negative value before softmax.
func (cpu *CPUBackend) ApplyMask(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("applymask: unsupported dtype %s (only float32 supported)", x.DType()))
	}
	if mask.DType() != tensor.Bool {
		panic(fmt.Sprintf("applymask: mask dtype is %s, want bool", mask.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil {
		panic(fmt.Sprintf("applymask: %v", err))
	}
	if !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("applymask: mask %v does not broadcast to input %v", mask.Shape(), x.Shape()))
	}

	result, err := tensor.NewRaw(x.Shape(), tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("applymask: failed to create result tensor: %v", err))
	}

	src := x.AsFloat32()
	dst := result.AsFloat32()
	keep := mask.AsBool()

	outStrides := outShape.ComputeStrides()
	maskStrides := broadcastStrides(mask.Shape(), outShape)

	for i := range dst {
		if keep[sourceIndex(i, outStrides, maskStrides)] {
			dst[i] = src[i]
		} else {
			dst[i] = value
		}
	}

	return result
}

// Embedding gathers rows of weight [num, dim] by int32 indices, producing
// indices.Shape() + [dim]. Indices must be in [0, num); the engine validates
// token ids before this is reached, so out-of-range here is a programmer error.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [num, dim], got %v", wShape))
	}
	if weight.DType() != tensor.Float32 {
		panic(fmt.Sprintf("embedding: unsupported weight dtype %s", weight.DType()))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices dtype is %s, want int32", indices.DType()))
	}

	num, dim := wShape[0], wShape[1]

	outShape := make(tensor.Shape, 0, len(indices.Shape())+1)
	outShape = append(outShape, indices.Shape()...)
	outShape = append(outShape, dim)

	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: failed to create result tensor: %v", err))
	}

	src := weight.AsFloat32()
	dst := result.AsFloat32()
	idx := indices.AsInt32()

	for i, id := range idx {
		if id < 0 || int(id) >= num {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", id, num))
		}
		copy(dst[i*dim:(i+1)*dim], src[int(id)*dim:(int(id)+1)*dim])
	}

	return result
}
