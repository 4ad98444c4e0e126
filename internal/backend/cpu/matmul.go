package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
// Output rows are computed in parallel.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("matmul: unsupported dtypes %s, %s", a.DType(), b.DType()))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	dst := result.AsFloat32()
	srcA := a.AsFloat32()
	srcB := b.AsFloat32()

	parallel.For(m, func(i int) {
		matmulRow(dst, srcA, srcB, i, k, n)
	}, cpu.parallel)

	return result
}

// matmulRow computes one output row: C[i,:] = A[i,:] @ B.
// Iterating k in the outer loop keeps the inner loop a contiguous
// scan over B's rows.
func matmulRow(c, a, b []float32, i, k, n int) {
	row := c[i*n : (i+1)*n]
	for j := range row {
		row[j] = 0
	}
	for kIdx := 0; kIdx < k; kIdx++ {
		aik := a[i*k+kIdx]
		if aik == 0 {
			continue
		}
		bRow := b[kIdx*n : (kIdx+1)*n]
		for j, bv := range bRow {
			row[j] += aik * bv
		}
	}
}

// BatchMatMul performs batched matrix multiplication.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// The last two dimensions are the matrix dimensions; all leading (batch)
// dimensions must match. Work is parallelized across batch*row units.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	ndim := len(aShape)

	if ndim < 3 {
		panic(fmt.Sprintf("batchmatmul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batchmatmul: dimension mismatch, got %dD and %dD", ndim, len(bShape)))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("batchmatmul: unsupported dtypes %s, %s", a.DType(), b.DType()))
	}

	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
	}

	m := aShape[ndim-2]
	k1 := aShape[ndim-1]
	k2 := bShape[ndim-2]
	n := bShape[ndim-1]

	if k1 != k2 {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch: %d vs %d", k1, k2))
	}

	batchSize := 1
	for i := 0; i < ndim-2; i++ {
		batchSize *= aShape[i]
	}

	outShape := make(tensor.Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = m
	outShape[ndim-1] = n

	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: failed to create result tensor: %v", err))
	}

	dst := result.AsFloat32()
	srcA := a.AsFloat32()
	srcB := b.AsFloat32()

	sizeA := m * k1
	sizeB := k1 * n
	sizeC := m * n

	parallel.ForRows(batchSize, m, func(batch, i int) {
		aOff := batch * sizeA
		bOff := batch * sizeB
		cOff := batch * sizeC

		row := dst[cOff+i*n : cOff+(i+1)*n]
		for j := range row {
			row[j] = 0
		}
		for kIdx := 0; kIdx < k1; kIdx++ {
			aik := srcA[aOff+i*k1+kIdx]
			if aik == 0 {
				continue
			}
			bRow := srcB[bOff+kIdx*n : bOff+(kIdx+1)*n]
			for j, bv := range bRow {
				row[j] += aik * bv
			}
		}
	}, cpu.parallel)

	return result
}
