package tensor

// Backend defines the interface a compute substrate must implement.
// All ops are synchronous and allocate their result unless noted; inputs are
// never mutated, which is what makes concurrent forward passes safe.
//
// The CPU backend in internal/backend/cpu is the only implementation shipped
// here; the interface is the seam where a GPU backend would plug in.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	// MatMul: 2D (M, K) @ (K, N) -> (M, N).
	// BatchMatMul: 3D [B, M, K] @ [B, K, N] or 4D [B, H, M, K] @ [B, H, K, N].
	MatMul(a, b *RawTensor) *RawTensor
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with a scalar).
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Math operations (element-wise).
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor

	// Softmax computes a numerically stable softmax along dim
	// (row max subtracted before exponentiation).
	Softmax(x *RawTensor, dim int) *RawTensor

	// ReLU applies max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Reduction operations.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor

	// ApplyMask keeps x where the boolean mask is true and writes value
	// where it is false. The mask shape must be broadcastable to x.
	ApplyMask(x, mask *RawTensor, value float32) *RawTensor

	// Embedding looks up rows of weight [num, dim] by int32 indices,
	// producing indices.Shape() + [dim].
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
