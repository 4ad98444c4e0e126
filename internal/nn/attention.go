package nn

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// maskFill is the value written into forbidden attention scores before
// softmax. Large enough that exp(x - rowmax) underflows to exactly zero for
// masked positions, small enough to stay finite in float32.
const maskFill = float32(-1e9)

// ScaledDotProductAttention computes
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d_k)) @ V
//
// per head. The boolean mask (true = attend, false = forbidden) is applied
// by filling forbidden scores with a large negative value BEFORE the
// softmax, which guarantees those positions receive zero weight after
// normalization. Masking after softmax would leave the remaining weights
// unnormalized and is a correctness bug.
//
// Shapes:
//   - query:  [batch, heads, seq_q, head_dim]
//   - key:    [batch, heads, seq_k, head_dim]
//   - value:  [batch, heads, seq_k, head_dim]
//   - mask:   broadcastable to [batch, heads, seq_q, seq_k], or nil
//
// Returns the attended values [batch, heads, seq_q, head_dim] and the
// attention weights [batch, heads, seq_q, seq_k].
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	validateAttentionInputs(query, key, value)

	headDim := query.Shape()[3]
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	// Scores: Q @ K^T / sqrt(d_k), shape [batch, heads, seq_q, seq_k].
	kT := key.Transpose(0, 1, 3, 2)
	scores := query.BatchMatMul(kT).MulScalar(scale)

	if mask != nil {
		scores = scores.ApplyMask(mask, maskFill)
	}

	// Softmax over the key dimension (numerically stable in the backend).
	weights := scores.Softmax(-1)

	output := weights.BatchMatMul(value)

	return output, weights
}

func validateAttentionInputs[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
) {
	if len(query.Shape()) != 4 {
		panic("ScaledDotProductAttention: query must be 4D [batch, heads, seq_q, head_dim]")
	}
	if len(key.Shape()) != 4 {
		panic("ScaledDotProductAttention: key must be 4D [batch, heads, seq_k, head_dim]")
	}
	if len(value.Shape()) != 4 {
		panic("ScaledDotProductAttention: value must be 4D [batch, heads, seq_k, head_dim]")
	}

	if query.Shape()[3] != key.Shape()[3] {
		panic(fmt.Sprintf("ScaledDotProductAttention: query and key head_dim mismatch: %d vs %d",
			query.Shape()[3], key.Shape()[3]))
	}
	if key.Shape()[2] != value.Shape()[2] {
		panic(fmt.Sprintf("ScaledDotProductAttention: key and value seq length mismatch: %d vs %d",
			key.Shape()[2], value.Shape()[2]))
	}
}
