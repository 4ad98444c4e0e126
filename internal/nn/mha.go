package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// MultiHeadAttention implements the multi-head attention mechanism:
//
//	MHA(Q, K, V) = Concat(head_1, ..., head_h) @ W_O
//	head_i = SDPA(Q @ W_Q_i, K @ W_K_i, V @ W_V_i)
//
// The feature dimension d_model is partitioned into NumHeads chunks of
// HeadDim = d_model / NumHeads; the partition is realized by reshaping the
// full d_model -> d_model projections, not by h separate matrices.
//
// Dropout is applied to the normalized attention weights in training mode.
type MultiHeadAttention[B tensor.Backend] struct {
	WQ       *Linear[B] // Query projection [d_model, d_model]
	WK       *Linear[B] // Key projection [d_model, d_model]
	WV       *Linear[B] // Value projection [d_model, d_model]
	WO       *Linear[B] // Output projection [d_model, d_model]
	NumHeads int
	HeadDim  int
	EmbedDim int
	dropout  *Dropout[B]
	backend  B
}

// NewMultiHeadAttention creates a multi-head attention layer.
// embedDim must be divisible by numHeads; violating this is a
// configuration error caught at construction, never at runtime.
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, dropoutRate float32, backend B) *MultiHeadAttention[B] {
	if numHeads <= 0 {
		panic(fmt.Sprintf("MultiHeadAttention: num_heads must be positive, got %d", numHeads))
	}
	if embedDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}

	return &MultiHeadAttention[B]{
		WQ:       NewLinear[B](embedDim, embedDim, backend),
		WK:       NewLinear[B](embedDim, embedDim, backend),
		WV:       NewLinear[B](embedDim, embedDim, backend),
		WO:       NewLinear[B](embedDim, embedDim, backend),
		NumHeads: numHeads,
		HeadDim:  embedDim / numHeads,
		EmbedDim: embedDim,
		dropout:  NewDropout[B](dropoutRate),
		backend:  backend,
	}
}

// Forward computes multi-head attention.
//
// For self-attention, pass the same tensor for query, key, and value.
//
// Shapes:
//   - query: [batch, seq_q, d_model]
//   - key, value: [batch, seq_k, d_model]
//   - mask: boolean, broadcastable to [batch, heads, seq_q, seq_k], or nil
//
// Returns [batch, seq_q, d_model].
func (m *MultiHeadAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
	training bool,
) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardWithWeights(query, key, value, mask, training)
	return out
}

// ForwardWithWeights is Forward but also returns the attention weights
// [batch, heads, seq_q, seq_k], useful for analysis and for verifying that
// masked positions carry zero weight.
func (m *MultiHeadAttention[B]) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
	training bool,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	batch := query.Shape()[0]
	seqQ := query.Shape()[1]
	seqK := key.Shape()[1]

	// 1. Project Q, K, V.
	q := m.project(query, m.WQ, batch, seqQ)
	k := m.project(key, m.WK, batch, seqK)
	v := m.project(value, m.WV, batch, seqK)

	// 2. Split heads: [batch, seq, d_model] -> [batch, heads, seq, head_dim].
	q = q.Reshape(batch, seqQ, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
	k = k.Reshape(batch, seqK, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
	v = v.Reshape(batch, seqK, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)

	// 3. Scaled dot-product attention per head.
	attnOut, weights := ScaledDotProductAttention(q, k, v, mask)

	// 4. Dropout on normalized weights (training only). The weighted sum is
	// recomputed from the dropped weights so inference stays untouched.
	if training && m.dropout.P > 0 {
		weights = m.dropout.Forward(weights, training)
		attnOut = weights.BatchMatMul(v)
	}

	// 5. Merge heads and project out.
	attnOut = attnOut.Transpose(0, 2, 1, 3).Reshape(batch, seqQ, m.EmbedDim)
	output := m.WO.Forward(attnOut.Reshape(batch*seqQ, m.EmbedDim)).Reshape(batch, seqQ, m.EmbedDim)

	return output, weights
}

// project reshapes 3D input to 2D, applies the linear layer, and reshapes back.
func (m *MultiHeadAttention[B]) project(
	input *tensor.Tensor[float32, B],
	linear *Linear[B],
	batch, seq int,
) *tensor.Tensor[float32, B] {
	out := linear.Forward(input.Reshape(batch*seq, m.EmbedDim))
	return out.Reshape(batch, seq, m.EmbedDim)
}

// Parameters returns all trainable parameters (WQ, WK, WV, WO weights and biases).
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 8)
	params = append(params, m.WQ.Parameters()...)
	params = append(params, m.WK.Parameters()...)
	params = append(params, m.WV.Parameters()...)
	params = append(params, m.WO.Parameters()...)
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (m *MultiHeadAttention[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, 8)
	MergeStateDict(stateDict, "wq.", m.WQ.StateDict())
	MergeStateDict(stateDict, "wk.", m.WK.StateDict())
	MergeStateDict(stateDict, "wv.", m.WV.StateDict())
	MergeStateDict(stateDict, "wo.", m.WO.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (m *MultiHeadAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := m.WQ.LoadStateDict(SubStateDict(stateDict, "wq.")); err != nil {
		return fmt.Errorf("wq: %w", err)
	}
	if err := m.WK.LoadStateDict(SubStateDict(stateDict, "wk.")); err != nil {
		return fmt.Errorf("wk: %w", err)
	}
	if err := m.WV.LoadStateDict(SubStateDict(stateDict, "wv.")); err != nil {
		return fmt.Errorf("wv: %w", err)
	}
	if err := m.WO.LoadStateDict(SubStateDict(stateDict, "wo.")); err != nil {
		return fmt.Errorf("wo: %w", err)
	}
	return nil
}
