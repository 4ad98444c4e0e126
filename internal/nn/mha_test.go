package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestMultiHeadAttentionShape(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[Backend](16, 4, 0, backend)

	x := tensor.Randn(tensor.Shape{2, 5, 16}, backend)
	y := mha.Forward(x, x, x, nil, false)

	if !y.Shape().Equal(tensor.Shape{2, 5, 16}) {
		t.Errorf("output shape = %v, want [2, 5, 16]", y.Shape())
	}
}

func TestMultiHeadAttentionDivisibilityPanics(t *testing.T) {
	backend := cpu.New()
	// 512 % 7 != 0: must fail at construction, not at runtime.
	assert.Panics(t, func() {
		NewMultiHeadAttention[Backend](512, 7, 0, backend)
	})
}

func TestMultiHeadAttentionWeightsShape(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[Backend](8, 2, 0, backend)

	x := tensor.Randn(tensor.Shape{1, 4, 8}, backend)
	out, weights := mha.ForwardWithWeights(x, x, x, nil, false)

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 4, 8}))
	assert.True(t, weights.Shape().Equal(tensor.Shape{1, 2, 4, 4}))
}

func TestMultiHeadAttentionCausalWeights(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[Backend](8, 2, 0, backend)

	const seq = 4
	x := tensor.Randn(tensor.Shape{1, seq, 8}, backend)
	mask := tensor.Tril(seq, backend)

	_, weights := mha.ForwardWithWeights(x, x, x, mask, false)

	data := weights.Data()
	for h := 0; h < 2; h++ {
		for i := 0; i < seq; i++ {
			for j := i + 1; j < seq; j++ {
				if w := data[h*seq*seq+i*seq+j]; w != 0 {
					t.Errorf("head %d: future weight[%d][%d] = %v, want 0", h, i, j, w)
				}
			}
		}
	}
}

func TestMultiHeadAttentionDeterministicInference(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[Backend](8, 2, 0.3, backend)

	x := tensor.Randn(tensor.Shape{1, 4, 8}, backend)
	y1 := mha.Forward(x, x, x, nil, false).Data()
	y2 := mha.Forward(x, x, x, nil, false).Data()

	assert.Equal(t, y1, y2)
}

func TestMultiHeadAttentionStateDict(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[Backend](8, 2, 0, backend)

	stateDict := mha.StateDict()
	wantKeys := []string{
		"wq.weight", "wq.bias",
		"wk.weight", "wk.bias",
		"wv.weight", "wv.bias",
		"wo.weight", "wo.bias",
	}
	require.Len(t, stateDict, len(wantKeys))
	for _, key := range wantKeys {
		assert.Contains(t, stateDict, key)
	}
}

func TestMultiHeadAttentionStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := NewMultiHeadAttention[Backend](8, 2, 0, backend)
	dst := NewMultiHeadAttention[Backend](8, 2, 0, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	x := tensor.Randn(tensor.Shape{1, 3, 8}, backend)
	assert.Equal(t, src.Forward(x, x, x, nil, false).Data(), dst.Forward(x, x, x, nil, false).Data())
}

func TestMultiHeadAttentionParameterCount(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[Backend](8, 2, 0, backend)

	// 4 projections × (8×8 weight + 8 bias).
	total := 0
	for _, p := range mha.Parameters() {
		total += p.NumElements()
	}
	assert.Equal(t, 4*(8*8+8), total)
}
