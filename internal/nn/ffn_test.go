package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestFeedForwardShape(t *testing.T) {
	backend := cpu.New()
	ffn := NewFeedForward[Backend](8, 32, 0, backend)

	x3 := tensor.Randn(tensor.Shape{2, 5, 8}, backend)
	assert.True(t, ffn.Forward(x3, false).Shape().Equal(tensor.Shape{2, 5, 8}))

	x2 := tensor.Randn(tensor.Shape{4, 8}, backend)
	assert.True(t, ffn.Forward(x2, false).Shape().Equal(tensor.Shape{4, 8}))
}

// The FFN must treat each position independently: permuting positions in
// the input permutes the output the same way.
func TestFeedForwardPositionWise(t *testing.T) {
	backend := cpu.New()
	ffn := NewFeedForward[Backend](4, 8, 0, backend)

	a, err := tensor.FromSlice([]float32{
		1, 2, 3, 4, // position 0
		5, 6, 7, 8, // position 1
	}, tensor.Shape{1, 2, 4}, backend)
	require.NoError(t, err)

	b, err := tensor.FromSlice([]float32{
		5, 6, 7, 8, // swapped
		1, 2, 3, 4,
	}, tensor.Shape{1, 2, 4}, backend)
	require.NoError(t, err)

	ya := ffn.Forward(a, false).Data()
	yb := ffn.Forward(b, false).Data()

	assert.Equal(t, ya[:4], yb[4:], "position outputs must be independent of position")
	assert.Equal(t, ya[4:], yb[:4])
}

func TestFeedForwardReLUClamps(t *testing.T) {
	backend := cpu.New()
	ffn := NewFeedForward[Backend](2, 2, 0, backend)

	// Identity-ish weights: Linear1 = I, Linear2 = I, all biases zero.
	copy(ffn.Linear1.Weight().Tensor().Data(), []float32{1, 0, 0, 1})
	copy(ffn.Linear2.Weight().Tensor().Data(), []float32{1, 0, 0, 1})

	x, err := tensor.FromSlice([]float32{-3, 2}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	// FFN(x) = I @ relu(I @ x) = relu(x).
	y := ffn.Forward(x, false).Data()
	assert.InDelta(t, 0.0, y[0], 1e-6)
	assert.InDelta(t, 2.0, y[1], 1e-6)
}

func TestFeedForwardStateDict(t *testing.T) {
	backend := cpu.New()
	ffn := NewFeedForward[Backend](4, 8, 0, backend)

	stateDict := ffn.StateDict()
	require.Len(t, stateDict, 4)
	for _, key := range []string{"linear1.weight", "linear1.bias", "linear2.weight", "linear2.bias"} {
		assert.Contains(t, stateDict, key)
	}
}
