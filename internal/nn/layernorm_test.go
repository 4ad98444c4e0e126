package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestLayerNormInit(t *testing.T) {
	backend := cpu.New()
	norm := NewLayerNorm[Backend](4, 1e-5, backend)

	for i, v := range norm.Gamma.Tensor().Data() {
		if v != 1 {
			t.Fatalf("gamma[%d] = %v, want 1", i, v)
		}
	}
	for i, v := range norm.Beta.Tensor().Data() {
		if v != 0 {
			t.Fatalf("beta[%d] = %v, want 0", i, v)
		}
	}
}

func TestLayerNormNormalizes(t *testing.T) {
	backend := cpu.New()
	norm := NewLayerNorm[Backend](4, 1e-5, backend)

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 10, 20, 30, 40}, tensor.Shape{2, 4}, backend)
	require.NoError(t, err)

	y := norm.Forward(x).Data()

	// Each row of the output should have mean ~0 and variance ~1.
	for row := 0; row < 2; row++ {
		var sum, sumSq float64
		for j := 0; j < 4; j++ {
			v := float64(y[row*4+j])
			sum += v
			sumSq += v * v
		}
		mean := sum / 4
		variance := sumSq/4 - mean*mean

		assert.InDelta(t, 0.0, mean, 1e-4, "row %d mean", row)
		assert.InDelta(t, 1.0, variance, 1e-3, "row %d variance", row)
	}
}

func TestLayerNormPreservesShape3D(t *testing.T) {
	backend := cpu.New()
	norm := NewLayerNorm[Backend](8, 1e-5, backend)

	x := tensor.Randn(tensor.Shape{2, 5, 8}, backend)
	y := norm.Forward(x)

	if !y.Shape().Equal(tensor.Shape{2, 5, 8}) {
		t.Errorf("output shape = %v, want [2, 5, 8]", y.Shape())
	}
}

func TestLayerNormGammaBeta(t *testing.T) {
	backend := cpu.New()
	norm := NewLayerNorm[Backend](2, 1e-5, backend)

	// gamma = 2, beta = 5: y = 2*normed + 5.
	copy(norm.Gamma.Tensor().Data(), []float32{2, 2})
	copy(norm.Beta.Tensor().Data(), []float32{5, 5})

	x, err := tensor.FromSlice([]float32{-1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	y := norm.Forward(x).Data()
	// normed(-1, 1) = (-1, 1); scaled: (3, 7).
	assert.InDelta(t, 3.0, y[0], 1e-2)
	assert.InDelta(t, 7.0, y[1], 1e-2)
}

func TestLayerNormConstantRow(t *testing.T) {
	backend := cpu.New()
	norm := NewLayerNorm[Backend](4, 1e-5, backend)

	// A constant row has zero variance; epsilon keeps the division finite.
	x, err := tensor.FromSlice([]float32{3, 3, 3, 3}, tensor.Shape{1, 4}, backend)
	require.NoError(t, err)

	for i, v := range norm.Forward(x).Data() {
		require.Falsef(t, math.IsNaN(float64(v)), "NaN at index %d", i)
		assert.InDelta(t, 0.0, v, 1e-3)
	}
}
