package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

type Backend = *cpu.CPUBackend

func TestLinearShape(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear[Backend](4, 3, backend)

	x := tensor.Zeros[float32](tensor.Shape{2, 4}, backend)
	y := linear.Forward(x)

	if !y.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("output shape = %v, want [2, 3]", y.Shape())
	}
}

func TestLinearKnownValues(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear[Backend](2, 2, backend)

	// W = [[1, 2], [3, 4]], b = [10, 20]
	copy(linear.Weight().Tensor().Data(), []float32{1, 2, 3, 4})
	copy(linear.Bias().Tensor().Data(), []float32{10, 20})

	x, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	y := linear.Forward(x).Data()
	// y = x @ W.T + b = [1+2, 3+4] + [10, 20] = [13, 27]
	assert.InDelta(t, 13.0, y[0], 1e-6)
	assert.InDelta(t, 27.0, y[1], 1e-6)
}

func TestLinearBiasStartsZero(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear[Backend](8, 8, backend)

	for i, v := range linear.Bias().Tensor().Data() {
		if v != 0 {
			t.Fatalf("bias[%d] = %v, want 0", i, v)
		}
	}
}

func TestLinearXavierRange(t *testing.T) {
	backend := cpu.New()
	const in, out = 64, 64
	linear := NewLinear[Backend](in, out, backend)

	// Xavier uniform bound: sqrt(6 / (fanIn + fanOut)) = sqrt(6/128).
	bound := float32(math.Sqrt(6.0 / float64(in+out)))

	var nonZero bool
	for i, v := range linear.Weight().Tensor().Data() {
		if v < -bound || v > bound {
			t.Fatalf("weight[%d] = %v outside Xavier bound ±%v", i, v, bound)
		}
		if v != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("weights are all zero; Xavier init did not run")
	}
}

func TestLinearWrongFeaturesPanics(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear[Backend](4, 3, backend)

	x := tensor.Zeros[float32](tensor.Shape{2, 5}, backend)
	assert.Panics(t, func() {
		linear.Forward(x)
	})
}

func TestLinearStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := NewLinear[Backend](3, 2, backend)
	dst := NewLinear[Backend](3, 2, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())
	assert.Equal(t, src.Bias().Tensor().Data(), dst.Bias().Tensor().Data())
}

func TestLinearLoadStateDictShapeMismatch(t *testing.T) {
	backend := cpu.New()
	src := NewLinear[Backend](3, 3, backend)
	dst := NewLinear[Backend](3, 2, backend)

	err := dst.LoadStateDict(src.StateDict())
	assert.Error(t, err)
}
