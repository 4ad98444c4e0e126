package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestDropoutInferenceIsIdentity(t *testing.T) {
	backend := cpu.New()
	drop := NewDropout[Backend](0.5)

	x := tensor.Randn(tensor.Shape{4, 4}, backend)
	y := drop.Forward(x, false)

	assert.Same(t, x, y, "inference-mode dropout must pass the input through")
}

func TestDropoutZeroRateIsIdentity(t *testing.T) {
	backend := cpu.New()
	drop := NewDropout[Backend](0)

	x := tensor.Randn(tensor.Shape{4, 4}, backend)
	y := drop.Forward(x, true)

	assert.Same(t, x, y)
}

func TestDropoutTraining(t *testing.T) {
	backend := cpu.New()
	drop := NewDropout[Backend](0.5)

	x := tensor.Ones[float32](tensor.Shape{100, 100}, backend)
	y := drop.Forward(x, true)

	// Input untouched.
	for _, v := range x.Data() {
		if v != 1 {
			t.Fatal("dropout mutated its input")
		}
	}

	// Survivors are scaled by 1/(1-p) = 2; the rest are zero.
	zeros := 0
	for _, v := range y.Data() {
		switch v {
		case 0:
			zeros++
		case 2:
		default:
			t.Fatalf("unexpected value %v, want 0 or 2", v)
		}
	}

	// ~50% dropped; allow generous slack for randomness.
	frac := float64(zeros) / float64(len(y.Data()))
	assert.InDelta(t, 0.5, frac, 0.05)
}

func TestDropoutInvalidRatePanics(t *testing.T) {
	assert.Panics(t, func() { NewDropout[Backend](-0.1) })
	assert.Panics(t, func() { NewDropout[Backend](1.0) })
}
