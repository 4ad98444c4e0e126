package nn

import (
	"fmt"
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// Dropout randomly zeros elements with probability P during training,
// scaling the survivors by 1/(1-P) so activation magnitudes match between
// training and inference (inverted dropout).
//
// At inference (training=false) the input is returned unchanged, which is
// what makes the engine's forward pass deterministic.
type Dropout[B tensor.Backend] struct {
	P float32
}

// NewDropout creates a dropout layer.
// Rate must be in [0, 1).
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: rate must be in [0, 1), got %f", p))
	}
	return &Dropout[B]{P: p}
}

// Forward applies dropout when training; otherwise passes x through untouched.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B], training bool) *tensor.Tensor[float32, B] {
	if !training || d.P == 0 {
		return x
	}

	out := x.Clone()
	data := out.Data()
	scale := 1.0 / (1.0 - d.P)

	for i := range data {
		//nolint:gosec // G404: math/rand is the right tool for dropout
		if rand.Float32() < d.P {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}

	return out
}

// Parameters returns an empty slice; dropout has no trainable state.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
