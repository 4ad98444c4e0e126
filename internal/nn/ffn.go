package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// FeedForward is the position-wise two-layer MLP of a transformer block:
//
//	FFN(x) = Linear2(ReLU(Linear1(x)))
//
// with dropout after the activation in training mode. Strictly
// position-wise: mixing across the sequence dimension is the attention
// layer's job.
type FeedForward[B tensor.Backend] struct {
	Linear1 *Linear[B] // [d_model -> d_ff]
	Linear2 *Linear[B] // [d_ff -> d_model]
	dropout *Dropout[B]
	backend B
}

// NewFeedForward creates a feed-forward layer expanding d_model to d_ff and
// projecting back.
func NewFeedForward[B tensor.Backend](embedDim, ffnDim int, dropoutRate float32, backend B) *FeedForward[B] {
	return &FeedForward[B]{
		Linear1: NewLinear[B](embedDim, ffnDim, backend),
		Linear2: NewLinear[B](ffnDim, embedDim, backend),
		dropout: NewDropout[B](dropoutRate),
		backend: backend,
	}
}

// Forward computes the FFN output, preserving the input shape.
// Accepts [batch, seq, d_model] or [batch, d_model].
func (f *FeedForward[B]) Forward(x *tensor.Tensor[float32, B], training bool) *tensor.Tensor[float32, B] {
	origShape := x.Shape()
	is3D := len(origShape) == 3

	var batch, seq, embedDim int
	if is3D {
		batch, seq, embedDim = origShape[0], origShape[1], origShape[2]
		x = x.Reshape(batch*seq, embedDim)
	}

	x = f.Linear1.Forward(x).ReLU()
	x = f.dropout.Forward(x, training)
	x = f.Linear2.Forward(x)

	if is3D {
		x = x.Reshape(batch, seq, embedDim)
	}

	return x
}

// Parameters returns all trainable parameters (Linear1 and Linear2).
func (f *FeedForward[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 4)
	params = append(params, f.Linear1.Parameters()...)
	params = append(params, f.Linear2.Parameters()...)
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (f *FeedForward[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, 4)
	MergeStateDict(stateDict, "linear1.", f.Linear1.StateDict())
	MergeStateDict(stateDict, "linear2.", f.Linear2.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (f *FeedForward[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := f.Linear1.LoadStateDict(SubStateDict(stateDict, "linear1.")); err != nil {
		return fmt.Errorf("linear1: %w", err)
	}
	if err := f.Linear2.LoadStateDict(SubStateDict(stateDict, "linear2.")); err != nil {
		return fmt.Errorf("linear2: %w", err)
	}
	return nil
}
