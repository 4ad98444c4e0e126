package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// LayerNorm normalizes over the last (feature) dimension:
//
//	Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// gamma starts at all-ones and beta at all-zeros, per the engine's
// initialization policy for normalization weights.
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B] // learnable scale [d_model]
	Beta    *Parameter[B] // learnable shift [d_model]
	Epsilon float32
	backend B
}

// NewLayerNorm creates a LayerNorm over the given feature size.
// epsilon is typically 1e-5.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return &LayerNorm[B]{
		Gamma:   NewParameter("gamma", Ones(tensor.Shape{normalizedShape}, backend)),
		Beta:    NewParameter("beta", Zeros(tensor.Shape{normalizedShape}, backend)),
		Epsilon: epsilon,
		backend: backend,
	}
}

// Forward applies LayerNorm to [..., d_model] input, preserving shape.
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)

	variance := centered.Mul(centered).MeanDim(-1, true)
	invStd := variance.AddScalar(l.Epsilon).Rsqrt()

	normed := centered.Mul(invStd)

	// gamma/beta are [d_model]; unsqueeze to broadcast over the leading dims.
	gamma := l.Gamma.Tensor()
	beta := l.Beta.Tensor()
	for i := 0; i < len(x.Shape())-1; i++ {
		gamma = gamma.Unsqueeze(0)
		beta = beta.Unsqueeze(0)
	}

	return normed.Mul(gamma).Add(beta)
}

// Parameters returns the learnable parameters (gamma and beta).
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Gamma, l.Beta}
}

// StateDict returns a map of parameter names to raw tensors.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma": l.Gamma.Tensor().Raw(),
		"beta":  l.Beta.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(l.Gamma, "gamma", stateDict); err != nil {
		return err
	}
	return loadInto(l.Beta, "beta", stateDict)
}
