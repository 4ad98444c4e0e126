// Package nn implements the neural network layers the Strand engine is
// assembled from.
//
// Building blocks:
//   - Parameter: named weight tensors
//   - Linear: fully connected layer
//   - Embedding: token-id lookup table
//   - LayerNorm: normalization over the feature dimension
//   - SinusoidalPositionalEncoding: fixed additive positional signal
//   - MultiHeadAttention / ScaledDotProductAttention
//   - FeedForward: position-wise two-layer MLP
//   - Block: post-norm transformer block
//
// Layers panic on contract violations (wrong ranks, mismatched feature
// sizes): by the time data reaches this package the engine in
// internal/model has already validated user input, so a violation here is a
// programmer error, not a user error.
package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// Module is the common interface of all layers.
//
// Forward signatures differ per layer (attention takes three inputs and a
// mask), so the interface covers only what is uniform: parameter traversal
// and state-dict based (de)serialization.
type Module[B tensor.Backend] interface {
	// Parameters returns all trainable parameters of this module,
	// including nested module parameters.
	Parameters() []*Parameter[B]

	// StateDict returns a map of local parameter names to raw tensors.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies parameter data from a state dictionary,
	// validating names, shapes, and dtypes. Parameters are mutated in
	// place so existing tensor views stay valid.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// MergeStateDict copies src into dst with every key prefixed.
// Used to assemble hierarchical names like "blocks.3.attention.wq.weight".
func MergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+name] = raw
	}
}

// SubStateDict extracts the entries of stateDict under prefix, with the
// prefix stripped. Inverse of MergeStateDict.
func SubStateDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			sub[name[len(prefix):]] = raw
		}
	}
	return sub
}
