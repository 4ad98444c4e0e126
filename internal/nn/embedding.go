package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Embedding is a lookup table mapping token ids to dense vectors.
//
// The weight matrix [NumEmbed, EmbedDim] follows the same Xavier
// initialization as every other non-normalization weight in the engine.
type Embedding[B tensor.Backend] struct {
	weight   *Parameter[B] // [NumEmbed, EmbedDim]
	NumEmbed int
	EmbedDim int
}

// NewEmbedding creates a new Embedding layer.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	weight := Xavier(numEmbeddings, embeddingDim, tensor.Shape{numEmbeddings, embeddingDim}, backend)

	return &Embedding[B]{
		weight:   NewParameter("weight", weight),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
	}
}

// Forward performs embedding lookup.
//
// Input: int32 indices of any shape, each in [0, NumEmbed).
// Output: indices.Shape() + [EmbedDim].
//
// Callers are responsible for range-checking ids; an out-of-range index
// panics in the backend.
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return e.weight.Tensor().Embedding(indices)
}

// Weight returns the embedding weight parameter.
func (e *Embedding[B]) Weight() *Parameter[B] {
	return e.weight
}

// Parameters returns the trainable parameters.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.weight}
}

// StateDict returns a map of parameter names to raw tensors.
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": e.weight.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(e.weight, "weight", stateDict); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return nil
}
