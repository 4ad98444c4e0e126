package model

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/tensor"
)

// Transformer is a sequence-to-logits engine: batched token ids in,
// next-token logits over the vocabulary out.
//
// Forward pipeline:
//
//	embed(ids) × √d_model
//	+ sinusoidal positional signal (dropout in training mode)
//	N post-norm transformer blocks, all sharing the caller's mask
//	output projection to [batch, seq, vocab_size]
//
// Attention is unmasked unless the caller supplies a mask. Autoregressive
// use passes CausalMask(seqLen); padding masks work the same way.
//
// Forward is safe for concurrent use in inference mode. Train/Eval and
// LoadStateDict mutate shared state and require external exclusion
// against in-flight Forward calls.
type Transformer[B tensor.Backend] struct {
	Embedding  *nn.Embedding[B]
	Positional *nn.SinusoidalPositionalEncoding[B]
	Blocks     []*nn.Block[B]
	Output     *nn.Linear[B]

	config   Config
	backend  B
	masks    *MaskCache[B]
	training bool
}

// New creates a Transformer with freshly initialized weights: Xavier
// uniform for the embedding, projections, and feed-forward weights; ones
// for the LayerNorm gains; zeros for every bias and LayerNorm offset.
func New[B tensor.Backend](config Config, backend B) (*Transformer[B], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	blocks := make([]*nn.Block[B], config.NumLayers)
	for i := range blocks {
		blocks[i] = nn.NewBlock[B](nn.BlockConfig{
			EmbedDim: config.DModel,
			NumHeads: config.NumHeads,
			FFNDim:   config.FFDim,
			Dropout:  config.Dropout,
			NormEps:  config.normEps(),
		}, backend)
	}

	return &Transformer[B]{
		Embedding:  nn.NewEmbedding[B](config.VocabSize, config.DModel, backend),
		Positional: nn.NewSinusoidalPositionalEncoding[B](config.MaxSeqLen, config.DModel, config.Dropout, backend),
		Blocks:     blocks,
		Output:     nn.NewLinear[B](config.DModel, config.VocabSize, backend),
		config:     config,
		backend:    backend,
		masks:      NewMaskCache[B](),
	}, nil
}

// Config returns the model's hyperparameters.
func (t *Transformer[B]) Config() Config {
	return t.config
}

// Backend returns the execution backend.
func (t *Transformer[B]) Backend() B {
	return t.backend
}

// Train puts the model in training mode: dropout becomes active.
func (t *Transformer[B]) Train() {
	t.training = true
}

// Eval puts the model in inference mode: dropout is a no-op and Forward
// is deterministic.
func (t *Transformer[B]) Eval() {
	t.training = false
}

// Training reports whether the model is in training mode.
func (t *Transformer[B]) Training() bool {
	return t.training
}

// CausalMask returns the cached [seqLen, seqLen] causal mask for the
// model's device. Repeat calls with the same length return the same
// tensor storage.
func (t *Transformer[B]) CausalMask(seqLen int) *tensor.Tensor[bool, B] {
	return t.masks.Get(seqLen, t.backend)
}

// Forward computes logits for a batch of token id sequences.
//
// ids must be [batch, seq] with every id in [0, VocabSize) and
// seq <= MaxSeqLen. mask is optional: nil leaves attention unmasked, a
// non-nil boolean mask (true = attend) is applied in every block.
// Autoregressive callers pass CausalMask(seqLen). Returns
// [batch, seq, VocabSize].
func (t *Transformer[B]) Forward(ids *tensor.Tensor[int32, B], mask *tensor.Tensor[bool, B]) (*tensor.Tensor[float32, B], error) {
	shape := ids.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("input must be [batch, seq], got shape %v", []int(shape))
	}
	batch, seqLen := shape[0], shape[1]

	if seqLen > t.config.MaxSeqLen {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrSequenceTooLong, seqLen, t.config.MaxSeqLen)
	}

	vocab := int32(t.config.VocabSize)
	for i, id := range ids.Data() {
		if id < 0 || id >= vocab {
			return nil, fmt.Errorf("%w: id %d at position (%d, %d), vocab size %d",
				ErrTokenOutOfRange, id, i/seqLen, i%seqLen, vocab)
		}
	}

	// Embedding scale: the positional signal has unit amplitude, so the
	// embeddings are scaled up to keep them from being drowned out.
	x := t.Embedding.Forward(ids).MulScalar(float32(math.Sqrt(float64(t.config.DModel))))
	x = t.Positional.Forward(x, t.training)

	for _, block := range t.Blocks {
		x = block.Forward(x, mask, t.training)
	}

	// Project [batch, seq, d_model] -> [batch, seq, vocab].
	flat := x.Reshape(batch*seqLen, t.config.DModel)
	logits := t.Output.Forward(flat)
	return logits.Reshape(batch, seqLen, t.config.VocabSize), nil
}

// Parameters returns all trainable parameters.
func (t *Transformer[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 2+16*len(t.Blocks))
	params = append(params, t.Embedding.Parameters()...)
	for _, block := range t.Blocks {
		params = append(params, block.Parameters()...)
	}
	params = append(params, t.Output.Parameters()...)
	return params
}

// NumParameters returns the total number of trainable scalar parameters.
func (t *Transformer[B]) NumParameters() int {
	total := 0
	for _, p := range t.Parameters() {
		total += p.NumElements()
	}
	return total
}

// StateDict returns all parameters keyed by hierarchical names like
// "embedding.weight", "blocks.3.attention.wq.weight", "output.bias".
// The positional encoding table is deterministic and rebuilt from the
// config, so it is not part of the state dict.
func (t *Transformer[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, 2+16*len(t.Blocks))
	nn.MergeStateDict(stateDict, "embedding.", t.Embedding.StateDict())
	for i, block := range t.Blocks {
		nn.MergeStateDict(stateDict, fmt.Sprintf("blocks.%d.", i), block.StateDict())
	}
	nn.MergeStateDict(stateDict, "output.", t.Output.StateDict())
	return stateDict
}

// LoadStateDict replaces all parameters from a state dictionary. Every
// tensor must match the current parameter's shape and dtype. Must not
// run concurrently with Forward.
func (t *Transformer[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := t.Embedding.LoadStateDict(nn.SubStateDict(stateDict, "embedding.")); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	for i, block := range t.Blocks {
		prefix := fmt.Sprintf("blocks.%d.", i)
		if err := block.LoadStateDict(nn.SubStateDict(stateDict, prefix)); err != nil {
			return fmt.Errorf("blocks.%d: %w", i, err)
		}
	}
	if err := t.Output.LoadStateDict(nn.SubStateDict(stateDict, "output.")); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}
