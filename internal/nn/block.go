package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// BlockConfig configures a transformer Block.
type BlockConfig struct {
	EmbedDim int     // d_model
	NumHeads int     // attention heads
	FFNDim   int     // d_ff hidden size
	Dropout  float32 // dropout rate in [0, 1)
	NormEps  float32 // LayerNorm epsilon
}

// Block is one post-norm transformer block:
//
//	a = SelfAttention(x, x, x, mask)
//	x = Norm1(x + Dropout(a))
//	f = FeedForward(x)
//	x = Norm2(x + Dropout(f))
//
// Normalization is applied after each residual add, not before the
// sub-layer. The ordering is part of the numeric contract: pre-norm
// changes activation scales and is a different architecture, not an
// equivalent refactor.
//
// Each block owns its two LayerNorms; they are never shared across blocks.
type Block[B tensor.Backend] struct {
	Config    BlockConfig
	Attention *MultiHeadAttention[B]
	FFN       *FeedForward[B]
	Norm1     *LayerNorm[B]
	Norm2     *LayerNorm[B]
	dropout1  *Dropout[B]
	dropout2  *Dropout[B]
	backend   B
}

// NewBlock creates a transformer block.
func NewBlock[B tensor.Backend](config BlockConfig, backend B) *Block[B] {
	if config.EmbedDim <= 0 {
		panic(fmt.Sprintf("Block: embed_dim must be positive, got %d", config.EmbedDim))
	}
	if config.NumHeads <= 0 {
		panic(fmt.Sprintf("Block: num_heads must be positive, got %d", config.NumHeads))
	}
	if config.EmbedDim%config.NumHeads != 0 {
		panic(fmt.Sprintf("Block: embed_dim (%d) must be divisible by num_heads (%d)", config.EmbedDim, config.NumHeads))
	}
	if config.FFNDim <= 0 {
		panic(fmt.Sprintf("Block: ffn_dim must be positive, got %d", config.FFNDim))
	}
	if config.NormEps <= 0 {
		panic(fmt.Sprintf("Block: norm_eps must be positive, got %f", config.NormEps))
	}

	return &Block[B]{
		Config:    config,
		Attention: NewMultiHeadAttention[B](config.EmbedDim, config.NumHeads, config.Dropout, backend),
		FFN:       NewFeedForward[B](config.EmbedDim, config.FFNDim, config.Dropout, backend),
		Norm1:     NewLayerNorm[B](config.EmbedDim, config.NormEps, backend),
		Norm2:     NewLayerNorm[B](config.EmbedDim, config.NormEps, backend),
		dropout1:  NewDropout[B](config.Dropout),
		dropout2:  NewDropout[B](config.Dropout),
		backend:   backend,
	}
}

// Forward computes the block output for x [batch, seq, d_model] with an
// optional boolean mask broadcastable to [batch, heads, seq, seq].
func (b *Block[B]) Forward(x *tensor.Tensor[float32, B], mask *tensor.Tensor[bool, B], training bool) *tensor.Tensor[float32, B] {
	attnOut := b.Attention.Forward(x, x, x, mask, training)
	x = b.Norm1.Forward(x.Add(b.dropout1.Forward(attnOut, training)))

	ffnOut := b.FFN.Forward(x, training)
	x = b.Norm2.Forward(x.Add(b.dropout2.Forward(ffnOut, training)))

	return x
}

// Parameters returns all trainable parameters of the block.
func (b *Block[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 16)
	params = append(params, b.Attention.Parameters()...)
	params = append(params, b.Norm1.Parameters()...)
	params = append(params, b.FFN.Parameters()...)
	params = append(params, b.Norm2.Parameters()...)
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (b *Block[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, 16)
	MergeStateDict(stateDict, "attention.", b.Attention.StateDict())
	MergeStateDict(stateDict, "norm1.", b.Norm1.StateDict())
	MergeStateDict(stateDict, "ffn.", b.FFN.StateDict())
	MergeStateDict(stateDict, "norm2.", b.Norm2.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (b *Block[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := b.Attention.LoadStateDict(SubStateDict(stateDict, "attention.")); err != nil {
		return fmt.Errorf("attention: %w", err)
	}
	if err := b.Norm1.LoadStateDict(SubStateDict(stateDict, "norm1.")); err != nil {
		return fmt.Errorf("norm1: %w", err)
	}
	if err := b.FFN.LoadStateDict(SubStateDict(stateDict, "ffn.")); err != nil {
		return fmt.Errorf("ffn: %w", err)
	}
	if err := b.Norm2.LoadStateDict(SubStateDict(stateDict, "norm2.")); err != nil {
		return fmt.Errorf("norm2: %w", err)
	}
	return nil
}
