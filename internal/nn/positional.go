package nn

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// SinusoidalPositionalEncoding adds the fixed positional signal from
// "Attention is All You Need" (Vaswani et al., 2017) to token embeddings:
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
//
// The table is precomputed once at construction and never mutated. It is not
// a learned parameter and is therefore absent from state dicts: a fresh
// engine with the same dimensions always rebuilds the identical table.
type SinusoidalPositionalEncoding[B tensor.Backend] struct {
	Encoding *tensor.Tensor[float32, B] // [max_len, dim]
	MaxLen   int
	Dim      int
	dropout  *Dropout[B]
	backend  B
}

// NewSinusoidalPositionalEncoding precomputes encodings for positions
// [0, maxLen).
func NewSinusoidalPositionalEncoding[B tensor.Backend](maxLen, dim int, dropoutRate float32, backend B) *SinusoidalPositionalEncoding[B] {
	if maxLen <= 0 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: maxLen must be positive, got %d", maxLen))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: dim must be positive, got %d", dim))
	}

	encodings := make([]float32, maxLen*dim)

	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dim; i++ {
			// Angle: pos / 10000^(2i/dim), where the pair index 2i is
			// shared by the sin (even) and cos (odd) slots.
			angle := float64(pos) / math.Pow(10000.0, float64(2*(i/2))/float64(dim))

			idx := pos*dim + i
			if i%2 == 0 {
				encodings[idx] = float32(math.Sin(angle))
			} else {
				encodings[idx] = float32(math.Cos(angle))
			}
		}
	}

	encoding, err := tensor.FromSlice[float32, B](encodings, tensor.Shape{maxLen, dim}, backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create encoding tensor: %v", err))
	}

	return &SinusoidalPositionalEncoding[B]{
		Encoding: encoding,
		MaxLen:   maxLen,
		Dim:      dim,
		dropout:  NewDropout[B](dropoutRate),
		backend:  backend,
	}
}

// Forward returns x + table[0:seq_len], broadcast over the batch dimension,
// with dropout applied in training mode only. At inference the operation is
// purely additive and deterministic.
//
// Input shape: [batch, seq_len, dim] with seq_len <= MaxLen.
// Panics if seq_len exceeds MaxLen; the engine rejects over-long sequences
// with an error before calling in here.
func (s *SinusoidalPositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B], training bool) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: expected 3D input [batch, seq, dim], got %v", shape))
	}
	seqLen := shape[1]
	if seqLen > s.MaxLen {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: seqLen %d exceeds MaxLen %d", seqLen, s.MaxLen))
	}
	if shape[2] != s.Dim {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: feature size %d does not match dim %d", shape[2], s.Dim))
	}

	// Slice the first seqLen positions and reshape for broadcasting.
	encData := s.Encoding.Data()
	seqEnc, err := tensor.FromSlice[float32, B](encData[:seqLen*s.Dim], tensor.Shape{seqLen, s.Dim}, s.backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create sequence encoding: %v", err))
	}

	out := x.Add(seqEnc.Reshape(1, seqLen, s.Dim))
	return s.dropout.Forward(out, training)
}

// Parameters returns an empty slice; the table is a fixed constant.
func (s *SinusoidalPositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}
