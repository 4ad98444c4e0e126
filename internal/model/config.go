package model

import "fmt"

// Config holds the hyperparameters of a Transformer.
type Config struct {
	VocabSize int     // number of distinct token ids
	DModel    int     // embedding / residual stream width
	NumHeads  int     // attention heads per block
	NumLayers int     // number of transformer blocks
	FFDim     int     // feed-forward hidden width
	MaxSeqLen int     // longest supported sequence
	Dropout   float32 // dropout rate in [0, 1)
	NormEps   float32 // LayerNorm epsilon; DefaultNormEps if zero
}

// DefaultNormEps is the LayerNorm epsilon used when Config.NormEps is zero.
const DefaultNormEps = 1e-5

// Validate checks the configuration and returns a *ConfigError describing
// the first violation found.
func (c *Config) Validate() error {
	if c.VocabSize <= 0 {
		return &ConfigError{Field: "VocabSize", Message: fmt.Sprintf("must be positive, got %d", c.VocabSize)}
	}
	if c.DModel <= 0 {
		return &ConfigError{Field: "DModel", Message: fmt.Sprintf("must be positive, got %d", c.DModel)}
	}
	if c.NumHeads <= 0 {
		return &ConfigError{Field: "NumHeads", Message: fmt.Sprintf("must be positive, got %d", c.NumHeads)}
	}
	if c.DModel%c.NumHeads != 0 {
		return &ConfigError{
			Field:   "NumHeads",
			Message: fmt.Sprintf("DModel (%d) must be divisible by NumHeads (%d)", c.DModel, c.NumHeads),
		}
	}
	if c.NumLayers <= 0 {
		return &ConfigError{Field: "NumLayers", Message: fmt.Sprintf("must be positive, got %d", c.NumLayers)}
	}
	if c.FFDim <= 0 {
		return &ConfigError{Field: "FFDim", Message: fmt.Sprintf("must be positive, got %d", c.FFDim)}
	}
	if c.MaxSeqLen <= 0 {
		return &ConfigError{Field: "MaxSeqLen", Message: fmt.Sprintf("must be positive, got %d", c.MaxSeqLen)}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return &ConfigError{Field: "Dropout", Message: fmt.Sprintf("must be in [0, 1), got %f", c.Dropout)}
	}
	if c.NormEps < 0 {
		return &ConfigError{Field: "NormEps", Message: fmt.Sprintf("must be non-negative, got %f", c.NormEps)}
	}
	return nil
}

// normEps returns the effective LayerNorm epsilon.
func (c *Config) normEps() float32 {
	if c.NormEps == 0 {
		return DefaultNormEps
	}
	return c.NormEps
}
