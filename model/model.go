// Copyright 2025 Strand ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the public API for the Strand transformer
// engine: batched token ids in, vocabulary logits out.
//
// Example:
//
//	backend := cpu.New()
//	m, err := model.New[*cpu.Backend](model.Config{
//	    VocabSize: 32000,
//	    DModel:    512,
//	    NumHeads:  8,
//	    NumLayers: 6,
//	    FFDim:     2048,
//	    MaxSeqLen: 1024,
//	    Dropout:   0.1,
//	}, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// nil mask = unmasked attention; pass m.CausalMask(seqLen) for
//	// autoregressive use.
//	logits, err := m.Forward(ids, m.CausalMask(seqLen))
package model

import (
	internalmodel "github.com/strand-ml/strand/internal/model"
	"github.com/strand-ml/strand/tensor"
)

// Config holds the hyperparameters of a Transformer.
type Config = internalmodel.Config

// DefaultNormEps is the LayerNorm epsilon used when Config.NormEps is zero.
const DefaultNormEps = internalmodel.DefaultNormEps

// Transformer is the sequence-to-logits engine.
type Transformer[B tensor.Backend] = internalmodel.Transformer[B]

// MaskCache caches causal masks by (sequence length, device).
type MaskCache[B tensor.Backend] = internalmodel.MaskCache[B]

// Error types.
type (
	// ConfigError reports an invalid hyperparameter combination.
	ConfigError = internalmodel.ConfigError

	// CheckpointMismatchError reports a checkpoint whose hyperparameters
	// differ from the receiving model's configuration.
	CheckpointMismatchError = internalmodel.CheckpointMismatchError
)

// Sentinel errors returned (wrapped) by Forward.
var (
	ErrTokenOutOfRange = internalmodel.ErrTokenOutOfRange
	ErrSequenceTooLong = internalmodel.ErrSequenceTooLong
)

// New creates a Transformer with freshly initialized weights.
func New[B tensor.Backend](config Config, backend B) (*Transformer[B], error) {
	return internalmodel.New[B](config, backend)
}

// Load constructs a Transformer from a .strand checkpoint, taking the
// hyperparameters from the checkpoint header.
func Load[B tensor.Backend](path string, backend B) (*Transformer[B], error) {
	return internalmodel.Load[B](path, backend)
}

// NewMaskCache creates an empty causal mask cache.
func NewMaskCache[B tensor.Backend]() *MaskCache[B] {
	return internalmodel.NewMaskCache[B]()
}
