package model

import (
	"fmt"

	"github.com/strand-ml/strand/internal/serialization"
	"github.com/strand-ml/strand/internal/tensor"
)

// Save writes the model's weights and hyperparameters to a .strand
// checkpoint at path.
func (t *Transformer[B]) Save(path string) error {
	writer, err := serialization.NewWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteStateDict(t.StateDict(), configToMeta(t.config), nil); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return writer.Close()
}

// LoadCheckpoint loads weights from a .strand checkpoint into the model.
// The checkpoint's recorded hyperparameters must match the model's
// configuration exactly; on any difference a *CheckpointMismatchError is
// returned and no weights are touched.
func (t *Transformer[B]) LoadCheckpoint(path string) error {
	return t.LoadCheckpointWithOptions(path, serialization.ReaderOptions{})
}

// LoadCheckpointWithOptions is LoadCheckpoint with reader options, e.g.
// skipping checksum validation for large checkpoints.
func (t *Transformer[B]) LoadCheckpointWithOptions(path string, opts serialization.ReaderOptions) error {
	reader, err := serialization.NewReaderWithOptions(path, opts)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer reader.Close()

	if err := validateMeta(t.config, reader.Model()); err != nil {
		return err
	}

	stateDict, err := reader.ReadStateDict(t.backend)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	return t.LoadStateDict(stateDict)
}

// Load constructs a new Transformer from a .strand checkpoint, taking the
// hyperparameters from the checkpoint header.
func Load[B tensor.Backend](path string, backend B) (*Transformer[B], error) {
	return LoadWithOptions(path, backend, serialization.ReaderOptions{})
}

// LoadWithOptions is Load with reader options.
func LoadWithOptions[B tensor.Backend](path string, backend B, opts serialization.ReaderOptions) (*Transformer[B], error) {
	reader, err := serialization.NewReaderWithOptions(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer reader.Close()

	meta := reader.Model()
	if meta == nil {
		return nil, fmt.Errorf("checkpoint has no model hyperparameters")
	}

	t, err := New[B](metaToConfig(meta), backend)
	if err != nil {
		return nil, err
	}

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if err := t.LoadStateDict(stateDict); err != nil {
		return nil, err
	}

	return t, nil
}

func configToMeta(c Config) *serialization.ModelMeta {
	return &serialization.ModelMeta{
		VocabSize: c.VocabSize,
		DModel:    c.DModel,
		NumHeads:  c.NumHeads,
		NumLayers: c.NumLayers,
		FFDim:     c.FFDim,
		MaxSeqLen: c.MaxSeqLen,
		Dropout:   c.Dropout,
	}
}

func metaToConfig(m *serialization.ModelMeta) Config {
	return Config{
		VocabSize: m.VocabSize,
		DModel:    m.DModel,
		NumHeads:  m.NumHeads,
		NumLayers: m.NumLayers,
		FFDim:     m.FFDim,
		MaxSeqLen: m.MaxSeqLen,
		Dropout:   m.Dropout,
	}
}

// validateMeta compares a checkpoint's recorded hyperparameters against
// the receiving model's config, field by field. Dropout is excluded: it
// does not affect weight shapes and may legitimately differ between the
// saving and loading runs.
func validateMeta(c Config, m *serialization.ModelMeta) error {
	if m == nil {
		return fmt.Errorf("checkpoint has no model hyperparameters")
	}
	if c.VocabSize != m.VocabSize {
		return &CheckpointMismatchError{Field: "vocab_size", Expected: c.VocabSize, Actual: m.VocabSize}
	}
	if c.DModel != m.DModel {
		return &CheckpointMismatchError{Field: "d_model", Expected: c.DModel, Actual: m.DModel}
	}
	if c.NumHeads != m.NumHeads {
		return &CheckpointMismatchError{Field: "n_heads", Expected: c.NumHeads, Actual: m.NumHeads}
	}
	if c.NumLayers != m.NumLayers {
		return &CheckpointMismatchError{Field: "n_layers", Expected: c.NumLayers, Actual: m.NumLayers}
	}
	if c.FFDim != m.FFDim {
		return &CheckpointMismatchError{Field: "d_ff", Expected: c.FFDim, Actual: m.FFDim}
	}
	if c.MaxSeqLen != m.MaxSeqLen {
		return &CheckpointMismatchError{Field: "max_seq_length", Expected: c.MaxSeqLen, Actual: m.MaxSeqLen}
	}
	return nil
}
