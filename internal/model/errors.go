package model

import (
	"errors"
	"fmt"
)

// Input validation errors. Forward wraps these with the offending values.
var (
	// ErrTokenOutOfRange reports a token id outside [0, VocabSize).
	ErrTokenOutOfRange = errors.New("token id out of range")

	// ErrSequenceTooLong reports an input sequence longer than MaxSeqLen.
	// Over-long sequences are rejected, never silently truncated.
	ErrSequenceTooLong = errors.New("sequence length exceeds maximum")
)

// ConfigError reports an invalid hyperparameter combination at
// construction time.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// CheckpointMismatchError reports a checkpoint whose recorded
// hyperparameters differ from the receiving model's configuration.
// Nothing is loaded when this error is returned.
type CheckpointMismatchError struct {
	Field    string
	Expected any // value in the receiving model's config
	Actual   any // value recorded in the checkpoint
}

func (e *CheckpointMismatchError) Error() string {
	return fmt.Sprintf("checkpoint mismatch: %s: model has %v, checkpoint has %v",
		e.Field, e.Expected, e.Actual)
}
