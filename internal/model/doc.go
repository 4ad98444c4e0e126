// Package model implements the sequence-to-logits transformer engine:
// configuration and validation, the Transformer forward pass, the causal
// mask cache, and checkpoint save/load.
package model
