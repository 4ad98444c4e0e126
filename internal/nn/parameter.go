package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Parameter is a named weight tensor owned by exactly one layer.
// Ownership is strictly hierarchical: the engine owns blocks, blocks own
// their sub-layers, sub-layers own their parameters. No weight storage is
// shared or aliased across layers.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter creates a new parameter.
// The tensor should be initialized before creating the Parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name (e.g. "weight", "gamma").
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// NumElements returns the number of scalar values in the parameter.
func (p *Parameter[B]) NumElements() int {
	return p.tensor.NumElements()
}

// loadInto copies raw data into an existing parameter after validating
// shape and dtype. Mutating in place keeps outstanding views valid.
func loadInto[B tensor.Backend](p *Parameter[B], name string, stateDict map[string]*tensor.RawTensor) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %q in state dict", name)
	}
	if !raw.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%q shape mismatch: expected %v, got %v", name, p.tensor.Shape(), raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%q dtype mismatch: expected float32, got %v", name, raw.DType())
	}

	copy(p.tensor.Data(), raw.AsFloat32())
	return nil
}
