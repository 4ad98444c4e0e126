package model

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

type Backend = *cpu.CPUBackend

func newTestModel(t *testing.T) *Transformer[Backend] {
	t.Helper()
	m, err := New[Backend](validConfig(), cpu.New())
	require.NoError(t, err)
	return m
}

func idsTensor(t *testing.T, data []int32, shape tensor.Shape, m *Transformer[Backend]) *tensor.Tensor[int32, Backend] {
	t.Helper()
	ids, err := tensor.FromSlice(data, shape, m.Backend())
	require.NoError(t, err)
	return ids
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.NumHeads = 7 // 64 % 7 != 0

	_, err := New[Backend](cfg, cpu.New())
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestForwardShape(t *testing.T) {
	m := newTestModel(t)

	ids := idsTensor(t, make([]int32, 2*20), tensor.Shape{2, 20}, m)
	logits, err := m.Forward(ids, nil)
	require.NoError(t, err)

	assert.True(t, logits.Shape().Equal(tensor.Shape{2, 20, 1000}),
		"logits shape = %v", logits.Shape())
}

func TestForwardDeterministicInference(t *testing.T) {
	m := newTestModel(t)

	ids := idsTensor(t, []int32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, m)

	l1, err := m.Forward(ids, nil)
	require.NoError(t, err)
	l2, err := m.Forward(ids, nil)
	require.NoError(t, err)

	assert.Equal(t, l1.Data(), l2.Data(), "inference must be deterministic despite Dropout > 0")
}

func TestForwardTokenOutOfRange(t *testing.T) {
	m := newTestModel(t)

	for _, bad := range []int32{-1, 1000, 5000} {
		ids := idsTensor(t, []int32{1, bad, 3}, tensor.Shape{1, 3}, m)
		_, err := m.Forward(ids, nil)
		require.Error(t, err, "id %d", bad)
		assert.True(t, errors.Is(err, ErrTokenOutOfRange), "id %d: got %v", bad, err)
	}
}

func TestForwardSequenceTooLong(t *testing.T) {
	m := newTestModel(t) // MaxSeqLen 32

	ids := idsTensor(t, make([]int32, 33), tensor.Shape{1, 33}, m)
	_, err := m.Forward(ids, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSequenceTooLong))
}

func TestForwardRejectsWrongRank(t *testing.T) {
	m := newTestModel(t)

	ids := idsTensor(t, []int32{1, 2, 3}, tensor.Shape{3}, m)
	_, err := m.Forward(ids, nil)
	assert.Error(t, err)
}

// Under the causal mask, logits at position i must not depend on tokens at
// positions > i.
func TestForwardCausalMask(t *testing.T) {
	m := newTestModel(t)

	a := idsTensor(t, []int32{10, 20, 30, 40}, tensor.Shape{1, 4}, m)
	b := idsTensor(t, []int32{10, 20, 30, 999}, tensor.Shape{1, 4}, m)

	la, err := m.Forward(a, m.CausalMask(4))
	require.NoError(t, err)
	lb, err := m.Forward(b, m.CausalMask(4))
	require.NoError(t, err)

	vocab := m.Config().VocabSize
	for pos := 0; pos < 3; pos++ {
		for v := 0; v < vocab; v++ {
			if la.Data()[pos*vocab+v] != lb.Data()[pos*vocab+v] {
				t.Fatalf("logits at position %d changed when a future token changed", pos)
			}
		}
	}
}

// With no mask supplied, attention is bidirectional: every position may
// attend to every other, so a future-token change must reach position 0.
func TestForwardNilMaskIsBidirectional(t *testing.T) {
	m := newTestModel(t)

	a := idsTensor(t, []int32{10, 20, 30, 40}, tensor.Shape{1, 4}, m)
	b := idsTensor(t, []int32{10, 20, 30, 999}, tensor.Shape{1, 4}, m)

	la, err := m.Forward(a, nil)
	require.NoError(t, err)
	lb, err := m.Forward(b, nil)
	require.NoError(t, err)

	vocab := m.Config().VocabSize
	var changed bool
	for v := 0; v < vocab; v++ {
		if la.Data()[v] != lb.Data()[v] {
			changed = true
			break
		}
	}
	assert.True(t, changed, "position-0 logits must depend on later tokens when no mask is supplied")
}

func TestInitPolicy(t *testing.T) {
	m := newTestModel(t)

	for _, block := range m.Blocks {
		for _, v := range block.Norm1.Gamma.Tensor().Data() {
			require.Equal(t, float32(1), v, "norm gamma must start at 1")
		}
		for _, v := range block.Norm2.Beta.Tensor().Data() {
			require.Equal(t, float32(0), v, "norm beta must start at 0")
		}
		for _, v := range block.Attention.WQ.Bias().Tensor().Data() {
			require.Equal(t, float32(0), v, "linear bias must start at 0")
		}
		for _, v := range block.FFN.Linear1.Bias().Tensor().Data() {
			require.Equal(t, float32(0), v)
		}
	}
	for _, v := range m.Output.Bias().Tensor().Data() {
		require.Equal(t, float32(0), v)
	}

	// Embedding weight is Xavier, not zero.
	var nonZero bool
	for _, v := range m.Embedding.Weight().Tensor().Data() {
		if v != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero, "embedding must be Xavier-initialized")
}

func TestNumParameters(t *testing.T) {
	m := newTestModel(t)
	c := m.Config()

	embedding := c.VocabSize * c.DModel
	perBlock := 4*(c.DModel*c.DModel+c.DModel) + // attention projections
		(c.DModel*c.FFDim + c.FFDim) + (c.FFDim*c.DModel + c.DModel) + // ffn
		4*c.DModel // two norms × (gamma + beta)
	output := c.DModel*c.VocabSize + c.VocabSize

	want := embedding + c.NumLayers*perBlock + output
	assert.Equal(t, want, m.NumParameters())
}

func TestStateDictNames(t *testing.T) {
	m := newTestModel(t)
	stateDict := m.StateDict()

	for _, key := range []string{
		"embedding.weight",
		"blocks.0.attention.wq.weight",
		"blocks.1.ffn.linear2.bias",
		"blocks.1.norm2.gamma",
		"output.weight",
		"output.bias",
	} {
		assert.Contains(t, stateDict, key)
	}

	// No positional table in the state dict; it is rebuilt from the config.
	for name := range stateDict {
		if strings.Contains(name, "positional") {
			t.Errorf("unexpected positional entry %q in state dict", name)
		}
	}

	// 1 embedding + 16 per block × 2 blocks + 2 output.
	assert.Len(t, stateDict, 1+16*2+2)
}

func TestStateDictRoundTrip(t *testing.T) {
	src := newTestModel(t)
	dst := newTestModel(t)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	ids := idsTensor(t, []int32{5, 6, 7}, tensor.Shape{1, 3}, src)
	la, err := src.Forward(ids, src.CausalMask(3))
	require.NoError(t, err)

	ids2 := idsTensor(t, []int32{5, 6, 7}, tensor.Shape{1, 3}, dst)
	lb, err := dst.Forward(ids2, dst.CausalMask(3))
	require.NoError(t, err)

	assert.Equal(t, la.Data(), lb.Data())
}

func TestTrainEval(t *testing.T) {
	m := newTestModel(t)

	assert.False(t, m.Training(), "models start in inference mode")
	m.Train()
	assert.True(t, m.Training())
	m.Eval()
	assert.False(t, m.Training())
}

func TestConcurrentInference(t *testing.T) {
	m := newTestModel(t)

	ids := idsTensor(t, []int32{1, 2, 3, 4}, tensor.Shape{1, 4}, m)
	want, err := m.Forward(ids, m.CausalMask(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Forward(ids, m.CausalMask(4))
			if err != nil {
				t.Error(err)
				return
			}
			for i, v := range got.Data() {
				if v != want.Data()[i] {
					t.Errorf("concurrent forward diverged at %d", i)
					return
				}
			}
		}()
	}
	wg.Wait()
}
