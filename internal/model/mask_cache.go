package model

import (
	"sync"

	"github.com/strand-ml/strand/internal/tensor"
)

// maskKey identifies a cached causal mask. Device is part of the key so a
// cache shared between backends never hands out a mask that lives on the
// wrong device.
type maskKey struct {
	seqLen int
	device tensor.Device
}

// MaskCache caches lower-triangular causal masks by (seqLen, device).
// Masks are immutable once created, so repeat calls return the same
// underlying storage. The cache is never evicted; its size is bounded by
// the set of distinct sequence lengths seen over the engine's lifetime.
type MaskCache[B tensor.Backend] struct {
	mu    sync.Mutex
	masks map[maskKey]*tensor.Tensor[bool, B]
}

// NewMaskCache creates an empty mask cache.
func NewMaskCache[B tensor.Backend]() *MaskCache[B] {
	return &MaskCache[B]{masks: make(map[maskKey]*tensor.Tensor[bool, B])}
}

// Get returns the [seqLen, seqLen] causal mask for the backend's device,
// building and caching it on first use. Position i may attend to
// positions j <= i (mask[i][j] == true).
func (c *MaskCache[B]) Get(seqLen int, backend B) *tensor.Tensor[bool, B] {
	key := maskKey{seqLen: seqLen, device: backend.Device()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mask, ok := c.masks[key]; ok {
		return mask
	}

	mask := tensor.Tril[B](seqLen, backend)
	c.masks[key] = mask
	return mask
}

// Len returns the number of cached masks.
func (c *MaskCache[B]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.masks)
}
