package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversAllIndices(t *testing.T) {
	const n = 1000
	var hits [n]int32

	For(n, func(i int) {
		atomic.AddInt32(&hits[i], 1)
	}, DefaultConfig())

	for i, count := range hits {
		if count != 1 {
			t.Errorf("index %d visited %d times, want 1", i, count)
		}
	}
}

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}

	order := make([]int, 0, 10)
	For(10, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, got := range order {
		if got != i {
			t.Fatalf("sequential execution out of order: %v", order)
		}
	}
}

func TestForSmallNStaysSequential(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 64}

	// n < MinChunkSize runs on the calling goroutine, so an unsynchronized
	// append is safe.
	var count int
	For(10, func(i int) { count++ }, cfg)

	if count != 10 {
		t.Errorf("visited %d indices, want 10", count)
	}
}

func TestForZeroN(t *testing.T) {
	called := false
	For(0, func(i int) { called = true }, DefaultConfig())
	if called {
		t.Error("f should not be called for n=0")
	}
}

func TestForRows(t *testing.T) {
	const batch, rows = 3, 5
	var hits [batch][rows]int32

	ForRows(batch, rows, func(b, r int) {
		atomic.AddInt32(&hits[b][r], 1)
	}, DefaultConfig())

	for b := 0; b < batch; b++ {
		for r := 0; r < rows; r++ {
			if hits[b][r] != 1 {
				t.Errorf("(%d, %d) visited %d times, want 1", b, r, hits[b][r])
			}
		}
	}
}
