package serialization

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()

	weight, err := tensor.NewRaw(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(weight.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})

	bias, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(bias.AsFloat32(), []float32{0.5, -0.5})

	return map[string]*tensor.RawTensor{
		"layer.weight": weight,
		"layer.bias":   bias,
	}
}

func testModelMeta() *ModelMeta {
	return &ModelMeta{
		VocabSize: 1000,
		DModel:    64,
		NumHeads:  4,
		NumLayers: 2,
		FFDim:     128,
		MaxSeqLen: 32,
		Dropout:   0.1,
	}
}

func writeTestFile(t *testing.T, stateDict map[string]*tensor.RawTensor) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.strand")

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.WriteStateDict(stateDict, testModelMeta(), map[string]string{"note": "test"}))
	require.NoError(t, writer.Close())

	return path
}

func TestRoundTrip(t *testing.T) {
	src := testStateDict(t)
	path := writeTestFile(t, src)

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	backend := cpu.New()
	loaded, err := reader.ReadStateDict(backend)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	for name, want := range src {
		got, ok := loaded[name]
		require.Truef(t, ok, "missing tensor %s", name)
		assert.True(t, got.Shape().Equal(want.Shape()))
		assert.Equal(t, want.DType(), got.DType())
		assert.Equal(t, want.AsFloat32(), got.AsFloat32())
	}
}

func TestHeaderContents(t *testing.T) {
	path := writeTestFile(t, testStateDict(t))

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	header := reader.Header()
	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.NotEmpty(t, header.StrandVersion)
	assert.False(t, header.CreatedAt.IsZero())
	assert.Equal(t, "test", reader.Metadata()["note"])

	require.NotNil(t, reader.Model())
	assert.Equal(t, *testModelMeta(), *reader.Model())

	// Tensors are recorded in sorted name order.
	assert.Equal(t, []string{"layer.bias", "layer.weight"}, reader.TensorNames())
}

func TestTensorDataAligned(t *testing.T) {
	path := writeTestFile(t, testStateDict(t))

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Zero(t, reader.dataOffset%DataAlignment,
		"tensor data offset %d not aligned to %d", reader.dataOffset, DataAlignment)
}

func TestLoadSingleTensor(t *testing.T) {
	path := writeTestFile(t, testStateDict(t))

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	raw, err := reader.LoadTensor("layer.bias", cpu.New())
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, raw.AsFloat32())

	_, err = reader.LoadTensor("no.such.tensor", cpu.New())
	assert.True(t, errors.Is(err, ErrTensorNotFound))
}

func TestInvalidMagicRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.strand")
	require.NoError(t, os.WriteFile(path, []byte("NOPEnopenope this is not a checkpoint, just filler bytes to pass the fixed header read ............."), 0o644))

	_, err := NewReader(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMagic))
}

func TestCorruptedDataRejected(t *testing.T) {
	path := writeTestFile(t, testStateDict(t))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = NewReader(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	// Skipping validation lets the corrupted file open.
	reader, err := NewReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	reader.Close()
}

func TestDeterministicBytes(t *testing.T) {
	src := testStateDict(t)
	p1 := writeTestFile(t, src)
	p2 := writeTestFile(t, src)

	r1, err := NewReader(p1)
	require.NoError(t, err)
	defer r1.Close()
	r2, err := NewReader(p2)
	require.NoError(t, err)
	defer r2.Close()

	// Same state dict, same checksum: the layout does not depend on map
	// iteration order.
	assert.Equal(t, r1.checksum, r2.checksum)
}

func TestWriterRejectsOversizedHeader(t *testing.T) {
	// Metadata large enough to push the JSON header past the limit the
	// reader enforces; the writer must refuse rather than emit a file it
	// cannot read back.
	metadata := map[string]string{
		"notes": strings.Repeat("x", MaxHeaderSize),
	}

	err := WriteTo(io.Discard, testStateDict(t), testModelMeta(), metadata)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeaderTooLarge))
}

func TestValidateTensorOffsets(t *testing.T) {
	ok := []TensorMeta{
		{Name: "a", Offset: 0, Size: 8},
		{Name: "b", Offset: 8, Size: 8},
	}
	assert.NoError(t, ValidateTensorOffsets(ok, 16))

	overlap := []TensorMeta{
		{Name: "a", Offset: 0, Size: 12},
		{Name: "b", Offset: 8, Size: 8},
	}
	assert.True(t, errors.Is(ValidateTensorOffsets(overlap, 32), ErrOffsetOverlap))

	outOfBounds := []TensorMeta{
		{Name: "a", Offset: 0, Size: 64},
	}
	assert.True(t, errors.Is(ValidateTensorOffsets(outOfBounds, 16), ErrOutOfBounds))

	negative := []TensorMeta{
		{Name: "a", Offset: -4, Size: 8},
	}
	assert.True(t, errors.Is(ValidateTensorOffsets(negative, 16), ErrNegativeOffset))

	// The typed error still carries the structured fields.
	var valErr *ValidationError
	require.True(t, errors.As(ValidateTensorOffsets(overlap, 32), &valErr))
	assert.Equal(t, "a", valErr.Tensor)
	assert.Equal(t, "b", valErr.Tensor2)
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("blocks.0.attention.wq.weight"))
	assert.Error(t, ValidateTensorName("../etc/passwd"))
	assert.Error(t, ValidateTensorName("a/b"))
	assert.Error(t, ValidateTensorName("bad\x00name"))
}
