package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/strand-ml/strand/internal/tensor"
)

const strandVersion = "0.3.1" // Current Strand version

// Writer writes checkpoints in .strand format.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a .strand file writer at path.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: path comes from the caller, which is expected for checkpoint saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes a state dictionary plus model hyperparameters to
// the .strand file. Tensors are written in sorted name order so the byte
// stream (and its checksum) is deterministic for a given state dict.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, model *ModelMeta, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	return WriteTo(w.file, stateDict, model, metadata)
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteTo writes a state dictionary in .strand format to an io.Writer.
func WriteTo(writer io.Writer, stateDict map[string]*tensor.RawTensor, model *ModelMeta, metadata map[string]string) error {
	header := Header{
		FormatVersion: FormatVersion,
		StrandVersion: strandVersion,
		CreatedAt:     time.Now().UTC(),
		Model:         model,
		Tensors:       make([]TensorMeta, 0, len(stateDict)),
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	tensorOrder := make([]string, 0, len(stateDict))
	for name := range stateDict {
		tensorOrder = append(tensorOrder, name)
	}
	sort.Strings(tensorOrder)

	var currentOffset int64
	for _, name := range tensorOrder {
		raw := stateDict[name]
		size := int64(raw.NumElements() * raw.DType().Size())

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})

		currentOffset += size
	}

	// Concatenate tensor data so the checksum can be computed up front.
	tensorData := make([]byte, 0, currentOffset)
	for _, name := range tensorOrder {
		tensorData = append(tensorData, stateDict[name].Data()...)
	}
	checksum := ComputeChecksum(tensorData)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrHeaderTooLarge, len(headerJSON), MaxHeaderSize)
	}

	headerSize := uint64(len(headerJSON))
	dataSize := uint64(len(tensorData))

	fixedHeader := make([]byte, FixedHeaderSize)

	// 0x00-0x03: Magic bytes "STRD"
	copy(fixedHeader[0:4], MagicBytes)

	// 0x04-0x07: Version
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))

	// 0x08-0x0B: Flags
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)

	// 0x0C-0x0F: Reserved (zero from make)

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixedHeader[16:24], headerSize)

	// 0x18-0x1F: Data size
	binary.LittleEndian.PutUint64(fixedHeader[24:32], dataSize)

	// 0x20-0x3F: SHA-256 checksum of the tensor data
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := writer.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}

	if _, err := writer.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	// Pad so the tensor data starts on a 64-byte boundary.
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize, conversion is safe
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (DataAlignment - (currentPos % DataAlignment)) % DataAlignment
	if padding > 0 {
		if _, err := writer.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := writer.Write(tensorData); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}

	return nil
}
